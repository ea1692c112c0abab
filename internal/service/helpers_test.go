package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/school_canteen/internal/cache"
	"github.com/Skotchmaster/school_canteen/internal/db/dbtest"
	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
	"github.com/Skotchmaster/school_canteen/internal/repo"
)

type testEnv struct {
	repo    *repo.GormRepo
	cache   *cache.Cache
	events  *recordingPublisher
	orders  *OrderService
	balance *BalanceService
	promos  *PromoService
	menu    *MenuService
	cart    *CartService
	profile *ProfileService
	admin   *AdminService
	auth    *AuthService
}

type recordedEvent struct {
	topic string
	key   string
	event any
}

type recordingPublisher struct {
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, event any) error {
	p.events = append(p.events, recordedEvent{topic: topic, key: key, event: event})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	store := dbtest.New(t)
	r := &repo.GormRepo{DB: store.Gorm}
	c := cache.New(128, time.Minute)
	pub := &recordingPublisher{}

	env := &testEnv{repo: r, cache: c, events: pub}
	env.orders = &OrderService{Repo: r, Cache: c, Events: pub}
	env.balance = &BalanceService{Repo: r, Cache: c, Events: pub}
	env.promos = &PromoService{Repo: r}
	env.menu = &MenuService{Repo: r, Cache: c, Events: pub}
	env.cart = &CartService{Repo: r, Orders: env.orders, Promos: env.promos}
	env.profile = &ProfileService{Repo: r, Cache: c}
	env.admin = &AdminService{Repo: r, Stats: &repo.StatsRepo{DB: store.SQL}, Cache: c}
	env.auth = &AuthService{
		Repo:          r,
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	}
	return env
}

func (e *testEnv) user(t *testing.T, name string, balance money.Amount) uint {
	t.Helper()
	u := &models.User{
		Username:     name,
		PasswordHash: "x",
		Profile:      &models.Profile{FullName: name, Balance: balance},
		Role:         &models.UserRole{Role: models.RoleUser},
	}
	require.NoError(t, e.repo.CreateUserIfNotExists(context.Background(), u))
	return u.ID
}

func (e *testEnv) category(t *testing.T, name string) uint {
	t.Helper()
	cat, err := e.menu.CreateCategory(context.Background(), CategoryInput{Name: name})
	require.NoError(t, err)
	return cat.ID
}

func (e *testEnv) meal(t *testing.T, catID uint, name string, price money.Amount) uint {
	t.Helper()
	meal, err := e.menu.CreateMeal(context.Background(), MealInput{Name: name, Price: price, CategoryID: catID})
	require.NoError(t, err)
	return meal.ID
}

func (e *testEnv) promo(t *testing.T, in PromoInput) *models.PromoCode {
	t.Helper()
	p, err := e.promos.Create(context.Background(), in)
	require.NoError(t, err)
	return p
}

func (e *testEnv) balanceOf(t *testing.T, userID uint) money.Amount {
	t.Helper()
	b, err := e.repo.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func ptr[T any](v T) *T { return &v }
