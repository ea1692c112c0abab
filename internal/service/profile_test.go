package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
)

func TestProfile_UpdateAndCache(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	uid := env.user(t, "alisa", money.FromUnits(7))

	view, err := env.profile.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "alisa", view.Username)
	assert.Equal(t, money.FromUnits(7), view.Balance)

	view, err = env.profile.Update(ctx, uid, ProfileInput{ClassName: ptr(" 7A "), Age: ptr(13)})
	require.NoError(t, err)
	assert.Equal(t, "7A", view.ClassName)
	assert.Equal(t, 13, view.Age)
	assert.Equal(t, "alisa", view.FullName)

	_, err = env.profile.Update(ctx, uid, ProfileInput{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.profile.Update(ctx, uid, ProfileInput{Age: ptr(-1)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.profile.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfile_TelegramLink(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	first := env.user(t, "first", 0)
	second := env.user(t, "second", 0)

	_, err := env.profile.UserByChat(ctx, 555)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, env.profile.LinkTelegram(ctx, first, 555))
	u, err := env.profile.UserByChat(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, first, u.ID)

	require.NoError(t, env.profile.LinkTelegram(ctx, second, 555))
	u, err = env.profile.UserByChat(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, second, u.ID)

	view, err := env.profile.Get(ctx, first)
	require.NoError(t, err)
	assert.False(t, view.Telegram)
}

func TestAdmin_DashboardAndUsers(t *testing.T) {
	f := newOrderFixture(t)
	env := f.env
	ctx := context.Background()
	env.admin.Now = func() time.Time { return time.Now().UTC() }

	a := env.user(t, "a", money.FromUnits(100))
	b := env.user(t, "b", money.FromUnits(100))

	_, err := env.orders.PlaceOrder(ctx, a, f.cart(), nil)
	require.NoError(t, err)
	cancelled, err := env.orders.PlaceOrder(ctx, b, []OrderLine{{MealID: f.borscht, Quantity: 1}}, nil)
	require.NoError(t, err)
	_, err = env.orders.UpdateStatus(ctx, cancelled.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	_, err = env.balance.TopUp(ctx, b, money.FromUnits(40), 0, models.PaymentMethodCash)
	require.NoError(t, err)

	st, err := env.admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.UsersTotal)
	assert.EqualValues(t, 1, st.OrdersToday)
	assert.Equal(t, money.FromUnits(80), st.RevenueToday)
	assert.EqualValues(t, 1, st.PendingOrders)
	assert.Equal(t, money.FromUnits(40), st.TopUpsToday)

	_, err = env.balance.TopUp(ctx, a, money.FromUnits(1), 0, models.PaymentMethodCash)
	require.NoError(t, err)
	st, err = env.admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(41), st.TopUpsToday)

	page, err := env.admin.Users(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, "a", page.Users[0].Username)
}

func TestSeeder_Idempotent(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	seeder := &Seeder{Menu: env.menu, Promos: env.promos, Auth: env.auth}

	require.NoError(t, seeder.Seed(ctx, "admin", "adminpass"))
	require.NoError(t, seeder.Seed(ctx, "admin", "adminpass"))

	cats, err := env.menu.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, len(seedMenu))

	promo, err := env.promos.Validate(ctx, "welcome10")
	require.NoError(t, err)
	assert.Equal(t, Discount{Kind: DiscountPercentage, Percent: 10}, DiscountOf(promo))

	u, err := env.repo.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role.Role)
}
