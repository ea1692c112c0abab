package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/school_canteen/internal/cache"
	"github.com/Skotchmaster/school_canteen/internal/events"
	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
)

type orderFixture struct {
	env     *testEnv
	borscht uint
	cutlet  uint
}

// newOrderFixture has two meals: borscht at 25.00 and a cutlet at 30.00.
func newOrderFixture(t *testing.T) *orderFixture {
	env := newEnv(t)
	cat := env.category(t, "Lunch")
	return &orderFixture{
		env:     env,
		borscht: env.meal(t, cat, "Borscht", money.FromUnits(25)),
		cutlet:  env.meal(t, cat, "Cutlet", money.FromUnits(30)),
	}
}

func (f *orderFixture) cart() []OrderLine {
	return []OrderLine{{MealID: f.borscht, Quantity: 2}, {MealID: f.cutlet, Quantity: 1}}
}

func countOrders(t *testing.T, env *testEnv, userID uint) int64 {
	t.Helper()
	n, err := env.repo.CountOrders(context.Background(), userID)
	require.NoError(t, err)
	return n
}

func TestPlaceOrder_DebitsBalance(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "anya", money.FromUnits(100))

	order, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), nil)
	require.NoError(t, err)

	assert.Equal(t, money.FromUnits(80), order.TotalAmount)
	assert.Equal(t, money.Amount(0), order.DiscountAmount)
	assert.Equal(t, money.FromUnits(80), order.FinalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, money.FromUnits(20), f.env.balanceOf(t, uid))

	stored, err := f.env.orders.Get(ctx, uid, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	var sum money.Amount
	for _, it := range stored.Items {
		lineTotal, err := it.UnitPrice.Times(it.Quantity)
		require.NoError(t, err)
		assert.Equal(t, lineTotal, it.TotalPrice)
		sum += it.TotalPrice
	}
	assert.Equal(t, stored.TotalAmount, sum)

	require.Len(t, f.env.events.events, 3)
	last := f.env.events.events[2]
	assert.Equal(t, events.TopicOrders, last.topic)
	assert.Equal(t, events.Key(order.ID), last.key)
}

func TestPlaceOrder_WithPercentagePromo(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "boris", money.FromUnits(100))
	promo := f.env.promo(t, PromoInput{Code: "welcome10", DiscountPercent: 10})
	assert.Equal(t, "WELCOME10", promo.Code)

	order, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), &promo.ID)
	require.NoError(t, err)

	assert.Equal(t, money.FromUnits(80), order.TotalAmount)
	assert.Equal(t, money.FromUnits(8), order.DiscountAmount)
	assert.Equal(t, money.FromUnits(72), order.FinalAmount)
	assert.Equal(t, money.FromUnits(28), f.env.balanceOf(t, uid))

	got, err := f.env.repo.GetPromo(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentUses)
}

func TestPlaceOrder_InsufficientBalanceHasNoEffects(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "vera", money.FromUnits(20))
	promo := f.env.promo(t, PromoInput{Code: "WELCOME10", DiscountPercent: 10})

	_, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), &promo.ID)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "insufficient_balance", Code(err))

	assert.Equal(t, money.FromUnits(20), f.env.balanceOf(t, uid))
	assert.EqualValues(t, 0, countOrders(t, f.env, uid))
	got, err := f.env.repo.GetPromo(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentUses)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "gleb", money.FromUnits(500))

	t.Run("empty cart", func(t *testing.T) {
		_, err := f.env.orders.PlaceOrder(ctx, uid, nil, nil)
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := f.env.orders.PlaceOrder(ctx, uid, []OrderLine{{MealID: f.borscht, Quantity: 0}}, nil)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing meal", func(t *testing.T) {
		_, err := f.env.orders.PlaceOrder(ctx, uid, []OrderLine{{MealID: f.borscht, Quantity: 1}, {MealID: 9999, Quantity: 1}}, nil)
		assert.ErrorIs(t, err, ErrMealUnavailable)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unavailable meal", func(t *testing.T) {
		_, err := f.env.menu.SetAvailability(ctx, f.cutlet, false)
		require.NoError(t, err)
		t.Cleanup(func() { _, _ = f.env.menu.SetAvailability(ctx, f.cutlet, true) })

		_, err = f.env.orders.PlaceOrder(ctx, uid, f.cart(), nil)
		assert.ErrorIs(t, err, ErrMealUnavailable)
	})

	t.Run("expired promo", func(t *testing.T) {
		promo := f.env.promo(t, PromoInput{Code: "OLD", DiscountPercent: 50, ExpiresAt: ptr(time.Now().Add(-time.Hour))})
		_, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), &promo.ID)
		assert.ErrorIs(t, err, ErrInvalidPromo)
	})

	t.Run("inactive promo", func(t *testing.T) {
		promo := f.env.promo(t, PromoInput{Code: "OFF", DiscountPercent: 50, Active: ptr(false)})
		_, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), &promo.ID)
		assert.ErrorIs(t, err, ErrInvalidPromo)
	})

	t.Run("unknown promo", func(t *testing.T) {
		_, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), ptr(uint(777)))
		assert.ErrorIs(t, err, ErrInvalidPromo)
	})

	assert.EqualValues(t, 0, countOrders(t, f.env, uid))
	assert.Equal(t, money.FromUnits(500), f.env.balanceOf(t, uid))
}

func TestPlaceOrder_QuantityBounds(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "ilya", money.FromUnits(100))
	pricey := f.env.meal(t, f.env.category(t, "Banquet"), "Caviar", money.Amount(math.MaxInt64/4))

	tests := []struct {
		name  string
		lines []OrderLine
	}{
		{name: "wrapping quantity", lines: []OrderLine{{MealID: f.borscht, Quantity: 7378697629483821}}},
		{name: "one over the line cap", lines: []OrderLine{{MealID: f.borscht, Quantity: maxLineQuantity + 1}}},
		{name: "merged lines over the cap", lines: []OrderLine{
			{MealID: f.borscht, Quantity: maxLineQuantity},
			{MealID: f.borscht, Quantity: 1},
		}},
		{name: "merged lines wrapping int", lines: []OrderLine{
			{MealID: f.borscht, Quantity: math.MaxInt},
			{MealID: f.borscht, Quantity: math.MaxInt},
		}},
		{name: "line total overflows", lines: []OrderLine{{MealID: pricey, Quantity: 5}}},
		{name: "order total overflows", lines: []OrderLine{
			{MealID: pricey, Quantity: 3},
			{MealID: f.borscht, Quantity: 1},
			{MealID: pricey, Quantity: 1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.env.orders.PlaceOrder(ctx, uid, tt.lines, nil)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, "validation_error", Code(err))
		})
	}

	assert.EqualValues(t, 0, countOrders(t, f.env, uid))
	assert.Equal(t, money.FromUnits(100), f.env.balanceOf(t, uid))

	order, err := f.env.orders.PlaceOrder(ctx, uid, []OrderLine{{MealID: f.borscht, Quantity: 4}}, nil)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(100), order.FinalAmount)
}

func TestPlaceOrder_PromoCapIsEnforced(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "dasha", money.FromUnits(500))
	promo := f.env.promo(t, PromoInput{Code: "ONCE", DiscountPercent: 10, MaxUses: ptr(1)})

	_, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), &promo.ID)
	require.NoError(t, err)

	_, err = f.env.orders.PlaceOrder(ctx, uid, f.cart(), &promo.ID)
	require.ErrorIs(t, err, ErrInvalidPromo)

	assert.EqualValues(t, 1, countOrders(t, f.env, uid))
	assert.Equal(t, money.FromUnits(428), f.env.balanceOf(t, uid))
}

func TestPlaceOrder_FixedDiscountCappedAtTotal(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "egor", money.FromUnits(10))
	promo := f.env.promo(t, PromoInput{Code: "FREE", DiscountAmount: money.FromUnits(100)})

	order, err := f.env.orders.PlaceOrder(ctx, uid, []OrderLine{{MealID: f.borscht, Quantity: 1}}, &promo.ID)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(25), order.DiscountAmount)
	assert.Equal(t, money.Amount(0), order.FinalAmount)
	assert.Equal(t, money.FromUnits(10), f.env.balanceOf(t, uid))
}

func TestPlaceOrder_MergesRepeatedMeals(t *testing.T) {
	f := newOrderFixture(t)
	uid := f.env.user(t, "fedya", money.FromUnits(100))

	order, err := f.env.orders.PlaceOrder(context.Background(), uid, []OrderLine{
		{MealID: f.borscht, Quantity: 1},
		{MealID: f.borscht, Quantity: 1},
	}, nil)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, money.FromUnits(50), order.TotalAmount)
}

func TestPlaceOrder_ConcurrentNeverOverdraws(t *testing.T) {
	f := newOrderFixture(t)
	uid := f.env.user(t, "zhenya", money.FromUnits(100))

	const attempts = 8
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.env.orders.PlaceOrder(context.Background(), uid, []OrderLine{{MealID: f.cutlet, Quantity: 1}}, nil)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, money.FromUnits(10), f.env.balanceOf(t, uid))
	assert.EqualValues(t, 3, countOrders(t, f.env, uid))
}

func TestPlaceOrder_InvalidatesUserCache(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "katya", money.FromUnits(100))

	before, err := f.env.profile.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(100), before.Balance)
	history, err := f.env.orders.History(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = f.env.orders.PlaceOrder(ctx, uid, f.cart(), nil)
	require.NoError(t, err)

	_, ok := f.env.cache.Get(cache.ProfileKey(uid))
	assert.False(t, ok)
	after, err := f.env.profile.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(20), after.Balance)
	history, err = f.env.orders.History(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpdateStatus_CancelRefunds(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "lena", money.FromUnits(92))
	promo := f.env.promo(t, PromoInput{Code: "WELCOME10", DiscountPercent: 10})

	order, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), &promo.ID)
	require.NoError(t, err)
	require.Equal(t, money.FromUnits(72), order.FinalAmount)
	require.Equal(t, money.FromUnits(20), f.env.balanceOf(t, uid))

	_, err = f.env.orders.UpdateStatus(ctx, order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(20), f.env.balanceOf(t, uid))

	got, err := f.env.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, money.FromUnits(92), f.env.balanceOf(t, uid))
}

func TestUpdateStatus_ReactivateNeedsBalance(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "misha", money.FromUnits(10))

	order := &models.Order{
		UserID:         uid,
		TotalAmount:    money.FromUnits(80),
		DiscountAmount: money.FromUnits(8),
		FinalAmount:    money.FromUnits(72),
		Status:         models.OrderStatusCancelled,
		Items: []models.OrderItem{
			{MealID: f.borscht, MealName: "Borscht", Quantity: 2, UnitPrice: money.FromUnits(25), TotalPrice: money.FromUnits(50)},
			{MealID: f.cutlet, MealName: "Cutlet", Quantity: 1, UnitPrice: money.FromUnits(30), TotalPrice: money.FromUnits(30)},
		},
	}
	require.NoError(t, f.env.repo.CreateOrder(ctx, order))

	_, err := f.env.orders.UpdateStatus(ctx, order.ID, models.OrderStatusPending)
	require.ErrorIs(t, err, ErrInsufficientUserBalance)
	assert.Equal(t, "insufficient_user_balance", Code(err))

	stored, err := f.env.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	assert.Equal(t, money.FromUnits(10), f.env.balanceOf(t, uid))

	_, err = f.env.balance.TopUp(ctx, uid, money.FromUnits(62), 0, models.PaymentMethodCash)
	require.NoError(t, err)

	got, err := f.env.orders.UpdateStatus(ctx, order.ID, models.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Equal(t, money.Amount(0), f.env.balanceOf(t, uid))
}

func TestUpdateStatus_SameStatusIsNoop(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "nina", money.FromUnits(100))

	order, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), nil)
	require.NoError(t, err)
	_, err = f.env.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, money.FromUnits(100), f.env.balanceOf(t, uid))

	published := len(f.env.events.events)
	got, err := f.env.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, money.FromUnits(100), f.env.balanceOf(t, uid))
	assert.Len(t, f.env.events.events, published)
}

func TestUpdateStatus_PermissiveTransitions(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	uid := f.env.user(t, "oleg", money.FromUnits(100))

	order, err := f.env.orders.PlaceOrder(ctx, uid, f.cart(), nil)
	require.NoError(t, err)

	for _, st := range []models.OrderStatus{
		models.OrderStatusReady, models.OrderStatusPending,
		models.OrderStatusCompleted, models.OrderStatusPreparing,
	} {
		got, err := f.env.orders.UpdateStatus(ctx, order.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, got.Status)
	}
	assert.Equal(t, money.FromUnits(20), f.env.balanceOf(t, uid))
}

func TestUpdateStatus_Errors(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.env.orders.UpdateStatus(ctx, 1, models.OrderStatus("shipped"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.env.orders.UpdateStatus(ctx, 4242, models.OrderStatusReady)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrders_GetHidesForeignOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	owner := f.env.user(t, "pasha", money.FromUnits(100))
	other := f.env.user(t, "roma", money.FromUnits(100))

	order, err := f.env.orders.PlaceOrder(ctx, owner, f.cart(), nil)
	require.NoError(t, err)

	_, err = f.env.orders.Get(ctx, other, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	page, err := f.env.orders.List(ctx, models.OrderStatusPending, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	_, err = f.env.orders.List(ctx, "bogus", 0, 10)
	assert.ErrorIs(t, err, ErrValidation)
}
