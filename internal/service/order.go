package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/cache"
	"github.com/Skotchmaster/school_canteen/internal/events"
	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/metrics"
	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
	"github.com/Skotchmaster/school_canteen/internal/repo"
)

const (
	historyLimit = 50
	// maxLineQuantity caps one meal within an order, same as a cart line.
	maxLineQuantity = maxCartQuantity
)

type OrderLine struct {
	MealID   uint
	Quantity int
}

type OrderService struct {
	Repo   *repo.GormRepo
	Cache  *cache.Cache
	Events events.Publisher
	Now    func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// mergeLines validates quantities and folds repeated meals into one line,
// ordered by meal id. No merged line may exceed maxLineQuantity.
func mergeLines(lines []OrderLine) ([]OrderLine, error) {
	qty := make(map[uint]int, len(lines))
	for _, l := range lines {
		if l.MealID == 0 {
			return nil, fmt.Errorf("%w: meal_id is required", ErrValidation)
		}
		if l.Quantity <= 0 || l.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("%w: quantity must be within 1..%d for meal %d", ErrValidation, maxLineQuantity, l.MealID)
		}
		qty[l.MealID] += l.Quantity
		if qty[l.MealID] > maxLineQuantity {
			return nil, fmt.Errorf("%w: at most %d of meal %d per order", ErrValidation, maxLineQuantity, l.MealID)
		}
	}
	out := make([]OrderLine, 0, len(qty))
	for id, q := range qty {
		out = append(out, OrderLine{MealID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MealID < out[j].MealID })
	return out, nil
}

// lineSource yields the lines to order from inside the order transaction.
type lineSource func(tx *repo.GormRepo) ([]OrderLine, error)

// PlaceOrder prices lines at current meal prices, applies the promo and
// debits the user's balance. Order, items, balance and promo usage are
// written in one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uint, lines []OrderLine, promoID *uint) (*models.Order, error) {
	return s.place(ctx, userID, promoID, func(*repo.GormRepo) ([]OrderLine, error) {
		return lines, nil
	})
}

func (s *OrderService) place(ctx context.Context, userID uint, promoID *uint, source lineSource) (*models.Order, error) {
	l := logging.FromContext(ctx).With("service", "order", "user_id", userID)

	order, err := s.placeOrder(ctx, userID, promoID, source)
	metrics.RecordOrderPlaced(Code(err))
	if err != nil {
		l.Warn("order_rejected", slog.String("reason", Code(err)), slog.Any("error", err))
		return nil, err
	}

	s.Cache.InvalidateUser(userID)
	publish(ctx, s.Events, events.TopicOrders, events.Key(order.ID), events.OrderPlaced{
		Type:        events.TypeOrderPlaced,
		OrderID:     order.ID,
		UserID:      userID,
		FinalAmount: order.FinalAmount.String(),
		PromoCodeID: order.PromoCodeID,
		At:          order.CreatedAt,
	})
	l.Info("order_placed",
		slog.Uint64("order_id", uint64(order.ID)),
		slog.String("final_amount", order.FinalAmount.String()),
	)
	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, userID uint, promoID *uint, source lineSource) (*models.Order, error) {
	var order *models.Order
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		lines, err := source(tx)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}
		merged, err := mergeLines(lines)
		if err != nil {
			return err
		}

		ids := make([]uint, len(merged))
		for i, line := range merged {
			ids[i] = line.MealID
		}
		meals, err := tx.GetMealsByIDs(ctx, ids)
		if err != nil {
			return storeErr(err, "meals")
		}

		var total money.Amount
		items := make([]models.OrderItem, 0, len(merged))
		for _, line := range merged {
			meal, ok := meals[line.MealID]
			if !ok || !meal.Available {
				return fmt.Errorf("%w: %d", ErrMealUnavailable, line.MealID)
			}
			lineTotal, err := meal.Price.Times(line.Quantity)
			if err != nil {
				return fmt.Errorf("%w: meal %d: %v", ErrValidation, meal.ID, err)
			}
			if total, err = total.Plus(lineTotal); err != nil {
				return fmt.Errorf("%w: order total: %v", ErrValidation, err)
			}
			items = append(items, models.OrderItem{
				MealID:     meal.ID,
				MealName:   meal.Name,
				Quantity:   line.Quantity,
				UnitPrice:  meal.Price,
				TotalPrice: lineTotal,
			})
		}

		var discount money.Amount
		if promoID != nil {
			promo, err := tx.GetPromo(ctx, *promoID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: id %d", ErrInvalidPromo, *promoID)
				}
				return storeErr(err, "promo")
			}
			if !promo.Usable(s.now()) {
				return fmt.Errorf("%w: %s", ErrInvalidPromo, promo.Code)
			}
			discount = DiscountOf(promo).Apply(total)
		}

		final := total - discount
		if final < 0 {
			final = 0
		}

		balance, err := tx.GetBalance(ctx, userID)
		if err != nil {
			return storeErr(err, "profile")
		}
		if balance < final {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, final, balance)
		}

		order = &models.Order{
			UserID:         userID,
			TotalAmount:    total,
			DiscountAmount: discount,
			FinalAmount:    final,
			Status:         models.OrderStatusPending,
			PromoCodeID:    promoID,
			Items:          items,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return storeErr(err, "order")
		}

		ok, err := tx.DebitBalance(ctx, userID, final)
		if err != nil {
			return storeErr(err, "balance")
		}
		if !ok {
			return fmt.Errorf("%w: need %s", ErrInsufficientBalance, final)
		}

		if promoID != nil {
			ok, err := tx.IncrementPromoUse(ctx, *promoID)
			if err != nil {
				return storeErr(err, "promo")
			}
			if !ok {
				return fmt.Errorf("%w: usage limit reached", ErrInvalidPromo)
			}
		}
		return nil
	})
	if err != nil {
		if !isDomain(err) {
			err = fmt.Errorf("%w: %v", ErrStore, err)
		}
		return nil, err
	}
	return order, nil
}

// UpdateStatus moves an order to target. Cancelling refunds the final amount;
// leaving cancelled debits it again and fails when the owner cannot cover it.
// Setting the current status again changes nothing.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, target models.OrderStatus) (*models.Order, error) {
	l := logging.FromContext(ctx).With("service", "order", "order_id", orderID)

	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}

	var (
		order   *models.Order
		from    models.OrderStatus
		changed bool
		refund  money.Amount
		debit   money.Amount
	)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		var err error
		order, err = tx.GetOrder(ctx, orderID)
		if err != nil {
			return storeErr(err, "order")
		}
		from = order.Status
		if from == target {
			return nil
		}

		switch {
		case target == models.OrderStatusCancelled:
			ok, err := tx.CreditBalance(ctx, order.UserID, order.FinalAmount)
			if err != nil {
				return storeErr(err, "balance")
			}
			if !ok {
				return fmt.Errorf("%w: profile of user %d", ErrNotFound, order.UserID)
			}
			refund = order.FinalAmount
		case from == models.OrderStatusCancelled:
			ok, err := tx.DebitBalance(ctx, order.UserID, order.FinalAmount)
			if err != nil {
				return storeErr(err, "balance")
			}
			if !ok {
				return fmt.Errorf("%w: need %s", ErrInsufficientUserBalance, order.FinalAmount)
			}
			debit = order.FinalAmount
		}

		ok, err := tx.SetOrderStatus(ctx, orderID, from, target)
		if err != nil {
			return storeErr(err, "order")
		}
		if !ok {
			return fmt.Errorf("%w: order %d changed concurrently", ErrConflict, orderID)
		}
		order.Status = target
		order.UpdatedAt = s.now()
		changed = true
		return nil
	})
	metrics.RecordStatusChange(string(target), Code(err))
	if err != nil {
		if !isDomain(err) {
			err = fmt.Errorf("%w: %v", ErrStore, err)
		}
		l.Warn("status_change_rejected", slog.String("reason", Code(err)), slog.Any("error", err))
		return nil, err
	}
	if !changed {
		return order, nil
	}

	s.Cache.InvalidateOrder(order.ID, order.UserID)

	ev := events.OrderStatusChanged{
		Type:    events.TypeOrderStatusChanged,
		OrderID: order.ID,
		UserID:  order.UserID,
		From:    string(from),
		To:      string(target),
		At:      order.UpdatedAt,
	}
	if refund > 0 {
		ev.Refund = refund.String()
	}
	if debit > 0 {
		ev.Debit = debit.String()
	}
	publish(ctx, s.Events, events.TopicOrders, events.Key(order.ID), ev)
	l.Info("order_status_changed", slog.String("from", string(from)), slog.String("to", string(target)))
	return order, nil
}

// History returns the user's most recent orders.
func (s *OrderService) History(ctx context.Context, userID uint) ([]models.Order, error) {
	return cache.Fetch(s.Cache, cache.OrdersKey(userID), func() ([]models.Order, error) {
		orders, err := s.Repo.ListUserOrders(ctx, userID, historyLimit)
		if err != nil {
			return nil, storeErr(err, "orders")
		}
		return orders, nil
	})
}

// Get returns one of the user's orders. Other users' orders are reported as
// not found.
func (s *OrderService) Get(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	order, err := cache.Fetch(s.Cache, cache.OrderKey(orderID), func() (*models.Order, error) {
		o, err := s.Repo.GetOrder(ctx, orderID)
		if err != nil {
			return nil, storeErr(err, "order")
		}
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return order, nil
}

type OrderPage struct {
	Total  int64          `json:"total"`
	Orders []models.Order `json:"orders"`
}

// List is the admin view across all users, optionally filtered by status.
func (s *OrderService) List(ctx context.Context, status models.OrderStatus, offset, limit int) (*OrderPage, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	total, orders, err := s.Repo.ListOrders(ctx, status, offset, limit)
	if err != nil {
		return nil, storeErr(err, "orders")
	}
	return &OrderPage{Total: total, Orders: orders}, nil
}
