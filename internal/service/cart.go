package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
	"github.com/Skotchmaster/school_canteen/internal/repo"
)

const maxCartQuantity = 20

type CartService struct {
	Repo   *repo.GormRepo
	Orders *OrderService
	Promos *PromoService
}

type CartLine struct {
	MealID     uint         `json:"meal_id"`
	Name       string       `json:"name"`
	Quantity   int          `json:"quantity"`
	UnitPrice  money.Amount `json:"unit_price"`
	TotalPrice money.Amount `json:"total_price"`
	Available  bool         `json:"available"`
}

type CartView struct {
	Lines []CartLine   `json:"lines"`
	Total money.Amount `json:"total"`
}

// Get prices the stored cart at current meal prices. Unavailable meals are
// listed but excluded from the total.
func (s *CartService) Get(ctx context.Context, userID uint) (*CartView, error) {
	items, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "cart")
	}
	ids := make([]uint, len(items))
	for i, it := range items {
		ids[i] = it.MealID
	}
	meals, err := s.Repo.GetMealsByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "meals")
	}

	view := &CartView{Lines: make([]CartLine, 0, len(items))}
	for _, it := range items {
		meal, ok := meals[it.MealID]
		line := CartLine{MealID: it.MealID, Quantity: it.Quantity}
		if ok {
			line.Name = meal.Name
			line.UnitPrice = meal.Price
			line.Available = meal.Available
			if line.TotalPrice, err = meal.Price.Times(it.Quantity); err != nil {
				return nil, fmt.Errorf("%w: meal %d: %v", ErrValidation, it.MealID, err)
			}
		}
		if line.Available {
			if view.Total, err = view.Total.Plus(line.TotalPrice); err != nil {
				return nil, fmt.Errorf("%w: cart total: %v", ErrValidation, err)
			}
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}

func (s *CartService) Add(ctx context.Context, userID, mealID uint, qty int) (*models.CartItem, error) {
	if qty <= 0 || qty > maxCartQuantity {
		return nil, fmt.Errorf("%w: quantity must be within 1..%d", ErrValidation, maxCartQuantity)
	}
	meal, err := s.Repo.GetMeal(ctx, mealID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrMealUnavailable, mealID)
		}
		return nil, storeErr(err, "meal")
	}
	if !meal.Available {
		return nil, fmt.Errorf("%w: %d", ErrMealUnavailable, mealID)
	}

	item := &models.CartItem{UserID: userID, MealID: mealID, Quantity: qty}
	if err := s.Repo.AddToCart(ctx, item, maxCartQuantity); err != nil {
		if errors.Is(err, repo.ErrCartLineFull) {
			return nil, fmt.Errorf("%w: at most %d of one meal", ErrValidation, maxCartQuantity)
		}
		return nil, storeErr(err, "cart")
	}
	return item, nil
}

// RemoveOne decrements a cart line, dropping it at zero. The returned item is
// nil when the line was removed.
func (s *CartService) RemoveOne(ctx context.Context, userID, mealID uint) (*models.CartItem, error) {
	deleted, item, err := s.Repo.RemoveOneFromCart(ctx, userID, mealID)
	if err != nil {
		return nil, storeErr(err, "cart item")
	}
	if deleted {
		return nil, nil
	}
	return item, nil
}

func (s *CartService) Clear(ctx context.Context, userID uint) error {
	return storeErr(s.Repo.ClearCart(ctx, userID), "cart")
}

// Checkout places an order for the stored cart. The cart lines are consumed
// in the order transaction, so a failed order keeps them and a second
// checkout of the same cart finds it empty.
func (s *CartService) Checkout(ctx context.Context, userID uint, promoCode string) (*models.Order, error) {
	var promoID *uint
	if strings.TrimSpace(promoCode) != "" {
		promo, err := s.Promos.Validate(ctx, promoCode)
		if err != nil {
			return nil, err
		}
		promoID = &promo.ID
	}

	return s.Orders.place(ctx, userID, promoID, func(tx *repo.GormRepo) ([]OrderLine, error) {
		items, err := tx.GetCart(ctx, userID)
		if err != nil {
			return nil, storeErr(err, "cart")
		}
		if len(items) == 0 {
			return nil, ErrEmptyCart
		}
		consumed, err := tx.ConsumeCart(ctx, items)
		if err != nil {
			return nil, storeErr(err, "cart")
		}
		if consumed != len(items) {
			return nil, fmt.Errorf("%w: cart changed during checkout", ErrConflict)
		}

		lines := make([]OrderLine, len(items))
		for i, it := range items {
			lines[i] = OrderLine{MealID: it.MealID, Quantity: it.Quantity}
		}
		return lines, nil
	})
}
