package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/models"
)

// ErrCartLineFull means the add would push a cart line past its limit.
var ErrCartLineFull = errors.New("cart line limit reached")

func (r *GormRepo) GetCart(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddToCart adds item.Quantity to the user's line for the meal, creating it
// if needed. The line never exceeds maxQty. item is reloaded with the stored
// quantity.
func (r *GormRepo) AddToCart(ctx context.Context, item *models.CartItem, maxQty int) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line := tx.Model(&models.CartItem{}).Where("user_id = ? AND meal_id = ?", item.UserID, item.MealID)

		var existing int64
		if err := line.Count(&existing).Error; err != nil {
			return err
		}
		if existing == 0 {
			if item.Quantity > maxQty {
				return ErrCartLineFull
			}
			return tx.Create(item).Error
		}

		res := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND meal_id = ? AND quantity + ? <= ?", item.UserID, item.MealID, item.Quantity, maxQty).
			Update("quantity", gorm.Expr("quantity + ?", item.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCartLineFull
		}
		return tx.Where("user_id = ? AND meal_id = ?", item.UserID, item.MealID).Take(item).Error
	})
}

// RemoveOneFromCart takes one unit off the line. A line holding a single unit
// is deleted and reported with deleted = true.
func (r *GormRepo) RemoveOneFromCart(ctx context.Context, userID, mealID uint) (deleted bool, item *models.CartItem, err error) {
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dec := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND meal_id = ? AND quantity > 1", userID, mealID).
			Update("quantity", gorm.Expr("quantity - 1"))
		if dec.Error != nil {
			return dec.Error
		}
		if dec.RowsAffected > 0 {
			item = &models.CartItem{}
			return tx.Where("user_id = ? AND meal_id = ?", userID, mealID).Take(item).Error
		}

		del := tx.Where("user_id = ? AND meal_id = ?", userID, mealID).Delete(&models.CartItem{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		deleted = true
		item = &models.CartItem{UserID: userID, MealID: mealID}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return deleted, item, nil
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

// ConsumeCart deletes exactly the given cart lines, each only while it still
// holds the quantity that was read. It returns how many lines went.
func (r *GormRepo) ConsumeCart(ctx context.Context, items []models.CartItem) (int, error) {
	consumed := 0
	for _, it := range items {
		res := r.DB.WithContext(ctx).
			Where("id = ? AND user_id = ? AND quantity = ?", it.ID, it.UserID, it.Quantity).
			Delete(&models.CartItem{})
		if res.Error != nil {
			return consumed, res.Error
		}
		consumed += int(res.RowsAffected)
	}
	return consumed, nil
}
