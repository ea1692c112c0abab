package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/models"
)

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetUserOrder(ctx context.Context, id, userID uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListUserOrders(ctx context.Context, userID uint, limit int) ([]models.Order, error) {
	var orders []models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, status models.OrderStatus, offset, limit int) (int64, []models.Order, error) {
	scoped := func() *gorm.DB {
		q := r.DB.WithContext(ctx).Model(&models.Order{})
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := scoped().Preload("Items").Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// SetOrderStatus moves the order from one status to another. It reports false
// when the order is no longer in the from status.
func (r *GormRepo) SetOrderStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) CountOrders(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

