package repo

import (
	"context"

	"github.com/Skotchmaster/school_canteen/internal/models"
)

func (r *GormRepo) CreatePayment(ctx context.Context, p *models.Payment) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *GormRepo) ListPayments(ctx context.Context, userID uint, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Limit(limit).
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
