package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/models"
)

func (r *GormRepo) GetPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.DB.WithContext(ctx).Where("code = ?", code).First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *GormRepo) GetPromo(ctx context.Context, id uint) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.DB.WithContext(ctx).First(&promo, id).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *GormRepo) ListPromos(ctx context.Context) ([]models.PromoCode, error) {
	var promos []models.PromoCode
	if err := r.DB.WithContext(ctx).Order("id DESC").Find(&promos).Error; err != nil {
		return nil, err
	}
	return promos, nil
}

func (r *GormRepo) CreatePromo(ctx context.Context, promo *models.PromoCode) error {
	return r.DB.WithContext(ctx).Create(promo).Error
}

func (r *GormRepo) UpdatePromo(ctx context.Context, id uint, fields map[string]any) (*models.PromoCode, error) {
	if len(fields) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.PromoCode{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.GetPromo(ctx, id)
}

// IncrementPromoUse consumes one use while the code is active and under its cap.
func (r *GormRepo) IncrementPromoUse(ctx context.Context, id uint) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.PromoCode{}).
		Where("id = ? AND active = ? AND (max_uses IS NULL OR current_uses < max_uses)", id, true).
		Update("current_uses", gorm.Expr("current_uses + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeactivateExpired switches off every active code whose expiry has passed.
func (r *GormRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.PromoCode{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now.UTC()).
		Update("active", false)
	return res.RowsAffected, res.Error
}
