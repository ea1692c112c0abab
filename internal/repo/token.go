package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/models"
)

var ErrRefreshExpiredOrRevoked = errors.New("token expired or revoked")

func (r *GormRepo) AddRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(token).Error
}

func (r *GormRepo) FindRefreshByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("jti = ?", jti).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *GormRepo) RevokeRefreshByHash(ctx context.Context, tokenHash string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", tokenHash).
		Update("revoked", true).Error
}

func refreshExpiredOrRevoked(db *gorm.DB, jti string) (bool, error) {
	var refresh models.RefreshToken
	if err := db.Where("jti = ?", jti).First(&refresh).Error; err != nil {
		return false, err
	}
	return refresh.ExpiresAt < time.Now().Unix() || refresh.Revoked, nil
}

// RotateRefreshToken revokes oldJTI and stores newToken atomically.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldJTI string, newToken *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired, err := refreshExpiredOrRevoked(tx, oldJTI)
		if err != nil {
			return err
		}
		if expired {
			return ErrRefreshExpiredOrRevoked
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("jti = ? AND revoked = ?", oldJTI, false).
			Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRefreshExpiredOrRevoked
		}

		return tx.Create(newToken).Error
	})
}
