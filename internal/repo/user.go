package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
)

var ErrUserAlreadyExist = errors.New("user already exist")

// CreateUserIfNotExists inserts the user together with its profile and role.
func (r *GormRepo) CreateUserIfNotExists(ctx context.Context, u *models.User) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserAlreadyExist
	}

	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserAlreadyExist
		}
		return err
	}
	return nil
}

func (r *GormRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Preload("Role").Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Preload("Role").Preload("Profile").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByTelegramChat(ctx context.Context, chatID int64) (*models.User, error) {
	var profile models.Profile
	if err := r.DB.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&profile).Error; err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, profile.UserID)
}

func (r *GormRepo) ListUsers(ctx context.Context, offset, limit int) (int64, []models.User, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var users []models.User
	if err := r.DB.WithContext(ctx).Preload("Role").Preload("Profile").
		Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return 0, nil, err
	}
	return total, users, nil
}

func (r *GormRepo) SetRole(ctx context.Context, userID uint, role string) error {
	res := r.DB.WithContext(ctx).Model(&models.UserRole{}).Where("user_id = ?", userID).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) GetProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies the given column values. Balance is never accepted here.
func (r *GormRepo) UpdateProfile(ctx context.Context, userID uint, fields map[string]any) (*models.Profile, error) {
	delete(fields, "balance")
	if len(fields) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.Profile{}).Where("user_id = ?", userID).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
	}
	return r.GetProfile(ctx, userID)
}

// LinkTelegram binds a chat to the user, detaching it from any previous owner.
func (r *GormRepo) LinkTelegram(ctx context.Context, userID uint, chatID int64) error {
	return r.Transaction(ctx, func(tx *GormRepo) error {
		if err := tx.DB.WithContext(ctx).Model(&models.Profile{}).
			Where("telegram_chat_id = ?", chatID).
			Update("telegram_chat_id", nil).Error; err != nil {
			return err
		}
		res := tx.DB.WithContext(ctx).Model(&models.Profile{}).
			Where("user_id = ?", userID).
			Update("telegram_chat_id", chatID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// DebitBalance subtracts amount only when the balance covers it, in one
// statement. It reports false when the guard rejected the update.
func (r *GormRepo) DebitBalance(ctx context.Context, userID uint, amount money.Amount) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) CreditBalance(ctx context.Context, userID uint, amount money.Amount) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) GetBalance(ctx context.Context, userID uint) (money.Amount, error) {
	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return profile.Balance, nil
}
