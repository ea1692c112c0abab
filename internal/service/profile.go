package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/cache"
	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
	"github.com/Skotchmaster/school_canteen/internal/repo"
)

type ProfileService struct {
	Repo  *repo.GormRepo
	Cache *cache.Cache
}

type ProfileView struct {
	UserID      uint         `json:"user_id"`
	Username    string       `json:"username"`
	Role        string       `json:"role"`
	FullName    string       `json:"full_name"`
	ClassName   string       `json:"class_name"`
	Age         int          `json:"age"`
	ParentNames string       `json:"parent_names"`
	Balance     money.Amount `json:"balance"`
	Telegram    bool         `json:"telegram_linked"`
}

func viewOf(u *models.User) *ProfileView {
	v := &ProfileView{UserID: u.ID, Username: u.Username, Role: models.RoleUser}
	if u.Role != nil {
		v.Role = u.Role.Role
	}
	if p := u.Profile; p != nil {
		v.FullName = p.FullName
		v.ClassName = p.ClassName
		v.Age = p.Age
		v.ParentNames = p.ParentNames
		v.Balance = p.Balance
		v.Telegram = p.TelegramChatID != nil
	}
	return v
}

func (s *ProfileService) Get(ctx context.Context, userID uint) (*ProfileView, error) {
	return cache.Fetch(s.Cache, cache.ProfileKey(userID), func() (*ProfileView, error) {
		u, err := s.Repo.GetUserByID(ctx, userID)
		if err != nil {
			return nil, storeErr(err, "user")
		}
		return viewOf(u), nil
	})
}

// ProfileInput holds the editable fields. Nil fields are left unchanged.
type ProfileInput struct {
	FullName    *string
	ClassName   *string
	Age         *int
	ParentNames *string
}

func (s *ProfileService) Update(ctx context.Context, userID uint, in ProfileInput) (*ProfileView, error) {
	fields := map[string]any{}
	if in.FullName != nil {
		fields["full_name"] = strings.TrimSpace(*in.FullName)
	}
	if in.ClassName != nil {
		fields["class_name"] = strings.TrimSpace(*in.ClassName)
	}
	if in.Age != nil {
		if *in.Age < 0 || *in.Age > 120 {
			return nil, fmt.Errorf("%w: age out of range", ErrValidation)
		}
		fields["age"] = *in.Age
	}
	if in.ParentNames != nil {
		fields["parent_names"] = strings.TrimSpace(*in.ParentNames)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	if _, err := s.Repo.UpdateProfile(ctx, userID, fields); err != nil {
		return nil, storeErr(err, "profile")
	}
	s.Cache.InvalidateUser(userID)
	return s.Get(ctx, userID)
}

// LinkTelegram attaches a chat to the user. A chat belongs to one user at a time.
func (s *ProfileService) LinkTelegram(ctx context.Context, userID uint, chatID int64) error {
	if err := s.Repo.LinkTelegram(ctx, userID, chatID); err != nil {
		return storeErr(err, "profile")
	}
	s.Cache.InvalidateUser(userID)
	return nil
}

// UserByChat resolves a linked chat. Unlinked chats yield ErrUnauthorized.
func (s *ProfileService) UserByChat(ctx context.Context, chatID int64) (*models.User, error) {
	u, err := s.Repo.GetUserByTelegramChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chat is not linked", ErrUnauthorized)
		}
		return nil, storeErr(err, "user")
	}
	return u, nil
}
