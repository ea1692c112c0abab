package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/hash"
	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/repo"
	"github.com/Skotchmaster/school_canteen/internal/tokens"
)

type AuthService struct {
	Repo          *repo.GormRepo
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type RegisterInput struct {
	Username    string
	Password    string
	FullName    string
	ClassName   string
	Age         int
	ParentNames string
}

func (in RegisterInput) validate() error {
	n := len(strings.TrimSpace(in.Username))
	if n < 3 || n > 32 {
		return fmt.Errorf("%w: username must be 3..32 characters", ErrValidation)
	}
	if len(in.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	if in.Age < 0 || in.Age > 120 {
		return fmt.Errorf("%w: age out of range", ErrValidation)
	}
	return nil
}

// Register creates the user with an empty-balance profile and the given role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.register(ctx, in, models.RoleUser)
}

func (s *AuthService) register(ctx context.Context, in RegisterInput, role string) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hashed, err := hash.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", ErrStore, err)
	}

	user := &models.User{
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hashed,
		Profile: &models.Profile{
			FullName:    in.FullName,
			ClassName:   in.ClassName,
			Age:         in.Age,
			ParentNames: in.ParentNames,
		},
		Role: &models.UserRole{Role: role},
	}
	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			return nil, fmt.Errorf("%w: username %q is taken", ErrConflict, user.Username)
		}
		return nil, storeErr(err, "user")
	}
	logging.FromContext(ctx).Info("user_registered", slog.Uint64("user_id", uint64(user.ID)), slog.String("role", role))
	return user, nil
}

// EnsureAdmin creates the admin account when missing and promotes it otherwise.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (*models.User, error) {
	existing, err := s.Repo.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		if err := s.Repo.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return nil, storeErr(err, "role")
		}
		return existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.register(ctx, RegisterInput{Username: username, Password: password, FullName: "Administrator"}, models.RoleAdmin)
	default:
		return nil, storeErr(err, "user")
	}
}

// Authenticate checks credentials and returns the user with its role loaded.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.Repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, storeErr(err, "user")
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	pair, refresh, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.AddRefreshToken(ctx, refresh); err != nil {
		return nil, storeErr(err, "refresh token")
	}
	logging.FromContext(ctx).Info("user_logged_in", slog.Uint64("user_id", uint64(user.ID)))
	return pair, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	stored, err := s.Repo.FindRefreshByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown refresh token", ErrUnauthorized)
		}
		return nil, storeErr(err, "refresh token")
	}
	if stored.Token != hash.TokenDigest(refreshToken) {
		return nil, fmt.Errorf("%w: refresh token mismatch", ErrUnauthorized)
	}

	user, err := s.Repo.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	pair, next, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.RotateRefreshToken(ctx, claims.ID, next); err != nil {
		if errors.Is(err, repo.ErrRefreshExpiredOrRevoked) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return nil, storeErr(err, "refresh token")
	}
	return pair, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.Repo.RevokeRefreshByHash(ctx, hash.TokenDigest(refreshToken)); err != nil {
		return storeErr(err, "refresh token")
	}
	return nil
}

// ParseAccess validates a bearer token and returns its claims.
func (s *AuthService) ParseAccess(token string) (*tokens.AccessClaims, error) {
	claims, err := tokens.AccessClaimsFromToken(token, s.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return claims, nil
}

func (s *AuthService) ttl() (time.Duration, time.Duration) {
	access, refresh := s.AccessTTL, s.RefreshTTL
	if access <= 0 {
		access = 15 * time.Minute
	}
	if refresh <= 0 {
		refresh = 7 * 24 * time.Hour
	}
	return access, refresh
}

func (s *AuthService) issue(user *models.User) (*TokenPair, *models.RefreshToken, error) {
	role := models.RoleUser
	if user.Role != nil {
		role = user.Role.Role
	}

	accessTTL, refreshTTL := s.ttl()
	now := time.Now()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	access, err := tokens.NewAccessToken(s.AccessSecret, user.ID, user.Username, role, accessExp)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sign access token: %v", ErrStore, err)
	}
	refresh, jti, err := tokens.NewRefreshToken(s.RefreshSecret, user.ID, refreshExp)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sign refresh token: %v", ErrStore, err)
	}

	pair := &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}
	record := &models.RefreshToken{
		UserID:    user.ID,
		Token:     hash.TokenDigest(refresh),
		JTI:       jti,
		ExpiresAt: refreshExp.Unix(),
	}
	return pair, record, nil
}
