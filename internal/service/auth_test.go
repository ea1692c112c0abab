package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
)

func TestAuth_RegisterAndLogin(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	u, err := env.auth.Register(ctx, RegisterInput{Username: "ivan", Password: "secret1", FullName: "Ivan I.", ClassName: "5B", Age: 11})
	require.NoError(t, err)
	require.NotNil(t, u.Profile)
	assert.Equal(t, money.Amount(0), u.Profile.Balance)

	_, err = env.auth.Register(ctx, RegisterInput{Username: "ivan", Password: "secret2"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.auth.Register(ctx, RegisterInput{Username: "yo", Password: "secret1"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.auth.Register(ctx, RegisterInput{Username: "yolanda", Password: "123"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.auth.Login(ctx, "ivan", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.auth.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	pair, err := env.auth.Login(ctx, "ivan", "secret1")
	require.NoError(t, err)

	claims, err := env.auth.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ivan", claims.Username)
	assert.Equal(t, models.RoleUser, claims.Role)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = env.auth.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuth_RefreshRotates(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	_, err := env.auth.Register(ctx, RegisterInput{Username: "masha", Password: "secret1"})
	require.NoError(t, err)

	first, err := env.auth.Login(ctx, "masha", "secret1")
	require.NoError(t, err)

	second, err := env.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = env.auth.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, env.auth.Logout(ctx, second.RefreshToken))
	_, err = env.auth.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.auth.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuth_EnsureAdmin(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	admin, err := env.auth.EnsureAdmin(ctx, "root", "rootpass")
	require.NoError(t, err)

	pair, err := env.auth.Login(ctx, "root", "rootpass")
	require.NoError(t, err)
	claims, err := env.auth.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	again, err := env.auth.EnsureAdmin(ctx, "root", "ignored")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	_, err = env.auth.Register(ctx, RegisterInput{Username: "headmaster", Password: "secret1"})
	require.NoError(t, err)
	_, err = env.auth.EnsureAdmin(ctx, "headmaster", "whatever")
	require.NoError(t, err)
	u, err := env.repo.GetUserByUsername(ctx, "headmaster")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role.Role)
}
