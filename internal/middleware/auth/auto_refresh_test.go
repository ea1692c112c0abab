package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/tokens"
)

var secret = []byte("test-secret")

type fakeTokens struct {
	refreshed  int
	pair       *service.TokenPair
	refreshErr error
}

func (f *fakeTokens) ParseAccess(token string) (*tokens.AccessClaims, error) {
	claims, err := tokens.AccessClaimsFromToken(token, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrUnauthorized, err)
	}
	return claims, nil
}

func (f *fakeTokens) Refresh(context.Context, string) (*service.TokenPair, error) {
	f.refreshed++
	return f.pair, f.refreshErr
}

func sign(t *testing.T, userID uint, role string, exp time.Time) string {
	t.Helper()
	tok, err := tokens.NewAccessToken(secret, userID, "kid", role, exp)
	require.NoError(t, err)
	return tok
}

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })(c)
	return rec, c, err
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestRequireAuth_Bearer(t *testing.T) {
	m := NewAutoRefreshMiddleware(&fakeTokens{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, 7, models.RoleUser, time.Now().Add(time.Minute)))

	rec, c, err := run(t, m.RequireAuth, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	id, err := UserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)
	assert.Equal(t, models.RoleUser, Role(c))
}

func TestRequireAuth_Missing(t *testing.T) {
	m := NewAutoRefreshMiddleware(&fakeTokens{})

	_, _, err := run(t, m.RequireAuth, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}

func TestRequireAuth_ExpiredBearerIsNotRefreshed(t *testing.T) {
	src := &fakeTokens{}
	m := NewAutoRefreshMiddleware(src)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, 7, models.RoleUser, time.Now().Add(-time.Minute)))

	_, _, err := run(t, m.RequireAuth, req)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
	assert.Equal(t, 0, src.refreshed)
}

func TestRequireAuth_CookieRefresh(t *testing.T) {
	fresh := sign(t, 9, models.RoleUser, time.Now().Add(time.Minute))
	src := &fakeTokens{pair: &service.TokenPair{
		AccessToken:      fresh,
		RefreshToken:     "new-refresh",
		AccessExpiresAt:  time.Now().Add(time.Minute),
		RefreshExpiresAt: time.Now().Add(time.Hour),
	}}
	m := NewAutoRefreshMiddleware(src)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: sign(t, 9, models.RoleUser, time.Now().Add(-time.Minute))})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "old-refresh"})

	rec, c, err := run(t, m.RequireAuth, req)
	require.NoError(t, err)
	assert.Equal(t, 1, src.refreshed)
	id, err := UserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint(9), id)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, fresh, cookies[0].Value)
	assert.Equal(t, "new-refresh", cookies[1].Value)
}

func TestRequireAuth_CookieRefreshFails(t *testing.T) {
	src := &fakeTokens{refreshErr: service.ErrUnauthorized}
	m := NewAutoRefreshMiddleware(src)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: sign(t, 9, models.RoleUser, time.Now().Add(-time.Minute))})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "old-refresh"})

	rec, _, err := run(t, m.RequireAuth, req)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
	for _, ck := range rec.Result().Cookies() {
		assert.Equal(t, "", ck.Value)
	}
}

func TestRequireAdmin(t *testing.T) {
	m := NewAutoRefreshMiddleware(&fakeTokens{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, 1, models.RoleUser, time.Now().Add(time.Minute)))
	_, _, err := run(t, m.RequireAdmin, req)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+sign(t, 1, models.RoleAdmin, time.Now().Add(time.Minute)))
	rec, _, err := run(t, m.RequireAdmin, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExpiredErrorSurvivesWrapping(t *testing.T) {
	_, err := (&fakeTokens{}).ParseAccess(sign(t, 1, models.RoleUser, time.Now().Add(-time.Minute)))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
