package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/tokens"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRole     = "role"
)

// TokenSource parses access tokens and rotates refresh tokens.
type TokenSource interface {
	ParseAccess(token string) (*tokens.AccessClaims, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
}

type AutoRefreshMiddleware struct {
	Tokens TokenSource
}

func NewAutoRefreshMiddleware(src TokenSource) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{Tokens: src}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if claims.Role != models.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

// accessToken prefers the Authorization header and falls back to the cookie.
// fromCookie tells whether a silent refresh through cookies is possible.
func accessToken(c echo.Context) (token string, fromCookie bool) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(rest), false
		}
	}
	if ck, err := c.Cookie(AccessCookie); err == nil {
		return ck.Value, true
	}
	return "", false
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, fromCookie := accessToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Tokens.ParseAccess(raw)
		if err == nil {
			if validator != nil {
				if validationErr := validator(claims); validationErr != nil {
					return validationErr
				}
			}
			return setUserContext(c, claims, next)
		}

		if !fromCookie || !errors.Is(err, jwt.ErrTokenExpired) {
			if fromCookie {
				clearAuthCookies(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		refreshCookie, rErr := c.Cookie(RefreshCookie)
		if rErr != nil || refreshCookie.Value == "" {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
		}

		pair, refErr := m.Tokens.Refresh(c.Request().Context(), refreshCookie.Value)
		if refErr != nil {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh failed")
		}
		SetAuthCookies(c, pair)

		newClaims, pErr := m.Tokens.ParseAccess(pair.AccessToken)
		if pErr != nil {
			clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
		}
		if validator != nil {
			if validationErr := validator(newClaims); validationErr != nil {
				return validationErr
			}
		}
		return setUserContext(c, newClaims, next)
	}
}

func SetAuthCookies(c echo.Context, pair *service.TokenPair) {
	c.SetCookie(CreateCookie(AccessCookie, pair.AccessToken, "/", pair.AccessExpiresAt))
	c.SetCookie(CreateCookie(RefreshCookie, pair.RefreshToken, "/", pair.RefreshExpiresAt))
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(DeleteCookie(AccessCookie, "/"))
	c.SetCookie(DeleteCookie(RefreshCookie, "/"))
}

// ClearAuthCookies expires both auth cookies, used on logout.
func ClearAuthCookies(c echo.Context) {
	clearAuthCookies(c)
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims, next echo.HandlerFunc) error {
	id, err := claims.UserID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}
	c.Set(ctxUserID, id)
	c.Set(ctxUsername, claims.Username)
	c.Set(ctxRole, claims.Role)

	req := c.Request()
	c.SetRequest(req.WithContext(logging.With(req.Context(), "user_id", id)))
	return next(c)
}

// UserID returns the authenticated user's id set by RequireAuth.
func UserID(c echo.Context) (uint, error) {
	id, ok := c.Get(ctxUserID).(uint)
	if !ok || id == 0 {
		return 0, errors.New("unauthorized")
	}
	return id, nil
}

func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}
