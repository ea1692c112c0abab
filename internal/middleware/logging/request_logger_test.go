package loggingmw

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/school_canteen/internal/logging"
)

func serve(t *testing.T, h echo.HandlerFunc) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(logging.NewWithWriter(&buf, "debug")))
	e.GET("/menu", h)

	req := httptest.NewRequest(http.MethodGet, "/menu", nil)
	req.Header.Set(echo.HeaderXRequestID, "rid-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var line map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &line))
	return line, rec
}

func TestRequestLogger_OK(t *testing.T) {
	line, rec := serve(t, func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Debug("inside")
		c.Set("user_id", uint(3))
		return c.NoContent(http.StatusNoContent)
	})
	assert.Equal(t, "rid-1", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "request completed", line["msg"])
	assert.EqualValues(t, 204, line["status"])
	assert.EqualValues(t, 3, line["user_id"])
}

func TestRequestLogger_Error(t *testing.T) {
	line, rec := serve(t, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "WARN", line["level"])
	assert.EqualValues(t, 401, line["status"])
	assert.Equal(t, "/menu", line["path"])
	assert.Equal(t, "rid-1", line["request_id"])
	assert.Contains(t, line["error"], "missing access token")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, "INFO", levelFor(200).String())
	assert.Equal(t, "WARN", levelFor(404).String())
	assert.Equal(t, "ERROR", levelFor(503).String())
}
