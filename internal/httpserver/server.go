package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/school_canteen/internal/metrics"
	loggingmw "github.com/Skotchmaster/school_canteen/internal/middleware/logging"
)

type Options struct {
	RateLimitRPS int
	BodyLimit    string
}

// NewEcho builds the echo instance with the shared middleware chain and the
// API routes.
func NewEcho(log *slog.Logger, opts Options, d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		loggingmw.RequestLogger(log),
		metrics.Middleware(),
		middleware.CORS(),
	)
	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}
	if opts.RateLimitRPS > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(opts.RateLimitRPS))))
	}

	Register(e, d)
	return e
}

func NewServer(e *echo.Echo, port int) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
