package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/school_canteen/internal/httpserver"
	authmw "github.com/Skotchmaster/school_canteen/internal/middleware/auth"
	"github.com/Skotchmaster/school_canteen/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := boot(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.ensureAdmin(ctx); err != nil {
		return err
	}

	jobs, err := scheduler.New(a.log, scheduler.Config{
		PromoSweepCron: a.cfg.PromoSweepCron,
		ReindexCron:    a.cfg.ReindexCron,
	}, a.promos, a.menu)
	if err != nil {
		return err
	}
	jobs.Start()

	e := httpserver.NewEcho(a.log, httpserver.Options{
		RateLimitRPS: a.cfg.RateLimitRPS,
		BodyLimit:    "1M",
	}, &httpserver.Deps{
		DB:      a.store,
		Auth:    authmw.NewAutoRefreshMiddleware(a.auth),
		Users:   &httpserver.AuthHTTP{Svc: a.auth},
		Profile: &httpserver.ProfileHTTP{Svc: a.profile},
		Menu:    &httpserver.MenuHTTP{Svc: a.menu},
		Cart:    &httpserver.CartHTTP{Svc: a.cart},
		Orders:  &httpserver.OrderHTTP{Svc: a.orders, Promos: a.promos},
		Balance: &httpserver.BalanceHTTP{Svc: a.balance},
		Promos:  &httpserver.PromoHTTP{Svc: a.promos},
		Admin:   &httpserver.AdminHTTP{Svc: a.admin, Menu: a.menu},
	})
	srv := httpserver.NewServer(e, a.cfg.ServerPort)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http_server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			a.log.Error("http_server_failed", "error", err)
		}
	}

	a.log.Info("shutdown_started")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("http_shutdown_failed", "error", err)
	}
	jobs.Stop(shutdownCtx)

	a.log.Info("shutdown_complete")
	return nil
}
