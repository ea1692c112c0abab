package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Skotchmaster/school_canteen/internal/cache"
	"github.com/Skotchmaster/school_canteen/internal/config"
	"github.com/Skotchmaster/school_canteen/internal/db"
	"github.com/Skotchmaster/school_canteen/internal/events"
	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/repo"
	"github.com/Skotchmaster/school_canteen/internal/search"
	"github.com/Skotchmaster/school_canteen/internal/service"
)

// app holds the shared infrastructure and the services built on it.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	store  *db.Store
	events events.Publisher

	auth    *service.AuthService
	profile *service.ProfileService
	menu    *service.MenuService
	promos  *service.PromoService
	orders  *service.OrderService
	cart    *service.CartService
	balance *service.BalanceService
	admin   *service.AdminService
}

// bootDB loads config, sets up logging and opens the database.
func bootDB(ctx context.Context) (*app, error) {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")

	log := logging.New(cfg.LogLevel).With("app", cfg.ServiceName)
	slog.SetDefault(log)

	store, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: store, events: events.Noop{}}, nil
}

// boot opens every backend and wires the services.
func boot(ctx context.Context) (*app, error) {
	a, err := bootDB(ctx)
	if err != nil {
		return nil, err
	}
	a.cfg.MustServe()

	if err := a.store.Migrate(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.events = events.New(a.cfg.KafkaBrokers)
	if len(a.cfg.KafkaBrokers) == 0 {
		a.log.Info("kafka_disabled")
	}

	index, err := search.NewClient(ctx, search.Config{
		URL:      a.cfg.ESURL,
		User:     a.cfg.ESUser,
		Password: a.cfg.ESPassword,
		Index:    a.cfg.ESIndex,
	})
	if err != nil {
		a.log.Warn("search_disabled", "error", err)
		index = nil
	}

	a.wire(index)
	return a, nil
}

func (a *app) wire(index *search.Index) {
	r := &repo.GormRepo{DB: a.store.Gorm}
	c := cache.New(a.cfg.CacheSize, a.cfg.CacheTTL)

	a.auth = &service.AuthService{
		Repo:          r,
		AccessSecret:  a.cfg.JWTAccessSecret,
		RefreshSecret: a.cfg.JWTRefreshSecret,
		AccessTTL:     a.cfg.AccessTTL,
		RefreshTTL:    a.cfg.RefreshTTL,
	}
	a.profile = &service.ProfileService{Repo: r, Cache: c}
	a.menu = &service.MenuService{Repo: r, Cache: c, Events: a.events}
	if index != nil {
		a.menu.Index = index
	}
	a.promos = &service.PromoService{Repo: r}
	a.orders = &service.OrderService{Repo: r, Cache: c, Events: a.events}
	a.cart = &service.CartService{Repo: r, Orders: a.orders, Promos: a.promos}
	a.balance = &service.BalanceService{Repo: r, Cache: c, Events: a.events, MaxTopUp: a.cfg.MaxTopUp}
	a.admin = &service.AdminService{Repo: r, Stats: &repo.StatsRepo{DB: a.store.SQL}, Cache: c}
}

func (a *app) seeder() *service.Seeder {
	return &service.Seeder{Menu: a.menu, Promos: a.promos, Auth: a.auth}
}

func (a *app) close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("kafka_close_failed", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("db_close_failed", "error", err)
	}
}

func (a *app) ensureAdmin(ctx context.Context) error {
	if a.cfg.AdminUsername == "" || a.cfg.AdminPassword == "" {
		return nil
	}
	if _, err := a.auth.EnsureAdmin(ctx, a.cfg.AdminUsername, a.cfg.AdminPassword); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	return nil
}
