// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/search"
)

type PromoSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

type Config struct {
	PromoSweepCron string
	ReindexCron    string
	JobTimeout     time.Duration
}

type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	promos  PromoSweeper
	menu    Reindexer
	timeout time.Duration
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug(msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, append(kv, "error", err)...)
}

// New registers the jobs whose schedule is set. Empty schedules are skipped.
func New(log *slog.Logger, cfg Config, promos PromoSweeper, menu Reindexer) (*Scheduler, error) {
	log = log.With("component", "scheduler")
	cl := cronLogger{l: log}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     log,
		promos:  promos,
		menu:    menu,
		timeout: cfg.JobTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Minute
	}

	if cfg.PromoSweepCron != "" {
		if _, err := s.cron.AddFunc(cfg.PromoSweepCron, s.run("promo_sweep", s.SweepPromos)); err != nil {
			return nil, fmt.Errorf("promo sweep schedule %q: %w", cfg.PromoSweepCron, err)
		}
	}
	if cfg.ReindexCron != "" {
		if _, err := s.cron.AddFunc(cfg.ReindexCron, s.run("reindex", s.Reindex)); err != nil {
			return nil, fmt.Errorf("reindex schedule %q: %w", cfg.ReindexCron, err)
		}
	}
	return s, nil
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) func() {
	return func() {
		l := s.log.With("job", name)
		ctx, cancel := context.WithTimeout(logging.IntoContext(context.Background(), l), s.timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			l.Error("job_failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		}
	}
}

func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler_started", "jobs", s.Jobs())
}

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler_stop_timeout")
	}
}

// SweepPromos deactivates promo codes past their expiry.
func (s *Scheduler) SweepPromos(ctx context.Context) error {
	n, err := s.promos.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logging.FromContext(ctx).Info("promos_deactivated", "count", n)
	}
	return nil
}

// Reindex pushes all meals into the search index. It does nothing when search
// is not configured.
func (s *Scheduler) Reindex(ctx context.Context) error {
	n, err := s.menu.Reindex(ctx)
	if errors.Is(err, search.ErrDisabled) {
		return nil
	}
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("meals_reindexed", "count", n)
	return nil
}
