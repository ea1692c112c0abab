package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/events"
	"github.com/Skotchmaster/school_canteen/internal/logging"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrNotFound                = errors.New("not found")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrMealUnavailable         = fmt.Errorf("%w: meal unavailable", ErrNotFound)
	ErrInvalidPromo            = errors.New("invalid promo code")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInsufficientUserBalance = errors.New("insufficient user balance")
	ErrConflict                = errors.New("conflict")
	ErrStore                   = errors.New("store error")
	ErrUnauthorized            = errors.New("unauthorized")
)

// storeErr turns a repository error into a service sentinel. Record-not-found
// becomes what, anything else is wrapped as ErrStore.
func storeErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrStore, what, err)
}

// isDomain reports whether err already carries a service sentinel.
func isDomain(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrNotFound, ErrEmptyCart, ErrInvalidPromo,
		ErrInsufficientBalance, ErrInsufficientUserBalance, ErrConflict, ErrStore,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func publisher(p events.Publisher) events.Publisher {
	if p == nil {
		return events.Noop{}
	}
	return p
}

// publish emits an event after commit. A failure is logged and swallowed.
func publish(ctx context.Context, p events.Publisher, topic, key string, event any) {
	if err := publisher(p).Publish(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed",
			slog.String("topic", topic),
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

// Code is the stable machine-readable name of err's sentinel.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientUserBalance):
		return "insufficient_user_balance"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidPromo):
		return "invalid_promo"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	}
	return "store_error"
}
