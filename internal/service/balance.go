package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Skotchmaster/school_canteen/internal/cache"
	"github.com/Skotchmaster/school_canteen/internal/events"
	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/metrics"
	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
	"github.com/Skotchmaster/school_canteen/internal/repo"
)

// DefaultMaxTopUp is the per-operation ceiling when none is configured.
var DefaultMaxTopUp = money.FromUnits(1000)

// topUpFeeBasis is the fee per method in basis points.
var topUpFeeBasis = map[string]int{
	models.PaymentMethodCard:   250,
	models.PaymentMethodCrypto: 100,
	models.PaymentMethodCash:   0,
}

type FeeInfo struct {
	Method  string `json:"method"`
	Percent string `json:"percent"`
}

// Fees lists the methods and their fee percentage for display.
func Fees() []FeeInfo {
	out := make([]FeeInfo, 0, len(topUpFeeBasis))
	for _, m := range []string{models.PaymentMethodCard, models.PaymentMethodCrypto, models.PaymentMethodCash} {
		bp := topUpFeeBasis[m]
		out = append(out, FeeInfo{Method: m, Percent: fmt.Sprintf("%d.%02d", bp/100, bp%100)})
	}
	return out
}

// ApplyTopUpFee splits a gross payment into the amount to credit and the fee.
func ApplyTopUpFee(gross money.Amount, method string) (credit, fee money.Amount, err error) {
	bp, ok := topUpFeeBasis[method]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}
	if gross <= 0 {
		return 0, 0, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	fee = gross.PercentBasis(bp)
	return gross - fee, fee, nil
}

type BalanceService struct {
	Repo     *repo.GormRepo
	Cache    *cache.Cache
	Events   events.Publisher
	MaxTopUp money.Amount
}

func (s *BalanceService) maxTopUp() money.Amount {
	if s.MaxTopUp > 0 {
		return s.MaxTopUp
	}
	return DefaultMaxTopUp
}

// TopUp records a completed payment and credits exactly amount. It returns
// the new balance.
func (s *BalanceService) TopUp(ctx context.Context, userID uint, amount, fee money.Amount, method string) (money.Amount, error) {
	l := logging.FromContext(ctx).With("service", "balance", "user_id", userID)

	balance, payment, err := s.topUp(ctx, userID, amount, fee, method)
	metrics.RecordTopUp(method, Code(err))
	if err != nil {
		l.Warn("topup_rejected", slog.String("reason", Code(err)), slog.Any("error", err))
		return 0, err
	}

	s.Cache.InvalidateUser(userID)
	publish(ctx, s.Events, events.TopicPayments, events.Key(userID), events.BalanceToppedUp{
		Type:       events.TypeBalanceToppedUp,
		PaymentID:  payment.ID,
		UserID:     userID,
		Amount:     amount.String(),
		Fee:        fee.String(),
		Method:     method,
		NewBalance: balance.String(),
		At:         payment.CreatedAt,
	})
	l.Info("balance_topped_up", slog.String("amount", amount.String()), slog.String("method", method))
	return balance, nil
}

func (s *BalanceService) topUp(ctx context.Context, userID uint, amount, fee money.Amount, method string) (money.Amount, *models.Payment, error) {
	if _, ok := topUpFeeBasis[method]; !ok {
		return 0, nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}
	if amount <= 0 {
		return 0, nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if amount > s.maxTopUp() {
		return 0, nil, fmt.Errorf("%w: amount exceeds %s", ErrValidation, s.maxTopUp())
	}
	if fee < 0 {
		return 0, nil, fmt.Errorf("%w: fee must not be negative", ErrValidation)
	}

	payment := &models.Payment{
		UserID: userID,
		Amount: amount,
		Fee:    fee,
		Method: method,
		Status: models.PaymentStatusCompleted,
	}
	var balance money.Amount
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return storeErr(err, "payment")
		}
		ok, err := tx.CreditBalance(ctx, userID, amount)
		if err != nil {
			return storeErr(err, "balance")
		}
		if !ok {
			return fmt.Errorf("%w: profile of user %d", ErrNotFound, userID)
		}
		balance, err = tx.GetBalance(ctx, userID)
		return storeErr(err, "balance")
	})
	if err != nil {
		return 0, nil, err
	}
	return balance, payment, nil
}

func (s *BalanceService) Balance(ctx context.Context, userID uint) (money.Amount, error) {
	balance, err := s.Repo.GetBalance(ctx, userID)
	if err != nil {
		return 0, storeErr(err, "profile")
	}
	return balance, nil
}

func (s *BalanceService) Payments(ctx context.Context, userID uint) ([]models.Payment, error) {
	payments, err := s.Repo.ListPayments(ctx, userID, historyLimit)
	if err != nil {
		return nil, storeErr(err, "payments")
	}
	return payments, nil
}
