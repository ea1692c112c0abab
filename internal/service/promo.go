package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
	"github.com/Skotchmaster/school_canteen/internal/repo"
)

type DiscountKind int

const (
	DiscountNone DiscountKind = iota
	DiscountPercentage
	DiscountFixedAmount
)

// Discount is either Percentage(Percent) or FixedAmount(Amount).
type Discount struct {
	Kind    DiscountKind
	Percent int
	Amount  money.Amount
}

// DiscountOf reads the promo's two columns. A percentage wins when both are set.
func DiscountOf(p *models.PromoCode) Discount {
	switch {
	case p == nil:
		return Discount{}
	case p.DiscountPercent > 0:
		return Discount{Kind: DiscountPercentage, Percent: p.DiscountPercent}
	case p.DiscountAmount > 0:
		return Discount{Kind: DiscountFixedAmount, Amount: p.DiscountAmount}
	}
	return Discount{}
}

// Apply returns the discount for total, never more than total.
func (d Discount) Apply(total money.Amount) money.Amount {
	var off money.Amount
	switch d.Kind {
	case DiscountPercentage:
		off = total.Percent(d.Percent)
	case DiscountFixedAmount:
		off = d.Amount
	}
	if off < 0 {
		return 0
	}
	return money.Min(off, total)
}

func (d Discount) String() string {
	switch d.Kind {
	case DiscountPercentage:
		return fmt.Sprintf("%d%%", d.Percent)
	case DiscountFixedAmount:
		return d.Amount.String()
	}
	return "none"
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type PromoService struct {
	Repo *repo.GormRepo
	Now  func() time.Time
}

func (s *PromoService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Validate returns the promo when code names a usable one. Unknown and
// unusable codes both yield ErrInvalidPromo.
func (s *PromoService) Validate(ctx context.Context, code string) (*models.PromoCode, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", ErrInvalidPromo)
	}
	promo, err := s.Repo.GetPromoByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPromo, code)
		}
		return nil, storeErr(err, "promo")
	}
	if !promo.Usable(s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPromo, code)
	}
	return promo, nil
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	promos, err := s.Repo.ListPromos(ctx)
	if err != nil {
		return nil, storeErr(err, "promos")
	}
	return promos, nil
}

type PromoInput struct {
	Code            string
	DiscountPercent int
	DiscountAmount  money.Amount
	Active          *bool
	ExpiresAt       *time.Time
	MaxUses         *int
}

func (in PromoInput) validate() error {
	if NormalizeCode(in.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return fmt.Errorf("%w: discount_percent must be within 0..100", ErrValidation)
	}
	if in.DiscountAmount < 0 {
		return fmt.Errorf("%w: discount_amount must not be negative", ErrValidation)
	}
	if in.DiscountPercent == 0 && in.DiscountAmount == 0 {
		return fmt.Errorf("%w: discount_percent or discount_amount is required", ErrValidation)
	}
	if in.MaxUses != nil && *in.MaxUses < 1 {
		return fmt.Errorf("%w: max_uses must be positive", ErrValidation)
	}
	return nil
}

func (s *PromoService) Create(ctx context.Context, in PromoInput) (*models.PromoCode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	promo := &models.PromoCode{
		Code:            NormalizeCode(in.Code),
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  in.DiscountAmount,
		Active:          true,
		MaxUses:         in.MaxUses,
	}
	if in.Active != nil {
		promo.Active = *in.Active
	}
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC()
		promo.ExpiresAt = &exp
	}
	if _, err := s.Repo.GetPromoByCode(ctx, promo.Code); err == nil {
		return nil, fmt.Errorf("%w: promo %s already exists", ErrConflict, promo.Code)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err, "promo")
	}
	if err := s.Repo.CreatePromo(ctx, promo); err != nil {
		return nil, storeErr(err, "promo "+promo.Code)
	}
	return promo, nil
}

func (s *PromoService) Update(ctx context.Context, id uint, in PromoInput) (*models.PromoCode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	fields := map[string]any{
		"code":             NormalizeCode(in.Code),
		"discount_percent": in.DiscountPercent,
		"discount_amount":  in.DiscountAmount,
		"max_uses":         in.MaxUses,
		"expires_at":       nil,
	}
	if in.ExpiresAt != nil {
		fields["expires_at"] = in.ExpiresAt.UTC()
	}
	if in.Active != nil {
		fields["active"] = *in.Active
	}
	promo, err := s.Repo.UpdatePromo(ctx, id, fields)
	if err != nil {
		return nil, storeErr(err, "promo")
	}
	return promo, nil
}

func (s *PromoService) Deactivate(ctx context.Context, id uint) (*models.PromoCode, error) {
	promo, err := s.Repo.UpdatePromo(ctx, id, map[string]any{"active": false})
	if err != nil {
		return nil, storeErr(err, "promo")
	}
	return promo, nil
}

// SweepExpired deactivates promos whose expiry has passed.
func (s *PromoService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.Repo.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, storeErr(err, "promos")
	}
	return n, nil
}
