// Package money keeps monetary values in integer minor units (kopecks) so that
// balance arithmetic stays exact.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in minor units, 100 per currency unit.
type Amount int64

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrOverflow      = errors.New("amount out of range")
)

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

func FromUnits(units int64) Amount {
	return Amount(units * 100)
}

// fromMinor converts a whole number of minor units, failing when it does not
// fit in an Amount.
func fromMinor(d decimal.Decimal) (Amount, error) {
	if d.LessThan(minMinor) || d.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, d.Shift(-2).String())
	}
	return Amount(d.IntPart()), nil
}

func (a Amount) decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(a))
}

// Parse reads "12", "12.5" or "12.50". More than two fractional digits is an error.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("%w: more than two decimals in %q", ErrInvalidAmount, s)
	}
	a, err := fromMinor(d.Shift(2))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	return a, nil
}

func (a Amount) String() string {
	return a.decimal().Shift(-2).StringFixed(2)
}

// Times multiplies a unit price by a quantity.
func (a Amount) Times(qty int) (Amount, error) {
	return fromMinor(a.decimal().Mul(decimal.NewFromInt(int64(qty))))
}

// Plus adds b, failing instead of wrapping around.
func (a Amount) Plus(b Amount) (Amount, error) {
	return fromMinor(a.decimal().Add(b.decimal()))
}

// Percent returns p percent of a, rounded half away from zero to the minor unit.
func (a Amount) Percent(p int) Amount {
	return a.share(p, 2)
}

// PercentBasis returns bp basis points (1/100 of a percent) of a.
func (a Amount) PercentBasis(bp int) Amount {
	return a.share(bp, 4)
}

func (a Amount) share(n int, scale int32) Amount {
	v := a.decimal().Mul(decimal.NewFromInt(int64(n))).Shift(-scale).Round(0)
	out, err := fromMinor(v)
	if err != nil {
		if v.IsNegative() {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return out
}

func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
