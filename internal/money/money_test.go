package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    Amount
		wantErr bool
	}{
		{name: "whole", in: "25", want: 2500},
		{name: "one decimal", in: "12.5", want: 1250},
		{name: "two decimals", in: "72.00", want: 7200},
		{name: "leading dot", in: ".99", want: 99},
		{name: "negative", in: "-3.10", want: -310},
		{name: "three decimals", in: "1.005", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "abc", wantErr: true},
		{name: "just dot", in: ".", wantErr: true},
		{name: "largest", in: "92233720368547758.07", want: math.MaxInt64},
		{name: "one past largest", in: "92233720368547758.08", wantErr: true},
		{name: "wraps int64", in: "184467440737095517.00", wantErr: true},
		{name: "huge exponent", in: "1e30", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmount_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "80.00", FromUnits(80).String())
	assert.Equal(t, "0.05", Amount(5).String())
	assert.Equal(t, "-1.50", Amount(-150).String())
}

func TestAmount_Percent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FromUnits(8), FromUnits(80).Percent(10))
	assert.Equal(t, Amount(1), Amount(5).Percent(10))
	assert.Equal(t, Amount(0), Amount(4).Percent(10))
	assert.Equal(t, Amount(250), FromUnits(100).PercentBasis(250))
}

func TestAmount_TimesAndPlus(t *testing.T) {
	t.Parallel()

	got, err := FromUnits(25).Times(3)
	require.NoError(t, err)
	assert.Equal(t, FromUnits(75), got)

	_, err = FromUnits(25).Times(7378697629483821)
	assert.ErrorIs(t, err, ErrOverflow)

	got, err = FromUnits(1).Plus(Amount(50))
	require.NoError(t, err)
	assert.Equal(t, Amount(150), got)

	_, err = Amount(math.MaxInt64).Plus(1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestAmount_JSON(t *testing.T) {
	t.Parallel()

	var body struct {
		Price Amount `json:"price"`
		Fee   Amount `json:"fee"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price": 25.5, "fee": "0.25"}`), &body))
	assert.Equal(t, Amount(2550), body.Price)
	assert.Equal(t, Amount(25), body.Fee)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price": 25.50, "fee": 0.25}`, string(out))
}
