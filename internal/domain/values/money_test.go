package values

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		wantErr  bool
	}{
		{
			name:     "valid USD amount",
			amount:   "123.45",
			currency: USD,
		},
		{
			name:     "zero amount",
			amount:   "0",
			currency: EUR,
		},
		{
			name:     "empty currency",
			amount:   "10.00",
			currency: "",
			wantErr:  true,
		},
		{
			name:     "unknown currency",
			amount:   "10.00",
			currency: "XXX",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyFromString(tt.amount, tt.currency)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.currency, m.Currency())
		})
	}
}

func TestMoney_Compare(t *testing.T) {
	a := MustNewMoneyFromFloat(100, USD)
	b := MustNewMoneyFromFloat(110, USD)

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(MustNewMoneyFromFloat(100, USD)))
	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.GreaterThanOrEqual(a))
	assert.False(t, a.GreaterThan(b))

	assert.Panics(t, func() {
		a.Compare(MustNewMoneyFromFloat(100, EUR))
	})
}

func TestMoney_IsMultipleOf(t *testing.T) {
	step := MustNewMoneyFromFloat(10, USD)

	tests := []struct {
		name   string
		amount float64
		want   bool
	}{
		{name: "exact multiple", amount: 20, want: true},
		{name: "zero is a multiple", amount: 0, want: true},
		{name: "not a multiple", amount: 5, want: false},
		{name: "fractional remainder", amount: 10.5, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MustNewMoneyFromFloat(tt.amount, USD).IsMultipleOf(step)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("zero step rejected", func(t *testing.T) {
		_, err := MustNewMoneyFromFloat(20, USD).IsMultipleOf(Zero(USD))
		require.Error(t, err)
	})

	t.Run("currency mismatch rejected", func(t *testing.T) {
		_, err := MustNewMoneyFromFloat(20, USD).IsMultipleOf(MustNewMoneyFromFloat(10, EUR))
		require.Error(t, err)
	})
}

func TestMoney_Arithmetic(t *testing.T) {
	a := MustNewMoneyFromFloat(110, USD)
	b := MustNewMoneyFromFloat(100, USD)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.NewFromInt(10)))

	sum, err := b.Add(diff)
	require.NoError(t, err)
	assert.True(t, sum.Equal(a))

	_, err = a.Sub(MustNewMoneyFromFloat(1, EUR))
	require.Error(t, err)
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := MustNewMoneyFromFloat(49.99, USD)

	data, err := m.MarshalJSON()
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.True(t, m.Equal(decoded))
}
