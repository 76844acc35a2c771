package payments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPlan(t *testing.T) {
	d := func(s string) decimal.Decimal {
		v, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatalf("bad decimal %q: %v", s, err)
		}
		return v
	}

	cases := []struct {
		name          string
		balance       string
		total         string
		wantWallet    string
		wantShortfall string
	}{
		{"wallet covers all", "5000", "3000", "3000", "0"},
		{"exact balance", "300", "300", "300", "0"},
		{"mixed funding", "150", "300", "150", "150"},
		{"empty wallet", "0", "300", "0", "300"},
		{"cents precision", "0.01", "0.03", "0.01", "0.02"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			walletUse, shortfall := Plan(d(tc.balance), d(tc.total))
			assert.True(t, walletUse.Equal(d(tc.wantWallet)), "walletUse = %s", walletUse)
			assert.True(t, shortfall.Equal(d(tc.wantShortfall)), "shortfall = %s", shortfall)
			assert.True(t, walletUse.Add(shortfall).Equal(d(tc.total)), "split must cover the total")
		})
	}
}

func TestPlan_NegativeBalanceNeverReserved(t *testing.T) {
	walletUse, shortfall := Plan(decimal.NewFromInt(-10), decimal.NewFromInt(100))

	assert.True(t, walletUse.IsZero())
	assert.True(t, shortfall.Equal(decimal.NewFromInt(100)))
}
