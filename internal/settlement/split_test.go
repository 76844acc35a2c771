package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeSplit_AgentSixtyPercent(t *testing.T) {
	// within_1_day decision: 60% of the deposit back, rent to the owner.
	s := ComputeSplit(d("200"), d("100"), 60, false)

	assert.True(t, s.DepositRefund.Equal(d("60")))
	assert.True(t, s.DepositToOwner.Equal(d("40")))
	assert.True(t, s.RentToOwner.Equal(d("200")))
	assert.True(t, s.RentRefund.Equal(decimal.Zero))
	assert.True(t, s.RefundTotal.Equal(d("60")))
	assert.True(t, s.PayoutTotal.Equal(d("240")))
}

func TestComputeSplit_FullRefund(t *testing.T) {
	s := ComputeSplit(d("500"), d("250"), 100, true)

	assert.True(t, s.RefundTotal.Equal(d("750")))
	assert.True(t, s.PayoutTotal.Equal(decimal.Zero))
}

func TestComputeSplit_OwnerConfirm(t *testing.T) {
	// Owner confirming means 100% deposit back; rent stays with the owner.
	s := ComputeSplit(d("300"), d("150"), 100, false)

	assert.True(t, s.DepositRefund.Equal(d("150")))
	assert.True(t, s.RefundTotal.Equal(d("150")))
	assert.True(t, s.PayoutTotal.Equal(d("300")))
}

func TestComputeSplit_ZeroPercent(t *testing.T) {
	s := ComputeSplit(d("200"), d("100"), 0, false)

	assert.True(t, s.RefundTotal.Equal(decimal.Zero))
	assert.True(t, s.PayoutTotal.Equal(d("300")))
}

func TestComputeSplit_Conservation(t *testing.T) {
	// Refund + payout must equal rent + deposit exactly, for every
	// percentage and awkward amount.
	amounts := []struct{ rent, deposit string }{
		{"200", "100"},
		{"0.01", "0.01"},
		{"333.33", "99.99"},
		{"1234.56", "777.77"},
		{"0", "100"},
		{"100", "0"},
	}
	for _, a := range amounts {
		rent, deposit := d(a.rent), d(a.deposit)
		total := rent.Add(deposit)
		for pct := 0; pct <= 100; pct++ {
			for _, rentReturned := range []bool{false, true} {
				s := ComputeSplit(rent, deposit, pct, rentReturned)
				require.True(t, s.RefundTotal.Add(s.PayoutTotal).Equal(total),
					"rent=%s deposit=%s pct=%d rentReturned=%v: %s + %s != %s",
					a.rent, a.deposit, pct, rentReturned, s.RefundTotal, s.PayoutTotal, total)
				require.True(t, s.DepositRefund.Add(s.DepositToOwner).Equal(deposit))
				require.False(t, s.DepositRefund.IsNegative())
				require.False(t, s.DepositToOwner.IsNegative())
			}
		}
	}
}
