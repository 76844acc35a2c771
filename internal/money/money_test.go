package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"0.125", "0.13"},
		{"-10.005", "-10.01"},
		{"33.333333", "33.33"},
		{"100", "100"},
	}
	for _, tc := range cases {
		in, err := decimal.NewFromString(tc.in)
		require.NoError(t, err)
		want, err := decimal.NewFromString(tc.want)
		require.NoError(t, err)
		assert.True(t, RoundHalfUp(in).Equal(want), "RoundHalfUp(%s) = %s, want %s", tc.in, RoundHalfUp(in), tc.want)
	}
}

func TestPercent(t *testing.T) {
	deposit := decimal.NewFromInt(100)

	assert.True(t, Percent(deposit, 60).Equal(decimal.NewFromInt(60)))
	assert.True(t, Percent(deposit, 0).Equal(decimal.Zero))
	assert.True(t, Percent(deposit, 100).Equal(deposit))

	// Odd splits still round deterministically.
	odd, _ := decimal.NewFromString("99.99")
	assert.Equal(t, "33.00", Percent(odd, 33).StringFixed(2))
	assert.Equal(t, "0.01", Percent(decimal.NewFromFloat(0.01), 60).StringFixed(2))
}

func TestPercent_ConservationWithComplement(t *testing.T) {
	// refund + (deposit - refund) must always equal deposit exactly,
	// whatever the percentage does to rounding.
	amounts := []string{"100", "99.99", "0.01", "333.33", "1234.56"}
	for _, a := range amounts {
		deposit, _ := decimal.NewFromString(a)
		for pct := 0; pct <= 100; pct += 7 {
			refund := Percent(deposit, pct)
			keep := deposit.Sub(refund)
			assert.True(t, refund.Add(keep).Equal(deposit),
				"deposit=%s pct=%d refund=%s keep=%s", a, pct, refund, keep)
		}
	}
}

func TestFromString(t *testing.T) {
	d, ok := FromString("123.45")
	require.True(t, ok)
	assert.Equal(t, "123.45", d.StringFixed(2))

	_, ok = FromString("not-a-number")
	assert.False(t, ok)

	_, ok = FromString("")
	assert.False(t, ok)
}

func TestCentsRoundTrip(t *testing.T) {
	d, _ := decimal.NewFromString("150.75")
	cents := ToCents(d)
	assert.Equal(t, int64(15075), cents)
	assert.True(t, FromCents(cents).Equal(d))

	assert.Equal(t, int64(0), ToCents(decimal.Zero))
	assert.True(t, FromCents(0).Equal(decimal.Zero))
}

func TestEqualWithin(t *testing.T) {
	tol := decimal.NewFromFloat(0.01)
	a, _ := decimal.NewFromString("300.00")
	b, _ := decimal.NewFromString("300.01")
	c, _ := decimal.NewFromString("300.02")

	assert.True(t, EqualWithin(a, b, tol))
	assert.True(t, EqualWithin(b, a, tol))
	assert.False(t, EqualWithin(a, c, tol))
}
