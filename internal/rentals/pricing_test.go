package rentals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/renthavenhq/renthaven/internal/config"
)

func pricing(nightly, monthly, deposit string) PropertyPricing {
	n, _ := decimal.NewFromString(nightly)
	m, _ := decimal.NewFromString(monthly)
	d, _ := decimal.NewFromString(deposit)
	return PropertyPricing{NightlyPrice: n, MonthlyPrice: m, Deposit: d}
}

func TestComputeQuote_Nightly(t *testing.T) {
	config.Load()
	in := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// 100/night, 2 nights, deposit 100 -> rent 200, total 300.
	q := ComputeQuote(pricing("100", "0", "100"), in, in.AddDate(0, 0, 2))

	assert.Equal(t, 2, q.Nights)
	assert.Equal(t, "200.00", q.Rent.StringFixed(2))
	assert.Equal(t, "100.00", q.Deposit.StringFixed(2))
	assert.Equal(t, "300.00", q.Total.StringFixed(2))
}

func TestComputeQuote_LongTermUsesMonthlyRate(t *testing.T) {
	config.Load()
	in := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// 45 nights at 3000/month pro-rated over a 30-night month.
	q := ComputeQuote(pricing("150", "3000", "500"), in, in.AddDate(0, 0, 45))

	assert.Equal(t, 45, q.Nights)
	assert.Equal(t, "4500.00", q.Rent.StringFixed(2))
	assert.Equal(t, "5000.00", q.Total.StringFixed(2))
}

func TestComputeQuote_LongTermWithoutMonthlyRateFallsBack(t *testing.T) {
	config.Load()
	in := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	q := ComputeQuote(pricing("100", "0", "0"), in, in.AddDate(0, 0, 40))

	assert.Equal(t, "4000.00", q.Rent.StringFixed(2))
}

func TestComputeQuote_ShortStayIgnoresMonthlyRate(t *testing.T) {
	config.Load()
	in := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	q := ComputeQuote(pricing("100", "3000", "50"), in, in.AddDate(0, 0, 10))

	assert.Equal(t, "1000.00", q.Rent.StringFixed(2))
}

func TestComputeQuote_RoundsProRatedRent(t *testing.T) {
	config.Load()
	in := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// 31 nights at 1000/month: 1000*31/30 = 1033.333... -> 1033.33.
	q := ComputeQuote(pricing("40", "1000", "0"), in, in.AddDate(0, 0, 31))

	assert.Equal(t, "1033.33", q.Rent.StringFixed(2))
}
