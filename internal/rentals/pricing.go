package rentals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/config"
	"github.com/renthavenhq/renthaven/internal/money"
)

// Quote is the server-side price for a stay. It is recomputed from the
// property's current prices at both request creation and payment time;
// client-sent totals are only compared against it to detect stale state.
type Quote struct {
	Rent    decimal.Decimal `json:"rent"`
	Deposit decimal.Decimal `json:"deposit"`
	Total   decimal.Decimal `json:"total"`
	Nights  int             `json:"nights"`
}

// PropertyPricing carries the price inputs read from the property row.
type PropertyPricing struct {
	NightlyPrice decimal.Decimal
	MonthlyPrice decimal.Decimal
	Deposit      decimal.Decimal
}

// ComputeQuote prices a stay. Stays of at least LongTermNights use the
// monthly rate pro-rated per night over a 30-night month; shorter stays
// use the nightly rate.
func ComputeQuote(p PropertyPricing, checkIn, checkOut time.Time) Quote {
	nights := Nights(checkIn, checkOut)
	if nights < 1 {
		nights = 1
	}

	var rent decimal.Decimal
	if nights >= config.Current.LongTermNights && p.MonthlyPrice.Sign() > 0 {
		rent = p.MonthlyPrice.Mul(decimal.NewFromInt(int64(nights))).Div(decimal.NewFromInt(30))
	} else {
		rent = p.NightlyPrice.Mul(decimal.NewFromInt(int64(nights)))
	}
	rent = money.RoundHalfUp(rent)
	deposit := money.RoundHalfUp(p.Deposit)

	return Quote{
		Rent:    rent,
		Deposit: deposit,
		Total:   rent.Add(deposit),
		Nights:  nights,
	}
}

// StaleTolerance is the maximum divergence allowed between the client's
// expected total and the server-side quote.
var StaleTolerance = decimal.NewFromFloat(0.01)
