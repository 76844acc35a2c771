package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/money"
)

// Split is the outcome of a checkout decision applied to an escrowed
// rental: how much goes back to the renter and how much to the owner.
// DepositRefund + DepositToOwner always equals the deposit, and
// RefundTotal + PayoutTotal always equals rent + deposit; money is
// neither created nor destroyed.
type Split struct {
	DepositRefund  decimal.Decimal
	DepositToOwner decimal.Decimal
	RentRefund     decimal.Decimal
	RentToOwner    decimal.Decimal
	RefundTotal    decimal.Decimal
	PayoutTotal    decimal.Decimal
}

// ComputeSplit applies a deposit return percentage and the rent-returned
// flag to the escrowed amounts. The deposit refund is rounded half-up to
// 2 decimal places; the owner's share is the exact remainder so the two
// legs always sum to the deposit.
func ComputeSplit(rent, deposit decimal.Decimal, depositReturnPercent int, rentReturned bool) Split {
	s := Split{
		DepositRefund: money.Percent(deposit, depositReturnPercent),
	}
	s.DepositToOwner = deposit.Sub(s.DepositRefund)

	if rentReturned {
		s.RentRefund = rent
		s.RentToOwner = decimal.Zero
	} else {
		s.RentRefund = decimal.Zero
		s.RentToOwner = rent
	}

	s.RefundTotal = s.DepositRefund.Add(s.RentRefund)
	s.PayoutTotal = s.DepositToOwner.Add(s.RentToOwner)
	return s
}
