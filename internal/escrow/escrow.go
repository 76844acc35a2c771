package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/ledger"
)

// Status lifecycle for escrowed funds. A record transitions out of
// StatusLocked exactly once; release paths must lock the row and check
// the status before mutating it.
type Status string

const (
	StatusLocked           Status = "locked"
	StatusReleasedToOwner  Status = "released_to_owner"
	StatusRefundedToRenter Status = "refunded_to_renter"
	StatusReleasedToSeller Status = "released_to_seller"
	StatusRefundedToBuyer  Status = "refunded_to_buyer"
)

// Balance holds a paid rental's funds: rent and deposit, locked until
// the checkout engine decides the split.
type Balance struct {
	ID            string          `json:"id"`
	RentRequestID string          `json:"rent_request_id"`
	RentAmount    decimal.Decimal `json:"rent_amount"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        Status          `json:"status"`
	LockedAt      time.Time       `json:"locked_at"`
	ReleasedAt    *time.Time      `json:"released_at,omitempty"`
}

// PropertyEscrow holds a property purchase's funds until the buyer's
// cancellation window passes or an admin releases them.
type PropertyEscrow struct {
	ID                 string          `json:"id"`
	PropertyPurchaseID string          `json:"property_purchase_id"`
	PropertyID         string          `json:"property_id"`
	BuyerID            string          `json:"buyer_id"`
	SellerID           string          `json:"seller_id"`
	Amount             decimal.Decimal `json:"amount"`
	Status             Status          `json:"status"`
	LockedAt           time.Time       `json:"locked_at"`
	ScheduledReleaseAt time.Time       `json:"scheduled_release_at"`
	ReleasedAt         *time.Time      `json:"released_at,omitempty"`
	ReleaseReason      string          `json:"release_reason,omitempty"`
}

// LockRental creates a locked escrow record for a paid rent request.
// Must run in the same transaction as the funding debit.
func LockRental(ctx context.Context, tx ledger.Querier, rentRequestID string, rent, deposit decimal.Decimal) (*Balance, error) {
	b := &Balance{
		ID:            uuid.New().String(),
		RentRequestID: rentRequestID,
		RentAmount:    rent,
		DepositAmount: deposit,
		TotalAmount:   rent.Add(deposit),
		Status:        StatusLocked,
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO escrow_balances (id, rent_request_id, rent_amount, deposit_amount, total_amount, status)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, rentRequestID, rent.String(), deposit.String(), b.TotalAmount.String(), string(StatusLocked),
	)
	if err != nil {
		return nil, apperr.Internal("escrow create failed", err)
	}
	return b, nil
}

// RentalForUpdate locks the rental escrow row and verifies it is still
// locked. A record already released fails with InvalidEscrowState so a
// double release can never pay twice.
func RentalForUpdate(ctx context.Context, tx ledger.Querier, rentRequestID string) (*Balance, error) {
	b := &Balance{}
	var rent, deposit, total, status string
	err := tx.QueryRow(ctx,
		`SELECT id, rent_request_id, rent_amount::text, deposit_amount::text, total_amount::text,
                status, locked_at, released_at
         FROM escrow_balances WHERE rent_request_id = $1 FOR UPDATE`,
		rentRequestID,
	).Scan(&b.ID, &b.RentRequestID, &rent, &deposit, &total, &status, &b.LockedAt, &b.ReleasedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("escrow record not found")
	}
	if err != nil {
		return nil, apperr.Internal("escrow lookup failed", err)
	}
	b.Status = Status(status)
	if b.RentAmount, err = decimal.NewFromString(rent); err != nil {
		return nil, apperr.Internal("escrow amount parse failed", err)
	}
	if b.DepositAmount, err = decimal.NewFromString(deposit); err != nil {
		return nil, apperr.Internal("escrow amount parse failed", err)
	}
	if b.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, apperr.Internal("escrow amount parse failed", err)
	}
	if b.Status != StatusLocked {
		return nil, apperr.InvalidEscrowState("escrow is not locked")
	}
	return b, nil
}

// MarkRentalReleased moves a locked rental escrow to its terminal status.
// Call only after RentalForUpdate in the same transaction.
func MarkRentalReleased(ctx context.Context, tx ledger.Querier, b *Balance, to Status) error {
	tag, err := tx.Exec(ctx,
		`UPDATE escrow_balances SET status = $1, released_at = NOW()
         WHERE id = $2 AND status = $3`,
		string(to), b.ID, string(StatusLocked),
	)
	if err != nil {
		return apperr.Internal("escrow release failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidEscrowState("escrow already released")
	}
	b.Status = to
	return nil
}

// LockPurchase creates a locked escrow record for a paid property
// purchase, with the buyer's cancellation window.
func LockPurchase(ctx context.Context, tx ledger.Querier, purchaseID, propertyID, buyerID, sellerID string, amount decimal.Decimal, scheduledRelease time.Time) (*PropertyEscrow, error) {
	e := &PropertyEscrow{
		ID:                 uuid.New().String(),
		PropertyPurchaseID: purchaseID,
		PropertyID:         propertyID,
		BuyerID:            buyerID,
		SellerID:           sellerID,
		Amount:             amount,
		Status:             StatusLocked,
		ScheduledReleaseAt: scheduledRelease,
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO property_escrows
            (id, property_purchase_id, property_id, buyer_id, seller_id, amount, status, scheduled_release_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, purchaseID, propertyID, buyerID, sellerID, amount.String(), string(StatusLocked), scheduledRelease,
	)
	if err != nil {
		return nil, apperr.Internal("property escrow create failed", err)
	}
	return e, nil
}

// PurchaseForUpdate locks the escrow row for a property purchase and
// verifies it is still locked.
func PurchaseForUpdate(ctx context.Context, tx ledger.Querier, purchaseID string) (*PropertyEscrow, error) {
	e := &PropertyEscrow{}
	var amount, status string
	var reason *string
	err := tx.QueryRow(ctx,
		`SELECT id, property_purchase_id, property_id, buyer_id, seller_id, amount::text,
                status, locked_at, scheduled_release_at, released_at, release_reason
         FROM property_escrows WHERE property_purchase_id = $1 FOR UPDATE`,
		purchaseID,
	).Scan(&e.ID, &e.PropertyPurchaseID, &e.PropertyID, &e.BuyerID, &e.SellerID, &amount,
		&status, &e.LockedAt, &e.ScheduledReleaseAt, &e.ReleasedAt, &reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("property escrow not found")
	}
	if err != nil {
		return nil, apperr.Internal("property escrow lookup failed", err)
	}
	e.Status = Status(status)
	if reason != nil {
		e.ReleaseReason = *reason
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, apperr.Internal("property escrow amount parse failed", err)
	}
	if e.Status != StatusLocked {
		return nil, apperr.InvalidEscrowState("property escrow is not locked")
	}
	return e, nil
}

// MarkPurchaseReleased moves a locked property escrow to its terminal
// status with the reason recorded for audit.
func MarkPurchaseReleased(ctx context.Context, tx ledger.Querier, e *PropertyEscrow, to Status, reason string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE property_escrows SET status = $1, released_at = NOW(), release_reason = $2
         WHERE id = $3 AND status = $4`,
		string(to), reason, e.ID, string(StatusLocked),
	)
	if err != nil {
		return apperr.Internal("property escrow release failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidEscrowState("property escrow already released")
	}
	e.Status = to
	e.ReleaseReason = reason
	return nil
}
