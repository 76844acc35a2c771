package payments

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

// ReservationStatus models the two-phase wallet debit used by mixed
// wallet+gateway funding: the wallet portion is reserved when the
// charge is initiated and only debited (committed) when the gateway
// confirms, or released when it fails.
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

// Reservation earmarks part of a wallet balance for a pending charge.
// It does not reduce the spendable balance; the balance is re-checked
// when the reservation commits.
type Reservation struct {
	ID        string            `json:"id"`
	WalletID  string            `json:"wallet_id"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    ReservationStatus `json:"status"`
	RefID     string            `json:"ref_id"`
	RefType   string            `json:"ref_type"`
	CreatedAt time.Time         `json:"created_at"`
}

// Reserve records the wallet portion of a pending mixed charge.
func Reserve(ctx context.Context, tx ledger.Querier, walletID string, amount decimal.Decimal, refID, refType string) (*Reservation, error) {
	r := &Reservation{
		ID:       uuid.New().String(),
		WalletID: walletID,
		Amount:   amount,
		Status:   ReservationReserved,
		RefID:    refID,
		RefType:  refType,
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO wallet_reservations (id, wallet_id, amount, status, ref_id, ref_type)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, walletID, amount.String(), string(ReservationReserved), refID, refType,
	)
	if err != nil {
		return nil, apperr.Internal("reservation create failed", err)
	}
	return r, nil
}

// ReservationForUpdate locks the reservation for a pending charge. A
// missing reservation is not an error; wallet-only and gateway-only
// charges have none.
func ReservationForUpdate(ctx context.Context, tx ledger.Querier, refID, refType string) (*Reservation, error) {
	r := &Reservation{}
	var amount, status string
	err := tx.QueryRow(ctx,
		`SELECT id, wallet_id, amount::text, status, ref_id, ref_type, created_at
         FROM wallet_reservations WHERE ref_id = $1 AND ref_type = $2 FOR UPDATE`,
		refID, refType,
	).Scan(&r.ID, &r.WalletID, &amount, &status, &r.RefID, &r.RefType, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("reservation lookup failed", err)
	}
	r.Status = ReservationStatus(status)
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, apperr.Internal("reservation amount parse failed", err)
	}
	return r, nil
}

func setReservationStatus(ctx context.Context, tx ledger.Querier, r *Reservation, to ReservationStatus) error {
	tag, err := tx.Exec(ctx,
		`UPDATE wallet_reservations SET status = $1, updated_at = NOW()
         WHERE id = $2 AND status = $3`,
		string(to), r.ID, string(ReservationReserved),
	)
	if err != nil {
		return apperr.Internal("reservation update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.StateConflict("reservation is not reserved")
	}
	r.Status = to
	return nil
}

// CommitReservation marks the reservation spent. The caller performs the
// actual ledger debit in the same transaction.
func CommitReservation(ctx context.Context, tx ledger.Querier, r *Reservation) error {
	return setReservationStatus(ctx, tx, r, ReservationCommitted)
}

// ReleaseReservation frees a reservation after a failed or abandoned
// charge; no ledger entry is written because no debit ever happened.
func ReleaseReservation(ctx context.Context, tx ledger.Querier, r *Reservation) error {
	return setReservationStatus(ctx, tx, r, ReservationReleased)
}

// Plan splits a required total into the wallet portion and the gateway
// shortfall, wallet first.
func Plan(balance, total decimal.Decimal) (walletUse, shortfall decimal.Decimal) {
	if balance.GreaterThanOrEqual(total) {
		return total, decimal.Zero
	}
	if balance.Sign() < 0 {
		return decimal.Zero, total
	}
	return balance, total.Sub(balance)
}
