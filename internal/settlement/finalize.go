package settlement

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/escrow"
	"github.com/renthavenhq/renthaven/internal/ledger"
)

// Input describes a terminal checkout decision to turn into money.
type Input struct {
	CheckoutID           string
	RentRequestID        string
	DepositReturnPercent int
	RentReturned         bool
	// FinalStatus is "confirmed" or "auto_confirmed".
	FinalStatus string
}

// Result reports what Finalize moved, for post-commit notifications.
type Result struct {
	RenterID       string
	OwnerID        string
	RefundAmount   decimal.Decimal
	PayoutAmount   decimal.Decimal
	TransactionRef string
}

// Finalize converts a checkout decision into wallet credits and closes
// the escrow, all inside the caller's transaction. It is idempotent at
// the entity level: if the escrow is no longer locked it fails with
// InvalidEscrowState and never pays twice. Lock order is rent request,
// then escrow, then wallets.
func Finalize(ctx context.Context, tx pgx.Tx, in Input) (*Result, error) {
	if in.DepositReturnPercent < 0 || in.DepositReturnPercent > 100 {
		return nil, apperr.Validation("deposit_return_percent must be between 0 and 100")
	}

	var renterID, ownerID string
	err := tx.QueryRow(ctx,
		`SELECT rr.user_id, p.owner_id
         FROM rent_requests rr
         JOIN properties p ON p.id = rr.property_id
         WHERE rr.id = $1
         FOR UPDATE OF rr`,
		in.RentRequestID,
	).Scan(&renterID, &ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("rent request not found")
	}
	if err != nil {
		return nil, apperr.Internal("rent request lookup failed", err)
	}

	esc, err := escrow.RentalForUpdate(ctx, tx, in.RentRequestID)
	if err != nil {
		return nil, err
	}

	split := ComputeSplit(esc.RentAmount, esc.DepositAmount, in.DepositReturnPercent, in.RentReturned)
	txRef := uuid.New().String()

	// Wallets are locked in a deterministic order so concurrent
	// finalizations involving the same users cannot deadlock.
	wallets := map[string]*ledger.Wallet{}
	parties := []string{renterID, ownerID}
	sort.Strings(parties)
	for _, p := range parties {
		if _, ok := wallets[p]; ok {
			continue
		}
		w, err := ledger.ForUpdate(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		wallets[p] = w
	}

	if split.RefundTotal.Sign() > 0 {
		if _, err := ledger.Credit(ctx, tx, wallets[renterID], split.RefundTotal,
			ledger.TxRefund, in.CheckoutID, "checkout", "checkout refund"); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO purchases (id, user_id, kind, ref_id, amount, status, transaction_ref, wallet_amount)
             VALUES ($1, $2, 'refund', $3, $4, 'paid', $5, $4)`,
			uuid.New().String(), renterID, in.CheckoutID, split.RefundTotal.String(), txRef,
		); err != nil {
			return nil, apperr.Internal("refund record failed", err)
		}
	}
	if split.PayoutTotal.Sign() > 0 {
		if _, err := ledger.Credit(ctx, tx, wallets[ownerID], split.PayoutTotal,
			ledger.TxPayout, in.CheckoutID, "checkout", "checkout payout"); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO purchases (id, user_id, kind, ref_id, amount, status, transaction_ref, wallet_amount)
             VALUES ($1, $2, 'payout', $3, $4, 'paid', $5, $4)`,
			uuid.New().String(), ownerID, in.CheckoutID, split.PayoutTotal.String(), txRef,
		); err != nil {
			return nil, apperr.Internal("payout record failed", err)
		}
	}

	finalEscrow := escrow.StatusRefundedToRenter
	if split.PayoutTotal.Sign() > 0 {
		finalEscrow = escrow.StatusReleasedToOwner
	}
	if err := escrow.MarkRentalReleased(ctx, tx, esc, finalEscrow); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE rent_requests SET status = 'completed', updated_at = NOW() WHERE id = $1`,
		in.RentRequestID,
	); err != nil {
		return nil, apperr.Internal("rent request close failed", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE checkouts
         SET status = $1, final_refund_amount = $2, final_payout_amount = $3,
             transaction_ref = $4, updated_at = NOW()
         WHERE id = $5`,
		in.FinalStatus, split.RefundTotal.String(), split.PayoutTotal.String(), txRef, in.CheckoutID,
	); err != nil {
		return nil, apperr.Internal("checkout close failed", err)
	}

	return &Result{
		RenterID:       renterID,
		OwnerID:        ownerID,
		RefundAmount:   split.RefundTotal,
		PayoutAmount:   split.PayoutTotal,
		TransactionRef: txRef,
	}, nil
}
