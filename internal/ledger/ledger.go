package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/money"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx. Credit and Debit
// must be called with a pgx.Tx so the ledger write commits or rolls back
// together with its sibling mutations (escrow create, purchase update).
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ForUpdate loads the user's wallet with a row lock, creating it first
// if the user has never needed one. Callers hold the lock until the
// enclosing transaction ends.
func ForUpdate(ctx context.Context, tx Querier, userID string) (*Wallet, error) {
	w := &Wallet{}
	var balance string
	err := tx.QueryRow(ctx,
		`SELECT id, user_id, balance::text, created_at FROM wallets WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&w.ID, &w.UserID, &balance, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		w.ID = uuid.New().String()
		w.UserID = userID
		w.Balance = decimal.Zero
		// Insert then re-lock; a concurrent creator loses on the unique
		// user_id and we fall back to locking the winner's row.
		_, insErr := tx.Exec(ctx,
			`INSERT INTO wallets (id, user_id, balance) VALUES ($1, $2, 0)
             ON CONFLICT (user_id) DO NOTHING`,
			w.ID, userID,
		)
		if insErr != nil {
			return nil, apperr.Internal("wallet create failed", insErr)
		}
		err = tx.QueryRow(ctx,
			`SELECT id, user_id, balance::text, created_at FROM wallets WHERE user_id = $1 FOR UPDATE`,
			userID,
		).Scan(&w.ID, &w.UserID, &balance, &w.CreatedAt)
	}
	if err != nil {
		return nil, apperr.Internal("wallet lookup failed", err)
	}
	w.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, apperr.Internal("wallet balance parse failed", err)
	}
	return w, nil
}

// Credit adds amount to a locked wallet and writes the ledger entry.
func Credit(ctx context.Context, tx Querier, w *Wallet, amount decimal.Decimal, typ TxType, refID, refType, description string) (*Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, apperr.Validation("credit amount must be positive")
	}
	return apply(ctx, tx, w, amount, typ, refID, refType, description)
}

// Debit subtracts amount from a locked wallet and writes the ledger
// entry. Fails with InsufficientFunds when the balance cannot cover it;
// the caller decides whether to fall back to a gateway charge.
func Debit(ctx context.Context, tx Querier, w *Wallet, amount decimal.Decimal, typ TxType, refID, refType, description string) (*Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, apperr.Validation("debit amount must be positive")
	}
	if w.Balance.LessThan(amount) {
		return nil, apperr.InsufficientFunds("wallet balance is insufficient")
	}
	return apply(ctx, tx, w, amount.Neg(), typ, refID, refType, description)
}

func apply(ctx context.Context, tx Querier, w *Wallet, delta decimal.Decimal, typ TxType, refID, refType, description string) (*Transaction, error) {
	before := w.Balance
	after := money.RoundHalfUp(before.Add(delta))

	if _, err := tx.Exec(ctx,
		`UPDATE wallets SET balance = $1 WHERE id = $2`,
		after.String(), w.ID,
	); err != nil {
		return nil, apperr.Internal("wallet update failed", err)
	}

	entry := &Transaction{
		ID:            uuid.New().String(),
		WalletID:      w.ID,
		Amount:        delta,
		Type:          typ,
		RefID:         refID,
		RefType:       refType,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
	}
	var ref any
	if refID != "" {
		ref = refID
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO wallet_transactions
            (id, wallet_id, amount, type, ref_id, ref_type, balance_before, balance_after, description)
         VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7, $8, NULLIF($9,''))`,
		entry.ID, w.ID, delta.String(), string(typ), ref, refType,
		before.String(), after.String(), description,
	); err != nil {
		return nil, apperr.Internal("ledger write failed", err)
	}

	w.Balance = after
	return entry, nil
}

// Replay folds every ledger entry for a wallet in creation order from
// zero. The result must equal the stored balance; used by the audit
// endpoint and tests.
func Replay(ctx context.Context, q Querier, walletID string) (decimal.Decimal, error) {
	rows, err := q.Query(ctx,
		`SELECT amount::text FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at, id`,
		walletID,
	)
	if err != nil {
		return decimal.Zero, apperr.Internal("ledger replay failed", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amt string
		if err := rows.Scan(&amt); err != nil {
			return decimal.Zero, apperr.Internal("ledger replay scan failed", err)
		}
		d, err := decimal.NewFromString(amt)
		if err != nil {
			return decimal.Zero, apperr.Internal("ledger replay parse failed", err)
		}
		sum = sum.Add(d)
	}
	return sum, rows.Err()
}
