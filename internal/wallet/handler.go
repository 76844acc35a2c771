package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/ledger"
)

// =========================
// Balance - Current wallet balance, optionally audited against the ledger
// =========================
func Balance(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	ctx := context.Background()

	var walletID, balanceStr string
	err := db.Conn.QueryRow(ctx,
		`SELECT id, balance::text FROM wallets WHERE user_id = $1`,
		userID,
	).Scan(&walletID, &balanceStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return httpx.OK(c, echo.Map{"balance": decimal.Zero})
	}
	if err != nil {
		return httpx.Fail(c, apperr.Internal("wallet lookup failed", err))
	}
	balance, _ := decimal.NewFromString(balanceStr)

	resp := echo.Map{"wallet_id": walletID, "balance": balance}

	// ?audit=true recomputes the balance from the transaction log and
	// reports any drift instead of hiding it.
	if c.QueryParam("audit") == "true" {
		replayed, err := ledger.Replay(ctx, db.Conn, walletID)
		if err != nil {
			return httpx.Fail(c, err)
		}
		resp["replayed_balance"] = replayed
		resp["consistent"] = replayed.Equal(balance)
	}
	return httpx.OK(c, resp)
}

// =========================
// GetUserTransactions - Wallet transaction history, newest first
// =========================
func GetUserTransactions(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	rows, err := db.Conn.Query(context.Background(),
		`SELECT t.id, t.amount::text, t.type, t.balance_before::text, t.balance_after::text,
                COALESCE(t.ref_id::text, ''), COALESCE(t.ref_type, ''), COALESCE(t.description, ''),
                t.created_at
         FROM wallet_transactions t
         JOIN wallets w ON w.id = t.wallet_id
         WHERE w.user_id = $1
         ORDER BY t.created_at DESC, t.id DESC
         LIMIT 200`,
		userID,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction query failed", err))
	}
	defer rows.Close()

	out := []echo.Map{}
	for rows.Next() {
		var id, amount, typ, before, after, refID, refType, description string
		var createdAt time.Time
		if err := rows.Scan(&id, &amount, &typ, &before, &after, &refID, &refType, &description, &createdAt); err != nil {
			return httpx.Fail(c, apperr.Internal("transaction scan failed", err))
		}
		amountD, _ := decimal.NewFromString(amount)
		beforeD, _ := decimal.NewFromString(before)
		afterD, _ := decimal.NewFromString(after)
		out = append(out, echo.Map{
			"id":             id,
			"amount":         amountD,
			"type":           typ,
			"balance_before": beforeD,
			"balance_after":  afterD,
			"ref_id":         refID,
			"ref_type":       refType,
			"description":    description,
			"created_at":     createdAt,
		})
	}
	return httpx.OK(c, echo.Map{"transactions": out})
}

// withdrawalCountThisMonth counts a user's withdrawal requests since the
// start of the current calendar month. Failed requests still count; the
// cap is on attempts, not successes.
func withdrawalCountThisMonth(ctx context.Context, tx pgx.Tx, userID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM withdrawal_requests
         WHERE user_id = $1 AND created_at >= date_trunc('month', NOW())`,
		userID,
	).Scan(&n)
	if err != nil {
		return 0, apperr.Internal("withdrawal count failed", err)
	}
	return n, nil
}
