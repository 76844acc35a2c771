package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/alerts"
	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/config"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/ledger"
	"github.com/renthavenhq/renthaven/internal/money"
)

// =========================
// Withdraw - Request a payout to an external account
// =========================
//
// Funds leave the wallet immediately; a failed transfer is compensated
// with a credit when an admin marks the request failed.
func Withdraw(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	var req struct {
		Amount         string `json:"amount"`
		AccountDetails string `json:"account_details"`
	}
	if err := c.Bind(&req); err != nil || req.AccountDetails == "" {
		return httpx.Fail(c, apperr.Validation("account_details is required"))
	}
	amount, ok := money.FromString(req.Amount)
	if !ok || amount.Sign() <= 0 {
		return httpx.Fail(c, apperr.Validation("amount must be a positive number"))
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	count, err := withdrawalCountThisMonth(ctx, tx, userID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if count >= config.Current.WithdrawalsPerMonth {
		return httpx.Fail(c, apperr.StateConflict("monthly withdrawal limit reached"))
	}

	wallet, err := ledger.ForUpdate(ctx, tx, userID)
	if err != nil {
		return httpx.Fail(c, err)
	}

	id := uuid.New().String()
	if _, err := ledger.Debit(ctx, tx, wallet, amount, ledger.TxWithdrawal, id, "withdrawal", "withdrawal request"); err != nil {
		return httpx.Fail(c, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO withdrawal_requests (id, user_id, amount, account_details, status)
         VALUES ($1, $2, $3, $4, 'processing')`,
		id, userID, amount.String(), req.AccountDetails,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("withdrawal record failed", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.EnqueueAdminAlert(userID, "info", "New withdrawal request awaiting processing")

	return httpx.OK(c, echo.Map{
		"withdrawal_id": id,
		"status":        "processing",
		"amount":        amount,
		"remaining":     wallet.Balance,
	})
}

// =========================
// GetUserWithdrawals - Requester's withdrawal history
// =========================
func GetUserWithdrawals(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, amount::text, status, COALESCE(reference, ''), created_at, updated_at
         FROM withdrawal_requests WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("withdrawal query failed", err))
	}
	defer rows.Close()

	out := []echo.Map{}
	for rows.Next() {
		var id, amount, status, reference string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &amount, &status, &reference, &createdAt, &updatedAt); err != nil {
			return httpx.Fail(c, apperr.Internal("withdrawal scan failed", err))
		}
		amountD, _ := decimal.NewFromString(amount)
		out = append(out, echo.Map{
			"id":         id,
			"amount":     amountD,
			"status":     status,
			"reference":  reference,
			"created_at": createdAt,
			"updated_at": updatedAt,
		})
	}
	return httpx.OK(c, echo.Map{"withdrawals": out})
}

// lockProcessingWithdrawal is shared by the admin completion handlers.
func lockProcessingWithdrawal(ctx context.Context, tx pgx.Tx, id string) (userID string, amount decimal.Decimal, err error) {
	var amountStr, status string
	err = tx.QueryRow(ctx,
		`SELECT user_id, amount::text, status FROM withdrawal_requests WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&userID, &amountStr, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", decimal.Zero, apperr.NotFound("withdrawal not found")
	}
	if err != nil {
		return "", decimal.Zero, apperr.Internal("withdrawal lookup failed", err)
	}
	if status != "processing" {
		return "", decimal.Zero, apperr.StateConflict("withdrawal already settled")
	}
	amount, _ = decimal.NewFromString(amountStr)
	return userID, amount, nil
}

// =========================
// AdminCompleteWithdrawal - Mark an external transfer as done
// =========================
func AdminCompleteWithdrawal(c echo.Context) error {
	id := c.Param("id")

	var req struct {
		Reference string `json:"reference"`
	}
	if err := c.Bind(&req); err != nil || req.Reference == "" {
		return httpx.Fail(c, apperr.Validation("reference is required"))
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	userID, _, err := lockProcessingWithdrawal(ctx, tx, id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE withdrawal_requests SET status = 'completed', reference = $1, updated_at = NOW() WHERE id = $2`,
		req.Reference, id,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("withdrawal update failed", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.Notify(userID, alerts.PurposeWithdrawal, "Your withdrawal was sent to your account", id, "")
	return httpx.OK(c, echo.Map{"status": "completed"})
}

// =========================
// AdminFailWithdrawal - Transfer failed; return the money to the wallet
// =========================
func AdminFailWithdrawal(c echo.Context) error {
	id := c.Param("id")

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&req)

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	userID, amount, err := lockProcessingWithdrawal(ctx, tx, id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	wallet, err := ledger.ForUpdate(ctx, tx, userID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if _, err := ledger.Credit(ctx, tx, wallet, amount, ledger.TxRefund, id, "withdrawal", "withdrawal failed, funds returned"); err != nil {
		return httpx.Fail(c, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE withdrawal_requests SET status = 'failed', reference = NULLIF($1, ''), updated_at = NOW() WHERE id = $2`,
		req.Reason, id,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("withdrawal update failed", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.Notify(userID, alerts.PurposeWithdrawal, "Your withdrawal failed; the amount was returned to your wallet", id, "")
	return httpx.OK(c, echo.Map{"status": "failed", "refunded": amount})
}
