package admin

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/httpx"
)

type AdminWithdrawal struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	AccountDetails string          `json:"account_details"`
	Status         string          `json:"status"`
	Reference      string          `json:"reference,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// GET /admin/withdrawals?status=processing
func ListWithdrawals(c echo.Context) error {
	status := c.QueryParam("status")

	query := `SELECT id, user_id, amount::text, account_details, status, COALESCE(reference, ''),
                     created_at, updated_at
              FROM withdrawal_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("withdrawal query failed", err))
	}
	defer rows.Close()

	out := []AdminWithdrawal{}
	for rows.Next() {
		var w AdminWithdrawal
		var amount string
		if err := rows.Scan(&w.ID, &w.UserID, &amount, &w.AccountDetails, &w.Status, &w.Reference, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return httpx.Fail(c, apperr.Internal("withdrawal scan failed", err))
		}
		w.Amount, _ = decimal.NewFromString(amount)
		out = append(out, w)
	}
	return httpx.OK(c, echo.Map{"withdrawals": out})
}
