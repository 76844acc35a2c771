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

type AdminWallet struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Reserved  decimal.Decimal `json:"reserved"`
	CreatedAt time.Time       `json:"created_at"`
}

// GET /admin/wallets
func ListWallets(c echo.Context) error {
	rows, err := db.Conn.Query(context.Background(),
		`SELECT w.id, w.user_id, w.balance::text,
                COALESCE(SUM(r.amount) FILTER (WHERE r.status = 'reserved'), 0)::text,
                w.created_at
         FROM wallets w
         LEFT JOIN wallet_reservations r ON r.wallet_id = w.id
         GROUP BY w.id
         ORDER BY w.created_at DESC`,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("wallet query failed", err))
	}
	defer rows.Close()

	wallets := []AdminWallet{}
	for rows.Next() {
		var w AdminWallet
		var balance, reserved string
		if err := rows.Scan(&w.ID, &w.UserID, &balance, &reserved, &w.CreatedAt); err != nil {
			return httpx.Fail(c, apperr.Internal("wallet scan failed", err))
		}
		w.Balance, _ = decimal.NewFromString(balance)
		w.Reserved, _ = decimal.NewFromString(reserved)
		wallets = append(wallets, w)
	}
	return httpx.OK(c, echo.Map{"wallets": wallets})
}

// GET /admin/wallets/:userId/transactions
func ListUserTransactions(c echo.Context) error {
	userID := c.Param("userId")

	rows, err := db.Conn.Query(context.Background(),
		`SELECT t.id, t.amount::text, t.type, t.balance_before::text, t.balance_after::text,
                COALESCE(t.ref_id::text, ''), COALESCE(t.ref_type, ''), COALESCE(t.description, ''),
                t.created_at
         FROM wallet_transactions t
         JOIN wallets w ON w.id = t.wallet_id
         WHERE w.user_id = $1
         ORDER BY t.created_at, t.id`,
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
	return httpx.OK(c, echo.Map{"user_id": userID, "transactions": out})
}
