package admin

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/httpx"
)

// GET /admin/stats
func Stats(c echo.Context) error {
	ctx := context.Background()

	var users, properties, rentRequests, checkouts, withdrawals int
	var lockedRentals, lockedPurchases string

	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&users)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM properties`).Scan(&properties)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM rent_requests`).Scan(&rentRequests)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM checkouts WHERE status = 'pending'`).Scan(&checkouts)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests WHERE status = 'processing'`).Scan(&withdrawals)
	_ = db.Conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0)::text FROM escrow_balances WHERE status = 'locked'`,
	).Scan(&lockedRentals)
	_ = db.Conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::text FROM property_escrows WHERE status = 'locked'`,
	).Scan(&lockedPurchases)

	rentalsD, _ := decimal.NewFromString(lockedRentals)
	purchasesD, _ := decimal.NewFromString(lockedPurchases)

	return httpx.OK(c, echo.Map{
		"users":                  users,
		"properties":             properties,
		"rent_requests":          rentRequests,
		"pending_checkouts":      checkouts,
		"processing_withdrawals": withdrawals,
		"locked_rental_escrow":   rentalsD,
		"locked_purchase_escrow": purchasesD,
	})
}
