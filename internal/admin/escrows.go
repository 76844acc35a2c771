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

// GET /admin/escrows/rentals?status=locked
func ListRentalEscrows(c echo.Context) error {
	status := c.QueryParam("status")

	query := `SELECT id, rent_request_id, rent_amount::text, deposit_amount::text,
                     total_amount::text, status, locked_at, released_at
              FROM escrow_balances`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY locked_at DESC`

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("escrow query failed", err))
	}
	defer rows.Close()

	out := []echo.Map{}
	for rows.Next() {
		var id, rentRequestID, rent, deposit, total, state string
		var lockedAt time.Time
		var releasedAt *time.Time
		if err := rows.Scan(&id, &rentRequestID, &rent, &deposit, &total, &state, &lockedAt, &releasedAt); err != nil {
			return httpx.Fail(c, apperr.Internal("escrow scan failed", err))
		}
		rentD, _ := decimal.NewFromString(rent)
		depositD, _ := decimal.NewFromString(deposit)
		totalD, _ := decimal.NewFromString(total)
		out = append(out, echo.Map{
			"id":              id,
			"rent_request_id": rentRequestID,
			"rent_amount":     rentD,
			"deposit_amount":  depositD,
			"total_amount":    totalD,
			"status":          state,
			"locked_at":       lockedAt,
			"released_at":     releasedAt,
		})
	}
	return httpx.OK(c, echo.Map{"escrows": out})
}

// GET /admin/escrows/purchases?status=locked
func ListPurchaseEscrows(c echo.Context) error {
	status := c.QueryParam("status")

	query := `SELECT id, property_purchase_id, property_id, buyer_id, seller_id, amount::text,
                     status, locked_at, scheduled_release_at, released_at, COALESCE(release_reason, '')
              FROM property_escrows`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY locked_at DESC`

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("escrow query failed", err))
	}
	defer rows.Close()

	out := []echo.Map{}
	for rows.Next() {
		var id, purchaseID, propertyID, buyerID, sellerID, amount, state, reason string
		var lockedAt, scheduledAt time.Time
		var releasedAt *time.Time
		if err := rows.Scan(&id, &purchaseID, &propertyID, &buyerID, &sellerID, &amount,
			&state, &lockedAt, &scheduledAt, &releasedAt, &reason); err != nil {
			return httpx.Fail(c, apperr.Internal("escrow scan failed", err))
		}
		amountD, _ := decimal.NewFromString(amount)
		out = append(out, echo.Map{
			"id":                   id,
			"property_purchase_id": purchaseID,
			"property_id":          propertyID,
			"buyer_id":             buyerID,
			"seller_id":            sellerID,
			"amount":               amountD,
			"status":               state,
			"locked_at":            lockedAt,
			"scheduled_release_at": scheduledAt,
			"released_at":          releasedAt,
			"release_reason":       reason,
		})
	}
	return httpx.OK(c, echo.Map{"escrows": out})
}
