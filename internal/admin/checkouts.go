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

// GET /admin/checkouts?status=pending
func ListCheckouts(c echo.Context) error {
	status := c.QueryParam("status")

	query := `SELECT ch.id, ch.rent_request_id, ch.requester_id, ch.status, ch.type,
                     ch.owner_confirmation, ch.deposit_return_percent, ch.rent_returned,
                     COALESCE(ch.decided_by::text, ''), ch.decision_override,
                     ch.final_refund_amount::text, ch.final_payout_amount::text,
                     ch.requested_at, p.owner_id
              FROM checkouts ch
              JOIN rent_requests rr ON rr.id = ch.rent_request_id
              JOIN properties p ON p.id = rr.property_id`
	args := []any{}
	if status != "" {
		query += ` WHERE ch.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY ch.requested_at DESC`

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("checkout query failed", err))
	}
	defer rows.Close()

	out := []echo.Map{}
	for rows.Next() {
		var id, rentRequestID, requesterID, state, typ, ownerConf, decidedBy, ownerID string
		var pct *int
		var rentReturned, override bool
		var refund, payout *string
		var requestedAt time.Time
		if err := rows.Scan(&id, &rentRequestID, &requesterID, &state, &typ, &ownerConf,
			&pct, &rentReturned, &decidedBy, &override, &refund, &payout, &requestedAt, &ownerID); err != nil {
			return httpx.Fail(c, apperr.Internal("checkout scan failed", err))
		}
		item := echo.Map{
			"id":                 id,
			"rent_request_id":    rentRequestID,
			"requester_id":       requesterID,
			"owner_id":           ownerID,
			"status":             state,
			"type":               typ,
			"owner_confirmation": ownerConf,
			"rent_returned":      rentReturned,
			"decided_by":         decidedBy,
			"decision_override":  override,
			"requested_at":       requestedAt,
		}
		if pct != nil {
			item["deposit_return_percent"] = *pct
		}
		if refund != nil {
			d, _ := decimal.NewFromString(*refund)
			item["final_refund_amount"] = d
		}
		if payout != nil {
			d, _ := decimal.NewFromString(*payout)
			item["final_payout_amount"] = d
		}
		out = append(out, item)
	}
	return httpx.OK(c, echo.Map{"checkouts": out})
}
