package payments

import (
	"context"
	"log"

	"github.com/renthavenhq/renthaven/internal/db"
)

// AbandonPendingCharge compensates for a gateway failure after a pending
// charge record was committed: the record fails and any wallet
// reservation is released. Best-effort; nothing was debited yet so no
// ledger entry is needed. table is "purchases" or "property_purchases".
func AbandonPendingCharge(ctx context.Context, table, chargeID string) {
	if table != "purchases" && table != "property_purchases" {
		log.Printf("[payments] abandon: unknown table %q", table)
		return
	}

	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		log.Printf("[payments] abandon %s %s: %v", table, chargeID, err)
		return
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE `+table+` SET status = 'failed', updated_at = NOW() WHERE id = $1 AND status = 'pending'`,
		chargeID,
	); err != nil {
		log.Printf("[payments] abandon %s %s: %v", table, chargeID, err)
		return
	}
	res, err := ReservationForUpdate(ctx, tx, chargeID, RefTypeFor(table))
	if err == nil && res != nil && res.Status == ReservationReserved {
		_ = ReleaseReservation(ctx, tx, res)
	}
	if table == "property_purchases" {
		// The listing was held at initiation; put it back on the market.
		if _, err := tx.Exec(ctx,
			`UPDATE properties SET status = 'valid'
             WHERE id = (SELECT property_id FROM property_purchases WHERE id = $1)
               AND status = 'pending_sale'`,
			chargeID,
		); err != nil {
			log.Printf("[payments] abandon %s %s: property reset: %v", table, chargeID, err)
			return
		}
	}
	if err := tx.Commit(ctx); err != nil {
		log.Printf("[payments] abandon %s %s: %v", table, chargeID, err)
	}
}

// RefTypeFor maps a charge table to the ref_type stored on its wallet
// reservation.
func RefTypeFor(table string) string {
	if table == "property_purchases" {
		return "property_purchase"
	}
	return "purchase"
}
