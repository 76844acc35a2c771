package sweeps

import (
	"context"
	"log"
	"time"

	"github.com/renthavenhq/renthaven/internal/alerts"
	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/config"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/payments"
	"github.com/renthavenhq/renthaven/internal/purchase"
	"github.com/renthavenhq/renthaven/internal/settlement"
)

// Start runs the deadline sweeps on a ticker until ctx is cancelled.
// Deadlines are enforced here, never at read time, so a request stays
// formally confirmed until the sweep expires it.
func Start(ctx context.Context) {
	ticker := time.NewTicker(config.Current.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				RunOnce(ctx)
			}
		}
	}()
}

// RunOnce executes every sweep a single time. Each sweep isolates its
// own failures; one broken row never stops the others.
func RunOnce(ctx context.Context) {
	if n, err := ExpireUnpaidRequests(ctx); err != nil {
		log.Printf("[sweeps] expire unpaid: %v", err)
	} else if n > 0 {
		log.Printf("[sweeps] expired %d unpaid rent requests", n)
	}

	if n, err := AutoConfirmCheckouts(ctx); err != nil {
		log.Printf("[sweeps] auto-confirm: %v", err)
	} else if n > 0 {
		log.Printf("[sweeps] auto-confirmed %d checkouts", n)
	}

	if n, err := purchase.ReleaseDue(ctx); err != nil {
		log.Printf("[sweeps] release purchases: %v", err)
	} else if n > 0 {
		log.Printf("[sweeps] released %d purchase escrows", n)
	}
}

// ExpireUnpaidRequests moves confirmed rent requests past their payment
// deadline to expired and abandons any half-finished funding attempt.
func ExpireUnpaidRequests(ctx context.Context) (expired int, err error) {
	rows, err := db.Conn.Query(ctx,
		`SELECT id FROM rent_requests
         WHERE status = 'confirmed' AND payment_deadline IS NOT NULL AND payment_deadline <= NOW()`,
	)
	if err != nil {
		return 0, apperr.Internal("expired request query failed", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, apperr.Internal("expired request scan failed", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if err := expireOne(ctx, id); err != nil {
			log.Printf("[sweeps] expire %s: %v", id, err)
			continue
		}
		expired++
	}
	return expired, nil
}

func expireOne(ctx context.Context, rentRequestID string) error {
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return apperr.Internal("transaction start failed", err)
	}
	defer tx.Rollback(ctx)

	var renterID, status string
	err = tx.QueryRow(ctx,
		`SELECT user_id, status FROM rent_requests WHERE id = $1 FOR UPDATE`,
		rentRequestID,
	).Scan(&renterID, &status)
	if err != nil {
		return apperr.Internal("rent request lookup failed", err)
	}
	if status != "confirmed" {
		// Paid or cancelled between the scan and the lock.
		return nil
	}

	// Deadline expiry is the system applying the renter's cancel edge.
	if _, err := tx.Exec(ctx,
		`UPDATE rent_requests SET status = 'cancelled', updated_at = NOW() WHERE id = $1`,
		rentRequestID,
	); err != nil {
		return apperr.Internal("rent request update failed", err)
	}

	// A mixed-funding attempt may have left a pending purchase with a
	// wallet reservation. Expire it and free the reserved funds; a late
	// gateway callback for it is refunded by the reconciler.
	prows, err := tx.Query(ctx,
		`SELECT id FROM purchases
         WHERE kind = 'rent_payment' AND ref_id = $1 AND status = 'pending' FOR UPDATE`,
		rentRequestID,
	)
	if err != nil {
		return apperr.Internal("pending purchase query failed", err)
	}
	var pendingIDs []string
	for prows.Next() {
		var id string
		if err := prows.Scan(&id); err != nil {
			prows.Close()
			return apperr.Internal("pending purchase scan failed", err)
		}
		pendingIDs = append(pendingIDs, id)
	}
	prows.Close()

	for _, pid := range pendingIDs {
		if _, err := tx.Exec(ctx,
			`UPDATE purchases SET status = 'expired', updated_at = NOW() WHERE id = $1`,
			pid,
		); err != nil {
			return apperr.Internal("pending purchase update failed", err)
		}
		res, rerr := payments.ReservationForUpdate(ctx, tx, pid, "purchase")
		if rerr == nil && res != nil && res.Status == payments.ReservationReserved {
			if err := payments.ReleaseReservation(ctx, tx, res); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal("commit failed", err)
	}

	_ = alerts.Notify(renterID, alerts.PurposeRentExpired, "Your confirmed rent request expired unpaid", rentRequestID, "")
	return nil
}

// AutoConfirmCheckouts settles checkouts whose owner has been silent
// past the inactivity window. Owner silence defaults in the renter's
// favor: full deposit back, rent kept by the owner.
func AutoConfirmCheckouts(ctx context.Context) (confirmed int, err error) {
	cutoff := time.Now().Add(-config.Current.CheckoutAutoConfirm)
	rows, err := db.Conn.Query(ctx,
		`SELECT id FROM checkouts
         WHERE status = 'pending' AND owner_confirmation = 'pending' AND requested_at <= $1`,
		cutoff,
	)
	if err != nil {
		return 0, apperr.Internal("stale checkout query failed", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, apperr.Internal("stale checkout scan failed", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if err := autoConfirmOne(ctx, id); err != nil {
			log.Printf("[sweeps] auto-confirm %s: %v", id, err)
			continue
		}
		confirmed++
	}
	return confirmed, nil
}

func autoConfirmOne(ctx context.Context, checkoutID string) error {
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return apperr.Internal("transaction start failed", err)
	}
	defer tx.Rollback(ctx)

	var rentRequestID, requesterID, status, ownerConf string
	err = tx.QueryRow(ctx,
		`SELECT rent_request_id, requester_id, status, owner_confirmation
         FROM checkouts WHERE id = $1 FOR UPDATE`,
		checkoutID,
	).Scan(&rentRequestID, &requesterID, &status, &ownerConf)
	if err != nil {
		return apperr.Internal("checkout lookup failed", err)
	}
	if status != "pending" || ownerConf != "pending" {
		return nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE checkouts
         SET owner_confirmation = 'auto_confirmed', deposit_return_percent = 100,
             rent_returned = FALSE, decided_at = NOW(), updated_at = NOW()
         WHERE id = $1`,
		checkoutID,
	); err != nil {
		return apperr.Internal("checkout update failed", err)
	}

	res, err := settlement.Finalize(ctx, tx, settlement.Input{
		CheckoutID:           checkoutID,
		RentRequestID:        rentRequestID,
		DepositReturnPercent: 100,
		RentReturned:         false,
		FinalStatus:          "auto_confirmed",
	})
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal("commit failed", err)
	}

	_ = alerts.Notify(res.RenterID, alerts.PurposeCheckoutDecided, "Your checkout was auto-confirmed; the deposit was refunded", checkoutID, "")
	_ = alerts.Notify(res.OwnerID, alerts.PurposeCheckoutDecided, "A checkout on your property was auto-confirmed after no response", checkoutID, "")
	return nil
}
