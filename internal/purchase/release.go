package purchase

import (
	"context"
	"errors"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/renthavenhq/renthaven/internal/alerts"
	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/escrow"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/ledger"
)

// ReleaseDue pays out every purchase escrow whose cancellation window
// has closed. Each escrow settles in its own transaction so one bad row
// cannot block the rest.
func ReleaseDue(ctx context.Context) (released int, err error) {
	rows, err := db.Conn.Query(ctx,
		`SELECT property_purchase_id FROM property_escrows
         WHERE status = 'locked' AND scheduled_release_at <= NOW()`,
	)
	if err != nil {
		return 0, apperr.Internal("due escrow query failed", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, apperr.Internal("due escrow scan failed", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if err := releaseOne(ctx, id, "cancellation window closed"); err != nil {
			log.Printf("[purchase] release %s: %v", id, err)
			continue
		}
		released++
	}
	return released, nil
}

// releaseOne finalizes a single sale: seller is paid from escrow, the
// listing becomes sold, the purchase completes.
func releaseOne(ctx context.Context, purchaseID, reason string) error {
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return apperr.Internal("transaction start failed", err)
	}
	defer tx.Rollback(ctx)

	// Purchase row first, then escrow: the same order the buyer-cancel
	// path takes, so the two cannot deadlock at the window boundary.
	var purchaseStatus string
	err = tx.QueryRow(ctx,
		`SELECT status FROM property_purchases WHERE id = $1 FOR UPDATE`,
		purchaseID,
	).Scan(&purchaseStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("purchase not found")
	}
	if err != nil {
		return apperr.Internal("purchase lookup failed", err)
	}
	if purchaseStatus != "paid" {
		return apperr.StateConflict("purchase is not awaiting release")
	}

	e, err := escrow.PurchaseForUpdate(ctx, tx, purchaseID)
	if err != nil {
		return err
	}

	wallet, err := ledger.ForUpdate(ctx, tx, e.SellerID)
	if err != nil {
		return err
	}
	if _, err := ledger.Credit(ctx, tx, wallet, e.Amount, ledger.TxPayout, purchaseID, "property_purchase", "sale proceeds"); err != nil {
		return err
	}
	if err := escrow.MarkPurchaseReleased(ctx, tx, e, escrow.StatusReleasedToSeller, reason); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE property_purchases SET status = 'completed', updated_at = NOW() WHERE id = $1`,
		purchaseID,
	); err != nil {
		return apperr.Internal("purchase update failed", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE properties SET status = 'sold' WHERE id = $1`,
		e.PropertyID,
	); err != nil {
		return apperr.Internal("property update failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal("commit failed", err)
	}

	_ = alerts.Notify(e.SellerID, alerts.PurposePurchaseReleased, "Sale proceeds were released to your wallet", purchaseID, "")
	_ = alerts.Notify(e.BuyerID, alerts.PurposePurchaseReleased, "Your purchase is final; the property is yours", purchaseID, "")
	return nil
}

// =========================
// AdminRelease - Release a purchase escrow without waiting out the window
// =========================
func AdminRelease(c echo.Context) error {
	actorID, _ := c.Get("user_id").(string)
	purchaseID := c.Param("id")

	if err := releaseOne(context.Background(), purchaseID, "released by admin"); err != nil {
		return httpx.Fail(c, err)
	}

	_ = alerts.EnqueueAdminAlert(actorID, "info", "Purchase escrow released early: "+purchaseID)
	return httpx.OK(c, echo.Map{"purchase_id": purchaseID, "status": "completed"})
}
