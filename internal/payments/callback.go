package payments

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/alerts"
	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/config"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/escrow"
	"github.com/renthavenhq/renthaven/internal/gateway"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/ledger"
	"github.com/renthavenhq/renthaven/internal/money"
)

// =========================
// Callback - Gateway webhook (routes by merchant order id)
// =========================
//
// The gateway may deliver callbacks out of order, more than once, or for
// an order that already settled. Every branch re-reads the pending
// record under a row lock and treats a non-pending status as a no-op.
func Callback(c echo.Context) error {
	var cb gateway.Callback
	if err := c.Bind(&cb); err != nil || cb.MerchantOrderID == "" {
		return httpx.Fail(c, apperr.Validation("invalid callback payload"))
	}

	signature := c.QueryParam("hmac")
	if signature == "" {
		signature = c.Request().Header.Get("X-Gateway-HMAC")
	}
	if !gateway.VerifyCallback(cb, signature) {
		return httpx.Fail(c, apperr.Authorization("invalid callback signature"))
	}

	flow, entityID, userID, err := gateway.ParseMerchantOrderID(cb.MerchantOrderID)
	if err != nil {
		return httpx.Fail(c, err)
	}

	ctx := context.Background()
	switch flow {
	case gateway.FlowWallet:
		err = reconcileTopup(ctx, cb, userID)
	case gateway.FlowRent:
		err = reconcileRentPayment(ctx, cb, entityID, userID)
	case gateway.FlowBuy:
		err = reconcilePurchase(ctx, cb)
	}
	if err != nil {
		return httpx.Fail(c, err)
	}
	return httpx.OK(c, echo.Map{"received": true})
}

// lockPendingCharge locks the charge row for a callback. done=true means
// the record is already terminal and the callback is a duplicate.
func lockPendingCharge(ctx context.Context, tx pgx.Tx, table, merchantOrderID string) (id, status string, done bool, err error) {
	err = tx.QueryRow(ctx,
		`SELECT id, status FROM `+table+` WHERE merchant_order_id = $1 FOR UPDATE`,
		merchantOrderID,
	).Scan(&id, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		// Payment initiation always writes the pending record before the
		// gateway redirect, so an unknown order id is a real fault.
		return "", "", false, apperr.NotFound("no pending charge for merchant order id")
	}
	if err != nil {
		return "", "", false, apperr.Internal("charge lookup failed", err)
	}
	if status != "pending" {
		log.Printf("[callback] duplicate delivery for %s (status=%s)", merchantOrderID, status)
		return id, status, true, nil
	}
	return id, status, false, nil
}

// commitReservedWallet performs the deferred wallet debit for a mixed
// charge. The balance is re-checked at callback time; if it no longer
// covers the reservation the debit is skipped and logged rather than
// failing the whole settlement.
func commitReservedWallet(ctx context.Context, tx pgx.Tx, chargeID, refType, userID string, txType ledger.TxType, refID string) (decimal.Decimal, error) {
	res, err := ReservationForUpdate(ctx, tx, chargeID, refType)
	if err != nil {
		return decimal.Zero, err
	}
	if res == nil || res.Status != ReservationReserved || res.Amount.Sign() <= 0 {
		return decimal.Zero, nil
	}

	wallet, err := ledger.ForUpdate(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if wallet.Balance.LessThan(res.Amount) {
		log.Printf("[callback][WARN] wallet %s balance %s below reservation %s; skipping deferred debit",
			wallet.ID, wallet.Balance, res.Amount)
		return decimal.Zero, ReleaseReservation(ctx, tx, res)
	}

	if _, err := ledger.Debit(ctx, tx, wallet, res.Amount, txType, refID, refType, "reserved wallet portion"); err != nil {
		return decimal.Zero, err
	}
	if err := CommitReservation(ctx, tx, res); err != nil {
		return decimal.Zero, err
	}
	return res.Amount, nil
}

// storedGatewayAmount returns the gateway portion recorded when the
// charge was initiated. The callback's reported amount is HMAC-signed,
// but the ledger follows our own record; a divergence is logged so a
// gateway-side mismatch surfaces in reconciliation.
func storedGatewayAmount(ctx context.Context, tx pgx.Tx, table, chargeID string, cb gateway.Callback) (decimal.Decimal, error) {
	var s string
	if err := tx.QueryRow(ctx,
		`SELECT gateway_amount::text FROM `+table+` WHERE id = $1`, chargeID,
	).Scan(&s); err != nil {
		return decimal.Zero, apperr.Internal("charge amount lookup failed", err)
	}
	stored, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Internal("charge amount parse failed", err)
	}
	if reported := money.FromCents(cb.AmountCents); !reported.Equal(stored) {
		log.Printf("[callback][WARN] gateway reported %s but charge %s recorded %s", reported, chargeID, stored)
	}
	return stored, nil
}

// refundGatewayCharge returns an arrived gateway payment to the payer's
// wallet, releases any wallet reservation, and retires the charge as
// expired. Used when the charge succeeded but the thing it was paying
// for can no longer be delivered.
func refundGatewayCharge(ctx context.Context, tx pgx.Tx, cb gateway.Callback, purchaseID, userID, description string) error {
	wallet, err := ledger.ForUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}
	amount, err := storedGatewayAmount(ctx, tx, "purchases", purchaseID, cb)
	if err != nil {
		return err
	}
	if _, err := ledger.Credit(ctx, tx, wallet, amount, ledger.TxRefund, purchaseID, "purchase", description); err != nil {
		return err
	}
	if res, rerr := ReservationForUpdate(ctx, tx, purchaseID, "purchase"); rerr == nil && res != nil && res.Status == ReservationReserved {
		if err := ReleaseReservation(ctx, tx, res); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE purchases SET status = 'expired', transaction_ref = $1, updated_at = NOW() WHERE id = $2`,
		cb.TransactionID, purchaseID,
	); err != nil {
		return apperr.Internal("purchase update failed", err)
	}
	return nil
}

// paidOverlapExists locks and reports any other paid request covering
// the same nights. The same check runs when payment is initiated; the
// callback completes that payment and has to repeat it, because an
// overlapping request can reach paid while this charge sits at the
// gateway.
func paidOverlapExists(ctx context.Context, tx pgx.Tx, propertyID, rentRequestID string, checkIn, checkOut time.Time) (bool, error) {
	rows, err := tx.Query(ctx,
		`SELECT id FROM rent_requests
         WHERE property_id = $1
           AND id <> $2
           AND status = 'paid'
           AND check_in < $4 AND check_out > $3
         FOR UPDATE`,
		propertyID, rentRequestID, checkIn, checkOut,
	)
	if err != nil {
		return false, apperr.Internal("overlap check failed", err)
	}
	defer rows.Close()
	if rows.Next() {
		return true, nil
	}
	return false, rows.Err()
}

func reconcileTopup(ctx context.Context, cb gateway.Callback, userID string) error {
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return apperr.Internal("transaction start failed", err)
	}
	defer tx.Rollback(ctx)

	purchaseID, _, done, err := lockPendingCharge(ctx, tx, "purchases", cb.MerchantOrderID)
	if err != nil || done {
		return err
	}

	if !cb.Success {
		if _, err := tx.Exec(ctx,
			`UPDATE purchases SET status = 'failed', transaction_ref = $1, updated_at = NOW() WHERE id = $2`,
			cb.TransactionID, purchaseID,
		); err != nil {
			return apperr.Internal("topup update failed", err)
		}
		return tx.Commit(ctx)
	}

	wallet, err := ledger.ForUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}
	amount, err := storedGatewayAmount(ctx, tx, "purchases", purchaseID, cb)
	if err != nil {
		return err
	}
	if _, err := ledger.Credit(ctx, tx, wallet, amount, ledger.TxTopup, purchaseID, "purchase", "wallet top-up"); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE purchases SET status = 'paid', transaction_ref = $1, updated_at = NOW() WHERE id = $2`,
		cb.TransactionID, purchaseID,
	); err != nil {
		return apperr.Internal("topup update failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal("commit failed", err)
	}

	_ = alerts.Notify(userID, alerts.PurposeTopup, "Your wallet top-up was credited", purchaseID, "")
	return nil
}

func reconcileRentPayment(ctx context.Context, cb gateway.Callback, rentRequestID, userID string) error {
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return apperr.Internal("transaction start failed", err)
	}
	defer tx.Rollback(ctx)

	purchaseID, _, done, err := lockPendingCharge(ctx, tx, "purchases", cb.MerchantOrderID)
	if err != nil || done {
		return err
	}

	if !cb.Success {
		if _, err := tx.Exec(ctx,
			`UPDATE purchases SET status = 'failed', transaction_ref = $1, updated_at = NOW() WHERE id = $2`,
			cb.TransactionID, purchaseID,
		); err != nil {
			return apperr.Internal("purchase update failed", err)
		}
		if res, rerr := ReservationForUpdate(ctx, tx, purchaseID, "purchase"); rerr == nil && res != nil && res.Status == ReservationReserved {
			if err := ReleaseReservation(ctx, tx, res); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	}

	var rent, deposit, rrStatus, propertyID, ownerID string
	var checkIn, checkOut time.Time
	err = tx.QueryRow(ctx,
		`SELECT rr.rent_amount::text, rr.deposit_amount::text, rr.status,
                rr.property_id, rr.check_in, rr.check_out, p.owner_id
         FROM rent_requests rr
         JOIN properties p ON p.id = rr.property_id
         WHERE rr.id = $1
         FOR UPDATE OF rr`,
		rentRequestID,
	).Scan(&rent, &deposit, &rrStatus, &propertyID, &checkIn, &checkOut, &ownerID)
	if err != nil {
		return apperr.Internal("rent request lookup failed", err)
	}
	if rrStatus != "confirmed" {
		// The request died (expired, cancelled) while the gateway charge
		// was in flight. Money arrived; return it to the renter's wallet.
		if err := refundGatewayCharge(ctx, tx, cb, purchaseID, userID, "gateway charge for expired rent request"); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return apperr.Internal("commit failed", err)
		}
		_ = alerts.Notify(userID, alerts.PurposeRentExpired, "Your rent request expired; the gateway charge was refunded to your wallet", rentRequestID, "")
		return nil
	}

	// First to pay wins. Another request may have reached paid for these
	// dates while this charge sat at the gateway; this request can no
	// longer be delivered, so the money goes back to the renter's wallet.
	overlap, err := paidOverlapExists(ctx, tx, propertyID, rentRequestID, checkIn, checkOut)
	if err != nil {
		return err
	}
	if overlap {
		if err := refundGatewayCharge(ctx, tx, cb, purchaseID, userID, "gateway charge for already-booked dates"); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return apperr.Internal("commit failed", err)
		}
		_ = alerts.Notify(userID, alerts.PurposeRentExpired, "Another renter paid for overlapping dates first; your gateway charge was refunded to your wallet", rentRequestID, "")
		return nil
	}

	if _, err := commitReservedWallet(ctx, tx, purchaseID, "purchase", userID, ledger.TxRentPartial, rentRequestID); err != nil {
		return err
	}

	rentD, _ := decimal.NewFromString(rent)
	depositD, _ := decimal.NewFromString(deposit)
	if _, err := escrow.LockRental(ctx, tx, rentRequestID, rentD, depositD); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE purchases SET status = 'paid', transaction_ref = $1, updated_at = NOW() WHERE id = $2`,
		cb.TransactionID, purchaseID,
	); err != nil {
		return apperr.Internal("purchase update failed", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE rent_requests SET status = 'paid', updated_at = NOW() WHERE id = $1`,
		rentRequestID,
	); err != nil {
		return apperr.Internal("rent request update failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal("commit failed", err)
	}

	_ = alerts.Notify(userID, alerts.PurposeRentPaid, "Your rent payment is in escrow", rentRequestID, "")
	_ = alerts.Notify(ownerID, alerts.PurposeRentPaid, "A rent request for your property was paid", rentRequestID, userID)
	return nil
}

func reconcilePurchase(ctx context.Context, cb gateway.Callback) error {
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return apperr.Internal("transaction start failed", err)
	}
	defer tx.Rollback(ctx)

	purchaseID, _, done, err := lockPendingCharge(ctx, tx, "property_purchases", cb.MerchantOrderID)
	if err != nil || done {
		return err
	}

	var propertyID, buyerID, sellerID, amount string
	err = tx.QueryRow(ctx,
		`SELECT property_id, buyer_id, seller_id, amount::text FROM property_purchases WHERE id = $1`,
		purchaseID,
	).Scan(&propertyID, &buyerID, &sellerID, &amount)
	if err != nil {
		return apperr.Internal("property purchase lookup failed", err)
	}

	if !cb.Success {
		if _, err := tx.Exec(ctx,
			`UPDATE property_purchases SET status = 'failed', transaction_ref = $1, updated_at = NOW() WHERE id = $2`,
			cb.TransactionID, purchaseID,
		); err != nil {
			return apperr.Internal("property purchase update failed", err)
		}
		if res, rerr := ReservationForUpdate(ctx, tx, purchaseID, "property_purchase"); rerr == nil && res != nil && res.Status == ReservationReserved {
			if err := ReleaseReservation(ctx, tx, res); err != nil {
				return err
			}
		}
		// The listing must not stay stuck unavailable after a failed payment.
		if _, err := tx.Exec(ctx,
			`UPDATE properties SET status = 'valid' WHERE id = $1 AND status = 'pending_sale'`,
			propertyID,
		); err != nil {
			return apperr.Internal("property reset failed", err)
		}
		return tx.Commit(ctx)
	}

	if _, err := commitReservedWallet(ctx, tx, purchaseID, "property_purchase", buyerID, ledger.TxPurchasePartial, purchaseID); err != nil {
		return err
	}

	amountD, _ := decimal.NewFromString(amount)
	release := time.Now().Add(config.Current.PurchaseCancelWindow)
	if _, err := escrow.LockPurchase(ctx, tx, purchaseID, propertyID, buyerID, sellerID, amountD, release); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE property_purchases SET status = 'paid', transaction_ref = $1, updated_at = NOW() WHERE id = $2`,
		cb.TransactionID, purchaseID,
	); err != nil {
		return apperr.Internal("property purchase update failed", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE properties SET status = 'pending_sale' WHERE id = $1`,
		propertyID,
	); err != nil {
		return apperr.Internal("property update failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal("commit failed", err)
	}

	_ = alerts.Notify(buyerID, alerts.PurposePurchasePaid, "Your purchase payment is in escrow", purchaseID, "")
	_ = alerts.Notify(sellerID, alerts.PurposePurchasePaid, "Your property received a paid purchase", purchaseID, buyerID)
	return nil
}
