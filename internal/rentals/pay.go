package rentals

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
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/escrow"
	"github.com/renthavenhq/renthaven/internal/gateway"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/ledger"
	"github.com/renthavenhq/renthaven/internal/money"
	"github.com/renthavenhq/renthaven/internal/payments"
)

// =========================
// Pay - Renter funds a confirmed request (wallet first, gateway for the rest)
// =========================
func Pay(c echo.Context) error {
	renterID, _ := c.Get("user_id").(string)
	id := c.Param("id")

	var req struct {
		ExpectedTotal  string `json:"expected_total"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := c.Bind(&req); err != nil || req.IdempotencyKey == "" {
		return httpx.Fail(c, apperr.Validation("idempotency_key is required"))
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	// Resolve the property id first so the property row can be locked
	// before the rent request row (fixed lock order).
	var propertyID string
	err = tx.QueryRow(ctx, `SELECT property_id FROM rent_requests WHERE id = $1`, id).Scan(&propertyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return httpx.Fail(c, apperr.NotFound("rent request not found"))
	}
	if err != nil {
		return httpx.Fail(c, apperr.Internal("rent request lookup failed", err))
	}

	pricing := PropertyPricing{}
	var nightly, monthly, deposit string
	var ownerID string
	err = tx.QueryRow(ctx,
		`SELECT owner_id, nightly_price::text, monthly_price::text, deposit::text
         FROM properties WHERE id = $1 FOR UPDATE`,
		propertyID,
	).Scan(&ownerID, &nightly, &monthly, &deposit)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("property lookup failed", err))
	}
	pricing.NightlyPrice, _ = decimal.NewFromString(nightly)
	pricing.MonthlyPrice, _ = decimal.NewFromString(monthly)
	pricing.Deposit, _ = decimal.NewFromString(deposit)

	r, _, err := forUpdate(ctx, tx, id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if renterID != r.UserID {
		return httpx.Fail(c, apperr.Authorization("only the requester may pay"))
	}
	if !CanTransition(r.Status, StatusPaid, ActorRenter) {
		return httpx.Fail(c, apperr.StateConflict("request is not confirmed"))
	}
	if r.PaymentDeadline == nil || time.Now().After(*r.PaymentDeadline) {
		return httpx.Fail(c, apperr.StateConflict("payment deadline has passed"))
	}

	// Another renter may have paid for overlapping dates since this
	// request was confirmed; first to pay wins.
	if err := lockPaidOverlapping(ctx, tx, propertyID, r.CheckIn, r.CheckOut, r.ID); err != nil {
		return httpx.Fail(c, err)
	}

	// Price is recomputed from the property's current rates; the client
	// total is only a staleness check.
	quote := ComputeQuote(pricing, r.CheckIn, r.CheckOut)
	if req.ExpectedTotal != "" {
		expected, ok := money.FromString(req.ExpectedTotal)
		if !ok || !money.EqualWithin(expected, quote.Total, StaleTolerance) {
			return httpx.Fail(c, apperr.Validation("price has changed, refresh and retry"))
		}
	}
	if _, err = tx.Exec(ctx,
		`UPDATE rent_requests SET rent_amount = $1, deposit_amount = $2, total_amount = $3, updated_at = NOW()
         WHERE id = $4`,
		quote.Rent.String(), quote.Deposit.String(), quote.Total.String(), id,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("price update failed", err))
	}

	wallet, err := ledger.ForUpdate(ctx, tx, renterID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	walletUse, shortfall := payments.Plan(wallet.Balance, quote.Total)

	// ---- Wallet covers everything: settle synchronously. ----
	if shortfall.IsZero() {
		if _, err := ledger.Debit(ctx, tx, wallet, quote.Total, ledger.TxPayment, id, "rent_request", "rent payment"); err != nil {
			return httpx.Fail(c, err)
		}
		if _, err := escrow.LockRental(ctx, tx, id, quote.Rent, quote.Deposit); err != nil {
			return httpx.Fail(c, err)
		}
		purchaseID := uuid.New().String()
		if _, err := tx.Exec(ctx,
			`INSERT INTO purchases (id, user_id, kind, ref_id, amount, status, idempotency_key, wallet_amount)
             VALUES ($1, $2, 'rent_payment', $3, $4, 'paid', $5, $4)`,
			purchaseID, renterID, id, quote.Total.String(), req.IdempotencyKey,
		); err != nil {
			return httpx.Fail(c, apperr.Internal("purchase record failed", err))
		}
		if _, err := tx.Exec(ctx,
			`UPDATE rent_requests SET status = $1, updated_at = NOW() WHERE id = $2`,
			string(StatusPaid), id,
		); err != nil {
			return httpx.Fail(c, apperr.Internal("status update failed", err))
		}
		if err = tx.Commit(ctx); err != nil {
			return httpx.Fail(c, apperr.Internal("commit failed", err))
		}

		_ = alerts.Notify(ownerID, alerts.PurposeRentPaid, "A rent request for your property was paid", id, renterID)
		_ = alerts.Notify(renterID, alerts.PurposeRentPaid, "Your rent payment is in escrow", id, "")

		return httpx.OK(c, echo.Map{"status": StatusPaid, "wallet_used": quote.Total, "gateway_amount": decimal.Zero})
	}

	// ---- Mixed funding: reserve the wallet portion, charge the gateway
	// for the shortfall. The wallet debit happens at callback time. ----
	purchaseID, merchantOrderID, err := upsertPendingRentPurchase(ctx, tx, req.IdempotencyKey, renterID, id, quote.Total, walletUse, shortfall, wallet.ID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	charge, err := gateway.New().CreatePaymentKey(ctx, gateway.ChargeRequest{
		Amount:          shortfall,
		UserID:          renterID,
		IdempotencyKey:  req.IdempotencyKey,
		MerchantOrderID: merchantOrderID,
	})
	if err != nil {
		payments.AbandonPendingCharge(ctx, "purchases", purchaseID)
		return httpx.Fail(c, err)
	}

	return httpx.OK(c, echo.Map{
		"status":            "awaiting_gateway",
		"iframe_url":        charge.IframeURL,
		"wallet_reserved":   walletUse,
		"gateway_amount":    shortfall,
		"merchant_order_id": merchantOrderID,
	})
}

// upsertPendingRentPurchase reuses an existing pending purchase for the
// same idempotency key (browser retries to the gateway are common) or
// creates a fresh one with its wallet reservation.
func upsertPendingRentPurchase(ctx context.Context, tx pgx.Tx, idempotencyKey, renterID, rentRequestID string, total, walletUse, shortfall decimal.Decimal, walletID string) (purchaseID, merchantOrderID string, err error) {
	var existingID, existingMOID string
	err = tx.QueryRow(ctx,
		`SELECT id, COALESCE(merchant_order_id, '') FROM purchases
         WHERE idempotency_key = $1 AND status = 'pending' FOR UPDATE`,
		idempotencyKey,
	).Scan(&existingID, &existingMOID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", "", apperr.Internal("idempotency lookup failed", err)
	}

	if existingID != "" {
		if _, err := tx.Exec(ctx,
			`UPDATE purchases SET amount = $1, wallet_amount = $2, gateway_amount = $3, updated_at = NOW()
             WHERE id = $4`,
			total.String(), walletUse.String(), shortfall.String(), existingID,
		); err != nil {
			return "", "", apperr.Internal("purchase update failed", err)
		}
		// The replanned wallet portion may differ from the first attempt:
		// a top-up since then means a reservation where none existed, a
		// spend-down means none where one did.
		if walletUse.Sign() > 0 {
			tag, err := tx.Exec(ctx,
				`UPDATE wallet_reservations SET amount = $1, updated_at = NOW()
                 WHERE ref_id = $2 AND ref_type = 'purchase' AND status = 'reserved'`,
				walletUse.String(), existingID,
			)
			if err != nil {
				return "", "", apperr.Internal("reservation update failed", err)
			}
			if tag.RowsAffected() == 0 {
				if _, err := payments.Reserve(ctx, tx, walletID, walletUse, existingID, "purchase"); err != nil {
					return "", "", err
				}
			}
		} else {
			if _, err := tx.Exec(ctx,
				`UPDATE wallet_reservations SET status = 'released', updated_at = NOW()
                 WHERE ref_id = $1 AND ref_type = 'purchase' AND status = 'reserved'`,
				existingID,
			); err != nil {
				return "", "", apperr.Internal("reservation release failed", err)
			}
		}
		return existingID, existingMOID, nil
	}

	purchaseID = uuid.New().String()
	merchantOrderID = gateway.MerchantOrderID(gateway.FlowRent, rentRequestID, renterID)
	if _, err := tx.Exec(ctx,
		`INSERT INTO purchases
            (id, user_id, kind, ref_id, amount, status, payment_gateway, merchant_order_id,
             idempotency_key, wallet_amount, gateway_amount)
         VALUES ($1, $2, 'rent_payment', $3, $4, 'pending', 'gateway', $5, $6, $7, $8)`,
		purchaseID, renterID, rentRequestID, total.String(), merchantOrderID,
		idempotencyKey, walletUse.String(), shortfall.String(),
	); err != nil {
		return "", "", apperr.Internal("purchase create failed", err)
	}
	if walletUse.Sign() > 0 {
		if _, err := payments.Reserve(ctx, tx, walletID, walletUse, purchaseID, "purchase"); err != nil {
			return "", "", err
		}
	}
	return purchaseID, merchantOrderID, nil
}

