package purchase

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
	"github.com/renthavenhq/renthaven/internal/config"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/escrow"
	"github.com/renthavenhq/renthaven/internal/gateway"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/ledger"
	"github.com/renthavenhq/renthaven/internal/money"
	"github.com/renthavenhq/renthaven/internal/payments"
)

// StaleTolerance is how far the client's expected price may drift from
// the listing's current price before the purchase is rejected.
var StaleTolerance = decimal.NewFromFloat(0.01)

// =========================
// Buy - Buyer funds a for-sale listing (wallet first, gateway for the rest)
// =========================
func Buy(c echo.Context) error {
	buyerID, _ := c.Get("user_id").(string)
	propertyID := c.Param("id")

	var req struct {
		ExpectedPrice  string `json:"expected_price"`
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

	var sellerID, listingType, status, priceStr string
	err = tx.QueryRow(ctx,
		`SELECT owner_id, listing_type, status, sale_price::text
         FROM properties WHERE id = $1 FOR UPDATE`,
		propertyID,
	).Scan(&sellerID, &listingType, &status, &priceStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return httpx.Fail(c, apperr.NotFound("property not found"))
	}
	if err != nil {
		return httpx.Fail(c, apperr.Internal("property lookup failed", err))
	}
	if listingType != "sale" {
		return httpx.Fail(c, apperr.Validation("property is not for sale"))
	}
	if status != "valid" {
		return httpx.Fail(c, apperr.StateConflict("property is not available"))
	}
	if sellerID == buyerID {
		return httpx.Fail(c, apperr.Validation("cannot buy your own property"))
	}

	price, _ := decimal.NewFromString(priceStr)
	if price.Sign() <= 0 {
		return httpx.Fail(c, apperr.StateConflict("property has no sale price"))
	}
	if req.ExpectedPrice != "" {
		expected, ok := money.FromString(req.ExpectedPrice)
		if !ok || !money.EqualWithin(expected, price, StaleTolerance) {
			return httpx.Fail(c, apperr.Validation("price has changed, refresh and retry"))
		}
	}

	wallet, err := ledger.ForUpdate(ctx, tx, buyerID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	walletUse, shortfall := payments.Plan(wallet.Balance, price)

	// ---- Wallet covers everything: settle synchronously. ----
	if shortfall.IsZero() {
		purchaseID := uuid.New().String()
		if _, err := ledger.Debit(ctx, tx, wallet, price, ledger.TxPayment, purchaseID, "property_purchase", "property purchase"); err != nil {
			return httpx.Fail(c, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO property_purchases
                (id, property_id, buyer_id, seller_id, amount, status, idempotency_key, wallet_amount)
             VALUES ($1, $2, $3, $4, $5, 'paid', $6, $5)`,
			purchaseID, propertyID, buyerID, sellerID, price.String(), req.IdempotencyKey,
		); err != nil {
			return httpx.Fail(c, apperr.Internal("purchase record failed", err))
		}
		release := time.Now().Add(config.Current.PurchaseCancelWindow)
		if _, err := escrow.LockPurchase(ctx, tx, purchaseID, propertyID, buyerID, sellerID, price, release); err != nil {
			return httpx.Fail(c, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE properties SET status = 'pending_sale' WHERE id = $1`,
			propertyID,
		); err != nil {
			return httpx.Fail(c, apperr.Internal("property update failed", err))
		}
		if err = tx.Commit(ctx); err != nil {
			return httpx.Fail(c, apperr.Internal("commit failed", err))
		}

		_ = alerts.Notify(sellerID, alerts.PurposePurchasePaid, "Your property received a paid purchase", purchaseID, buyerID)
		_ = alerts.Notify(buyerID, alerts.PurposePurchasePaid, "Your purchase payment is in escrow", purchaseID, "")

		return httpx.OK(c, echo.Map{
			"purchase_id":          purchaseID,
			"status":               "paid",
			"wallet_used":          price,
			"gateway_amount":       decimal.Zero,
			"scheduled_release_at": release,
		})
	}

	// ---- Mixed funding: hold the listing, reserve the wallet portion,
	// charge the gateway for the shortfall. ----
	purchaseID, merchantOrderID, err := upsertPendingPurchase(ctx, tx, req.IdempotencyKey, buyerID, sellerID, propertyID, price, walletUse, shortfall, wallet.ID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE properties SET status = 'pending_sale' WHERE id = $1`,
		propertyID,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("property update failed", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	charge, err := gateway.New().CreatePaymentKey(ctx, gateway.ChargeRequest{
		Amount:          shortfall,
		UserID:          buyerID,
		IdempotencyKey:  req.IdempotencyKey,
		MerchantOrderID: merchantOrderID,
	})
	if err != nil {
		payments.AbandonPendingCharge(ctx, "property_purchases", purchaseID)
		return httpx.Fail(c, err)
	}

	return httpx.OK(c, echo.Map{
		"purchase_id":       purchaseID,
		"status":            "awaiting_gateway",
		"iframe_url":        charge.IframeURL,
		"wallet_reserved":   walletUse,
		"gateway_amount":    shortfall,
		"merchant_order_id": merchantOrderID,
	})
}

func upsertPendingPurchase(ctx context.Context, tx pgx.Tx, idempotencyKey, buyerID, sellerID, propertyID string, price, walletUse, shortfall decimal.Decimal, walletID string) (purchaseID, merchantOrderID string, err error) {
	var existingID, existingMOID string
	err = tx.QueryRow(ctx,
		`SELECT id, COALESCE(merchant_order_id, '') FROM property_purchases
         WHERE idempotency_key = $1 AND status = 'pending' FOR UPDATE`,
		idempotencyKey,
	).Scan(&existingID, &existingMOID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", "", apperr.Internal("idempotency lookup failed", err)
	}

	if existingID != "" {
		if _, err := tx.Exec(ctx,
			`UPDATE property_purchases SET amount = $1, wallet_amount = $2, gateway_amount = $3, updated_at = NOW()
             WHERE id = $4`,
			price.String(), walletUse.String(), shortfall.String(), existingID,
		); err != nil {
			return "", "", apperr.Internal("purchase update failed", err)
		}
		// The replanned wallet portion may differ from the first attempt:
		// a top-up since then means a reservation where none existed, a
		// spend-down means none where one did.
		if walletUse.Sign() > 0 {
			tag, err := tx.Exec(ctx,
				`UPDATE wallet_reservations SET amount = $1, updated_at = NOW()
                 WHERE ref_id = $2 AND ref_type = 'property_purchase' AND status = 'reserved'`,
				walletUse.String(), existingID,
			)
			if err != nil {
				return "", "", apperr.Internal("reservation update failed", err)
			}
			if tag.RowsAffected() == 0 {
				if _, err := payments.Reserve(ctx, tx, walletID, walletUse, existingID, "property_purchase"); err != nil {
					return "", "", err
				}
			}
		} else {
			if _, err := tx.Exec(ctx,
				`UPDATE wallet_reservations SET status = 'released', updated_at = NOW()
                 WHERE ref_id = $1 AND ref_type = 'property_purchase' AND status = 'reserved'`,
				existingID,
			); err != nil {
				return "", "", apperr.Internal("reservation release failed", err)
			}
		}
		return existingID, existingMOID, nil
	}

	purchaseID = uuid.New().String()
	merchantOrderID = gateway.MerchantOrderID(gateway.FlowBuy, propertyID, buyerID)
	if _, err := tx.Exec(ctx,
		`INSERT INTO property_purchases
            (id, property_id, buyer_id, seller_id, amount, status, payment_gateway,
             merchant_order_id, idempotency_key, wallet_amount, gateway_amount)
         VALUES ($1, $2, $3, $4, $5, 'pending', 'gateway', $6, $7, $8, $9)`,
		purchaseID, propertyID, buyerID, sellerID, price.String(), merchantOrderID,
		idempotencyKey, walletUse.String(), shortfall.String(),
	); err != nil {
		return "", "", apperr.Internal("purchase create failed", err)
	}
	if walletUse.Sign() > 0 {
		if _, err := payments.Reserve(ctx, tx, walletID, walletUse, purchaseID, "property_purchase"); err != nil {
			return "", "", err
		}
	}
	return purchaseID, merchantOrderID, nil
}

// =========================
// Cancel - Buyer backs out within the cancellation window
// =========================
func Cancel(c echo.Context) error {
	buyerID, _ := c.Get("user_id").(string)
	id := c.Param("id")

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	var propertyID, purchaseBuyerID, sellerID, status string
	err = tx.QueryRow(ctx,
		`SELECT property_id, buyer_id, seller_id, status
         FROM property_purchases WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&propertyID, &purchaseBuyerID, &sellerID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return httpx.Fail(c, apperr.NotFound("purchase not found"))
	}
	if err != nil {
		return httpx.Fail(c, apperr.Internal("purchase lookup failed", err))
	}
	if purchaseBuyerID != buyerID {
		return httpx.Fail(c, apperr.Authorization("only the buyer may cancel"))
	}
	if status != "paid" {
		return httpx.Fail(c, apperr.StateConflict("purchase is not cancellable"))
	}

	e, err := escrow.PurchaseForUpdate(ctx, tx, id)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if time.Now().After(e.ScheduledReleaseAt) {
		return httpx.Fail(c, apperr.StateConflict("cancellation window has closed"))
	}

	wallet, err := ledger.ForUpdate(ctx, tx, buyerID)
	if err != nil {
		return httpx.Fail(c, err)
	}
	if _, err := ledger.Credit(ctx, tx, wallet, e.Amount, ledger.TxRefund, id, "property_purchase", "purchase cancelled by buyer"); err != nil {
		return httpx.Fail(c, err)
	}
	if err := escrow.MarkPurchaseReleased(ctx, tx, e, escrow.StatusRefundedToBuyer, "buyer cancelled within window"); err != nil {
		return httpx.Fail(c, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE property_purchases SET status = 'cancelled', updated_at = NOW() WHERE id = $1`,
		id,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("purchase update failed", err))
	}
	if _, err := tx.Exec(ctx,
		`UPDATE properties SET status = 'valid' WHERE id = $1 AND status = 'pending_sale'`,
		propertyID,
	); err != nil {
		return httpx.Fail(c, apperr.Internal("property update failed", err))
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	_ = alerts.Notify(sellerID, alerts.PurposePurchaseCancel, "A purchase of your property was cancelled", id, buyerID)
	_ = alerts.Notify(buyerID, alerts.PurposePurchaseCancel, "Your purchase was cancelled and refunded to your wallet", id, "")

	return httpx.OK(c, echo.Map{"status": "cancelled", "refunded": e.Amount})
}

// =========================
// GetUserPurchases - Buyer's purchase history
// =========================
func GetUserPurchases(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, property_id, seller_id, amount::text, status,
                COALESCE(transaction_ref, ''), created_at
         FROM property_purchases WHERE buyer_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("purchase query failed", err))
	}
	defer rows.Close()

	out := []echo.Map{}
	for rows.Next() {
		var id, propertyID, sellerID, amount, status, txRef string
		var createdAt time.Time
		if err := rows.Scan(&id, &propertyID, &sellerID, &amount, &status, &txRef, &createdAt); err != nil {
			return httpx.Fail(c, apperr.Internal("purchase scan failed", err))
		}
		amountD, _ := decimal.NewFromString(amount)
		out = append(out, echo.Map{
			"id":              id,
			"property_id":     propertyID,
			"seller_id":       sellerID,
			"amount":          amountD,
			"status":          status,
			"transaction_ref": txRef,
			"created_at":      createdAt,
		})
	}
	return httpx.OK(c, echo.Map{"purchases": out})
}
