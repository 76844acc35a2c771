package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/gateway"
	"github.com/renthavenhq/renthaven/internal/httpx"
	"github.com/renthavenhq/renthaven/internal/money"
	"github.com/renthavenhq/renthaven/internal/payments"
)

// =========================
// TopupInit - Start a gateway-funded wallet top-up
// =========================
//
// The wallet is credited only when the gateway callback confirms the
// charge; this just records the pending purchase and hands back the
// payment iframe.
func TopupInit(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)

	var req struct {
		Amount         string `json:"amount"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := c.Bind(&req); err != nil || req.IdempotencyKey == "" {
		return httpx.Fail(c, apperr.Validation("idempotency_key is required"))
	}
	amount, ok := money.FromString(req.Amount)
	if !ok || amount.Sign() <= 0 {
		return httpx.Fail(c, apperr.Validation("amount must be a positive number"))
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return httpx.Fail(c, apperr.Internal("transaction start failed", err))
	}
	defer tx.Rollback(ctx)

	// Reuse an existing pending top-up for the same idempotency key.
	var purchaseID, merchantOrderID string
	err = tx.QueryRow(ctx,
		`SELECT id, COALESCE(merchant_order_id, '') FROM purchases
         WHERE idempotency_key = $1 AND status = 'pending' FOR UPDATE`,
		req.IdempotencyKey,
	).Scan(&purchaseID, &merchantOrderID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return httpx.Fail(c, apperr.Internal("idempotency lookup failed", err))
	}
	if errors.Is(err, pgx.ErrNoRows) {
		purchaseID = uuid.New().String()
		merchantOrderID = gateway.MerchantOrderID(gateway.FlowWallet, purchaseID, userID)
		if _, err := tx.Exec(ctx,
			`INSERT INTO purchases
                (id, user_id, kind, amount, status, payment_gateway, merchant_order_id,
                 idempotency_key, gateway_amount)
             VALUES ($1, $2, 'wallet_topup', $3, 'pending', 'gateway', $4, $5, $3)`,
			purchaseID, userID, amount.String(), merchantOrderID, req.IdempotencyKey,
		); err != nil {
			return httpx.Fail(c, apperr.Internal("topup record failed", err))
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return httpx.Fail(c, apperr.Internal("commit failed", err))
	}

	charge, err := gateway.New().CreatePaymentKey(ctx, gateway.ChargeRequest{
		Amount:          amount,
		UserID:          userID,
		IdempotencyKey:  req.IdempotencyKey,
		MerchantOrderID: merchantOrderID,
	})
	if err != nil {
		payments.AbandonPendingCharge(ctx, "purchases", purchaseID)
		return httpx.Fail(c, err)
	}

	return httpx.OK(c, echo.Map{
		"purchase_id":       purchaseID,
		"status":            "awaiting_gateway",
		"iframe_url":        charge.IframeURL,
		"merchant_order_id": merchantOrderID,
	})
}
