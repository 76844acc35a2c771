package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/money"
)

// ChargeRequest describes an outbound gateway charge.
type ChargeRequest struct {
	Amount          decimal.Decimal
	Currency        string
	UserID          string
	IdempotencyKey  string
	MerchantOrderID string
}

// Charge is the gateway's answer: an opaque payment key used to build
// the hosted-payment redirect.
type Charge struct {
	PaymentKey string `json:"payment_key"`
	IframeURL  string `json:"iframe_url"`
}

// Client talks to the external payment gateway. The zero-value methods
// read their endpoints from the environment; tests swap HTTPClient.
type Client struct {
	HTTPClient *http.Client
}

func New() *Client {
	return &Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

// CreatePaymentKey registers a charge with the gateway and returns the
// payment key plus the redirect URL for the shortfall amount.
func (g *Client) CreatePaymentKey(ctx context.Context, req ChargeRequest) (*Charge, error) {
	base := os.Getenv("GATEWAY_URL")
	if base == "" {
		base = "https://gateway.renthaven.dev"
	}
	currency := req.Currency
	if currency == "" {
		currency = "EGP"
	}

	body, _ := json.Marshal(map[string]any{
		"amount_cents":    money.ToCents(req.Amount),
		"currency":        currency,
		"user":            req.UserID,
		"idempotency_key": req.IdempotencyKey,
		"metadata": map[string]string{
			"flow":              flowOf(req.MerchantOrderID),
			"merchant_order_id": req.MerchantOrderID,
		},
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/payment_keys", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Gateway("gateway request build failed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+os.Getenv("GATEWAY_API_KEY"))

	resp, err := g.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Gateway("gateway unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperr.Gateway(fmt.Sprintf("gateway returned status %d", resp.StatusCode), nil)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Gateway("gateway response decode failed", err)
	}
	iframe := os.Getenv("GATEWAY_IFRAME_URL")
	if iframe == "" {
		iframe = base + "/v1/iframe"
	}
	return &Charge{
		PaymentKey: out.Token,
		IframeURL:  fmt.Sprintf("%s?payment_token=%s", iframe, out.Token),
	}, nil
}

func flowOf(merchantOrderID string) string {
	flow, _, _, err := ParseMerchantOrderID(merchantOrderID)
	if err != nil {
		return ""
	}
	return string(flow)
}
