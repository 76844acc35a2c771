package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"os"
)

// Callback is the webhook payload the gateway posts after a charge
// settles or fails.
type Callback struct {
	MerchantOrderID string `json:"merchant_order_id"`
	AmountCents     int64  `json:"amount_cents"`
	Success         bool   `json:"success"`
	TransactionID   string `json:"id"`
}

// SignCallback computes the HMAC-SHA512 over the callback's fields in
// their documented order. Exported for tests and for the sandbox tool
// that simulates gateway posts.
func SignCallback(cb Callback, secret []byte) string {
	payload := fmt.Sprintf("%d%s%s%t", cb.AmountCents, cb.TransactionID, cb.MerchantOrderID, cb.Success)
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback checks the webhook signature. Unsigned or mis-signed
// callbacks must be rejected before any state is touched.
func VerifyCallback(cb Callback, signature string) bool {
	secret := []byte(os.Getenv("GATEWAY_HMAC_SECRET"))
	if len(secret) == 0 {
		return false
	}
	expected := SignCallback(cb, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
