package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyCallback(t *testing.T) {
	t.Setenv("GATEWAY_HMAC_SECRET", "test-secret")

	cb := Callback{
		MerchantOrderID: "rent-5f1c9a4e-0000-0000-0000-000000000001-5f1c9a4e-0000-0000-0000-000000000002-abcd1234",
		AmountCents:     15000,
		Success:         true,
		TransactionID:   "txn_123",
	}
	sig := SignCallback(cb, []byte("test-secret"))

	assert.True(t, VerifyCallback(cb, sig))
}

func TestVerifyCallback_RejectsTampering(t *testing.T) {
	t.Setenv("GATEWAY_HMAC_SECRET", "test-secret")

	cb := Callback{
		MerchantOrderID: "wallet-abc",
		AmountCents:     15000,
		Success:         true,
		TransactionID:   "txn_123",
	}
	sig := SignCallback(cb, []byte("test-secret"))

	// Flipping the outcome invalidates the signature.
	tampered := cb
	tampered.Success = false
	assert.False(t, VerifyCallback(tampered, sig))

	// So does changing the amount.
	tampered = cb
	tampered.AmountCents = 1
	assert.False(t, VerifyCallback(tampered, sig))

	assert.False(t, VerifyCallback(cb, "deadbeef"))
	assert.False(t, VerifyCallback(cb, ""))
}

func TestVerifyCallback_NoSecretConfigured(t *testing.T) {
	t.Setenv("GATEWAY_HMAC_SECRET", "")

	cb := Callback{MerchantOrderID: "rent-abc", AmountCents: 100, Success: true}
	sig := SignCallback(cb, []byte(""))

	// A missing secret fails closed rather than accepting everything.
	assert.False(t, VerifyCallback(cb, sig))
}

func TestSignCallback_WrongSecret(t *testing.T) {
	t.Setenv("GATEWAY_HMAC_SECRET", "real-secret")

	cb := Callback{MerchantOrderID: "buy-abc", AmountCents: 500, Success: true, TransactionID: "t1"}
	sig := SignCallback(cb, []byte("other-secret"))

	assert.False(t, VerifyCallback(cb, sig))
}
