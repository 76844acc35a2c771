package payments

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/gateway"
)

// Tests below run against a real Postgres and are skipped unless
// TEST_DATABASE_URL is set.

func testDB(t *testing.T) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	t.Setenv("DATABASE_URL", dsn)
	if db.Conn == nil {
		db.Init()
	}
}

func seedUser(t *testing.T, role string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.Conn.Exec(context.Background(),
		`INSERT INTO users (id, name, email, password, role) VALUES ($1, $2, $3, 'x', $2)`,
		id, role, id+"@test.local",
	)
	require.NoError(t, err)
	return id
}

func seedProperty(t *testing.T, ownerID string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.Conn.Exec(context.Background(),
		`INSERT INTO properties (id, owner_id, title, listing_type, nightly_price, deposit)
         VALUES ($1, $2, 'test flat', 'rent', 100, 50)`,
		id, ownerID,
	)
	require.NoError(t, err)
	return id
}

func seedRequest(t *testing.T, renterID, propertyID, status string, checkIn, checkOut time.Time) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.Conn.Exec(context.Background(),
		`INSERT INTO rent_requests
            (id, user_id, property_id, check_in, check_out, rent_amount, deposit_amount, total_amount, status)
         VALUES ($1, $2, $3, $4, $5, 300, 50, 350, $6)`,
		id, renterID, propertyID, checkIn, checkOut, status,
	)
	require.NoError(t, err)
	return id
}

func seedPendingRentCharge(t *testing.T, renterID, requestID string, gatewayAmount decimal.Decimal) (purchaseID, merchantOrderID string) {
	t.Helper()
	purchaseID = uuid.New().String()
	merchantOrderID = gateway.MerchantOrderID(gateway.FlowRent, requestID, renterID)
	_, err := db.Conn.Exec(context.Background(),
		`INSERT INTO purchases
            (id, user_id, kind, ref_id, amount, status, payment_gateway, merchant_order_id,
             idempotency_key, wallet_amount, gateway_amount)
         VALUES ($1, $2, 'rent_payment', $3, $4, 'pending', 'gateway', $5, $6, 0, $4)`,
		purchaseID, renterID, requestID, gatewayAmount.String(), merchantOrderID, uuid.New().String(),
	)
	require.NoError(t, err)
	return purchaseID, merchantOrderID
}

func walletBalance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	var s string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT balance::text FROM wallets WHERE user_id = $1`, userID,
	).Scan(&s)
	require.NoError(t, err)
	return decimal.RequireFromString(s)
}

// Two overlapping requests must never both reach paid. When the rival
// request pays wallet-only while this one's gateway charge is in
// flight, the success callback has to refund instead of settling.
func TestRentCallbackRefundsWhenDatesAlreadyPaid(t *testing.T) {
	testDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, "owner")
	propertyID := seedProperty(t, ownerID)
	winner := seedUser(t, "renter")
	loser := seedUser(t, "renter")

	checkIn := time.Now().AddDate(0, 0, 7)
	checkOut := time.Now().AddDate(0, 0, 10)
	seedRequest(t, winner, propertyID, "paid", checkIn, checkOut)
	loserRequest := seedRequest(t, loser, propertyID, "confirmed", checkIn.AddDate(0, 0, 1), checkOut.AddDate(0, 0, 1))

	amount := decimal.NewFromInt(350)
	purchaseID, merchantOrderID := seedPendingRentCharge(t, loser, loserRequest, amount)

	cb := gateway.Callback{
		MerchantOrderID: merchantOrderID,
		AmountCents:     35000,
		Success:         true,
		TransactionID:   "txn-overlap-1",
	}
	require.NoError(t, reconcileRentPayment(ctx, cb, loserRequest, loser))

	var purchaseStatus string
	require.NoError(t, db.Conn.QueryRow(ctx,
		`SELECT status FROM purchases WHERE id = $1`, purchaseID).Scan(&purchaseStatus))
	require.Equal(t, "expired", purchaseStatus)

	// The charge came back as a wallet refund, not a booking.
	require.True(t, walletBalance(t, loser).Equal(amount))

	var rrStatus string
	require.NoError(t, db.Conn.QueryRow(ctx,
		`SELECT status FROM rent_requests WHERE id = $1`, loserRequest).Scan(&rrStatus))
	require.NotEqual(t, "paid", rrStatus)

	var escrows int
	require.NoError(t, db.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM escrow_balances WHERE rent_request_id = $1`, loserRequest).Scan(&escrows))
	require.Zero(t, escrows)
}

func TestRentCallbackSettlesWhenDatesFree(t *testing.T) {
	testDB(t)
	ctx := context.Background()
	ownerID := seedUser(t, "owner")
	propertyID := seedProperty(t, ownerID)
	renterID := seedUser(t, "renter")

	requestID := seedRequest(t, renterID, propertyID, "confirmed",
		time.Now().AddDate(0, 0, 7), time.Now().AddDate(0, 0, 10))
	amount := decimal.NewFromInt(350)
	purchaseID, merchantOrderID := seedPendingRentCharge(t, renterID, requestID, amount)

	cb := gateway.Callback{
		MerchantOrderID: merchantOrderID,
		AmountCents:     35000,
		Success:         true,
		TransactionID:   "txn-settle-1",
	}
	require.NoError(t, reconcileRentPayment(ctx, cb, requestID, renterID))

	var purchaseStatus, rrStatus string
	require.NoError(t, db.Conn.QueryRow(ctx,
		`SELECT status FROM purchases WHERE id = $1`, purchaseID).Scan(&purchaseStatus))
	require.Equal(t, "paid", purchaseStatus)
	require.NoError(t, db.Conn.QueryRow(ctx,
		`SELECT status FROM rent_requests WHERE id = $1`, requestID).Scan(&rrStatus))
	require.Equal(t, "paid", rrStatus)

	var escrowStatus, total string
	require.NoError(t, db.Conn.QueryRow(ctx,
		`SELECT status, total_amount::text FROM escrow_balances WHERE rent_request_id = $1`,
		requestID).Scan(&escrowStatus, &total))
	require.Equal(t, "locked", escrowStatus)
	require.True(t, decimal.RequireFromString(total).Equal(amount))
}
