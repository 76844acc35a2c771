package rentals

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/renthavenhq/renthaven/internal/db"
	"github.com/renthavenhq/renthaven/internal/ledger"
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

func seedConfirmedRequest(t *testing.T, renterID string) (propertyID, requestID string) {
	t.Helper()
	ctx := context.Background()
	ownerID := seedUser(t, "owner")
	propertyID = uuid.New().String()
	requestID = uuid.New().String()

	_, err := db.Conn.Exec(ctx,
		`INSERT INTO properties (id, owner_id, title, listing_type, nightly_price, deposit)
         VALUES ($1, $2, 'test flat', 'rent', 100, 50)`,
		propertyID, ownerID,
	)
	require.NoError(t, err)
	_, err = db.Conn.Exec(ctx,
		`INSERT INTO rent_requests (id, user_id, property_id, check_in, check_out, status, payment_deadline)
         VALUES ($1, $2, $3, $4, $5, 'confirmed', NOW() + INTERVAL '48 hours')`,
		requestID, renterID, propertyID,
		time.Now().AddDate(0, 0, 7), time.Now().AddDate(0, 0, 10),
	)
	require.NoError(t, err)
	return propertyID, requestID
}

func reservedAmount(t *testing.T, refID, refType string) (decimal.Decimal, bool) {
	t.Helper()
	var amount string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT amount::text FROM wallet_reservations
         WHERE ref_id = $1 AND ref_type = $2 AND status = 'reserved'`,
		refID, refType,
	).Scan(&amount)
	if err != nil {
		return decimal.Zero, false
	}
	return decimal.RequireFromString(amount), true
}

// A retry under the same idempotency key replans the wallet/gateway
// split from the current balance. The reservation has to follow that
// replan: appear when the wallet portion becomes positive, go away when
// it drops back to zero.
func TestPendingRentPurchaseRetryTracksWalletPortion(t *testing.T) {
	testDB(t)
	ctx := context.Background()
	renterID := seedUser(t, "renter")
	_, requestID := seedConfirmedRequest(t, renterID)
	key := uuid.New().String()
	total := decimal.NewFromInt(350)

	tx, err := db.Conn.Begin(ctx)
	require.NoError(t, err)
	wallet, err := ledger.ForUpdate(ctx, tx, renterID)
	require.NoError(t, err)

	// First attempt: empty wallet, everything goes to the gateway.
	firstID, firstMOID, err := upsertPendingRentPurchase(ctx, tx, key, renterID, requestID,
		total, decimal.Zero, total, wallet.ID)
	require.NoError(t, err)
	require.NotEmpty(t, firstMOID)
	require.NoError(t, tx.Commit(ctx))

	_, found := reservedAmount(t, firstID, "purchase")
	require.False(t, found)

	// Retry after a top-up: same purchase, but now a wallet portion that
	// needs a reservation where none was created before.
	tx, err = db.Conn.Begin(ctx)
	require.NoError(t, err)
	secondID, secondMOID, err := upsertPendingRentPurchase(ctx, tx, key, renterID, requestID,
		total, decimal.NewFromInt(100), decimal.NewFromInt(250), wallet.ID)
	require.NoError(t, err)
	require.Equal(t, firstID, secondID)
	require.Equal(t, firstMOID, secondMOID)
	require.NoError(t, tx.Commit(ctx))

	amount, found := reservedAmount(t, firstID, "purchase")
	require.True(t, found)
	require.True(t, amount.Equal(decimal.NewFromInt(100)), "reserved %s", amount)

	// Retry after the wallet was spent down again: the stale reservation
	// is released, not left earmarked forever.
	tx, err = db.Conn.Begin(ctx)
	require.NoError(t, err)
	thirdID, _, err := upsertPendingRentPurchase(ctx, tx, key, renterID, requestID,
		total, decimal.Zero, total, wallet.ID)
	require.NoError(t, err)
	require.Equal(t, firstID, thirdID)
	require.NoError(t, tx.Commit(ctx))

	_, found = reservedAmount(t, firstID, "purchase")
	require.False(t, found)
}
