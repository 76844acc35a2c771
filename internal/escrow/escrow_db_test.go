package escrow

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/renthavenhq/renthaven/internal/apperr"
	"github.com/renthavenhq/renthaven/internal/db"
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

func seedConfirmedRequest(t *testing.T) (renterID, requestID string) {
	t.Helper()
	ctx := context.Background()
	renterID = seedUser(t, "renter")
	ownerID := seedUser(t, "owner")
	propertyID := uuid.New().String()
	requestID = uuid.New().String()

	_, err := db.Conn.Exec(ctx,
		`INSERT INTO properties (id, owner_id, title, listing_type, nightly_price, deposit)
         VALUES ($1, $2, 'test flat', 'rent', 100, 50)`,
		propertyID, ownerID,
	)
	require.NoError(t, err)
	_, err = db.Conn.Exec(ctx,
		`INSERT INTO rent_requests (id, user_id, property_id, check_in, check_out, status)
         VALUES ($1, $2, $3, $4, $5, 'confirmed')`,
		requestID, renterID, propertyID,
		time.Now().AddDate(0, 0, 7), time.Now().AddDate(0, 0, 10),
	)
	require.NoError(t, err)
	return renterID, requestID
}

func TestRentalEscrowReleasesExactlyOnce(t *testing.T) {
	testDB(t)
	ctx := context.Background()
	_, requestID := seedConfirmedRequest(t)

	tx, err := db.Conn.Begin(ctx)
	require.NoError(t, err)
	_, err = LockRental(ctx, tx, requestID, decimal.NewFromInt(300), decimal.NewFromInt(50))
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx, err = db.Conn.Begin(ctx)
	require.NoError(t, err)
	b, err := RentalForUpdate(ctx, tx, requestID)
	require.NoError(t, err)
	require.NoError(t, MarkRentalReleased(ctx, tx, b, StatusRefundedToRenter))

	// A second attempt inside the same transaction hits the status guard.
	err = MarkRentalReleased(ctx, tx, b, StatusReleasedToOwner)
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidEscrowState, apperr.KindOf(err))
	require.NoError(t, tx.Commit(ctx))

	// After commit the released row can never be acquired for release again.
	tx, err = db.Conn.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	_, err = RentalForUpdate(ctx, tx, requestID)
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidEscrowState, apperr.KindOf(err))

	var status string
	err = db.Conn.QueryRow(ctx,
		`SELECT status FROM escrow_balances WHERE rent_request_id = $1`, requestID,
	).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, string(StatusRefundedToRenter), status)
}
