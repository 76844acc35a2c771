package ledger

import (
	"context"
	"os"
	"testing"

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

func seedUser(t *testing.T) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.Conn.Exec(context.Background(),
		`INSERT INTO users (id, name, email, password, role) VALUES ($1, 'renter', $2, 'x', 'renter')`,
		id, id+"@test.local",
	)
	require.NoError(t, err)
	return id
}

func TestReplayReproducesBalance(t *testing.T) {
	testDB(t)
	ctx := context.Background()
	userID := seedUser(t)

	tx, err := db.Conn.Begin(ctx)
	require.NoError(t, err)
	w, err := ForUpdate(ctx, tx, userID)
	require.NoError(t, err)
	require.True(t, w.Balance.IsZero())

	_, err = Credit(ctx, tx, w, decimal.NewFromInt(100), TxTopup, "", "purchase", "top-up")
	require.NoError(t, err)
	_, err = Debit(ctx, tx, w, decimal.NewFromInt(40), TxPayment, "", "rent_request", "rent payment")
	require.NoError(t, err)
	_, err = Credit(ctx, tx, w, decimal.RequireFromString("12.34"), TxRefund, "", "checkout", "refund")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	require.Equal(t, "72.34", w.Balance.String())

	sum, err := Replay(ctx, db.Conn, w.ID)
	require.NoError(t, err)
	require.True(t, sum.Equal(w.Balance), "replay %s vs balance %s", sum, w.Balance)

	var stored string
	err = db.Conn.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE id = $1`, w.ID).Scan(&stored)
	require.NoError(t, err)
	require.Equal(t, w.Balance.String(), stored)
}

func TestDebitFailsOnInsufficientBalance(t *testing.T) {
	testDB(t)
	ctx := context.Background()
	userID := seedUser(t)

	tx, err := db.Conn.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	w, err := ForUpdate(ctx, tx, userID)
	require.NoError(t, err)
	_, err = Credit(ctx, tx, w, decimal.NewFromInt(10), TxTopup, "", "purchase", "top-up")
	require.NoError(t, err)

	_, err = Debit(ctx, tx, w, decimal.NewFromInt(11), TxPayment, "", "rent_request", "rent payment")
	require.Error(t, err)
	require.Equal(t, apperr.KindInsufficientFunds, apperr.KindOf(err))
	require.Equal(t, "10", w.Balance.String())
}
