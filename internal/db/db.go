package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres and bootstraps the schema.
func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	ensureCoreTables()
	ensureFinanceTables()
	ensureNotificationsTable()
}

// ensureCoreTables creates users, properties and rent_requests.
func ensureCoreTables() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'renter'
                CHECK (role IN ('renter','owner','agent','admin')),
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE IF NOT EXISTS properties (
            id UUID PRIMARY KEY,
            owner_id UUID NOT NULL REFERENCES users(id),
            title TEXT NOT NULL,
            listing_type TEXT NOT NULL CHECK (listing_type IN ('rent','sale')),
            status TEXT NOT NULL DEFAULT 'valid'
                CHECK (status IN ('valid','pending_sale','sold','unlisted')),
            nightly_price NUMERIC(14,2) NOT NULL DEFAULT 0,
            monthly_price NUMERIC(14,2) NOT NULL DEFAULT 0,
            deposit NUMERIC(14,2) NOT NULL DEFAULT 0,
            sale_price NUMERIC(14,2) NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE IF NOT EXISTS rent_requests (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id),
            property_id UUID NOT NULL REFERENCES properties(id),
            check_in DATE NOT NULL,
            check_out DATE NOT NULL,
            rent_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
            deposit_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
            total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending','confirmed','rejected','cancelled',
                                  'cancelled_by_owner','paid','completed')),
            payment_deadline TIMESTAMPTZ NULL,
            blocked_until TIMESTAMPTZ NULL,
            cooldown_expires_at TIMESTAMPTZ NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_rent_requests_property
            ON rent_requests(property_id, status);
        CREATE INDEX IF NOT EXISTS idx_rent_requests_deadline
            ON rent_requests(status, payment_deadline);
    `)
	if err != nil {
		log.Printf("failed to ensure core tables: %v", err)
	}
}

// ensureFinanceTables creates the ledger, escrow, purchase, reservation,
// checkout and withdrawal tables.
func ensureFinanceTables() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS wallets (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL UNIQUE REFERENCES users(id),
            balance NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE IF NOT EXISTS wallet_transactions (
            id UUID PRIMARY KEY,
            wallet_id UUID NOT NULL REFERENCES wallets(id),
            amount NUMERIC(14,2) NOT NULL,
            type TEXT NOT NULL
                CHECK (type IN ('topup','payment','refund','payout','withdrawal',
                                'rent_partial','purchase_partial')),
            ref_id UUID NULL,
            ref_type TEXT NULL,
            balance_before NUMERIC(14,2) NOT NULL,
            balance_after NUMERIC(14,2) NOT NULL,
            description TEXT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet
            ON wallet_transactions(wallet_id, created_at);

        CREATE TABLE IF NOT EXISTS wallet_reservations (
            id UUID PRIMARY KEY,
            wallet_id UUID NOT NULL REFERENCES wallets(id),
            amount NUMERIC(14,2) NOT NULL,
            status TEXT NOT NULL DEFAULT 'reserved'
                CHECK (status IN ('reserved','committed','released')),
            ref_id UUID NOT NULL,
            ref_type TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_wallet_reservations_ref
            ON wallet_reservations(ref_id, ref_type);

        CREATE TABLE IF NOT EXISTS escrow_balances (
            id UUID PRIMARY KEY,
            rent_request_id UUID NOT NULL UNIQUE REFERENCES rent_requests(id),
            rent_amount NUMERIC(14,2) NOT NULL,
            deposit_amount NUMERIC(14,2) NOT NULL,
            total_amount NUMERIC(14,2) NOT NULL,
            status TEXT NOT NULL DEFAULT 'locked'
                CHECK (status IN ('locked','released_to_owner','refunded_to_renter')),
            locked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            released_at TIMESTAMPTZ NULL
        );

        CREATE TABLE IF NOT EXISTS property_escrows (
            id UUID PRIMARY KEY,
            property_purchase_id UUID NOT NULL UNIQUE,
            property_id UUID NOT NULL REFERENCES properties(id),
            buyer_id UUID NOT NULL REFERENCES users(id),
            seller_id UUID NOT NULL REFERENCES users(id),
            amount NUMERIC(14,2) NOT NULL,
            status TEXT NOT NULL DEFAULT 'locked'
                CHECK (status IN ('locked','released_to_seller','refunded_to_buyer')),
            locked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            scheduled_release_at TIMESTAMPTZ NOT NULL,
            released_at TIMESTAMPTZ NULL,
            release_reason TEXT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_property_escrows_release
            ON property_escrows(status, scheduled_release_at);

        CREATE TABLE IF NOT EXISTS purchases (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id),
            kind TEXT NOT NULL
                CHECK (kind IN ('rent_payment','wallet_topup','refund','payout')),
            ref_id UUID NULL,
            amount NUMERIC(14,2) NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending','paid','failed','expired')),
            payment_gateway TEXT NULL,
            transaction_ref TEXT NULL,
            merchant_order_id TEXT NULL,
            idempotency_key TEXT NULL,
            wallet_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
            gateway_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_purchases_merchant_order
            ON purchases(merchant_order_id);
        CREATE INDEX IF NOT EXISTS idx_purchases_idempotency
            ON purchases(idempotency_key);

        CREATE TABLE IF NOT EXISTS property_purchases (
            id UUID PRIMARY KEY,
            property_id UUID NOT NULL REFERENCES properties(id),
            buyer_id UUID NOT NULL REFERENCES users(id),
            seller_id UUID NOT NULL REFERENCES users(id),
            amount NUMERIC(14,2) NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending','paid','failed','expired','cancelled','completed')),
            payment_gateway TEXT NULL,
            transaction_ref TEXT NULL,
            merchant_order_id TEXT NULL,
            idempotency_key TEXT NULL,
            wallet_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
            gateway_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_property_purchases_merchant_order
            ON property_purchases(merchant_order_id);

        CREATE TABLE IF NOT EXISTS checkouts (
            id UUID PRIMARY KEY,
            rent_request_id UUID NOT NULL UNIQUE REFERENCES rent_requests(id),
            requester_id UUID NOT NULL REFERENCES users(id),
            status TEXT NOT NULL DEFAULT 'pending'
                CHECK (status IN ('pending','confirmed','rejected','auto_confirmed')),
            type TEXT NOT NULL
                CHECK (type IN ('before_checkin','within_1_day','after_1_day',
                                'monthly_mid_contract')),
            owner_confirmation TEXT NOT NULL DEFAULT 'pending'
                CHECK (owner_confirmation IN ('not_required','pending','confirmed',
                                              'rejected','auto_confirmed')),
            deposit_return_percent INT NULL
                CHECK (deposit_return_percent BETWEEN 0 AND 100),
            rent_returned BOOLEAN NOT NULL DEFAULT FALSE,
            decided_by UUID NULL REFERENCES users(id),
            decided_at TIMESTAMPTZ NULL,
            decision_override BOOLEAN NOT NULL DEFAULT FALSE,
            owner_notes TEXT NULL,
            admin_note TEXT NULL,
            final_refund_amount NUMERIC(14,2) NULL,
            final_payout_amount NUMERIC(14,2) NULL,
            transaction_ref TEXT NULL,
            requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_checkouts_pending
            ON checkouts(status, owner_confirmation, requested_at);

        CREATE TABLE IF NOT EXISTS withdrawal_requests (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id),
            amount NUMERIC(14,2) NOT NULL,
            account_details TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'processing'
                CHECK (status IN ('processing','completed','failed')),
            reference TEXT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_user
            ON withdrawal_requests(user_id, created_at);
    `)
	if err != nil {
		log.Printf("failed to ensure finance tables: %v", err)
	}
}

// ensureNotificationsTable creates notifications table if it doesn't exist
func ensureNotificationsTable() {
	ctx := context.Background()
	var exists bool
	_ = Conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.tables
            WHERE table_schema = 'public' AND table_name = 'notifications'
        )`).Scan(&exists)
	if exists {
		return
	}
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            purpose TEXT NOT NULL,
            message TEXT NOT NULL,
            entity_id UUID NULL,
            sender_id UUID NULL,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMPTZ NULL
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL;
    `)
	if err != nil {
		log.Printf("failed to create notifications table: %v", err)
	}
}
