package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Policy holds the business constants that used to live inline in
// handlers. Every value can be overridden from the environment.
type Policy struct {
	// PaymentDeadline is how long a renter has to pay a confirmed request.
	PaymentDeadline time.Duration
	// CheckoutAutoConfirm is the owner-inactivity window after which a
	// pending checkout resolves in the renter's favor.
	CheckoutAutoConfirm time.Duration
	// RenterBlock is how long a rejected renter is blocked from the property.
	RenterBlock time.Duration
	// CancelCooldown applies after a renter cancels a confirmed request.
	CancelCooldown time.Duration
	// PurchaseCancelWindow is the buyer's unilateral-cancellation window
	// on a property purchase escrow.
	PurchaseCancelWindow time.Duration
	// SweepInterval is how often the deadline sweeps run. Deadline
	// guarantees are therefore "within N plus one sweep interval".
	SweepInterval time.Duration
	// WithdrawalsPerMonth caps withdrawal requests per calendar month.
	WithdrawalsPerMonth int
	// LongTermNights is the stay length at which a rental is treated as a
	// monthly contract.
	LongTermNights int
}

var Current Policy

// Load reads .env (if present) and populates Current with env overrides
// on top of the defaults.
func Load() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	Current = Policy{
		PaymentDeadline:      envHours("PAYMENT_DEADLINE_HOURS", 48),
		CheckoutAutoConfirm:  envHours("CHECKOUT_AUTOCONFIRM_HOURS", 72),
		RenterBlock:          envHours("RENTER_BLOCK_HOURS", 72),
		CancelCooldown:       envHours("CANCEL_COOLDOWN_HOURS", 24),
		PurchaseCancelWindow: envHours("PURCHASE_CANCEL_WINDOW_HOURS", 72),
		SweepInterval:        envMinutes("SWEEP_INTERVAL_MINUTES", 5),
		WithdrawalsPerMonth:  envInt("WITHDRAWALS_PER_MONTH", 3),
		LongTermNights:       envInt("LONG_TERM_NIGHTS", 30),
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: invalid %s=%q, using default %d", key, os.Getenv(key), def)
	}
	return def
}

func envHours(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Hour
}

func envMinutes(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Minute
}

// JWTSecret returns the signing secret for access tokens.
func JWTSecret() []byte {
	s := os.Getenv("JWT_SECRET")
	if s == "" {
		s = "supersecret"
	}
	return []byte(s)
}
