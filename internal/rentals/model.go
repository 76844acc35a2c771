package rentals

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the rent request lifecycle state.
type Status string

const (
	StatusPending          Status = "pending"
	StatusConfirmed        Status = "confirmed"
	StatusRejected         Status = "rejected"
	StatusCancelled        Status = "cancelled"
	StatusCancelledByOwner Status = "cancelled_by_owner"
	StatusPaid             Status = "paid"
	StatusCompleted        Status = "completed"
)

// Actor identifies who is driving a transition.
type Actor string

const (
	ActorRenter Actor = "renter"
	ActorOwner  Actor = "owner"
	ActorSystem Actor = "system"
)

// transitions is the single source of truth for the lifecycle. Handlers
// never re-derive legality with ad-hoc status checks.
var transitions = map[Status]map[Status]Actor{
	StatusPending: {
		StatusConfirmed: ActorOwner,
		StatusRejected:  ActorOwner,
		StatusCancelled: ActorRenter,
	},
	StatusConfirmed: {
		StatusPaid:             ActorRenter,
		StatusCancelled:        ActorRenter, // also ActorSystem on deadline expiry
		StatusCancelledByOwner: ActorOwner,
	},
	StatusPaid: {
		StatusCompleted: ActorSystem,
	},
}

// CanTransition reports whether actor may move a request from one
// status to another. The system actor may also apply the renter's
// confirmed->cancelled edge (deadline expiry).
func CanTransition(from, to Status, actor Actor) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	owner, ok := edges[to]
	if !ok {
		return false
	}
	if owner == actor {
		return true
	}
	return actor == ActorSystem && from == StatusConfirmed && to == StatusCancelled
}

// RentRequest is one renter's request for one property and date range.
type RentRequest struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	PropertyID        string          `json:"property_id"`
	CheckIn           time.Time       `json:"check_in"`
	CheckOut          time.Time       `json:"check_out"`
	RentAmount        decimal.Decimal `json:"rent_amount"`
	DepositAmount     decimal.Decimal `json:"deposit_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Status            Status          `json:"status"`
	PaymentDeadline   *time.Time      `json:"payment_deadline,omitempty"`
	BlockedUntil      *time.Time      `json:"blocked_until,omitempty"`
	CooldownExpiresAt *time.Time      `json:"cooldown_expires_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Nights returns the stay length for [check_in, check_out).
func Nights(checkIn, checkOut time.Time) int {
	return int(checkOut.Sub(checkIn).Hours() / 24)
}
