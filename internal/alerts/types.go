package alerts

import "time"

// Task type constants
const (
	TaskNotify     = "notify:user"
	TaskAdminAlert = "notify:admin_alert"
)

// Purposes used across the settlement flows.
const (
	PurposeRentRequested    = "rent:requested"
	PurposeRentConfirmed    = "rent:confirmed"
	PurposeRentRejected     = "rent:rejected"
	PurposeRentCancelled    = "rent:cancelled"
	PurposeRentPaid         = "rent:paid"
	PurposeRentExpired      = "rent:payment_expired"
	PurposeCheckoutOpened   = "checkout:opened"
	PurposeCheckoutDecided  = "checkout:decided"
	PurposeSettlementRefund = "settlement:refund"
	PurposeSettlementPayout = "settlement:payout"
	PurposePurchasePaid     = "purchase:paid"
	PurposePurchaseCancel   = "purchase:cancelled"
	PurposePurchaseReleased = "purchase:released"
	PurposeWithdrawal       = "wallet:withdrawal"
	PurposeTopup            = "wallet:topup"
)

// NotifyPayload carries one user notification through the queue.
type NotifyPayload struct {
	RecipientID string    `json:"recipient_id"`
	Purpose     string    `json:"purpose"`
	Message     string    `json:"message"`
	EntityID    string    `json:"entity_id,omitempty"`
	SenderID    string    `json:"sender_id,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// AdminAlertPayload flags an event for the operations inbox.
type AdminAlertPayload struct {
	ActorID  string    `json:"actor_id"`
	Severity string    `json:"severity"` // info|warning|critical
	Message  string    `json:"message"`
	SentAt   time.Time `json:"sent_at"`
}
