package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the overall checkout state. "rejected" exists only for
// historical rows; no transition sets it (owner rejection escalates to
// an agent instead of terminating).
type Status string

const (
	StatusPending       Status = "pending"
	StatusConfirmed     Status = "confirmed"
	StatusRejected      Status = "rejected"
	StatusAutoConfirmed Status = "auto_confirmed"
)

// Terminal reports whether no further checkout actions are permitted.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusAutoConfirmed
}

// Type classifies when the checkout was requested relative to the stay.
type Type string

const (
	TypeBeforeCheckin      Type = "before_checkin"
	TypeWithin1Day         Type = "within_1_day"
	TypeAfter1Day          Type = "after_1_day"
	TypeMonthlyMidContract Type = "monthly_mid_contract"
)

// OwnerConfirmation is the owner's sub-state, evolving semi-independently
// of the overall status.
type OwnerConfirmation string

const (
	OwnerNotRequired   OwnerConfirmation = "not_required"
	OwnerPending       OwnerConfirmation = "pending"
	OwnerConfirmed     OwnerConfirmation = "confirmed"
	OwnerRejected      OwnerConfirmation = "rejected"
	OwnerAutoConfirmed OwnerConfirmation = "auto_confirmed"
)

// Checkout is one rent request's dispute-resolution record.
type Checkout struct {
	ID                   string            `json:"id"`
	RentRequestID        string            `json:"rent_request_id"`
	RequesterID          string            `json:"requester_id"`
	Status               Status            `json:"status"`
	Type                 Type              `json:"type"`
	OwnerConfirmation    OwnerConfirmation `json:"owner_confirmation"`
	DepositReturnPercent *int              `json:"deposit_return_percent,omitempty"`
	RentReturned         bool              `json:"rent_returned"`
	DecidedBy            string            `json:"decided_by,omitempty"`
	DecidedAt            *time.Time        `json:"decided_at,omitempty"`
	DecisionOverride     bool              `json:"decision_override,omitempty"`
	OwnerNotes           string            `json:"owner_notes,omitempty"`
	AdminNote            string            `json:"admin_note,omitempty"`
	FinalRefundAmount    *decimal.Decimal  `json:"final_refund_amount,omitempty"`
	FinalPayoutAmount    *decimal.Decimal  `json:"final_payout_amount,omitempty"`
	TransactionRef       string            `json:"transaction_ref,omitempty"`
	RequestedAt          time.Time         `json:"requested_at"`
}

// AgentDecisionAllowed reports whether an agent may set the refund split:
// only when the owner was bypassed or has rejected, and no decision has
// been recorded yet.
func (ch *Checkout) AgentDecisionAllowed() bool {
	if ch.Status.Terminal() {
		return false
	}
	if ch.DecidedBy != "" {
		return false
	}
	return ch.OwnerConfirmation == OwnerNotRequired || ch.OwnerConfirmation == OwnerRejected
}
