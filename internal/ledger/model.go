package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a user's spendable balance. One per user, created lazily.
// The balance is a cache over the wallet_transactions log; replaying the
// log from zero must reproduce it exactly.
type Wallet struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// TxType classifies a ledger entry.
type TxType string

const (
	TxTopup           TxType = "topup"
	TxPayment         TxType = "payment"
	TxRefund          TxType = "refund"
	TxPayout          TxType = "payout"
	TxWithdrawal      TxType = "withdrawal"
	TxRentPartial     TxType = "rent_partial"
	TxPurchasePartial TxType = "purchase_partial"
)

// Transaction is an immutable ledger entry. Amount is signed: credits
// are positive, debits negative.
type Transaction struct {
	ID            string          `json:"id"`
	WalletID      string          `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	Type          TxType          `json:"type"`
	RefID         string          `json:"ref_id,omitempty"`
	RefType       string          `json:"ref_type,omitempty"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
