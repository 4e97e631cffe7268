package models

import (
	"time"
)

// Ledger actions recorded in currency_transactions.
const (
	ActionPay      = "pay"
	ActionDeposit  = "deposit"
	ActionWithdraw = "withdraw"
	ActionDaily    = "daily"
)

// TransactionRecord is one append-only row in the transaction log. Records are
// never updated or deleted once written.
type TransactionRecord struct {
	ID             string    `json:"id" db:"id"`
	AccountID      string    `json:"account_id" db:"account_id"`
	Action         string    `json:"action" db:"action"`
	Amount         int64     `json:"amount" db:"amount"`
	CounterpartyID string    `json:"counterparty_id,omitempty" db:"counterparty_id"` // pay: the other leg
	Denomination   int64     `json:"denomination,omitempty" db:"denomination"`       // withdraw only
	Count          int64     `json:"count,omitempty" db:"count"`                     // withdraw only
	BalanceAfter   int64     `json:"balance_after" db:"balance_after"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// DailyClaimState is the per-account timestamp of the last reward claim.
type DailyClaimState struct {
	AccountID   string    `json:"account_id" db:"account_id"`
	LastClaimAt time.Time `json:"last_claim_at" db:"last_claim_at"`
}

// MobLimitState marks that an account hit its mob cap on a calendar date.
// One row per account; the date is overwritten on each new day.
type MobLimitState struct {
	AccountID   string `json:"account_id" db:"account_id"`
	DateReached string `json:"date_reached" db:"date_reached"` // YYYY-MM-DD
}
