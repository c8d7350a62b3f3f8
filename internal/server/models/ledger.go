// Package models defines server-side data models persisted in the database.
package models

import "time"

// TransactionType tags the cause of a ledger entry.
type TransactionType string

const (
	TransactionSignupBonus    TransactionType = "signup_bonus"
	TransactionTaskBounty     TransactionType = "task_bounty"
	TransactionTaskCompletion TransactionType = "task_completion"
)

// LedgerEntry is an immutable record of one directional coin movement.
// FromUserID is nil for system grants. Amount is always positive.
type LedgerEntry struct {
	ID          string
	FromUserID  *string
	ToUserID    string
	Amount      int64
	Type        TransactionType
	TaskID      *string
	Description string
	CreatedAt   time.Time
}

// BalanceDrift reports a user whose stored balance disagrees with the ledger.
type BalanceDrift struct {
	UserID        string
	UserName      string
	CoinBalance   int64
	LedgerBalance int64
}

// Delta is the stored balance minus the ledger-derived balance.
func (d *BalanceDrift) Delta() int64 {
	return d.CoinBalance - d.LedgerBalance
}
