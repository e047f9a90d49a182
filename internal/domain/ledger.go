package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerReason classifies a ledger entry
type LedgerReason string

const (
	ReasonDirectCommission   LedgerReason = "direct-commission"
	ReasonAncestorCommission LedgerReason = "ancestor-commission"
	ReasonFreezeDeficit      LedgerReason = "freeze-deficit"
	ReasonUnfreezeCredit     LedgerReason = "unfreeze-credit"
	ReasonFreezeCancel       LedgerReason = "freeze-cancel"
	ReasonWithdrawal         LedgerReason = "withdrawal"
	ReasonDeposit            LedgerReason = "deposit"
)

// IsCommission reports whether the reason counts toward a submission's payout.
func (r LedgerReason) IsCommission() bool {
	return r == ReasonDirectCommission || r == ReasonAncestorCommission
}

// LedgerEntry is an append-only balance delta
type LedgerEntry struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	Delta        decimal.Decimal `json:"delta" db:"delta"`
	Reason       LedgerReason    `json:"reason" db:"reason"`
	Level        int             `json:"level" db:"level"`
	SubmissionID *string         `json:"submission_id,omitempty" db:"submission_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// EntryKey identifies an entry for idempotency checks.
type EntryKey struct {
	UserID       string
	SubmissionID string
	Reason       LedgerReason
	Level        int
}

// Key returns the idempotency key. Entries without a submission id have no
// stable key and are never deduplicated.
func (e *LedgerEntry) Key() (EntryKey, bool) {
	if e.SubmissionID == nil || *e.SubmissionID == "" {
		return EntryKey{}, false
	}
	return EntryKey{
		UserID:       e.UserID,
		SubmissionID: *e.SubmissionID,
		Reason:       e.Reason,
		Level:        e.Level,
	}, true
}

// Label renders the reason the way operators read it, e.g. ancestor-commission(2).
func (e *LedgerEntry) Label() string {
	if e.Reason == ReasonAncestorCommission {
		return fmt.Sprintf("%s(%d)", e.Reason, e.Level)
	}
	return string(e.Reason)
}

// LedgerRepository defines operations for the ledger log
type LedgerRepository interface {
	// Append stores the entry. It returns false without error when an entry
	// with the same key is already recorded.
	Append(ctx context.Context, entry *LedgerEntry) (bool, error)
	SumByUser(ctx context.Context, userID string) (decimal.Decimal, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*LedgerEntry, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]*LedgerEntry, error)
	EarningsByLevel(ctx context.Context, userID string) (map[int]decimal.Decimal, error)
}

// ApplyResult reports what a ledger batch did.
type ApplyResult struct {
	Applied  []*LedgerEntry
	Skipped  []*LedgerEntry
	Affected []string
}

// ReferralEarnings summarizes ancestor commissions received by a user.
// Direct is level 1, Indirect is every deeper level.
type ReferralEarnings struct {
	Direct   decimal.Decimal         `json:"direct"`
	Indirect decimal.Decimal         `json:"indirect"`
	ByLevel  map[int]decimal.Decimal `json:"by_level"`
}

// BalanceReport pairs the authoritative ledger sum with the cached projection.
type BalanceReport struct {
	UserID string          `json:"user_id"`
	Ledger decimal.Decimal `json:"ledger"`
	Cached decimal.Decimal `json:"cached"`
}

// Drift is the cached projection minus the ledger sum.
func (b BalanceReport) Drift() decimal.Decimal {
	return b.Cached.Sub(b.Ledger)
}

// LedgerEvent is published after a batch commits.
type LedgerEvent struct {
	EntryID      string          `json:"entry_id"`
	UserID       string          `json:"user_id"`
	Delta        decimal.Decimal `json:"delta"`
	Reason       string          `json:"reason"`
	SubmissionID string          `json:"submission_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// LedgerEventPublisher ships committed entries to downstream consumers.
type LedgerEventPublisher interface {
	PublishEntries(ctx context.Context, entries []*LedgerEntry) error
}
