package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Submission statuses
const (
	SubmissionPending   = "pending"
	SubmissionApproved  = "approved"
	SubmissionCancelled = "cancelled"
)

// Submission is one product submitted by a user
type Submission struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Value     decimal.Decimal `json:"value" db:"value"`
	IsPremium bool            `json:"is_premium" db:"is_premium"`
	Sequence  int             `json:"sequence" db:"sequence"`
	Status    string          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// SubmissionRepository defines operations for submission data access
type SubmissionRepository interface {
	Create(ctx context.Context, submission *Submission) error
	GetByID(ctx context.Context, id string) (*Submission, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// Submission outcomes
type SubmitOutcome string

const (
	OutcomeCredited SubmitOutcome = "credited"
	OutcomeFrozen   SubmitOutcome = "frozen"
)

// AncestorShare is one upline credit of a submission.
type AncestorShare struct {
	UserID string          `json:"user_id"`
	Level  int             `json:"level"`
	Amount decimal.Decimal `json:"amount"`
}

// FrozenNotice is returned instead of a payout when a premium submission freezes the account.
type FrozenNotice struct {
	DeficitShown  decimal.Decimal `json:"deficit_shown"`
	PremiumAmount decimal.Decimal `json:"premium_amount"`
	PendingProfit decimal.Decimal `json:"pending_profit"`
}

// SubmitRequest carries a product submission. SubmissionID is optional and
// makes retries of the same request safe.
type SubmitRequest struct {
	UserID       string
	Value        decimal.Decimal
	SubmissionID string
}

// SubmitResult is either a payout (OutcomeCredited) or a frozen notice (OutcomeFrozen).
type SubmitResult struct {
	Outcome        SubmitOutcome   `json:"outcome"`
	Submission     *Submission     `json:"submission"`
	UserShare      decimal.Decimal `json:"user_share"`
	AncestorShares []AncestorShare `json:"ancestor_shares"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	Frozen         *FrozenNotice   `json:"frozen,omitempty"`
	Replayed       bool            `json:"replayed"`
}
