package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceChange is the outcome of a single-entry balance operation
type BalanceChange struct {
	UserID     string          `json:"user_id"`
	Entry      *LedgerEntry    `json:"entry"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Replayed   bool            `json:"replayed"`
}

// AccountSummary is what a user sees about their own account
type AccountSummary struct {
	UserID            string          `json:"user_id"`
	Balance           decimal.Decimal `json:"balance"`
	VIPTier           VIPTier         `json:"vip_tier"`
	SubmissionsCount  int             `json:"submissions_count"`
	PeriodSubmissions int             `json:"period_submissions"`
	MaxSubmissions    int             `json:"max_submissions"`
	TodayProfit       decimal.Decimal `json:"today_profit"`
	Frozen            bool            `json:"frozen"`
	Freeze            *FreezeInfo     `json:"freeze,omitempty"`
}

// RegisterRequest creates an account under the owner of ParentInviteCode
type RegisterRequest struct {
	ParentInviteCode string
	Tier             string
}

// SubmissionUsecase processes product submissions
type SubmissionUsecase interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
}

// AccountUsecase serves a user's own balance and history
type AccountUsecase interface {
	GetBalance(ctx context.Context, userID string) (*AccountSummary, error)
	GetReferralEarnings(ctx context.Context, userID string) (*ReferralEarnings, error)
	GetLedger(ctx context.Context, userID string, page, limit int) ([]*LedgerEntry, error)
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal, requestID string) (*BalanceChange, error)
}

// AdminUsecase holds operator actions
type AdminUsecase interface {
	GetGlobalPremiumConfig(ctx context.Context) (*GlobalPremiumConfig, error)
	SetGlobalPremiumConfig(ctx context.Context, enabled bool, position int, amount decimal.Decimal) (*GlobalPremiumConfig, error)
	AssignPremium(ctx context.Context, userID string, amount decimal.Decimal, position int) (*PremiumAssignment, error)
	Unfreeze(ctx context.Context, userID string) (*BalanceChange, error)
	CancelFreeze(ctx context.Context, userID string) (*BalanceChange, error)
	SetTier(ctx context.Context, userID, tier string) (*User, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal, requestID string) (*BalanceChange, error)
	RegisterUser(ctx context.Context, req RegisterRequest) (*User, error)
	Reconcile(ctx context.Context, userID string) ([]*BalanceReport, error)
}
