package domain

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VIPTier names a commission tier.
type VIPTier string

const (
	TierNormal   VIPTier = "Normal"
	TierSilver   VIPTier = "Silver"
	TierGold     VIPTier = "Gold"
	TierPlatinum VIPTier = "Platinum"
	TierDiamond  VIPTier = "Diamond"
)

// ParseTier matches a tier name case-insensitively. The second return is false
// for names outside the known set; the returned tier is then TierNormal.
func ParseTier(name string) (VIPTier, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "normal":
		return TierNormal, true
	case "silver":
		return TierSilver, true
	case "gold":
		return TierGold, true
	case "platinum":
		return TierPlatinum, true
	case "diamond":
		return TierDiamond, true
	default:
		return TierNormal, false
	}
}

// FreezeInfo captures everything needed to unfreeze or cancel a freeze.
// It is stored as a JSON document next to the user row.
type FreezeInfo struct {
	DeficitShown            decimal.Decimal `json:"deficit_shown"`
	PremiumAmount           decimal.Decimal `json:"premium_amount"`
	OriginalBalanceAtFreeze decimal.Decimal `json:"original_balance_at_freeze"`
	PendingProfit           decimal.Decimal `json:"pending_profit"`
	SubmissionID            string          `json:"submission_id"`
	FrozenAt                time.Time       `json:"frozen_at"`
}

// BalanceAtFreeze is the balance the freeze-deficit entry left behind.
func (f FreezeInfo) BalanceAtFreeze() decimal.Decimal {
	return f.OriginalBalanceAtFreeze.Sub(f.PremiumAmount)
}

// Value implements driver.Valuer.
func (f FreezeInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *FreezeInfo) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported freeze info type %T", src)
	}
}

// User represents a platform account
type User struct {
	ID         string  `json:"id" db:"id"`
	ParentID   *string `json:"parent_id" db:"parent_id"`
	InviteCode string  `json:"invite_code" db:"invite_code"`
	VIPTier    VIPTier `json:"vip_tier" db:"vip_tier"`

	// Balance is a projection of the ledger; only the ledger writes it.
	Balance decimal.Decimal `json:"balance" db:"balance"`

	SubmissionsCount  int             `json:"submissions_count" db:"submissions_count"`
	PeriodSubmissions int             `json:"period_submissions" db:"period_submissions"`
	TodayProfit       decimal.Decimal `json:"today_profit" db:"today_profit"`

	Frozen     bool        `json:"frozen" db:"frozen"`
	FreezeInfo *FreezeInfo `json:"freeze_info,omitempty" db:"freeze_info"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// IsFrozen reports whether the account is frozen. Frozen and FreezeInfo
// always move together.
func (u *User) IsFrozen() bool {
	return u.Frozen && u.FreezeInfo != nil
}

// SetFrozen records a freeze.
func (u *User) SetFrozen(info FreezeInfo) {
	u.Frozen = true
	u.FreezeInfo = &info
}

// ClearFreeze lifts a freeze.
func (u *User) ClearFreeze() {
	u.Frozen = false
	u.FreezeInfo = nil
}

// HasSufficientBalance checks if the user can cover amount
func (u *User) HasSufficientBalance(amount decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(amount)
}

// UserRepository defines operations for user data access.
// Update never writes balance; balance moves only through AddBalance/SetBalance.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByInviteCode(ctx context.Context, code string) (*User, error)
	GetParentID(ctx context.Context, id string) (*string, error)
	Update(ctx context.Context, user *User) error
	AddBalance(ctx context.Context, id string, delta decimal.Decimal) error
	SetBalance(ctx context.Context, id string, balance decimal.Decimal) error
	ListIDs(ctx context.Context) ([]string, error)
	ResetPeriodCounters(ctx context.Context) (int64, error)
}
