package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// GlobalPremiumConfig is the operator rule "every Nth submission is premium".
type GlobalPremiumConfig struct {
	Enabled   bool            `json:"enabled" db:"enabled"`
	Position  int             `json:"position" db:"position"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// PremiumAssignment overrides the global rule for a single user.
type PremiumAssignment struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Position   int             `json:"position" db:"position"`
	Consumed   bool            `json:"consumed" db:"consumed"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	ConsumedAt *time.Time      `json:"consumed_at,omitempty" db:"consumed_at"`
}

// PremiumRepository stores the global config row and per-user assignments
type PremiumRepository interface {
	GetConfig(ctx context.Context) (*GlobalPremiumConfig, error)
	SaveConfig(ctx context.Context, cfg *GlobalPremiumConfig) error
	GetActiveAssignment(ctx context.Context, userID string, position int) (*PremiumAssignment, error)
	SaveAssignment(ctx context.Context, assignment *PremiumAssignment) error
	ConsumeAssignment(ctx context.Context, id string, at time.Time) error
}
