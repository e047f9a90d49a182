// Package premium decides which submissions are premium encounters.
package premium

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/utils"
)

// Source tells where a premium encounter came from
type Source string

const (
	SourceNone       Source = ""
	SourceGlobal     Source = "global"
	SourceAssignment Source = "assignment"
)

// Encounter is the trigger decision for one submission
type Encounter struct {
	Premium      bool
	Amount       decimal.Decimal
	Source       Source
	AssignmentID string
}

// IsPremiumEncounter reports whether the submission at submissionIndex
// (1-indexed, counted after the current submission) is premium under cfg.
func IsPremiumEncounter(cfg domain.GlobalPremiumConfig, submissionIndex int) bool {
	return cfg.Enabled && cfg.Position > 0 && submissionIndex == cfg.Position
}

// Resolve evaluates the per-user assignment first, then the global config.
// Both are read at call time only.
func Resolve(cfg *domain.GlobalPremiumConfig, assignment *domain.PremiumAssignment, submissionIndex int) Encounter {
	if assignment != nil && !assignment.Consumed && assignment.Position == submissionIndex {
		return Encounter{
			Premium:      true,
			Amount:       assignment.Amount,
			Source:       SourceAssignment,
			AssignmentID: assignment.ID,
		}
	}
	if cfg != nil && IsPremiumEncounter(*cfg, submissionIndex) {
		return Encounter{Premium: true, Amount: cfg.Amount, Source: SourceGlobal}
	}
	return Encounter{}
}

// ValidateConfig checks an operator update. A disabled config may carry any values.
func ValidateConfig(enabled bool, position int, amount decimal.Decimal) error {
	if !enabled {
		return nil
	}
	if position < 1 {
		return fmt.Errorf("%w: position must be at least 1", domain.ErrInvalidPremiumConfig)
	}
	if !utils.ValidAmount(amount) {
		return fmt.Errorf("%w: amount must be positive whole cents", domain.ErrInvalidPremiumConfig)
	}
	return nil
}

// ValidateAssignment checks a per-user override against the user's current count.
func ValidateAssignment(amount decimal.Decimal, position, submissionsCount int) error {
	if !utils.ValidAmount(amount) {
		return fmt.Errorf("%w: amount must be positive whole cents", domain.ErrInvalidPremiumConfig)
	}
	if position <= submissionsCount {
		return fmt.Errorf("%w: position %d already passed (count %d)", domain.ErrInvalidPremiumConfig, position, submissionsCount)
	}
	return nil
}
