// Package freeze implements the Active -> Frozen -> Active account cycle
// triggered by premium submissions.
package freeze

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/vip"
	"github.com/alfanzaky/refledger/pkg/utils"
)

// DefaultBoost multiplies the tier rate for a premium submission's profit
var DefaultBoost = decimal.NewFromInt(10)

// Kind names a transition
type Kind string

const (
	KindFreeze   Kind = "freeze"
	KindUnfreeze Kind = "unfreeze"
	KindCancel   Kind = "cancel"
)

// Transition is a computed state change. Nothing is applied until the caller
// appends Entry to the ledger and calls ApplyTo on the stored user.
type Transition struct {
	Kind             Kind
	Entry            *domain.LedgerEntry
	Info             *domain.FreezeInfo
	SubmissionID     string
	SubmissionStatus string
	ProfitCredit     decimal.Decimal
	NewBalance       decimal.Decimal
}

// ApplyTo updates the user's freeze flags and counters. Balance is left to the ledger.
func (t *Transition) ApplyTo(user *domain.User) {
	switch t.Kind {
	case KindFreeze:
		user.SetFrozen(*t.Info)
	case KindUnfreeze:
		user.TodayProfit = user.TodayProfit.Add(t.ProfitCredit)
		user.ClearFreeze()
	case KindCancel:
		user.ClearFreeze()
	}
}

// Machine computes freeze transitions
type Machine struct {
	policy *vip.Policy
	boost  decimal.Decimal
	clock  clockwork.Clock
}

// NewMachine creates a freeze machine
func NewMachine(policy *vip.Policy, boost decimal.Decimal, clock clockwork.Clock) *Machine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if !boost.IsPositive() {
		boost = DefaultBoost
	}
	return &Machine{policy: policy, boost: boost, clock: clock}
}

// PendingProfit is the boosted commission held back until unfreeze
func (m *Machine) PendingProfit(tier domain.VIPTier, premiumAmount decimal.Decimal) decimal.Decimal {
	return utils.RoundMoney(premiumAmount.Mul(m.policy.RateFor(tier)).Mul(m.boost))
}

// Freeze computes the Active -> Frozen transition for a premium submission.
// ErrNoDeficit means the balance already covers the premium amount and the
// submission must be processed as a normal one.
func (m *Machine) Freeze(user *domain.User, submission *domain.Submission, premiumAmount decimal.Decimal) (*Transition, error) {
	if user == nil {
		return nil, domain.ErrUnknownUser
	}
	if submission == nil || !premiumAmount.IsPositive() {
		return nil, domain.ErrInvalidValue
	}
	if user.IsFrozen() {
		return nil, domain.ErrAccountFrozen
	}

	deficit := premiumAmount.Sub(user.Balance)
	if !deficit.IsPositive() {
		return nil, domain.ErrNoDeficit
	}

	now := m.clock.Now()
	info := &domain.FreezeInfo{
		DeficitShown:            deficit,
		PremiumAmount:           premiumAmount,
		OriginalBalanceAtFreeze: user.Balance,
		PendingProfit:           m.PendingProfit(user.VIPTier, premiumAmount),
		SubmissionID:            submission.ID,
		FrozenAt:                now,
	}

	submissionID := submission.ID
	return &Transition{
		Kind: KindFreeze,
		Entry: &domain.LedgerEntry{
			ID:           utils.GenerateUUID(),
			UserID:       user.ID,
			Delta:        premiumAmount.Neg(),
			Reason:       domain.ReasonFreezeDeficit,
			SubmissionID: &submissionID,
			CreatedAt:    now,
		},
		Info:             info,
		SubmissionID:     submission.ID,
		SubmissionStatus: domain.SubmissionPending,
		NewBalance:       user.Balance.Sub(premiumAmount),
	}, nil
}

// Unfreeze computes the Frozen -> Active transition. The credit restores the
// original balance plus premium and pending profit relative to the balance the
// freeze left, so credits received while frozen are kept.
func (m *Machine) Unfreeze(user *domain.User) (*Transition, error) {
	info, err := frozenInfo(user)
	if err != nil {
		return nil, err
	}

	target := info.OriginalBalanceAtFreeze.Add(info.PremiumAmount).Add(info.PendingProfit)
	delta := target.Sub(info.BalanceAtFreeze())

	return &Transition{
		Kind:             KindUnfreeze,
		Entry:            m.entry(user.ID, info.SubmissionID, delta, domain.ReasonUnfreezeCredit),
		SubmissionID:     info.SubmissionID,
		SubmissionStatus: domain.SubmissionApproved,
		ProfitCredit:     info.PendingProfit,
		NewBalance:       user.Balance.Add(delta),
	}, nil
}

// Cancel lifts a freeze without paying the premium or its profit, restoring
// the original balance exactly.
func (m *Machine) Cancel(user *domain.User) (*Transition, error) {
	info, err := frozenInfo(user)
	if err != nil {
		return nil, err
	}

	delta := info.OriginalBalanceAtFreeze.Sub(info.BalanceAtFreeze())

	return &Transition{
		Kind:             KindCancel,
		Entry:            m.entry(user.ID, info.SubmissionID, delta, domain.ReasonFreezeCancel),
		SubmissionID:     info.SubmissionID,
		SubmissionStatus: domain.SubmissionCancelled,
		NewBalance:       user.Balance.Add(delta),
	}, nil
}

func (m *Machine) entry(userID, submissionID string, delta decimal.Decimal, reason domain.LedgerReason) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:           utils.GenerateUUID(),
		UserID:       userID,
		Delta:        delta,
		Reason:       reason,
		SubmissionID: &submissionID,
		CreatedAt:    m.clock.Now(),
	}
}

func frozenInfo(user *domain.User) (*domain.FreezeInfo, error) {
	if user == nil {
		return nil, domain.ErrUnknownUser
	}
	if !user.IsFrozen() {
		return nil, fmt.Errorf("user %s: %w", user.ID, domain.ErrNotFrozen)
	}
	return user.FreezeInfo, nil
}
