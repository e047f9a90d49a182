// Package commission splits a submission's value between the submitter and
// its ancestor chain.
package commission

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/referral"
	"github.com/alfanzaky/refledger/pkg/utils"
)

// AncestorSource answers ancestor-chain queries
type AncestorSource interface {
	AncestorsOf(ctx context.Context, userID string, maxDepth int) ([]referral.Ancestor, error)
}

// Config holds the split rules
type Config struct {
	DirectShare decimal.Decimal
	UplineShare decimal.Decimal
	Decay       decimal.Decimal
	MaxDepth    int
}

// DefaultConfig returns the 80/20 split with a 10% per-level cascade
func DefaultConfig() Config {
	return Config{
		DirectShare: decimal.RequireFromString("0.80"),
		UplineShare: decimal.RequireFromString("0.20"),
		Decay:       decimal.RequireFromString("0.10"),
		MaxDepth:    referral.MaxDepthCap,
	}
}

// Validate rejects splits that could pay out more than the submitted value
func (c Config) Validate() error {
	if c.DirectShare.IsNegative() || c.UplineShare.IsNegative() {
		return fmt.Errorf("commission shares must not be negative")
	}
	if c.DirectShare.Add(c.UplineShare).GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("direct share %s plus upline share %s exceeds 1", c.DirectShare, c.UplineShare)
	}
	if c.Decay.IsNegative() || c.Decay.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("decay %s must be in [0, 1)", c.Decay)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative")
	}
	return nil
}

// Distributor computes ledger entries for a submission without applying them
type Distributor struct {
	graph AncestorSource
	cfg   Config
	clock clockwork.Clock
}

// NewDistributor creates a distributor
func NewDistributor(graph AncestorSource, cfg Config, clock clockwork.Clock) *Distributor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Distributor{graph: graph, cfg: cfg, clock: clock}
}

// With returns a copy of d that walks ancestors through graph, e.g. a
// transaction-bound view of the referral graph.
func (d *Distributor) With(graph AncestorSource) *Distributor {
	cp := *d
	cp.graph = graph
	return &cp
}

// Cascade returns the upline amounts by level, level 1 first. Level k pays
// value * upline * decay^(k-1) rounded on its own, so rounding never
// compounds; the cascade ends at the first amount that rounds to zero or at depth.
func (d *Distributor) Cascade(value decimal.Decimal, depth int) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, 6)
	raw := value.Mul(d.cfg.UplineShare)
	for level := 1; level <= depth; level++ {
		amount := utils.RoundMoney(raw)
		if !amount.IsPositive() {
			break
		}
		amounts = append(amounts, amount)
		raw = raw.Mul(d.cfg.Decay)
	}
	return amounts
}

// Distribute returns the direct-commission entry for user followed by one
// ancestor-commission entry per paid level. Without a parent the upline
// pool is not emitted.
func (d *Distributor) Distribute(ctx context.Context, submission *domain.Submission, user *domain.User) ([]*domain.LedgerEntry, error) {
	if user == nil {
		return nil, domain.ErrUnknownUser
	}
	if submission == nil || !submission.Value.IsPositive() {
		return nil, domain.ErrInvalidValue
	}

	now := d.clock.Now()
	submissionID := submission.ID
	entries := make([]*domain.LedgerEntry, 0, 4)

	direct := utils.RoundMoney(submission.Value.Mul(d.cfg.DirectShare))
	if direct.IsPositive() {
		entries = append(entries, &domain.LedgerEntry{
			ID:           utils.GenerateUUID(),
			UserID:       user.ID,
			Delta:        direct,
			Reason:       domain.ReasonDirectCommission,
			SubmissionID: &submissionID,
			CreatedAt:    now,
		})
	}

	cascade := d.Cascade(submission.Value, d.cfg.MaxDepth)
	if len(cascade) == 0 {
		return entries, nil
	}

	ancestors, err := d.graph.AncestorsOf(ctx, user.ID, len(cascade))
	if err != nil {
		return nil, fmt.Errorf("failed to walk ancestors of %s: %w", user.ID, err)
	}

	for _, ancestor := range ancestors {
		entries = append(entries, &domain.LedgerEntry{
			ID:           utils.GenerateUUID(),
			UserID:       ancestor.UserID,
			Delta:        cascade[ancestor.Level-1],
			Reason:       domain.ReasonAncestorCommission,
			Level:        ancestor.Level,
			SubmissionID: &submissionID,
			CreatedAt:    now,
		})
	}

	return entries, nil
}

// Shares splits distributor output into the submitter's share and the upline shares.
func Shares(userID string, entries []*domain.LedgerEntry) (decimal.Decimal, []domain.AncestorShare) {
	userShare := decimal.Zero
	ancestors := make([]domain.AncestorShare, 0, len(entries))
	for _, e := range entries {
		switch e.Reason {
		case domain.ReasonDirectCommission:
			if e.UserID == userID {
				userShare = userShare.Add(e.Delta)
			}
		case domain.ReasonAncestorCommission:
			ancestors = append(ancestors, domain.AncestorShare{UserID: e.UserID, Level: e.Level, Amount: e.Delta})
		}
	}
	return userShare, ancestors
}
