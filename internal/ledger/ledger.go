// Package ledger applies balance deltas atomically and keeps the cached
// balance projection in line with the append-only log.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/metrics"
	"github.com/alfanzaky/refledger/pkg/utils"
)

// Ledger is the only writer of user balances
type Ledger struct {
	store     domain.Store
	cache     domain.BalanceCache
	publisher domain.LedgerEventPublisher
}

// NewLedger creates a ledger. cache and publisher may be nil.
func NewLedger(store domain.Store, cache domain.BalanceCache, publisher domain.LedgerEventPublisher) *Ledger {
	return &Ledger{store: store, cache: cache, publisher: publisher}
}

// Apply appends entries and moves balances in one transaction
func (l *Ledger) Apply(ctx context.Context, entries []*domain.LedgerEntry) (*domain.ApplyResult, error) {
	var result *domain.ApplyResult
	err := l.store.WithinTx(ctx, func(tx domain.Store) error {
		var err error
		result, err = ApplyTx(ctx, tx, entries)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.AfterCommit(ctx, result)
	return result, nil
}

// ApplyTx appends entries inside an open transaction. An entry whose key is
// already recorded is skipped without touching the balance; any other failure
// aborts the whole batch.
func ApplyTx(ctx context.Context, tx domain.Store, entries []*domain.LedgerEntry) (*domain.ApplyResult, error) {
	result := &domain.ApplyResult{}
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if entry == nil || entry.UserID == "" {
			return nil, fmt.Errorf("ledger entry without user: %w", domain.ErrInvalidValue)
		}
		if entry.Delta.IsZero() {
			return nil, fmt.Errorf("zero %s entry for %s: %w", entry.Label(), entry.UserID, domain.ErrInvalidValue)
		}
		if entry.ID == "" {
			entry.ID = utils.GenerateUUID()
		}

		appended, err := tx.Ledger().Append(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("failed to append %s entry for %s: %w", entry.Label(), entry.UserID, err)
		}
		if !appended {
			result.Skipped = append(result.Skipped, entry)
			continue
		}

		if err := tx.Users().AddBalance(ctx, entry.UserID, entry.Delta); err != nil {
			return nil, fmt.Errorf("failed to move balance of %s: %w", entry.UserID, err)
		}
		result.Applied = append(result.Applied, entry)
		if _, ok := seen[entry.UserID]; !ok {
			seen[entry.UserID] = struct{}{}
			result.Affected = append(result.Affected, entry.UserID)
		}
	}

	return result, nil
}

// AfterCommit runs the side effects of a committed batch. Failures are logged
// and never undo the batch.
func (l *Ledger) AfterCommit(ctx context.Context, result *domain.ApplyResult) {
	if result == nil {
		return
	}

	for _, e := range result.Applied {
		metrics.RecordLedgerEntry(string(e.Reason), e.Delta.InexactFloat64())
	}
	if len(result.Skipped) > 0 {
		metrics.RecordLedgerSkipped(len(result.Skipped))
		logger.Info("Ledger entries already recorded, skipped",
			logger.Int("skipped", len(result.Skipped)),
		)
	}

	if l.cache != nil && len(result.Affected) > 0 {
		if err := l.cache.Invalidate(ctx, result.Affected...); err != nil {
			logger.Warn("Failed to invalidate balance cache",
				logger.Int("users", len(result.Affected)),
				logger.ErrorField(err),
			)
		}
	}

	if l.publisher != nil && len(result.Applied) > 0 {
		if err := l.publisher.PublishEntries(ctx, result.Applied); err != nil {
			logger.Error("Failed to publish ledger events",
				logger.Int("entries", len(result.Applied)),
				logger.ErrorField(err),
			)
		}
	}
}

// Balance returns the ledger sum for userID next to the cached projection.
// The ledger sum is authoritative; drift is logged and counted.
func (l *Ledger) Balance(ctx context.Context, userID string) (*domain.BalanceReport, error) {
	user, err := l.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	sum, err := l.ledgerSum(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &domain.BalanceReport{UserID: userID, Ledger: sum, Cached: user.Balance}
	if !report.Drift().IsZero() {
		metrics.RecordBalanceDrift()
		logger.Warn("Balance projection drifted from ledger",
			logger.String("user_id", userID),
			logger.Decimal("ledger", report.Ledger),
			logger.Decimal("cached", report.Cached),
		)
	}
	return report, nil
}

// ledgerSum serves the sum from the cache when present. A freshly computed
// sum is cached under the generation seen before summing, so an Apply that
// commits in between leaves the cache empty.
func (l *Ledger) ledgerSum(ctx context.Context, userID string) (decimal.Decimal, error) {
	var generation int64
	cacheable := false
	if l.cache != nil {
		cached, gen, ok, err := l.cache.GetBalance(ctx, userID)
		if err != nil {
			logger.Warn("Balance cache read failed", logger.String("user_id", userID), logger.ErrorField(err))
		} else {
			generation, cacheable = gen, true
		}
		if ok {
			if sum, err := decimal.NewFromString(cached); err == nil {
				return sum, nil
			}
		}
	}

	sum, err := l.store.Ledger().SumByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger of %s: %w", userID, err)
	}

	if cacheable {
		stored, err := l.cache.SetBalance(ctx, userID, sum.String(), generation)
		switch {
		case err != nil:
			logger.Warn("Balance cache write failed", logger.String("user_id", userID), logger.ErrorField(err))
		case !stored:
			logger.Debug("Balance changed while summing, cache left empty", logger.String("user_id", userID))
		}
	}
	return sum, nil
}

// Reconcile rewrites the cached projection of userID from the ledger. The
// returned report holds the values found before the rewrite.
func (l *Ledger) Reconcile(ctx context.Context, userID string) (*domain.BalanceReport, error) {
	var report *domain.BalanceReport
	err := l.store.WithinTx(ctx, func(tx domain.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := tx.Ledger().SumByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to sum ledger of %s: %w", userID, err)
		}

		report = &domain.BalanceReport{UserID: userID, Ledger: sum, Cached: user.Balance}
		if report.Drift().IsZero() {
			return nil
		}
		return tx.Users().SetBalance(ctx, userID, sum)
	})
	if err != nil {
		return nil, err
	}

	if !report.Drift().IsZero() {
		metrics.RecordBalanceDrift()
		logger.Warn("Balance projection reconciled",
			logger.String("user_id", userID),
			logger.Decimal("ledger", report.Ledger),
			logger.Decimal("cached", report.Cached),
		)
		if l.cache != nil {
			if err := l.cache.Invalidate(ctx, userID); err != nil {
				logger.Warn("Failed to invalidate balance cache", logger.String("user_id", userID), logger.ErrorField(err))
			}
		}
	}
	return report, nil
}

// ReconcileAll reconciles every user and returns the drifted reports. A
// failure on one user does not stop the others.
func (l *Ledger) ReconcileAll(ctx context.Context) ([]*domain.BalanceReport, error) {
	ids, err := l.store.Users().ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var drifted []*domain.BalanceReport
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := l.Reconcile(ctx, id)
		if err != nil {
			logger.Error("Failed to reconcile balance", logger.String("user_id", id), logger.ErrorField(err))
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		if !report.Drift().IsZero() {
			drifted = append(drifted, report)
		}
	}

	logger.Info("Balance reconciliation finished",
		logger.Int("users", len(ids)),
		logger.Int("drifted", len(drifted)),
		logger.Int("failed", len(errs)),
	)
	return drifted, errors.Join(errs...)
}

// History returns a page of userID's entries, newest first
func (l *Ledger) History(ctx context.Context, userID string, page, limit int) ([]*domain.LedgerEntry, error) {
	if _, err := l.store.Users().GetByID(ctx, userID); err != nil {
		return nil, err
	}
	limit, offset := utils.Pagination(page, limit)
	entries, err := l.store.Ledger().ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger of %s: %w", userID, err)
	}
	if entries == nil {
		entries = []*domain.LedgerEntry{}
	}
	return entries, nil
}

// Earnings totals the ancestor commissions userID received. Level 1 is
// direct, deeper levels are indirect.
func (l *Ledger) Earnings(ctx context.Context, userID string) (*domain.ReferralEarnings, error) {
	if _, err := l.store.Users().GetByID(ctx, userID); err != nil {
		return nil, err
	}
	byLevel, err := l.store.Ledger().EarningsByLevel(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load earnings of %s: %w", userID, err)
	}

	earnings := &domain.ReferralEarnings{Direct: decimal.Zero, Indirect: decimal.Zero, ByLevel: byLevel}
	for level, amount := range byLevel {
		if level == 1 {
			earnings.Direct = earnings.Direct.Add(amount)
		} else {
			earnings.Indirect = earnings.Indirect.Add(amount)
		}
	}
	return earnings, nil
}
