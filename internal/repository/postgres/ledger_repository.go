package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
)

type ledgerRepository struct {
	db sqlx.ExtContext
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sqlx.DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

// Append inserts the entry unless its key is already recorded
func (r *ledgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) (bool, error) {
	defer observe("insert", "ledger_entries", time.Now())

	query := `
		INSERT INTO ledger_entries (id, user_id, delta, reason, level, submission_id, created_at)
		VALUES (:id, :user_id, :delta, :reason, :level, :submission_id, :created_at)
		ON CONFLICT (user_id, submission_id, reason, level) WHERE submission_id IS NOT NULL
		DO NOTHING
	`

	res, err := sqlx.NamedExecContext(ctx, r.db, query, entry)
	if err != nil {
		logger.Error("Failed to append ledger entry",
			logger.String("user_id", entry.UserID),
			logger.String("reason", entry.Label()),
			logger.ErrorField(err),
		)
		return false, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// SumByUser returns the authoritative balance of userID
func (r *ledgerRepository) SumByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	defer observe("select", "ledger_entries", time.Now())

	var sum decimal.Decimal
	err := sqlx.GetContext(ctx, r.db, &sum,
		`SELECT COALESCE(SUM(delta), 0) FROM ledger_entries WHERE user_id = $1`, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return sum, nil
}

// ListByUser returns userID's entries, newest first
func (r *ledgerRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	defer observe("select", "ledger_entries", time.Now())

	query := `
		SELECT id, user_id, delta, reason, level, submission_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	var entries []*domain.LedgerEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// ListBySubmission returns every entry keyed by submissionID
func (r *ledgerRepository) ListBySubmission(ctx context.Context, submissionID string) ([]*domain.LedgerEntry, error) {
	defer observe("select", "ledger_entries", time.Now())

	query := `
		SELECT id, user_id, delta, reason, level, submission_id, created_at
		FROM ledger_entries
		WHERE submission_id = $1
		ORDER BY level, created_at
	`

	var entries []*domain.LedgerEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, submissionID); err != nil {
		return nil, fmt.Errorf("failed to list submission entries: %w", err)
	}
	return entries, nil
}

// EarningsByLevel totals ancestor commissions received by userID per level
func (r *ledgerRepository) EarningsByLevel(ctx context.Context, userID string) (map[int]decimal.Decimal, error) {
	defer observe("select", "ledger_entries", time.Now())

	query := `
		SELECT level, SUM(delta) AS total
		FROM ledger_entries
		WHERE user_id = $1 AND reason = $2
		GROUP BY level
	`

	var rows []struct {
		Level int             `db:"level"`
		Total decimal.Decimal `db:"total"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID, domain.ReasonAncestorCommission); err != nil {
		return nil, fmt.Errorf("failed to load earnings: %w", err)
	}

	byLevel := make(map[int]decimal.Decimal, len(rows))
	for _, row := range rows {
		byLevel[row.Level] = row.Total
	}
	return byLevel, nil
}
