package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
)

type premiumRepository struct {
	db sqlx.ExtContext
}

// NewPremiumRepository creates a new premium repository
func NewPremiumRepository(db *sqlx.DB) domain.PremiumRepository {
	return &premiumRepository{db: db}
}

// GetConfig reads the single premium config row
func (r *premiumRepository) GetConfig(ctx context.Context) (*domain.GlobalPremiumConfig, error) {
	defer observe("select", "premium_config", time.Now())

	var cfg domain.GlobalPremiumConfig
	err := sqlx.GetContext(ctx, r.db, &cfg,
		`SELECT enabled, position, amount, updated_at FROM premium_config WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.GlobalPremiumConfig{}, nil
		}
		return nil, fmt.Errorf("failed to get premium config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig upserts the single premium config row
func (r *premiumRepository) SaveConfig(ctx context.Context, cfg *domain.GlobalPremiumConfig) error {
	defer observe("upsert", "premium_config", time.Now())

	query := `
		INSERT INTO premium_config (id, enabled, position, amount, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			position = EXCLUDED.position,
			amount = EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, cfg.Enabled, cfg.Position, cfg.Amount, cfg.UpdatedAt); err != nil {
		logger.Error("Failed to save premium config", logger.ErrorField(err))
		return fmt.Errorf("failed to save premium config: %w", err)
	}
	return nil
}

// GetActiveAssignment returns the newest unconsumed assignment of userID at
// position, or nil
func (r *premiumRepository) GetActiveAssignment(ctx context.Context, userID string, position int) (*domain.PremiumAssignment, error) {
	defer observe("select", "premium_assignments", time.Now())

	query := `
		SELECT id, user_id, amount, position, consumed, created_at, consumed_at
		FROM premium_assignments
		WHERE user_id = $1 AND position = $2 AND NOT consumed
		ORDER BY created_at DESC
		LIMIT 1
	`

	var assignment domain.PremiumAssignment
	if err := sqlx.GetContext(ctx, r.db, &assignment, query, userID, position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get premium assignment: %w", err)
	}
	return &assignment, nil
}

// SaveAssignment inserts a new assignment
func (r *premiumRepository) SaveAssignment(ctx context.Context, assignment *domain.PremiumAssignment) error {
	defer observe("insert", "premium_assignments", time.Now())

	query := `
		INSERT INTO premium_assignments (id, user_id, amount, position, consumed, created_at, consumed_at)
		VALUES (:id, :user_id, :amount, :position, :consumed, :created_at, :consumed_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, assignment); err != nil {
		logger.Error("Failed to save premium assignment",
			logger.String("user_id", assignment.UserID),
			logger.ErrorField(err),
		)
		return fmt.Errorf("failed to save premium assignment: %w", err)
	}
	return nil
}

// ConsumeAssignment marks an assignment as fired
func (r *premiumRepository) ConsumeAssignment(ctx context.Context, id string, at time.Time) error {
	defer observe("update", "premium_assignments", time.Now())

	res, err := r.db.ExecContext(ctx,
		`UPDATE premium_assignments SET consumed = TRUE, consumed_at = $2 WHERE id = $1 AND NOT consumed`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to consume premium assignment: %w", err)
	}
	return expectOne(res, fmt.Errorf("premium assignment %s not found or already consumed", id))
}
