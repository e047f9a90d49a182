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

type submissionRepository struct {
	db sqlx.ExtContext
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *sqlx.DB) domain.SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	defer observe("insert", "submissions", time.Now())

	query := `
		INSERT INTO submissions (id, user_id, value, is_premium, sequence, status, created_at, updated_at)
		VALUES (:id, :user_id, :value, :is_premium, :sequence, :status, :created_at, :updated_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, submission); err != nil {
		logger.Error("Failed to create submission",
			logger.String("submission_id", submission.ID),
			logger.String("user_id", submission.UserID),
			logger.ErrorField(err),
		)
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	defer observe("select", "submissions", time.Now())

	query := `
		SELECT id, user_id, value, is_premium, sequence, status, created_at, updated_at
		FROM submissions WHERE id = $1
	`

	var submission domain.Submission
	if err := sqlx.GetContext(ctx, r.db, &submission, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	defer observe("update", "submissions", time.Now())

	res, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		logger.Error("Failed to update submission status",
			logger.String("submission_id", id),
			logger.String("status", status),
			logger.ErrorField(err),
		)
		return fmt.Errorf("failed to update submission status: %w", err)
	}
	return expectOne(res, domain.ErrSubmissionNotFound)
}
