package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
)

const userColumns = `id, parent_id, invite_code, vip_tier, balance, submissions_count,
	period_submissions, today_profit, frozen, freeze_info, created_at, updated_at, deleted_at`

type userRepository struct {
	db sqlx.ExtContext
	// lockRows makes GetByID take a row lock; set inside transactions
	lockRows bool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	defer observe("insert", "users", time.Now())

	query := `
		INSERT INTO users (id, parent_id, invite_code, vip_tier, balance, submissions_count,
			period_submissions, today_profit, frozen, freeze_info, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.ParentID, user.InviteCode, user.VIPTier, user.Balance,
		user.SubmissionsCount, user.PeriodSubmissions, user.TodayProfit,
		user.Frozen, user.FreezeInfo, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "users_invite_code_key" {
			return domain.ErrInviteCodeTaken
		}
		logger.Error("Failed to create user",
			logger.String("user_id", user.ID),
			logger.ErrorField(err),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("User created successfully",
		logger.String("user_id", user.ID),
		logger.String("invite_code", user.InviteCode),
	)
	return nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	defer observe("select", "users", time.Now())

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	if r.lockRows {
		query += ` FOR UPDATE`
	}

	var user domain.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnknownUser
		}
		logger.Error("Failed to get user by ID",
			logger.String("user_id", id),
			logger.ErrorField(err),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByInviteCode retrieves the owner of an invite code
func (r *userRepository) GetByInviteCode(ctx context.Context, code string) (*domain.User, error) {
	defer observe("select", "users", time.Now())

	query := `SELECT ` + userColumns + ` FROM users WHERE invite_code = $1 AND deleted_at IS NULL`

	var user domain.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to get user by invite code: %w", err)
	}
	return &user, nil
}

// GetParentID returns the inviting user of id, nil for a root account
func (r *userRepository) GetParentID(ctx context.Context, id string) (*string, error) {
	defer observe("select", "users", time.Now())

	var parent sql.NullString
	err := sqlx.GetContext(ctx, r.db, &parent, `SELECT parent_id FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to get parent of %s: %w", id, err)
	}
	if !parent.Valid {
		return nil, nil
	}
	return &parent.String, nil
}

// Update writes counters, tier and freeze state. Balance and parent are never written here.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	defer observe("update", "users", time.Now())

	query := `
		UPDATE users SET
			vip_tier = $2,
			submissions_count = $3,
			period_submissions = $4,
			today_profit = $5,
			frozen = $6,
			freeze_info = $7,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.VIPTier, user.SubmissionsCount, user.PeriodSubmissions,
		user.TodayProfit, user.Frozen, user.FreezeInfo,
	)
	if err != nil {
		logger.Error("Failed to update user",
			logger.String("user_id", user.ID),
			logger.ErrorField(err),
		)
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOne(res, domain.ErrUnknownUser)
}

// AddBalance moves the cached balance by delta
func (r *userRepository) AddBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	defer observe("update", "users", time.Now())

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1`,
		id, delta,
	)
	if err != nil {
		logger.Error("Failed to update balance",
			logger.String("user_id", id),
			logger.Decimal("delta", delta),
			logger.ErrorField(err),
		)
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return expectOne(res, domain.ErrUnknownUser)
}

// SetBalance overwrites the cached balance, used by reconciliation
func (r *userRepository) SetBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	defer observe("update", "users", time.Now())

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET balance = $2, updated_at = NOW() WHERE id = $1`,
		id, balance,
	)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return expectOne(res, domain.ErrUnknownUser)
}

// ListIDs returns every active user id
func (r *userRepository) ListIDs(ctx context.Context) ([]string, error) {
	defer observe("select", "users", time.Now())

	var ids []string
	err := sqlx.SelectContext(ctx, r.db, &ids, `SELECT id FROM users WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}

// ResetPeriodCounters zeroes per-period submission counts and daily profit
func (r *userRepository) ResetPeriodCounters(ctx context.Context) (int64, error) {
	defer observe("update", "users", time.Now())

	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET period_submissions = 0, today_profit = 0, updated_at = NOW()
		WHERE period_submissions <> 0 OR today_profit <> 0
	`)
	if err != nil {
		logger.Error("Failed to reset period counters", logger.ErrorField(err))
		return 0, fmt.Errorf("failed to reset period counters: %w", err)
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
