package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/metrics"
)

// Store binds the repositories to a database handle or an open transaction
type Store struct {
	db   *sqlx.DB
	ext  sqlx.ExtContext
	inTx bool
}

// NewStore creates a new postgres store
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

// WithinTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("Failed to rollback transaction", logger.ErrorField(rbErr))
			}
		}
	}()

	if err = fn(&Store{db: s.db, ext: tx, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Users() domain.UserRepository {
	return &userRepository{db: s.ext, lockRows: s.inTx}
}

func (s *Store) Ledger() domain.LedgerRepository {
	return &ledgerRepository{db: s.ext}
}

func (s *Store) Submissions() domain.SubmissionRepository {
	return &submissionRepository{db: s.ext}
}

func (s *Store) Premium() domain.PremiumRepository {
	return &premiumRepository{db: s.ext}
}

func observe(operation, table string, start time.Time) {
	metrics.RecordDBQuery(operation, table, time.Since(start).Seconds())
}
