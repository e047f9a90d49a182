package usecase

import (
	"context"
	"fmt"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/ledger"
)

// entryBuilder decides the single ledger entry of an operation from the
// locked user row
type entryBuilder func(user *domain.User) (*domain.LedgerEntry, error)

// applyToUser locks userID, builds one entry against the current row and
// applies it in a transaction. When requestID already recorded an entry with
// reason for this user, that entry is returned as Replayed with the current
// balance and build is not called.
func applyToUser(ctx context.Context, store domain.Store, locker domain.UserLocker, ledgerSvc *ledger.Ledger, userID, requestID string, reason domain.LedgerReason, build entryBuilder) (*domain.BalanceChange, error) {
	unlock, err := locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	defer unlock()

	var change *domain.BalanceChange
	var applied *domain.ApplyResult
	err = store.WithinTx(ctx, func(tx domain.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}

		if requestID != "" {
			previous, err := findEntry(ctx, tx, userID, requestID, reason)
			if err != nil {
				return err
			}
			if previous != nil {
				change = &domain.BalanceChange{UserID: userID, Entry: previous, NewBalance: user.Balance, Replayed: true}
				return nil
			}
		}

		entry, err := build(user)
		if err != nil {
			return err
		}
		applied, err = ledger.ApplyTx(ctx, tx, []*domain.LedgerEntry{entry})
		if err != nil {
			return err
		}

		change = &domain.BalanceChange{
			UserID:     userID,
			Entry:      entry,
			NewBalance: user.Balance.Add(deltaFor(userID, applied.Applied)),
			Replayed:   len(applied.Skipped) > 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ledgerSvc.AfterCommit(ctx, applied)
	return change, nil
}

func findEntry(ctx context.Context, tx domain.Store, userID, requestID string, reason domain.LedgerReason) (*domain.LedgerEntry, error) {
	entries, err := tx.Ledger().ListBySubmission(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up request %s: %w", requestID, err)
	}
	for _, e := range entries {
		if e.UserID == userID && e.Reason == reason {
			return e, nil
		}
	}
	return nil, nil
}
