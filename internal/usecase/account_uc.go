package usecase

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/ledger"
	"github.com/alfanzaky/refledger/internal/vip"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/utils"
)

type accountUsecase struct {
	store  domain.Store
	locker domain.UserLocker
	ledger *ledger.Ledger
	policy *vip.Policy
	clock  clockwork.Clock
}

// NewAccountUsecase creates a new account use case
func NewAccountUsecase(
	store domain.Store,
	locker domain.UserLocker,
	ledgerSvc *ledger.Ledger,
	policy *vip.Policy,
	clock clockwork.Clock,
) domain.AccountUsecase {
	return &accountUsecase{
		store:  store,
		locker: locker,
		ledger: ledgerSvc,
		policy: policy,
		clock:  clock,
	}
}

// GetBalance returns the ledger balance with the account's counters
func (uc *accountUsecase) GetBalance(ctx context.Context, userID string) (*domain.AccountSummary, error) {
	user, err := uc.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	report, err := uc.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.AccountSummary{
		UserID:            user.ID,
		Balance:           report.Ledger,
		VIPTier:           user.VIPTier,
		SubmissionsCount:  user.SubmissionsCount,
		PeriodSubmissions: user.PeriodSubmissions,
		MaxSubmissions:    uc.policy.MaxSubmissionsFor(user.VIPTier),
		TodayProfit:       user.TodayProfit,
		Frozen:            user.IsFrozen(),
		Freeze:            user.FreezeInfo,
	}, nil
}

// GetReferralEarnings returns ancestor commissions received by userID
func (uc *accountUsecase) GetReferralEarnings(ctx context.Context, userID string) (*domain.ReferralEarnings, error) {
	return uc.ledger.Earnings(ctx, userID)
}

// GetLedger returns a page of userID's ledger, newest first
func (uc *accountUsecase) GetLedger(ctx context.Context, userID string, page, limit int) ([]*domain.LedgerEntry, error) {
	return uc.ledger.History(ctx, userID, page, limit)
}

// Withdraw debits amount from an active account
func (uc *accountUsecase) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, requestID string) (*domain.BalanceChange, error) {
	if !utils.ValidAmount(amount) {
		return nil, domain.ErrInvalidValue
	}

	change, err := applyToUser(ctx, uc.store, uc.locker, uc.ledger, userID, requestID, domain.ReasonWithdrawal, func(user *domain.User) (*domain.LedgerEntry, error) {
		if user.IsFrozen() {
			return nil, domain.ErrAccountFrozen
		}
		if !user.HasSufficientBalance(amount) {
			return nil, fmt.Errorf("%w: withdraw %s from %s", domain.ErrInsufficientBalance, amount, user.Balance)
		}
		return newEntry(user.ID, requestID, amount.Neg(), domain.ReasonWithdrawal, uc.clock), nil
	})
	if err != nil {
		logger.Warn("Withdrawal rejected",
			logger.String("user_id", userID),
			logger.Decimal("amount", amount),
			logger.ErrorField(err),
		)
		return nil, err
	}

	logger.Info("Withdrawal recorded",
		logger.String("user_id", userID),
		logger.Decimal("amount", amount),
		logger.Bool("replayed", change.Replayed),
	)
	return change, nil
}

// newEntry builds a standalone entry keyed by requestID when one is given
func newEntry(userID, requestID string, delta decimal.Decimal, reason domain.LedgerReason, clock clockwork.Clock) *domain.LedgerEntry {
	entry := &domain.LedgerEntry{
		ID:        utils.GenerateUUID(),
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: clock.Now(),
	}
	if requestID != "" {
		entry.SubmissionID = &requestID
	}
	return entry
}
