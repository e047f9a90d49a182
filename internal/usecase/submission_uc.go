package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/commission"
	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/freeze"
	"github.com/alfanzaky/refledger/internal/ledger"
	"github.com/alfanzaky/refledger/internal/premium"
	"github.com/alfanzaky/refledger/internal/referral"
	"github.com/alfanzaky/refledger/internal/vip"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/metrics"
	"github.com/alfanzaky/refledger/pkg/utils"
)

type submissionUsecase struct {
	store       domain.Store
	locker      domain.UserLocker
	ledger      *ledger.Ledger
	distributor *commission.Distributor
	freezer     *freeze.Machine
	policy      *vip.Policy
	clock       clockwork.Clock
}

// NewSubmissionUsecase creates a new submission use case
func NewSubmissionUsecase(
	store domain.Store,
	locker domain.UserLocker,
	ledgerSvc *ledger.Ledger,
	distributor *commission.Distributor,
	freezer *freeze.Machine,
	policy *vip.Policy,
	clock clockwork.Clock,
) domain.SubmissionUsecase {
	return &submissionUsecase{
		store:       store,
		locker:      locker,
		ledger:      ledgerSvc,
		distributor: distributor,
		freezer:     freezer,
		policy:      policy,
		clock:       clock,
	}
}

// submitPlan carries what a submission did inside its transaction
type submitPlan struct {
	result     *domain.SubmitResult
	applied    *domain.ApplyResult
	transition *freeze.Transition
	tier       domain.VIPTier
}

// Submit records a product submission for req.UserID. The per-user lock is
// held over reading the balance, evaluating the premium trigger, computing
// the distribution and applying it.
func (uc *submissionUsecase) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.SubmitResult, error) {
	if req.UserID == "" {
		return nil, domain.ErrUnknownUser
	}
	if !utils.ValidAmount(req.Value) {
		return nil, domain.ErrInvalidValue
	}

	unlock, err := uc.locker.Lock(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", req.UserID, err)
	}
	defer unlock()

	var plan *submitPlan
	err = uc.store.WithinTx(ctx, func(tx domain.Store) error {
		var err error
		plan, err = uc.submitTx(ctx, tx, req)
		return err
	})
	if err != nil {
		logger.Warn("Submission rejected",
			logger.String("user_id", req.UserID),
			logger.String("submission_id", req.SubmissionID),
			logger.Decimal("value", req.Value),
			logger.ErrorField(err),
		)
		return nil, err
	}

	if plan.result.Replayed {
		logger.Info("Submission replayed",
			logger.String("user_id", req.UserID),
			logger.String("submission_id", plan.result.Submission.ID),
		)
		return plan.result, nil
	}

	uc.ledger.AfterCommit(ctx, plan.applied)
	metrics.RecordSubmission(string(plan.result.Outcome), string(plan.tier))
	if plan.transition != nil {
		metrics.RecordFreezeTransition(string(plan.transition.Kind))
	}

	logger.Info("Submission processed",
		logger.String("user_id", req.UserID),
		logger.String("submission_id", plan.result.Submission.ID),
		logger.Int("sequence", plan.result.Submission.Sequence),
		logger.String("outcome", string(plan.result.Outcome)),
		logger.Bool("premium", plan.result.Submission.IsPremium),
		logger.Decimal("new_balance", plan.result.NewBalance),
	)

	return plan.result, nil
}

func (uc *submissionUsecase) submitTx(ctx context.Context, tx domain.Store, req domain.SubmitRequest) (*submitPlan, error) {
	if req.SubmissionID != "" {
		existing, err := tx.Submissions().GetByID(ctx, req.SubmissionID)
		switch {
		case err == nil:
			if existing.UserID != req.UserID {
				return nil, fmt.Errorf("submission %s belongs to another user: %w", req.SubmissionID, domain.ErrLedgerConflict)
			}
			result, err := uc.replay(ctx, tx, existing)
			if err != nil {
				return nil, err
			}
			return &submitPlan{result: result}, nil
		case !errors.Is(err, domain.ErrSubmissionNotFound):
			return nil, fmt.Errorf("failed to look up submission %s: %w", req.SubmissionID, err)
		}
	}

	user, err := tx.Users().GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsFrozen() {
		return nil, domain.ErrAccountFrozen
	}

	terms := uc.policy.TermsFor(user.VIPTier)
	if user.PeriodSubmissions >= terms.MaxSubmissions {
		return nil, fmt.Errorf("%w: %d of %d", domain.ErrSubmissionLimitReached, user.PeriodSubmissions, terms.MaxSubmissions)
	}
	if user.Balance.LessThan(terms.MinimumBalance) {
		return nil, fmt.Errorf("%w: %s requires %s", domain.ErrBelowMinimumBalance, user.VIPTier, terms.MinimumBalance)
	}

	index := user.SubmissionsCount + 1
	cfg, err := tx.Premium().GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load premium config: %w", err)
	}
	assignment, err := tx.Premium().GetActiveAssignment(ctx, user.ID, index)
	if err != nil {
		return nil, fmt.Errorf("failed to load premium assignment: %w", err)
	}
	encounter := premium.Resolve(cfg, assignment, index)

	now := uc.clock.Now()
	submissionID := req.SubmissionID
	if submissionID == "" {
		submissionID = utils.GenerateUUID()
	}
	submission := &domain.Submission{
		ID:        submissionID,
		UserID:    user.ID,
		Value:     req.Value,
		IsPremium: encounter.Premium,
		Sequence:  index,
		Status:    domain.SubmissionApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var transition *freeze.Transition
	var entries []*domain.LedgerEntry
	if encounter.Premium {
		submission.Value = encounter.Amount
		transition, err = uc.freezer.Freeze(user, submission, encounter.Amount)
		switch {
		case err == nil:
			submission.Status = transition.SubmissionStatus
			entries = []*domain.LedgerEntry{transition.Entry}
		case errors.Is(err, domain.ErrNoDeficit):
			transition = nil
		default:
			return nil, err
		}

		if encounter.Source == premium.SourceAssignment {
			if err := tx.Premium().ConsumeAssignment(ctx, encounter.AssignmentID, now); err != nil {
				return nil, fmt.Errorf("failed to consume premium assignment: %w", err)
			}
		}
	}

	if transition == nil {
		if submission.Value.GreaterThan(user.Balance) {
			return nil, fmt.Errorf("%w: value %s above balance %s", domain.ErrInsufficientBalance, submission.Value, user.Balance)
		}
		entries, err = uc.distributor.With(referral.NewGraph(tx.Users())).Distribute(ctx, submission, user)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Submissions().Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}
	applied, err := ledger.ApplyTx(ctx, tx, entries)
	if err != nil {
		return nil, err
	}

	user.SubmissionsCount = index
	user.PeriodSubmissions++
	if transition != nil {
		transition.ApplyTo(user)
	}
	if err := tx.Users().Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user counters: %w", err)
	}

	result := &domain.SubmitResult{
		Submission: submission,
		NewBalance: user.Balance.Add(deltaFor(user.ID, applied.Applied)),
	}
	if transition != nil {
		result.Outcome = domain.OutcomeFrozen
		result.UserShare = decimal.Zero
		result.AncestorShares = []domain.AncestorShare{}
		result.Frozen = &domain.FrozenNotice{
			DeficitShown:  transition.Info.DeficitShown,
			PremiumAmount: transition.Info.PremiumAmount,
			PendingProfit: transition.Info.PendingProfit,
		}
	} else {
		result.Outcome = domain.OutcomeCredited
		result.UserShare, result.AncestorShares = commission.Shares(user.ID, entries)
	}

	return &submitPlan{result: result, applied: applied, transition: transition, tier: user.VIPTier}, nil
}

// replay rebuilds the result of an already recorded submission from its
// ledger entries. The balance reported is the current one.
func (uc *submissionUsecase) replay(ctx context.Context, tx domain.Store, submission *domain.Submission) (*domain.SubmitResult, error) {
	user, err := tx.Users().GetByID(ctx, submission.UserID)
	if err != nil {
		return nil, err
	}
	entries, err := tx.Ledger().ListBySubmission(ctx, submission.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries of submission %s: %w", submission.ID, err)
	}

	result := &domain.SubmitResult{
		Submission: submission,
		NewBalance: user.Balance,
		Replayed:   true,
	}

	for _, e := range entries {
		if e.Reason != domain.ReasonFreezeDeficit {
			continue
		}
		notice := &domain.FrozenNotice{PremiumAmount: e.Delta.Neg()}
		if user.IsFrozen() && user.FreezeInfo.SubmissionID == submission.ID {
			notice.DeficitShown = user.FreezeInfo.DeficitShown
			notice.PendingProfit = user.FreezeInfo.PendingProfit
		}
		result.Outcome = domain.OutcomeFrozen
		result.UserShare = decimal.Zero
		result.AncestorShares = []domain.AncestorShare{}
		result.Frozen = notice
		return result, nil
	}

	result.Outcome = domain.OutcomeCredited
	result.UserShare, result.AncestorShares = commission.Shares(user.ID, entries)
	return result, nil
}

func deltaFor(userID string, entries []*domain.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.UserID == userID {
			total = total.Add(e.Delta)
		}
	}
	return total
}
