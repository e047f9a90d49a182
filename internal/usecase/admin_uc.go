package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/freeze"
	"github.com/alfanzaky/refledger/internal/ledger"
	"github.com/alfanzaky/refledger/internal/premium"
	"github.com/alfanzaky/refledger/internal/vip"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/metrics"
	"github.com/alfanzaky/refledger/pkg/utils"
)

const inviteCodeAttempts = 5

type adminUsecase struct {
	store           domain.Store
	locker          domain.UserLocker
	ledger          *ledger.Ledger
	freezer         *freeze.Machine
	policy          *vip.Policy
	clock           clockwork.Clock
	startingBalance decimal.Decimal
}

// NewAdminUsecase creates a new admin use case. New accounts are credited
// startingBalance through a deposit entry when it is positive.
func NewAdminUsecase(
	store domain.Store,
	locker domain.UserLocker,
	ledgerSvc *ledger.Ledger,
	freezer *freeze.Machine,
	policy *vip.Policy,
	clock clockwork.Clock,
	startingBalance decimal.Decimal,
) domain.AdminUsecase {
	return &adminUsecase{
		store:           store,
		locker:          locker,
		ledger:          ledgerSvc,
		freezer:         freezer,
		policy:          policy,
		clock:           clock,
		startingBalance: startingBalance,
	}
}

// GetGlobalPremiumConfig returns the stored premium rule
func (uc *adminUsecase) GetGlobalPremiumConfig(ctx context.Context) (*domain.GlobalPremiumConfig, error) {
	return uc.store.Premium().GetConfig(ctx)
}

// SetGlobalPremiumConfig replaces the premium rule. Already processed
// submissions are not affected.
func (uc *adminUsecase) SetGlobalPremiumConfig(ctx context.Context, enabled bool, position int, amount decimal.Decimal) (*domain.GlobalPremiumConfig, error) {
	if err := premium.ValidateConfig(enabled, position, amount); err != nil {
		return nil, err
	}

	cfg := &domain.GlobalPremiumConfig{
		Enabled:   enabled,
		Position:  position,
		Amount:    amount,
		UpdatedAt: uc.clock.Now(),
	}
	if err := uc.store.Premium().SaveConfig(ctx, cfg); err != nil {
		logger.Error("Failed to save premium config", logger.ErrorField(err))
		return nil, fmt.Errorf("failed to save premium config: %w", err)
	}

	logger.Info("Premium config updated",
		logger.Bool("enabled", enabled),
		logger.Int("position", position),
		logger.Decimal("amount", amount),
	)
	return cfg, nil
}

// AssignPremium makes the user's submission at position premium with amount.
// An open assignment at the same position is superseded. Assignments at
// other positions stay open and fire in turn.
func (uc *adminUsecase) AssignPremium(ctx context.Context, userID string, amount decimal.Decimal, position int) (*domain.PremiumAssignment, error) {
	unlock, err := uc.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	defer unlock()

	assignment := &domain.PremiumAssignment{
		ID:        utils.GenerateUUID(),
		UserID:    userID,
		Amount:    amount,
		Position:  position,
		CreatedAt: uc.clock.Now(),
	}
	err = uc.store.WithinTx(ctx, func(tx domain.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := premium.ValidateAssignment(amount, position, user.SubmissionsCount); err != nil {
			return err
		}

		previous, err := tx.Premium().GetActiveAssignment(ctx, userID, position)
		if err != nil {
			return fmt.Errorf("failed to load premium assignment: %w", err)
		}
		if previous != nil {
			if err := tx.Premium().ConsumeAssignment(ctx, previous.ID, assignment.CreatedAt); err != nil {
				return fmt.Errorf("failed to supersede premium assignment %s: %w", previous.ID, err)
			}
			logger.Info("Premium assignment superseded",
				logger.String("user_id", userID),
				logger.String("assignment_id", previous.ID),
				logger.Int("position", position),
			)
		}

		if err := tx.Premium().SaveAssignment(ctx, assignment); err != nil {
			return fmt.Errorf("failed to save premium assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Premium assigned",
		logger.String("user_id", userID),
		logger.Int("position", position),
		logger.Decimal("amount", amount),
	)
	return assignment, nil
}

// Unfreeze pays back the premium and its pending profit
func (uc *adminUsecase) Unfreeze(ctx context.Context, userID string) (*domain.BalanceChange, error) {
	return uc.transition(ctx, userID, uc.freezer.Unfreeze)
}

// CancelFreeze lifts a freeze and restores the balance held before it
func (uc *adminUsecase) CancelFreeze(ctx context.Context, userID string) (*domain.BalanceChange, error) {
	return uc.transition(ctx, userID, uc.freezer.Cancel)
}

func (uc *adminUsecase) transition(ctx context.Context, userID string, compute func(*domain.User) (*freeze.Transition, error)) (*domain.BalanceChange, error) {
	unlock, err := uc.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	defer unlock()

	var tr *freeze.Transition
	var applied *domain.ApplyResult
	var change *domain.BalanceChange
	err = uc.store.WithinTx(ctx, func(tx domain.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		tr, err = compute(user)
		if err != nil {
			return err
		}

		applied, err = ledger.ApplyTx(ctx, tx, []*domain.LedgerEntry{tr.Entry})
		if err != nil {
			return err
		}
		if err := tx.Submissions().UpdateStatus(ctx, tr.SubmissionID, tr.SubmissionStatus); err != nil {
			return fmt.Errorf("failed to update submission %s: %w", tr.SubmissionID, err)
		}

		tr.ApplyTo(user)
		if err := tx.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("failed to clear freeze of %s: %w", userID, err)
		}

		change = &domain.BalanceChange{
			UserID:     userID,
			Entry:      tr.Entry,
			NewBalance: user.Balance.Add(deltaFor(userID, applied.Applied)),
			Replayed:   len(applied.Skipped) > 0,
		}
		return nil
	})
	if err != nil {
		logger.Warn("Freeze transition rejected", logger.String("user_id", userID), logger.ErrorField(err))
		return nil, err
	}

	uc.ledger.AfterCommit(ctx, applied)
	metrics.RecordFreezeTransition(string(tr.Kind))
	logger.Info("Freeze transition applied",
		logger.String("user_id", userID),
		logger.String("kind", string(tr.Kind)),
		logger.String("submission_id", tr.SubmissionID),
		logger.Decimal("delta", tr.Entry.Delta),
		logger.Decimal("new_balance", change.NewBalance),
	)
	return change, nil
}

// SetTier stores tier as given. Names outside the tier table are kept and
// resolve to Normal's terms.
func (uc *adminUsecase) SetTier(ctx context.Context, userID, tier string) (*domain.User, error) {
	tier = strings.TrimSpace(tier)
	parsed, known := domain.ParseTier(tier)
	if !known {
		if tier == "" {
			return nil, fmt.Errorf("%w: tier is required", domain.ErrInvalidTier)
		}
		parsed = domain.VIPTier(tier)
		logger.Warn("Unknown VIP tier stored, Normal terms apply",
			logger.String("user_id", userID),
			logger.String("tier", tier),
		)
	}

	unlock, err := uc.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", userID, err)
	}
	defer unlock()

	var user *domain.User
	err = uc.store.WithinTx(ctx, func(tx domain.Store) error {
		var err error
		user, err = tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.VIPTier = parsed
		return tx.Users().Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("VIP tier updated", logger.String("user_id", userID), logger.String("tier", string(parsed)))
	return user, nil
}

// Deposit credits amount to userID
func (uc *adminUsecase) Deposit(ctx context.Context, userID string, amount decimal.Decimal, requestID string) (*domain.BalanceChange, error) {
	if !utils.ValidAmount(amount) {
		return nil, domain.ErrInvalidValue
	}

	change, err := applyToUser(ctx, uc.store, uc.locker, uc.ledger, userID, requestID, domain.ReasonDeposit, func(user *domain.User) (*domain.LedgerEntry, error) {
		return newEntry(user.ID, requestID, amount, domain.ReasonDeposit, uc.clock), nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Deposit recorded",
		logger.String("user_id", userID),
		logger.Decimal("amount", amount),
		logger.Bool("replayed", change.Replayed),
	)
	return change, nil
}

// RegisterUser creates an account, optionally under the owner of an invite
// code. The parent link is fixed from here on.
func (uc *adminUsecase) RegisterUser(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	tier := domain.TierNormal
	if req.Tier != "" {
		parsed, known := domain.ParseTier(req.Tier)
		if !known {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTier, req.Tier)
		}
		tier = parsed
	}

	var user *domain.User
	var applied *domain.ApplyResult
	err := uc.store.WithinTx(ctx, func(tx domain.Store) error {
		var parentID *string
		if req.ParentInviteCode != "" {
			parent, err := tx.Users().GetByInviteCode(ctx, req.ParentInviteCode)
			if err != nil {
				return fmt.Errorf("invite code %s: %w", req.ParentInviteCode, err)
			}
			parentID = &parent.ID
		}

		code, err := uniqueInviteCode(ctx, tx.Users())
		if err != nil {
			return err
		}

		now := uc.clock.Now()
		user = &domain.User{
			ID:          utils.GenerateUUID(),
			ParentID:    parentID,
			InviteCode:  code,
			VIPTier:     tier,
			Balance:     decimal.Zero,
			TodayProfit: decimal.Zero,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		if uc.startingBalance.IsPositive() {
			entry := newEntry(user.ID, "signup-"+user.ID, uc.startingBalance, domain.ReasonDeposit, uc.clock)
			applied, err = ledger.ApplyTx(ctx, tx, []*domain.LedgerEntry{entry})
			if err != nil {
				return err
			}
			user.Balance = uc.startingBalance
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to register user", logger.String("invite_code", req.ParentInviteCode), logger.ErrorField(err))
		return nil, err
	}

	uc.ledger.AfterCommit(ctx, applied)
	logger.Info("User registered",
		logger.String("user_id", user.ID),
		logger.String("invite_code", user.InviteCode),
		logger.String("tier", string(user.VIPTier)),
	)
	return user, nil
}

// Reconcile rewrites drifted balance projections of userID, or of everyone
// when userID is empty
func (uc *adminUsecase) Reconcile(ctx context.Context, userID string) ([]*domain.BalanceReport, error) {
	if userID == "" {
		return uc.ledger.ReconcileAll(ctx)
	}
	report, err := uc.ledger.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return []*domain.BalanceReport{report}, nil
}

func uniqueInviteCode(ctx context.Context, users domain.UserRepository) (string, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code := utils.GenerateInviteCode()
		_, err := users.GetByInviteCode(ctx, code)
		if errors.Is(err, domain.ErrUnknownUser) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
	}
	return "", domain.ErrInviteCodeTaken
}
