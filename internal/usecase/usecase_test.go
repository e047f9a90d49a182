package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfanzaky/refledger/internal/commission"
	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/freeze"
	"github.com/alfanzaky/refledger/internal/ledger"
	"github.com/alfanzaky/refledger/internal/lock"
	"github.com/alfanzaky/refledger/internal/referral"
	"github.com/alfanzaky/refledger/internal/repository/memory"
	"github.com/alfanzaky/refledger/internal/vip"
)

type harness struct {
	store   *memory.Store
	submit  domain.SubmissionUsecase
	account domain.AccountUsecase
	admin   domain.AdminUsecase
	clock   *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	locker := lock.NewKeyed()
	clock := clockwork.NewFakeClock()
	policy := vip.NewPolicy()
	ledgerSvc := ledger.NewLedger(store, nil, nil)
	distributor := commission.NewDistributor(referral.NewGraph(store.Users()), commission.DefaultConfig(), clock)
	freezer := freeze.NewMachine(policy, freeze.DefaultBoost, clock)

	return &harness{
		store:   store,
		submit:  NewSubmissionUsecase(store, locker, ledgerSvc, distributor, freezer, policy, clock),
		account: NewAccountUsecase(store, locker, ledgerSvc, policy, clock),
		admin:   NewAdminUsecase(store, locker, ledgerSvc, freezer, policy, clock, decimal.Zero),
		clock:   clock,
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// register creates a user under parent (nil for a root) funded with balance
func (h *harness) register(t *testing.T, parent *domain.User, tier, balance string) *domain.User {
	t.Helper()
	ctx := context.Background()
	req := domain.RegisterRequest{Tier: tier}
	if parent != nil {
		req.ParentInviteCode = parent.InviteCode
	}
	user, err := h.admin.RegisterUser(ctx, req)
	require.NoError(t, err)
	if b := d(balance); b.IsPositive() {
		_, err = h.admin.Deposit(ctx, user.ID, b, "seed-"+user.ID)
		require.NoError(t, err)
	}
	return user
}

func (h *harness) setCounters(t *testing.T, userID string, total, period int) {
	t.Helper()
	ctx := context.Background()
	user, err := h.store.Users().GetByID(ctx, userID)
	require.NoError(t, err)
	user.SubmissionsCount = total
	user.PeriodSubmissions = period
	require.NoError(t, h.store.Users().Update(ctx, user))
}

func (h *harness) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	summary, err := h.account.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return summary.Balance
}

func TestSubmit_CommissionScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	grand := h.register(t, nil, "", "0")
	parent := h.register(t, grand, "", "0")
	user := h.register(t, parent, "", "1000")

	result, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("1000")})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCredited, result.Outcome)
	assert.True(t, result.UserShare.Equal(d("800")))
	require.Len(t, result.AncestorShares, 2)
	assert.Equal(t, parent.ID, result.AncestorShares[0].UserID)
	assert.True(t, result.AncestorShares[0].Amount.Equal(d("200")))
	assert.Equal(t, grand.ID, result.AncestorShares[1].UserID)
	assert.True(t, result.AncestorShares[1].Amount.Equal(d("20")))
	assert.True(t, result.NewBalance.Equal(d("1800")))
	assert.Equal(t, 1, result.Submission.Sequence)

	assert.True(t, h.balance(t, user.ID).Equal(d("1800")))
	assert.True(t, h.balance(t, parent.ID).Equal(d("200")))
	assert.True(t, h.balance(t, grand.ID).Equal(d("20")))

	earnings, err := h.account.GetReferralEarnings(ctx, grand.ID)
	require.NoError(t, err)
	assert.True(t, earnings.Direct.IsZero())
	assert.True(t, earnings.Indirect.Equal(d("20")))
}

func TestSubmit_PremiumFreezeAndUnfreeze(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, nil, "Silver", "3000")
	h.setCounters(t, user.ID, 26, 0)

	_, err := h.admin.SetGlobalPremiumConfig(ctx, true, 27, d("10000"))
	require.NoError(t, err)

	result, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("50"), SubmissionID: "sub-27"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFrozen, result.Outcome)
	require.NotNil(t, result.Frozen)
	assert.True(t, result.Frozen.DeficitShown.Equal(d("7000")))
	assert.True(t, result.Frozen.PremiumAmount.Equal(d("10000")))
	assert.True(t, result.Frozen.PendingProfit.Equal(d("750")))
	assert.True(t, result.NewBalance.Equal(d("-7000")))
	assert.True(t, result.Submission.IsPremium)
	assert.Equal(t, domain.SubmissionPending, result.Submission.Status)

	_, err = h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("10")})
	assert.ErrorIs(t, err, domain.ErrAccountFrozen)

	_, err = h.account.Withdraw(ctx, user.ID, d("1"), "")
	assert.ErrorIs(t, err, domain.ErrAccountFrozen)

	change, err := h.admin.Unfreeze(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, change.NewBalance.Equal(d("13750")))
	assert.True(t, h.balance(t, user.ID).Equal(d("13750")))

	summary, err := h.account.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, summary.Frozen)
	assert.True(t, summary.TodayProfit.Equal(d("750")))

	sub, err := h.store.Submissions().GetByID(ctx, "sub-27")
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionApproved, sub.Status)

	_, err = h.admin.Unfreeze(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrNotFrozen)
}

func TestSubmit_PremiumWithoutDeficitIsCredited(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, nil, "", "20000")

	_, err := h.admin.SetGlobalPremiumConfig(ctx, true, 1, d("10000"))
	require.NoError(t, err)

	result, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("5")})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCredited, result.Outcome)
	assert.True(t, result.Submission.IsPremium)
	assert.True(t, result.Submission.Value.Equal(d("10000")))
	assert.True(t, result.UserShare.Equal(d("8000")))
	assert.True(t, result.NewBalance.Equal(d("28000")))
}

func TestSubmit_AssignmentTakesPrecedenceAndIsConsumed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, nil, "", "100")

	_, err := h.admin.SetGlobalPremiumConfig(ctx, true, 1, d("99999"))
	require.NoError(t, err)
	assignment, err := h.admin.AssignPremium(ctx, user.ID, d("500"), 1)
	require.NoError(t, err)

	result, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("5")})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFrozen, result.Outcome)
	assert.True(t, result.Frozen.PremiumAmount.Equal(d("500")))

	active, err := h.store.Premium().GetActiveAssignment(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, active, "assignment %s should be consumed", assignment.ID)

	_, err = h.admin.AssignPremium(ctx, user.ID, d("500"), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidPremiumConfig)
}

func TestSubmit_AssignmentsAtDifferentPositionsEachFire(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, nil, "", "100")

	first, err := h.admin.AssignPremium(ctx, user.ID, d("500"), 2)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	second, err := h.admin.AssignPremium(ctx, user.ID, d("700"), 5)
	require.NoError(t, err)

	result, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("10")})
	require.NoError(t, err)
	assert.False(t, result.Submission.IsPremium)

	result, err = h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("10")})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeFrozen, result.Outcome)
	assert.True(t, result.Submission.IsPremium)
	assert.True(t, result.Frozen.PremiumAmount.Equal(d("500")))

	consumed, err := h.store.Premium().GetActiveAssignment(ctx, user.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, consumed, "assignment %s should be consumed", first.ID)

	open, err := h.store.Premium().GetActiveAssignment(ctx, user.ID, 5)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, second.ID, open.ID)
}

func TestAssignPremium_SupersedesSamePosition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, nil, "", "100")

	_, err := h.admin.AssignPremium(ctx, user.ID, d("500"), 1)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	latest, err := h.admin.AssignPremium(ctx, user.ID, d("800"), 1)
	require.NoError(t, err)

	open, err := h.store.Premium().GetActiveAssignment(ctx, user.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, latest.ID, open.ID)

	result, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("5")})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeFrozen, result.Outcome)
	assert.True(t, result.Frozen.PremiumAmount.Equal(d("800")))
}

func TestCancelFreeze_RestoresOriginalBalance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, nil, "", "250")

	_, err := h.admin.AssignPremium(ctx, user.ID, d("1000"), 1)
	require.NoError(t, err)
	result, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("5"), SubmissionID: "p1"})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeFrozen, result.Outcome)

	change, err := h.admin.CancelFreeze(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, change.NewBalance.Equal(d("250")))
	assert.True(t, h.balance(t, user.ID).Equal(d("250")))

	sub, err := h.store.Submissions().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionCancelled, sub.Status)
}

func TestSubmit_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	parent := h.register(t, nil, "", "0")
	user := h.register(t, parent, "", "100")
	other := h.register(t, nil, "", "100")

	first, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("100"), SubmissionID: "retry-me"})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: user.ID, Value: d("100"), SubmissionID: "retry-me"})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.True(t, second.UserShare.Equal(first.UserShare))
	assert.Len(t, second.AncestorShares, 1)

	assert.True(t, h.balance(t, user.ID).Equal(d("180")))
	assert.True(t, h.balance(t, parent.ID).Equal(d("20")))

	summary, err := h.account.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SubmissionsCount)

	_, err = h.submit.Submit(ctx, domain.SubmitRequest{UserID: other.ID, Value: d("100"), SubmissionID: "retry-me"})
	assert.ErrorIs(t, err, domain.ErrLedgerConflict)
}

func TestSubmit_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	poor := h.register(t, nil, "", "10")
	gold := h.register(t, nil, "Gold", "100")
	busy := h.register(t, nil, "", "1000")
	h.setCounters(t, busy.ID, 40, 40)

	_, err := h.submit.Submit(ctx, domain.SubmitRequest{UserID: poor.ID, Value: d("50")})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = h.submit.Submit(ctx, domain.SubmitRequest{UserID: poor.ID, Value: d("0")})
	assert.ErrorIs(t, err, domain.ErrInvalidValue)

	_, err = h.submit.Submit(ctx, domain.SubmitRequest{UserID: poor.ID, Value: d("1.005")})
	assert.ErrorIs(t, err, domain.ErrInvalidValue)

	_, err = h.submit.Submit(ctx, domain.SubmitRequest{UserID: gold.ID, Value: d("10")})
	assert.ErrorIs(t, err, domain.ErrBelowMinimumBalance)

	_, err = h.submit.Submit(ctx, domain.SubmitRequest{UserID: busy.ID, Value: d("10")})
	assert.ErrorIs(t, err, domain.ErrSubmissionLimitReached)

	_, err = h.submit.Submit(ctx, domain.SubmitRequest{UserID: "ghost", Value: d("10")})
	assert.ErrorIs(t, err, domain.ErrUnknownUser)

	history, err := h.account.GetLedger(ctx, poor.ID, 1, 50)
	require.NoError(t, err)
	assert.Len(t, history, 1, "only the seed deposit is recorded")
}

func TestSubmit_ConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	parent := h.register(t, nil, "", "0")
	user := h.register(t, parent, "", "100")
	other := h.register(t, parent, "", "100")

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, id := range []string{user.ID, other.ID} {
			wg.Add(1)
			go func(userID string, i int) {
				defer wg.Done()
				_, err := h.submit.Submit(ctx, domain.SubmitRequest{
					UserID:       userID,
					Value:        d("10"),
					SubmissionID: fmt.Sprintf("%s-%d", userID, i),
				})
				assert.NoError(t, err)
			}(id, i)
		}
	}
	wg.Wait()

	summary, err := h.account.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, n, summary.SubmissionsCount)
	assert.True(t, summary.Balance.Equal(d("260")))
	assert.True(t, h.balance(t, parent.ID).Equal(d("80")))

	reports, err := h.admin.Reconcile(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestWithdrawAndDeposit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, nil, "", "100")

	change, err := h.account.Withdraw(ctx, user.ID, d("40"), "w-1")
	require.NoError(t, err)
	assert.True(t, change.NewBalance.Equal(d("60")))
	assert.Equal(t, domain.ReasonWithdrawal, change.Entry.Reason)

	change, err = h.account.Withdraw(ctx, user.ID, d("40"), "w-1")
	require.NoError(t, err)
	assert.True(t, change.Replayed)
	assert.True(t, h.balance(t, user.ID).Equal(d("60")))

	_, err = h.account.Withdraw(ctx, user.ID, d("61"), "w-2")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = h.admin.Deposit(ctx, user.ID, d("-1"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidValue)

	change, err = h.admin.Deposit(ctx, user.ID, d("15.50"), "")
	require.NoError(t, err)
	assert.True(t, change.NewBalance.Equal(d("75.50")))
}

func TestSetTier_UnknownFallsBackToNormal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.register(t, nil, "", "0")

	updated, err := h.admin.SetTier(ctx, user.ID, "gold")
	require.NoError(t, err)
	assert.Equal(t, domain.TierGold, updated.VIPTier)

	updated, err = h.admin.SetTier(ctx, user.ID, "Bronze")
	require.NoError(t, err)
	assert.Equal(t, domain.VIPTier("Bronze"), updated.VIPTier)

	summary, err := h.account.GetBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, summary.MaxSubmissions)

	_, err = h.admin.RegisterUser(ctx, domain.RegisterRequest{Tier: "Bronze"})
	assert.ErrorIs(t, err, domain.ErrInvalidTier)

	_, err = h.admin.SetTier(ctx, user.ID, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidTier)

	_, err = h.admin.RegisterUser(ctx, domain.RegisterRequest{ParentInviteCode: "NOPE0000"})
	assert.ErrorIs(t, err, domain.ErrUnknownUser)
}

func TestSetGlobalPremiumConfig_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.admin.SetGlobalPremiumConfig(ctx, true, 0, d("100"))
	assert.ErrorIs(t, err, domain.ErrInvalidPremiumConfig)

	_, err = h.admin.SetGlobalPremiumConfig(ctx, true, 5, d("0"))
	assert.ErrorIs(t, err, domain.ErrInvalidPremiumConfig)

	cfg, err := h.admin.SetGlobalPremiumConfig(ctx, false, 0, decimal.Zero)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)

	stored, err := h.admin.GetGlobalPremiumConfig(ctx)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}
