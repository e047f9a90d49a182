package freeze

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/vip"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newMachine() *Machine {
	return NewMachine(vip.NewPolicy(), DefaultBoost, clockwork.NewFakeClock())
}

// applyBalance mimics the ledger applying a transition's entry.
func applyBalance(user *domain.User, tr *Transition) {
	user.Balance = user.Balance.Add(tr.Entry.Delta)
	tr.ApplyTo(user)
}

func TestFreezeUnfreeze_SilverScenario(t *testing.T) {
	m := newMachine()
	user := &domain.User{ID: "u1", VIPTier: domain.TierSilver, Balance: d("3000")}
	sub := &domain.Submission{ID: "sub-27", UserID: "u1", Value: d("10000"), IsPremium: true, Sequence: 27}

	tr, err := m.Freeze(user, sub, d("10000"))
	require.NoError(t, err)
	assert.Equal(t, KindFreeze, tr.Kind)
	assert.Equal(t, domain.ReasonFreezeDeficit, tr.Entry.Reason)
	assert.True(t, tr.Entry.Delta.Equal(d("-10000")))
	assert.True(t, tr.NewBalance.Equal(d("-7000")))
	assert.True(t, tr.Info.DeficitShown.Equal(d("7000")))
	assert.True(t, tr.Info.PendingProfit.Equal(d("750")))
	assert.Equal(t, domain.SubmissionPending, tr.SubmissionStatus)

	applyBalance(user, tr)
	assert.True(t, user.IsFrozen())
	assert.True(t, user.Balance.Equal(d("-7000")))

	tr, err = m.Unfreeze(user)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonUnfreezeCredit, tr.Entry.Reason)
	assert.True(t, tr.Entry.Delta.Equal(d("20750")))
	assert.True(t, tr.NewBalance.Equal(d("13750")))
	assert.Equal(t, domain.SubmissionApproved, tr.SubmissionStatus)
	require.NotNil(t, tr.Entry.SubmissionID)
	assert.Equal(t, "sub-27", *tr.Entry.SubmissionID)

	applyBalance(user, tr)
	assert.False(t, user.IsFrozen())
	assert.Nil(t, user.FreezeInfo)
	assert.True(t, user.Balance.Equal(d("13750")))
	assert.True(t, user.TodayProfit.Equal(d("750")))
}

func TestFreezeUnfreeze_Conservation(t *testing.T) {
	balances := []string{"0", "-250", "0.01", "99.99", "4999.99"}
	tiers := []domain.VIPTier{domain.TierNormal, domain.TierGold, domain.TierDiamond, "Bronze"}
	m := newMachine()

	for _, b := range balances {
		for _, tier := range tiers {
			before := d(b)
			user := &domain.User{ID: "u", VIPTier: tier, Balance: before}
			premium := d("5000")

			tr, err := m.Freeze(user, &domain.Submission{ID: "s"}, premium)
			require.NoError(t, err, "balance %s", b)
			profit := tr.Info.PendingProfit
			applyBalance(user, tr)

			tr, err = m.Unfreeze(user)
			require.NoError(t, err)
			applyBalance(user, tr)

			want := before.Add(premium).Add(profit)
			assert.True(t, user.Balance.Equal(want), "balance %s tier %s: got %s want %s", b, tier, user.Balance, want)
		}
	}
}

func TestUnfreeze_KeepsCreditsReceivedWhileFrozen(t *testing.T) {
	m := newMachine()
	user := &domain.User{ID: "u", VIPTier: domain.TierSilver, Balance: d("3000")}

	tr, err := m.Freeze(user, &domain.Submission{ID: "s"}, d("10000"))
	require.NoError(t, err)
	applyBalance(user, tr)

	// a downline commission lands while frozen
	user.Balance = user.Balance.Add(d("40"))

	tr, err = m.Unfreeze(user)
	require.NoError(t, err)
	applyBalance(user, tr)
	assert.True(t, user.Balance.Equal(d("13790")))
}

func TestCancel_RestoresOriginalBalance(t *testing.T) {
	m := newMachine()
	user := &domain.User{ID: "u", VIPTier: domain.TierGold, Balance: d("120.50")}

	tr, err := m.Freeze(user, &domain.Submission{ID: "s"}, d("900"))
	require.NoError(t, err)
	applyBalance(user, tr)

	tr, err = m.Cancel(user)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonFreezeCancel, tr.Entry.Reason)
	assert.Equal(t, domain.SubmissionCancelled, tr.SubmissionStatus)
	applyBalance(user, tr)

	assert.True(t, user.Balance.Equal(d("120.50")))
	assert.False(t, user.IsFrozen())
	assert.True(t, user.TodayProfit.IsZero())
}

func TestFreeze_NoDeficit(t *testing.T) {
	m := newMachine()

	for _, b := range []string{"10000", "10000.01"} {
		user := &domain.User{ID: "u", Balance: d(b)}
		_, err := m.Freeze(user, &domain.Submission{ID: "s"}, d("10000"))
		assert.ErrorIs(t, err, domain.ErrNoDeficit, "balance %s", b)
	}
}

func TestFreeze_Errors(t *testing.T) {
	m := newMachine()

	_, err := m.Freeze(nil, &domain.Submission{ID: "s"}, d("10"))
	assert.ErrorIs(t, err, domain.ErrUnknownUser)

	_, err = m.Freeze(&domain.User{ID: "u"}, &domain.Submission{ID: "s"}, d("0"))
	assert.ErrorIs(t, err, domain.ErrInvalidValue)

	frozen := &domain.User{ID: "u"}
	frozen.SetFrozen(domain.FreezeInfo{PremiumAmount: d("10")})
	_, err = m.Freeze(frozen, &domain.Submission{ID: "s"}, d("10"))
	assert.ErrorIs(t, err, domain.ErrAccountFrozen)
}

func TestUnfreezeAndCancel_RequireFrozen(t *testing.T) {
	m := newMachine()
	user := &domain.User{ID: "u", Balance: d("5")}

	_, err := m.Unfreeze(user)
	assert.ErrorIs(t, err, domain.ErrNotFrozen)

	_, err = m.Cancel(user)
	assert.ErrorIs(t, err, domain.ErrNotFrozen)

	_, err = m.Unfreeze(nil)
	assert.ErrorIs(t, err, domain.ErrUnknownUser)
}

func TestPendingProfit_UnknownTierUsesNormal(t *testing.T) {
	m := newMachine()
	assert.True(t, m.PendingProfit("Bronze", d("1000")).Equal(d("50")))
	assert.True(t, m.PendingProfit(domain.TierDiamond, d("1000")).Equal(d("150")))
	assert.True(t, m.PendingProfit(domain.TierNormal, d("33.33")).Equal(d("1.67")))
}
