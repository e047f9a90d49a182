package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/repository/memory"
)

type fakeCache struct {
	mu          sync.Mutex
	balances    map[string]string
	generations map[string]int64
	invalidated []string

	// beforeSet runs once, between the ledger sum and the cache write
	beforeSet func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{balances: map[string]string{}, generations: map[string]int64{}}
}

func (c *fakeCache) GetBalance(_ context.Context, userID string) (string, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.balances[userID]
	return b, c.generations[userID], ok, nil
}

func (c *fakeCache) SetBalance(_ context.Context, userID, balance string, generation int64) (bool, error) {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != generation {
		return false, nil
	}
	c.balances[userID] = balance
	return true, nil
}

func (c *fakeCache) Invalidate(_ context.Context, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.balances, id)
		c.generations[id]++
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

type fakePublisher struct {
	published []*domain.LedgerEntry
}

func (p *fakePublisher) PublishEntries(_ context.Context, entries []*domain.LedgerEntry) error {
	p.published = append(p.published, entries...)
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setup(t *testing.T, ids ...string) (*memory.Store, *Ledger, *fakeCache, *fakePublisher) {
	t.Helper()
	store := memory.NewStore()
	for i, id := range ids {
		require.NoError(t, store.Users().Create(context.Background(), &domain.User{
			ID:         id,
			InviteCode: id + string(rune('A'+i)),
			VIPTier:    domain.TierNormal,
		}))
	}
	cache := newFakeCache()
	pub := &fakePublisher{}
	return store, NewLedger(store, cache, pub), cache, pub
}

func submissionEntries(submissionID string) []*domain.LedgerEntry {
	sid := submissionID
	return []*domain.LedgerEntry{
		{UserID: "s", Delta: d("800"), Reason: domain.ReasonDirectCommission, SubmissionID: &sid},
		{UserID: "p1", Delta: d("200"), Reason: domain.ReasonAncestorCommission, Level: 1, SubmissionID: &sid},
		{UserID: "p2", Delta: d("20"), Reason: domain.ReasonAncestorCommission, Level: 2, SubmissionID: &sid},
	}
}

func balanceOf(t *testing.T, store *memory.Store, id string) decimal.Decimal {
	t.Helper()
	u, err := store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Balance
}

func TestApply_MovesBalancesAndRunsSideEffects(t *testing.T) {
	ctx := context.Background()
	store, l, cache, pub := setup(t, "s", "p1", "p2")

	result, err := l.Apply(ctx, submissionEntries("sub-1"))
	require.NoError(t, err)
	assert.Len(t, result.Applied, 3)
	assert.Empty(t, result.Skipped)
	assert.ElementsMatch(t, []string{"s", "p1", "p2"}, result.Affected)

	assert.True(t, balanceOf(t, store, "s").Equal(d("800")))
	assert.True(t, balanceOf(t, store, "p1").Equal(d("200")))
	assert.True(t, balanceOf(t, store, "p2").Equal(d("20")))

	assert.ElementsMatch(t, []string{"s", "p1", "p2"}, cache.invalidated)
	assert.Len(t, pub.published, 3)
}

func TestApply_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, l, _, pub := setup(t, "s", "p1", "p2")

	_, err := l.Apply(ctx, submissionEntries("sub-1"))
	require.NoError(t, err)

	result, err := l.Apply(ctx, submissionEntries("sub-1"))
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Len(t, result.Skipped, 3)

	assert.True(t, balanceOf(t, store, "s").Equal(d("800")))
	assert.True(t, balanceOf(t, store, "p1").Equal(d("200")))
	assert.True(t, balanceOf(t, store, "p2").Equal(d("20")))
	assert.Len(t, pub.published, 3)
}

func TestApply_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	store, l, _, pub := setup(t, "s", "p1")

	// p2 does not exist, so the whole batch must roll back
	_, err := l.Apply(ctx, submissionEntries("sub-1"))
	require.ErrorIs(t, err, domain.ErrUnknownUser)

	assert.True(t, balanceOf(t, store, "s").IsZero())
	assert.True(t, balanceOf(t, store, "p1").IsZero())

	entries, err := store.Ledger().ListBySubmission(ctx, "sub-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, pub.published)
}

func TestApply_RejectsZeroDelta(t *testing.T) {
	_, l, _, _ := setup(t, "s")
	sid := "sub-1"

	_, err := l.Apply(context.Background(), []*domain.LedgerEntry{
		{UserID: "s", Delta: decimal.Zero, Reason: domain.ReasonDirectCommission, SubmissionID: &sid},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestBalance_ReportsDriftAndReconcileFixesIt(t *testing.T) {
	ctx := context.Background()
	store, l, _, _ := setup(t, "s", "p1", "p2")

	_, err := l.Apply(ctx, submissionEntries("sub-1"))
	require.NoError(t, err)

	report, err := l.Balance(ctx, "s")
	require.NoError(t, err)
	assert.True(t, report.Ledger.Equal(d("800")))
	assert.True(t, report.Drift().IsZero())

	// corrupt the projection behind the ledger's back
	require.NoError(t, store.Users().SetBalance(ctx, "s", d("5")))

	report, err = l.Balance(ctx, "s")
	require.NoError(t, err)
	assert.True(t, report.Ledger.Equal(d("800")))
	assert.True(t, report.Drift().Equal(d("-795")))

	drifted, err := l.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, drifted, 1)
	assert.Equal(t, "s", drifted[0].UserID)
	assert.True(t, balanceOf(t, store, "s").Equal(d("800")))

	report, err = l.Reconcile(ctx, "s")
	require.NoError(t, err)
	assert.True(t, report.Drift().IsZero())
}

func TestBalance_UsesCachedLedgerSum(t *testing.T) {
	ctx := context.Background()
	_, l, cache, _ := setup(t, "s", "p1", "p2")

	_, err := l.Apply(ctx, submissionEntries("sub-1"))
	require.NoError(t, err)

	_, err = l.Balance(ctx, "s")
	require.NoError(t, err)
	cached, _, ok, _ := cache.GetBalance(ctx, "s")
	require.True(t, ok)
	assert.Equal(t, "800", cached)

	// the next batch invalidates the cached sum
	sid := "sub-2"
	_, err = l.Apply(ctx, []*domain.LedgerEntry{{UserID: "s", Delta: d("8"), Reason: domain.ReasonDirectCommission, SubmissionID: &sid}})
	require.NoError(t, err)

	report, err := l.Balance(ctx, "s")
	require.NoError(t, err)
	assert.True(t, report.Ledger.Equal(d("808")))
}

func TestBalance_DoesNotCacheSumInvalidatedWhileReading(t *testing.T) {
	ctx := context.Background()
	_, l, cache, _ := setup(t, "s", "p1", "p2")

	_, err := l.Apply(ctx, submissionEntries("sub-1"))
	require.NoError(t, err)

	sid := "sub-2"
	cache.beforeSet = func() {
		_, err := l.Apply(ctx, []*domain.LedgerEntry{{UserID: "s", Delta: d("50"), Reason: domain.ReasonDirectCommission, SubmissionID: &sid}})
		require.NoError(t, err)
	}

	report, err := l.Balance(ctx, "s")
	require.NoError(t, err)
	assert.True(t, report.Ledger.Equal(d("800")))

	_, _, ok, _ := cache.GetBalance(ctx, "s")
	assert.False(t, ok, "sum read before the concurrent apply must not be cached")

	report, err = l.Balance(ctx, "s")
	require.NoError(t, err)
	assert.True(t, report.Ledger.Equal(d("850")))

	cached, _, ok, _ := cache.GetBalance(ctx, "s")
	require.True(t, ok)
	assert.Equal(t, "850", cached)
}

func TestEarningsAndHistory(t *testing.T) {
	ctx := context.Background()
	_, l, _, _ := setup(t, "s", "p1", "p2")

	_, err := l.Apply(ctx, submissionEntries("sub-1"))
	require.NoError(t, err)
	_, err = l.Apply(ctx, []*domain.LedgerEntry{
		{UserID: "p1", Delta: d("2"), Reason: domain.ReasonAncestorCommission, Level: 2, SubmissionID: strPtr("sub-2")},
	})
	require.NoError(t, err)

	earnings, err := l.Earnings(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, earnings.Direct.Equal(d("200")))
	assert.True(t, earnings.Indirect.Equal(d("2")))
	assert.Len(t, earnings.ByLevel, 2)

	history, err := l.History(ctx, "p1", 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "sub-2", *history[0].SubmissionID)

	_, err = l.Earnings(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownUser)
}

func strPtr(s string) *string {
	return &s
}
