package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/internal/ledger"
	"github.com/alfanzaky/refledger/internal/repository/memory"
)

func seedUser(t *testing.T, store *memory.Store, id string, period int, profit string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Users().Create(ctx, &domain.User{
		ID:         id,
		InviteCode: "INV-" + id,
		VIPTier:    domain.TierNormal,
	}))
	user, err := store.Users().GetByID(ctx, id)
	require.NoError(t, err)
	user.PeriodSubmissions = period
	user.TodayProfit = decimal.RequireFromString(profit)
	require.NoError(t, store.Users().Update(ctx, user))
}

func TestResetPeriod(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(t, store, "u1", 12, "750")
	seedUser(t, store, "u2", 0, "0")

	s := NewScheduler(store, ledger.NewLedger(store, nil, nil), clockwork.NewFakeClock(), SchedulerConfig{})
	require.NoError(t, s.ResetPeriod(ctx))

	user, err := store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, user.PeriodSubmissions)
	assert.True(t, user.TodayProfit.IsZero())
}

func TestReconcile_RepairsDrift(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(t, store, "u1", 0, "0")
	ledgerSvc := ledger.NewLedger(store, nil, nil)

	_, err := ledgerSvc.Apply(ctx, []*domain.LedgerEntry{
		{UserID: "u1", Delta: decimal.NewFromInt(300), Reason: domain.ReasonDeposit},
	})
	require.NoError(t, err)
	require.NoError(t, store.Users().SetBalance(ctx, "u1", decimal.NewFromInt(999)))

	s := NewScheduler(store, ledgerSvc, clockwork.NewFakeClock(), SchedulerConfig{})
	require.NoError(t, s.Reconcile(ctx))

	user, err := store.Users().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(300)))
}

type failingReconciler struct{ calls int }

func (f *failingReconciler) ReconcileAll(context.Context) ([]*domain.BalanceReport, error) {
	f.calls++
	return nil, errors.New("boom")
}

func TestRun_SwallowsJobErrors(t *testing.T) {
	reconciler := &failingReconciler{}
	s := NewScheduler(memory.NewStore(), reconciler, clockwork.NewFakeClock(), SchedulerConfig{})

	assert.NotPanics(t, func() { s.run(JobReconcile, s.Reconcile) })
	assert.Equal(t, 1, reconciler.calls)
}

func TestStart_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(memory.NewStore(), &failingReconciler{}, nil, SchedulerConfig{ReconcileSpec: "not a spec"})
	assert.Error(t, s.Start(context.Background()))
}

func TestStart_StopsOnCancel(t *testing.T) {
	s := NewScheduler(memory.NewStore(), &failingReconciler{}, nil, SchedulerConfig{
		ReconcileSpec:   "@every 1h",
		PeriodResetSpec: "0 0 * * *",
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
