package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
	"github.com/alfanzaky/refledger/pkg/metrics"
)

const (
	JobReconcile   = "reconcile"
	JobPeriodReset = "period-reset"
)

// Reconciler rebuilds cached balances from the ledger
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]*domain.BalanceReport, error)
}

// SchedulerConfig defines the cron specs of the maintenance jobs. An empty
// spec disables the job.
type SchedulerConfig struct {
	ReconcileSpec   string
	PeriodResetSpec string
	Location        *time.Location
	JobTimeout      time.Duration
}

// Scheduler runs periodic maintenance: balance reconciliation and the daily
// reset of period counters.
type Scheduler struct {
	cron       *cron.Cron
	store      domain.Store
	reconciler Reconciler
	clock      clockwork.Clock
	cfg        SchedulerConfig
	ctx        context.Context
}

// NewScheduler builds a scheduler. Start must be called to register and run jobs.
func NewScheduler(store domain.Store, reconciler Reconciler, clock clockwork.Clock, cfg SchedulerConfig) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	log := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		store:      store,
		reconciler: reconciler,
		clock:      clock,
		cfg:        cfg,
		ctx:        context.Background(),
	}
}

// Start registers the jobs and launches the cron loop. It blocks until ctx is
// cancelled and waits for running jobs before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	if s.cfg.ReconcileSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.ReconcileSpec, func() { s.run(JobReconcile, s.Reconcile) }); err != nil {
			return fmt.Errorf("failed to add reconcile job: %w", err)
		}
	}
	if s.cfg.PeriodResetSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.PeriodResetSpec, func() { s.run(JobPeriodReset, s.ResetPeriod) }); err != nil {
			return fmt.Errorf("failed to add period reset job: %w", err)
		}
	}

	s.cron.Start()
	logger.Info("Scheduler started",
		logger.String("reconcile", s.cfg.ReconcileSpec),
		logger.String("period_reset", s.cfg.PeriodResetSpec),
		logger.String("location", s.cfg.Location.String()),
	)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
	return nil
}

// Reconcile rewrites every drifted cached balance from the ledger sum
func (s *Scheduler) Reconcile(ctx context.Context) error {
	drifted, err := s.reconciler.ReconcileAll(ctx)
	for _, report := range drifted {
		logger.Warn("Reconciled drifted balance",
			logger.String("user_id", report.UserID),
			logger.Decimal("ledger", report.Ledger),
			logger.Decimal("cached", report.Cached),
		)
	}
	return err
}

// ResetPeriod zeroes period submissions and today's profit for all users
func (s *Scheduler) ResetPeriod(ctx context.Context) error {
	var reset int64
	err := s.store.WithinTx(ctx, func(tx domain.Store) error {
		n, err := tx.Users().ResetPeriodCounters(ctx)
		reset = n
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reset period counters: %w", err)
	}

	logger.Info("Period counters reset", logger.Int64("users", reset))
	return nil
}

func (s *Scheduler) run(job string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()

	start := s.clock.Now()
	err := fn(ctx)
	duration := s.clock.Since(start)

	if err != nil {
		metrics.RecordJobRun(job, "error", duration.Seconds())
		logger.Error("Scheduled job failed",
			logger.String("job", job),
			logger.Duration("duration", duration),
			logger.ErrorField(err),
		)
		return
	}

	metrics.RecordJobRun(job, "success", duration.Seconds())
	logger.Info("Scheduled job finished",
		logger.String("job", job),
		logger.Duration("duration", duration),
	)
}

// cronLogger routes cron's own logging into zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
