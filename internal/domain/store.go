package domain

import "context"

// Store groups the repositories of the commission core. Repositories obtained
// from the Store passed to WithinTx share one atomic transaction.
type Store interface {
	Users() UserRepository
	Ledger() LedgerRepository
	Submissions() SubmissionRepository
	Premium() PremiumRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// UserLocker serializes work for a single user across goroutines or instances.
type UserLocker interface {
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

// BalanceCache holds short-lived copies of authoritative balances. Every
// Invalidate bumps the user's generation. GetBalance reports the generation
// seen on a miss and SetBalance stores only while it is still current, so a
// sum read before an invalidation is never cached after it.
type BalanceCache interface {
	GetBalance(ctx context.Context, userID string) (balance string, generation int64, ok bool, err error)
	SetBalance(ctx context.Context, userID, balance string, generation int64) (bool, error)
	Invalidate(ctx context.Context, userIDs ...string) error
}
