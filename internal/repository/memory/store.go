// Package memory is an in-process Store used by tests and single-node runs.
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
)

type state struct {
	users       map[string]*domain.User
	inviteCodes map[string]string
	ledger      []*domain.LedgerEntry
	keys        map[domain.EntryKey]struct{}
	submissions map[string]*domain.Submission
	config      *domain.GlobalPremiumConfig
	assignments map[string]*domain.PremiumAssignment
}

func newState() *state {
	return &state{
		users:       make(map[string]*domain.User),
		inviteCodes: make(map[string]string),
		keys:        make(map[domain.EntryKey]struct{}),
		submissions: make(map[string]*domain.Submission),
		config:      &domain.GlobalPremiumConfig{Amount: decimal.Zero},
		assignments: make(map[string]*domain.PremiumAssignment),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[string]*domain.User, len(s.users)),
		inviteCodes: make(map[string]string, len(s.inviteCodes)),
		ledger:      make([]*domain.LedgerEntry, len(s.ledger)),
		keys:        make(map[domain.EntryKey]struct{}, len(s.keys)),
		submissions: make(map[string]*domain.Submission, len(s.submissions)),
		assignments: make(map[string]*domain.PremiumAssignment, len(s.assignments)),
	}
	for id, u := range s.users {
		c.users[id] = copyUser(u)
	}
	for code, id := range s.inviteCodes {
		c.inviteCodes[code] = id
	}
	copy(c.ledger, s.ledger)
	for k := range s.keys {
		c.keys[k] = struct{}{}
	}
	for id, sub := range s.submissions {
		cp := *sub
		c.submissions[id] = &cp
	}
	cfg := *s.config
	c.config = &cfg
	for id, a := range s.assignments {
		cp := *a
		c.assignments[id] = &cp
	}
	return c
}

// Store keeps all state behind one mutex. A transaction works on a copy of
// the state and swaps it in on success.
type Store struct {
	mu   *sync.Mutex
	root *Store
	st   *state
	inTx bool
}

// NewStore creates an empty store
func NewStore() *Store {
	s := &Store{mu: &sync.Mutex{}, st: newState()}
	s.root = s
	return s
}

// view runs fn against the current state, locking unless already inside a transaction
func (s *Store) view(fn func(st *state) error) error {
	if s.inTx {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// WithinTx runs fn against a private copy of the state. Nested calls join the
// outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, root: s.root, st: s.root.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.root.st = tx.st
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Users() domain.UserRepository {
	return &userRepository{s: s}
}

func (s *Store) Ledger() domain.LedgerRepository {
	return &ledgerRepository{s: s}
}

func (s *Store) Submissions() domain.SubmissionRepository {
	return &submissionRepository{s: s}
}

func (s *Store) Premium() domain.PremiumRepository {
	return &premiumRepository{s: s}
}

func copyUser(u *domain.User) *domain.User {
	cp := *u
	if u.ParentID != nil {
		parent := *u.ParentID
		cp.ParentID = &parent
	}
	if u.FreezeInfo != nil {
		info := *u.FreezeInfo
		cp.FreezeInfo = &info
	}
	return &cp
}

func copyEntry(e *domain.LedgerEntry) *domain.LedgerEntry {
	cp := *e
	if e.SubmissionID != nil {
		id := *e.SubmissionID
		cp.SubmissionID = &id
	}
	return &cp
}
