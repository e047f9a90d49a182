package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfanzaky/refledger/internal/domain"
)

type userRepository struct {
	s *Store
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return fmt.Errorf("user %s already exists", user.ID)
		}
		if _, ok := st.inviteCodes[user.InviteCode]; ok {
			return domain.ErrInviteCodeTaken
		}
		st.users[user.ID] = copyUser(user)
		st.inviteCodes[user.InviteCode] = user.ID
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user *domain.User
	err := r.s.view(func(st *state) error {
		u, ok := st.users[id]
		if !ok || u.DeletedAt != nil {
			return domain.ErrUnknownUser
		}
		user = copyUser(u)
		return nil
	})
	return user, err
}

func (r *userRepository) GetByInviteCode(ctx context.Context, code string) (*domain.User, error) {
	var user *domain.User
	err := r.s.view(func(st *state) error {
		id, ok := st.inviteCodes[code]
		if !ok {
			return domain.ErrUnknownUser
		}
		user = copyUser(st.users[id])
		return nil
	})
	return user, err
}

func (r *userRepository) GetParentID(ctx context.Context, id string) (*string, error) {
	var parent *string
	err := r.s.view(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return domain.ErrUnknownUser
		}
		if u.ParentID != nil {
			p := *u.ParentID
			parent = &p
		}
		return nil
	})
	return parent, err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return r.s.view(func(st *state) error {
		current, ok := st.users[user.ID]
		if !ok {
			return domain.ErrUnknownUser
		}
		updated := copyUser(user)
		updated.Balance = current.Balance
		updated.InviteCode = current.InviteCode
		updated.ParentID = current.ParentID
		updated.CreatedAt = current.CreatedAt
		updated.UpdatedAt = time.Now()
		st.users[user.ID] = updated
		return nil
	})
}

func (r *userRepository) AddBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	return r.s.view(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return domain.ErrUnknownUser
		}
		u.Balance = u.Balance.Add(delta)
		u.UpdatedAt = time.Now()
		return nil
	})
}

func (r *userRepository) SetBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return r.s.view(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return domain.ErrUnknownUser
		}
		u.Balance = balance
		u.UpdatedAt = time.Now()
		return nil
	})
}

func (r *userRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.s.view(func(st *state) error {
		ids = make([]string, 0, len(st.users))
		for id, u := range st.users {
			if u.DeletedAt == nil {
				ids = append(ids, id)
			}
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

func (r *userRepository) ResetPeriodCounters(ctx context.Context) (int64, error) {
	var n int64
	err := r.s.view(func(st *state) error {
		for _, u := range st.users {
			if u.PeriodSubmissions != 0 || !u.TodayProfit.IsZero() {
				u.PeriodSubmissions = 0
				u.TodayProfit = decimal.Zero
				n++
			}
		}
		return nil
	})
	return n, err
}

type ledgerRepository struct {
	s *Store
}

func (r *ledgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) (bool, error) {
	appended := false
	err := r.s.view(func(st *state) error {
		if key, ok := entry.Key(); ok {
			if _, dup := st.keys[key]; dup {
				return nil
			}
			st.keys[key] = struct{}{}
		}
		st.ledger = append(st.ledger, copyEntry(entry))
		appended = true
		return nil
	})
	return appended, err
}

func (r *ledgerRepository) SumByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.s.view(func(st *state) error {
		for _, e := range st.ledger {
			if e.UserID == userID {
				sum = sum.Add(e.Delta)
			}
		}
		return nil
	})
	return sum, err
}

func (r *ledgerRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := r.s.view(func(st *state) error {
		skipped := 0
		for i := len(st.ledger) - 1; i >= 0 && len(entries) < limit; i-- {
			e := st.ledger[i]
			if e.UserID != userID {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			entries = append(entries, copyEntry(e))
		}
		return nil
	})
	return entries, err
}

func (r *ledgerRepository) ListBySubmission(ctx context.Context, submissionID string) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := r.s.view(func(st *state) error {
		for _, e := range st.ledger {
			if e.SubmissionID != nil && *e.SubmissionID == submissionID {
				entries = append(entries, copyEntry(e))
			}
		}
		return nil
	})
	return entries, err
}

func (r *ledgerRepository) EarningsByLevel(ctx context.Context, userID string) (map[int]decimal.Decimal, error) {
	byLevel := make(map[int]decimal.Decimal)
	err := r.s.view(func(st *state) error {
		for _, e := range st.ledger {
			if e.UserID == userID && e.Reason == domain.ReasonAncestorCommission {
				byLevel[e.Level] = byLevel[e.Level].Add(e.Delta)
			}
		}
		return nil
	})
	return byLevel, err
}

type submissionRepository struct {
	s *Store
}

func (r *submissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	return r.s.view(func(st *state) error {
		if _, ok := st.submissions[submission.ID]; ok {
			return fmt.Errorf("submission %s: %w", submission.ID, domain.ErrLedgerConflict)
		}
		cp := *submission
		st.submissions[submission.ID] = &cp
		return nil
	})
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	var submission *domain.Submission
	err := r.s.view(func(st *state) error {
		sub, ok := st.submissions[id]
		if !ok {
			return domain.ErrSubmissionNotFound
		}
		cp := *sub
		submission = &cp
		return nil
	})
	return submission, err
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.s.view(func(st *state) error {
		sub, ok := st.submissions[id]
		if !ok {
			return domain.ErrSubmissionNotFound
		}
		sub.Status = status
		sub.UpdatedAt = time.Now()
		return nil
	})
}

type premiumRepository struct {
	s *Store
}

func (r *premiumRepository) GetConfig(ctx context.Context) (*domain.GlobalPremiumConfig, error) {
	var cfg domain.GlobalPremiumConfig
	err := r.s.view(func(st *state) error {
		cfg = *st.config
		return nil
	})
	return &cfg, err
}

func (r *premiumRepository) SaveConfig(ctx context.Context, cfg *domain.GlobalPremiumConfig) error {
	return r.s.view(func(st *state) error {
		cp := *cfg
		st.config = &cp
		return nil
	})
}

func (r *premiumRepository) GetActiveAssignment(ctx context.Context, userID string, position int) (*domain.PremiumAssignment, error) {
	var active *domain.PremiumAssignment
	err := r.s.view(func(st *state) error {
		for _, a := range st.assignments {
			if a.UserID != userID || a.Position != position || a.Consumed {
				continue
			}
			if active == nil || a.CreatedAt.After(active.CreatedAt) {
				cp := *a
				active = &cp
			}
		}
		return nil
	})
	return active, err
}

func (r *premiumRepository) SaveAssignment(ctx context.Context, assignment *domain.PremiumAssignment) error {
	return r.s.view(func(st *state) error {
		cp := *assignment
		st.assignments[assignment.ID] = &cp
		return nil
	})
}

func (r *premiumRepository) ConsumeAssignment(ctx context.Context, id string, at time.Time) error {
	return r.s.view(func(st *state) error {
		a, ok := st.assignments[id]
		if !ok {
			return fmt.Errorf("premium assignment %s not found", id)
		}
		a.Consumed = true
		a.ConsumedAt = &at
		return nil
	})
}
