// Package lock provides the in-process per-user lock.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/alfanzaky/refledger/pkg/metrics"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Keyed is a set of mutexes keyed by user id. Entries are dropped once
// nobody holds or waits for them.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewKeyed creates an empty keyed lock
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*entry)}
}

// Lock blocks until userID's lock is held or ctx is done
func (k *Keyed) Lock(ctx context.Context, userID string) (func(), error) {
	start := time.Now()

	k.mu.Lock()
	e, ok := k.locks[userID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.locks[userID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(userID, e)
		metrics.RecordLockWait("memory", "timeout", time.Since(start).Seconds())
		return nil, ctx.Err()
	}
	metrics.RecordLockWait("memory", "acquired", time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.release(userID, e)
		})
	}, nil
}

func (k *Keyed) release(userID string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, userID)
	}
}

// Len reports how many keys are currently tracked
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
