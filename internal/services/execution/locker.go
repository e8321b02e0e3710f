package execution

import (
	"context"
	"sync"

	"hypertrader/pkg/errors"
)

// AccountLocker serializes real orders per account.
// Acquire blocks until the account is free or ctx is done; release must be called exactly once.
type AccountLocker interface {
	Acquire(ctx context.Context, accountID string) (release func(), err error)
}

// MemoryLocker is an in-process AccountLocker backed by one-slot semaphores.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

var _ AccountLocker = (*MemoryLocker)(nil)

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

// Acquire takes the account slot
func (l *MemoryLocker) Acquire(ctx context.Context, accountID string) (func(), error) {
	slot := l.slot(accountID)

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrapf(errors.ErrOrderInFlight, "account %s: %v", accountID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}

func (l *MemoryLocker) slot(accountID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[accountID]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[accountID] = s
	}
	return s
}
