package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryLock struct {
	token   string
	expires time.Time
}

// MemoryLocker is an in-memory Locker for tests, with an injectable clock
// so lease expiry can be simulated without sleeping.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock

	// Now is the clock; tests override it to advance past a lease.
	Now func() time.Time
}

// NewMemoryLocker creates an empty in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]memoryLock),
		Now:   time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, name string, lease time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	if held, ok := l.locks[name]; ok && now.Before(held.expires) {
		return "", nil
	}
	token := uuid.NewString()
	l.locks[name] = memoryLock{token: token, expires: now.Add(lease)}
	return token, nil
}

func (l *MemoryLocker) Release(_ context.Context, name string, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.locks[name]
	if !ok || l.Now().After(held.expires) || held.token != token {
		return false, nil
	}
	delete(l.locks, name)
	return true, nil
}

func (l *MemoryLocker) Exists(_ context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.locks[name]
	return ok && l.Now().Before(held.expires), nil
}
