package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotHeld = errors.New("lock not held")

// Locker is a try-lock keyed by string. Lock never blocks waiting for a holder;
// ok=false means someone else holds the key. The returned token must be passed
// to Unlock so a holder whose ttl expired cannot release a newer acquisition.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

type localEntry struct {
	token   string
	expires time.Time
}

// LocalLock serializes keys within a single process.
type LocalLock struct {
	mu      sync.Mutex
	entries map[string]localEntry
	now     func() time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{
		entries: make(map[string]localEntry),
		now:     time.Now,
	}
}

func (l *LocalLock) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, exists := l.entries[key]; exists && now.Before(entry.expires) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.entries[key] = localEntry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLock) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[key]
	if !exists || entry.token != token {
		return ErrNotHeld
	}

	delete(l.entries, key)
	return nil
}

// Acquire retries Lock until it succeeds or wait elapses. ok=false with a nil
// error means the wait ran out.
func Acquire(ctx context.Context, locker Locker, key string, ttl, wait time.Duration) (string, bool, error) {
	deadline := time.Now().Add(wait)
	backoff := 5 * time.Millisecond

	for {
		token, ok, err := locker.Lock(ctx, key, ttl)
		if err != nil || ok {
			return token, ok, err
		}

		if time.Now().Add(backoff).After(deadline) {
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < 100*time.Millisecond {
			backoff *= 2
		}
	}
}
