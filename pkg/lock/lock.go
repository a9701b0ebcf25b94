package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces lock keys away from counter records on the shared client.
const keyPrefix = "job-lock:"

// Locker is the mutual exclusion primitive guarding each batch job.
// Acquire never blocks or retries: a caller that does not get the lock
// skips its run, which is the right policy for periodic reconciliation.
type Locker interface {
	// Acquire attempts a conditional set-if-absent with expiry. It returns
	// a fresh fencing token on success and "" when the lock is already
	// held. Store unavailability also yields "" (fail closed: skip the
	// batch rather than risk double-processing).
	Acquire(ctx context.Context, name string, lease time.Duration) (string, error)

	// Release deletes the lock only while the stored value still equals
	// token. It reports false when the lock is held by someone else or has
	// already expired; the lease TTL is the safety net either way.
	Release(ctx context.Context, name string, token string) (bool, error)

	// Exists reports whether the lock is currently held, for diagnostics.
	Exists(ctx context.Context, name string) (bool, error)
}

// releaseScript is the compare-and-delete: a reconciler whose lease expired
// must not delete a lock a newer run has since acquired.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker implements Locker with SET NX EX and a Lua compare-and-delete.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker creates a locker on an existing Redis client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func lockKey(name string) string {
	return keyPrefix + name
}

// Acquire sets the lock key to a random nonce if absent. A uuid token is
// robust against clock skew across processes, unlike a timestamp.
func (l *RedisLocker) Acquire(ctx context.Context, name string, lease time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(name), token, lease).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Release runs the compare-and-delete script.
func (l *RedisLocker) Release(ctx context.Context, name string, token string) (bool, error) {
	res, err := releaseScript.Run(ctx, l.client, []string{lockKey(name)}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return res == 1, nil
}

// Exists probes the lock key.
func (l *RedisLocker) Exists(ctx context.Context, name string) (bool, error) {
	n, err := l.client.Exists(ctx, lockKey(name)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to probe lock %s: %w", name, err)
	}
	return n > 0, nil
}
