package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAcquireMutualExclusion verifies a held lock cannot be acquired again
func TestAcquireMutualExclusion(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "category-stats", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// A second acquire before release returns no token and no error.
	second, err := locker.Acquire(ctx, "category-stats", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, second)

	// Different lock names are independent.
	other, err := locker.Acquire(ctx, "likes", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, other)
}

// TestReleaseRequiresToken verifies release is a compare-and-delete
func TestReleaseRequiresToken(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	token, err := locker.Acquire(ctx, "cleanup", time.Minute)
	require.NoError(t, err)

	released, err := locker.Release(ctx, "cleanup", "not-the-token")
	require.NoError(t, err)
	assert.False(t, released)

	held, err := locker.Exists(ctx, "cleanup")
	require.NoError(t, err)
	assert.True(t, held)

	released, err = locker.Release(ctx, "cleanup", token)
	require.NoError(t, err)
	assert.True(t, released)

	held, err = locker.Exists(ctx, "cleanup")
	require.NoError(t, err)
	assert.False(t, held)
}

// TestLeaseExpiry verifies an expired lease frees the lock without a release
func TestLeaseExpiry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	now := time.Now()
	locker.Now = func() time.Time { return now }

	token, err := locker.Acquire(ctx, "daily-reset", 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	now = now.Add(4 * time.Minute)
	blocked, err := locker.Acquire(ctx, "daily-reset", 5*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, blocked)

	now = now.Add(2 * time.Minute)
	held, err := locker.Exists(ctx, "daily-reset")
	require.NoError(t, err)
	assert.False(t, held)

	next, err := locker.Acquire(ctx, "daily-reset", 5*time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, next)
	assert.NotEqual(t, token, next)
}

// TestStaleHolderCannotReleaseNewLock covers the slow-holder handoff: after
// the lease expires and another process acquires, the old token must not
// release the new holder's lock
func TestStaleHolderCannotReleaseNewLock(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	now := time.Now()
	locker.Now = func() time.Time { return now }

	oldToken, err := locker.Acquire(ctx, "product-activity", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	newToken, err := locker.Acquire(ctx, "product-activity", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, newToken)

	released, err := locker.Release(ctx, "product-activity", oldToken)
	require.NoError(t, err)
	assert.False(t, released, "stale token must not release the new holder's lock")

	released, err = locker.Release(ctx, "product-activity", newToken)
	require.NoError(t, err)
	assert.True(t, released)
}

// TestTokensAreUnique verifies successive acquisitions get distinct tokens
func TestTokensAreUnique(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		token, err := locker.Acquire(ctx, "uniq", time.Minute)
		require.NoError(t, err)
		require.NotEmpty(t, token)
		assert.False(t, seen[token], "token reused")
		seen[token] = true

		_, err = locker.Release(ctx, "uniq", token)
		require.NoError(t, err)
	}
}
