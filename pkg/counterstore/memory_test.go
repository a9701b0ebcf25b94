package counterstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIncrementAccumulates tests field increments within one record
func TestIncrementAccumulates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Increment(ctx, NamespaceCategory, "cat-1", FieldView, 1))
	require.NoError(t, s.Increment(ctx, NamespaceCategory, "cat-1", FieldView, 2))
	require.NoError(t, s.Increment(ctx, NamespaceCategory, "cat-1", FieldSearch, 1))

	fields, err := s.ReadAll(ctx, NamespaceCategory, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), fields.Int(FieldView))
	assert.Equal(t, int64(1), fields.Int(FieldSearch))
	assert.Equal(t, int64(0), fields.Int(FieldDailyView))
}

// TestNamespaceIsolation verifies the same entity key is independent per
// namespace
func TestNamespaceIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Increment(ctx, NamespaceCategory, "id-1", FieldView, 5))
	require.NoError(t, s.Increment(ctx, NamespaceProduct, "id-1", FieldView, 7))

	catFields, err := s.ReadAll(ctx, NamespaceCategory, "id-1")
	require.NoError(t, err)
	prodFields, err := s.ReadAll(ctx, NamespaceProduct, "id-1")
	require.NoError(t, err)

	assert.Equal(t, int64(5), catFields.Int(FieldView))
	assert.Equal(t, int64(7), prodFields.Int(FieldView))
}

// TestEnsureRetentionKeepsExistingTTL verifies the retention probe never
// refreshes a TTL that is already set
func TestEnsureRetentionKeepsExistingTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Increment(ctx, NamespaceLike, "p1:b1", FieldView, 1))
	require.NoError(t, s.EnsureRetention(ctx, NamespaceLike, "p1:b1", time.Hour))

	ttl, ok := s.TTL(NamespaceLike, "p1:b1")
	require.True(t, ok)
	assert.InDelta(t, time.Hour, ttl, float64(time.Second))

	// A second probe with a longer window must not extend the TTL.
	require.NoError(t, s.EnsureRetention(ctx, NamespaceLike, "p1:b1", 24*time.Hour))
	ttl, ok = s.TTL(NamespaceLike, "p1:b1")
	require.True(t, ok)
	assert.InDelta(t, time.Hour, ttl, float64(time.Second))
}

// TestExpiry verifies records vanish once their TTL passes
func TestExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.Now = func() time.Time { return now }

	require.NoError(t, s.Increment(ctx, NamespaceCategory, "cat-1", FieldView, 1))
	require.NoError(t, s.EnsureRetention(ctx, NamespaceCategory, "cat-1", time.Hour))

	now = now.Add(2 * time.Hour)

	fields, err := s.ReadAll(ctx, NamespaceCategory, "cat-1")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

// TestDirtyProcessingLifecycle tests the dirty set claim and acknowledge flow
func TestDirtyProcessingLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.MarkDirty(ctx, NamespaceCategory, "cat-1"))
	require.NoError(t, s.MarkDirty(ctx, NamespaceCategory, "cat-2"))
	require.NoError(t, s.MarkDirty(ctx, NamespaceCategory, "cat-2"))

	keys, err := s.TakeDirty(ctx, NamespaceCategory)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cat-1", "cat-2"}, keys)

	backlog, err := s.ProcessingBacklog(ctx, NamespaceCategory)
	require.NoError(t, err)
	assert.Equal(t, int64(2), backlog)

	// Keys marked dirty while a drain is in flight join the next claim.
	require.NoError(t, s.MarkDirty(ctx, NamespaceCategory, "cat-3"))

	require.NoError(t, s.ClearProcessed(ctx, NamespaceCategory, "cat-1", "cat-2"))
	backlog, err = s.ProcessingBacklog(ctx, NamespaceCategory)
	require.NoError(t, err)
	assert.Equal(t, int64(0), backlog)

	keys, err = s.TakeDirty(ctx, NamespaceCategory)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cat-3"}, keys)
}

// TestTakeDirtyMergesUnackedClaims verifies keys claimed by a run that never
// acknowledged them are claimed again by the next run
func TestTakeDirtyMergesUnackedClaims(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.MarkDirty(ctx, NamespaceProduct, "prod-1"))

	keys, err := s.TakeDirty(ctx, NamespaceProduct)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"prod-1"}, keys)

	// Simulate a crash: no ClearProcessed. A new key arrives meanwhile.
	require.NoError(t, s.MarkDirty(ctx, NamespaceProduct, "prod-2"))

	keys, err = s.TakeDirty(ctx, NamespaceProduct)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"prod-1", "prod-2"}, keys)
}

// TestDeleteFields tests partial field removal used by window resets
func TestDeleteFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Increment(ctx, NamespaceCategory, "cat-1", FieldView, 9))
	require.NoError(t, s.Increment(ctx, NamespaceCategory, "cat-1", FieldDailyView, 4))
	require.NoError(t, s.Increment(ctx, NamespaceCategory, "cat-1", FieldWeeklyView, 6))

	require.NoError(t, s.DeleteFields(ctx, NamespaceCategory, "cat-1", FieldDailyView, FieldWeeklyView))

	fields, err := s.ReadAll(ctx, NamespaceCategory, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), fields.Int(FieldView))
	assert.Equal(t, int64(0), fields.Int(FieldDailyView))
	assert.Equal(t, int64(0), fields.Int(FieldWeeklyView))
}

// TestReadAllMulti tests the batched read path
func TestReadAllMulti(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Increment(ctx, NamespaceInteraction, "c1:b1", FieldTotal, 3))
	require.NoError(t, s.Increment(ctx, NamespaceInteraction, "c2:b1", FieldTotal, 5))

	records, err := s.ReadAllMulti(ctx, NamespaceInteraction, []string{"c1:b1", "c2:b1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), records["c1:b1"].Int(FieldTotal))
	assert.Equal(t, int64(5), records["c2:b1"].Int(FieldTotal))
	assert.Empty(t, records["missing"])
}

// TestKeyRoundTrip tests composite key building and splitting
func TestKeyRoundTrip(t *testing.T) {
	key := Key("product-1", "buyer-1")
	assert.Equal(t, "product-1:buyer-1", key)

	parts, err := SplitKey(key, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"product-1", "buyer-1"}, parts)

	_, err = SplitKey("only-one-part", 2)
	assert.Error(t, err)
}
