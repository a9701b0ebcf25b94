package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
	"github.com/canadian-bazar/buyer-analytics/pkg/scoring"
)

// TestCategoryStatsDrain tests a full track-buffer-drain cycle for one category
func TestCategoryStatsDrain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	categoryID := primitive.NewObjectID().Hex()

	f.tracker.TrackCategoryView(ctx, categoryID)
	f.tracker.TrackCategoryView(ctx, categoryID)
	f.tracker.TrackCategoryView(ctx, categoryID)
	f.tracker.TrackCategorySearch(ctx, categoryID)
	f.tracker.TrackCategorySearch(ctx, categoryID)

	r := NewCategoryStatsReconciler(f.counters, f.store)
	require.NoError(t, r.Run(ctx))

	doc, err := f.store.GetCategoryStats(ctx, categoryID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc.ViewCount)
	assert.Equal(t, int64(2), doc.SearchCount)
	assert.Equal(t, int64(3), doc.DailyViews)
	assert.Equal(t, int64(2), doc.DailySearches)
	assert.Equal(t, int64(3), doc.WeeklyViews)
	assert.Equal(t, int64(2), doc.WeeklySearches)

	expected := scoring.CategoryPopularity(scoring.CategoryCounters{
		Views: 3, Searches: 2,
		DailyViews: 3, DailySearches: 2,
		WeeklyViews: 3, WeeklySearches: 2,
	})
	assert.InDelta(t, expected, doc.PopularityScore, 1e-9)

	// The drained counter record and its claims are gone.
	fields, err := f.counters.ReadAll(ctx, counterstore.NamespaceCategory, categoryID)
	require.NoError(t, err)
	assert.Empty(t, fields)
	backlog, err := f.counters.ProcessingBacklog(ctx, counterstore.NamespaceCategory)
	require.NoError(t, err)
	assert.Zero(t, backlog)
}

// TestCategoryStatsDrainIdempotent verifies a second run with no new
// activity changes nothing
func TestCategoryStatsDrainIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	categoryID := primitive.NewObjectID().Hex()

	f.tracker.TrackCategoryView(ctx, categoryID)

	r := NewCategoryStatsReconciler(f.counters, f.store)
	require.NoError(t, r.Run(ctx))

	first, err := f.store.GetCategoryStats(ctx, categoryID)
	require.NoError(t, err)

	require.NoError(t, r.Run(ctx))

	second, err := f.store.GetCategoryStats(ctx, categoryID)
	require.NoError(t, err)
	assert.Equal(t, first.ViewCount, second.ViewCount)
	assert.Equal(t, first.PopularityScore, second.PopularityScore)
}

// TestCategoryStatsAccumulatesAcrossDrains verifies later activity adds to
// the durable totals instead of replacing them
func TestCategoryStatsAccumulatesAcrossDrains(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	categoryID := primitive.NewObjectID().Hex()

	r := NewCategoryStatsReconciler(f.counters, f.store)

	f.tracker.TrackCategoryView(ctx, categoryID)
	require.NoError(t, r.Run(ctx))

	f.tracker.TrackCategoryView(ctx, categoryID)
	f.tracker.TrackCategorySearch(ctx, categoryID)
	require.NoError(t, r.Run(ctx))

	doc, err := f.store.GetCategoryStats(ctx, categoryID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.ViewCount)
	assert.Equal(t, int64(1), doc.SearchCount)
}

// TestCategoryStatsSkipsMalformedKeys verifies a bad entity id cannot poison
// the batch or wedge the processing set
func TestCategoryStatsSkipsMalformedKeys(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	goodID := primitive.NewObjectID().Hex()

	f.tracker.TrackCategoryView(ctx, goodID)
	require.NoError(t, f.counters.Increment(ctx, counterstore.NamespaceCategory, "not-an-object-id", counterstore.FieldView, 1))
	require.NoError(t, f.counters.MarkDirty(ctx, counterstore.NamespaceCategory, "not-an-object-id"))

	r := NewCategoryStatsReconciler(f.counters, f.store)
	require.NoError(t, r.Run(ctx))

	doc, err := f.store.GetCategoryStats(ctx, goodID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.ViewCount)

	backlog, err := f.counters.ProcessingBacklog(ctx, counterstore.NamespaceCategory)
	require.NoError(t, err)
	assert.Zero(t, backlog, "malformed key must not stay claimed forever")
}

// TestCategoryStatsEmptyDrain verifies a run with nothing dirty is a no-op
func TestCategoryStatsEmptyDrain(t *testing.T) {
	f := newFixture()
	r := NewCategoryStatsReconciler(f.counters, f.store)
	require.NoError(t, r.Run(context.Background()))
}
