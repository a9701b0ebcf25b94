package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
	"github.com/canadian-bazar/buyer-analytics/pkg/scoring"
	"github.com/canadian-bazar/buyer-analytics/pkg/types"
)

// TestDailyReset tests zeroing daily windows in both tiers
func TestDailyReset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	categoryID := primitive.NewObjectID().Hex()

	// Reconciled state plus fresh buffered activity.
	f.tracker.TrackCategoryView(ctx, categoryID)
	r := NewCategoryStatsReconciler(f.counters, f.store)
	require.NoError(t, r.Run(ctx))
	f.tracker.TrackCategoryView(ctx, categoryID)

	job := NewResetJob(f.counters, f.store)
	require.NoError(t, job.RunDaily(ctx))

	doc, err := f.store.GetCategoryStats(ctx, categoryID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.ViewCount, "lifetime counters survive the reset")
	assert.Zero(t, doc.DailyViews)
	assert.Zero(t, doc.DailySearches)
	expected := scoring.CategoryPopularity(scoring.CategoryCounters{
		Views: 1, WeeklyViews: 1,
	})
	assert.InDelta(t, expected, doc.PopularityScore, 1e-9, "score must be recomputed with the reset")

	fields, err := f.counters.ReadAll(ctx, counterstore.NamespaceCategory, categoryID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fields.Int(counterstore.FieldView), "buffered lifetime counter survives")
	assert.Zero(t, fields.Int(counterstore.FieldDailyView), "buffered daily field is dropped")
	assert.Equal(t, int64(1), fields.Int(counterstore.FieldWeeklyView))
}

// TestWeeklyReset tests zeroing weekly windows while daily survives
func TestWeeklyReset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	categoryID := primitive.NewObjectID().Hex()
	buyerID := primitive.NewObjectID().Hex()

	f.tracker.TrackCategoryView(ctx, categoryID)
	f.tracker.TrackCategoryInteraction(ctx, categoryID, buyerID)
	catRec := NewCategoryStatsReconciler(f.counters, f.store)
	intRec := NewCategoryInteractionReconciler(f.counters, f.store)
	require.NoError(t, catRec.Run(ctx))
	require.NoError(t, intRec.Run(ctx))

	job := NewResetJob(f.counters, f.store)
	require.NoError(t, job.RunWeekly(ctx))

	doc, err := f.store.GetCategoryStats(ctx, categoryID)
	require.NoError(t, err)
	assert.Zero(t, doc.WeeklyViews)
	assert.Equal(t, int64(1), doc.DailyViews, "daily window survives a weekly reset")

	interaction, err := f.store.GetCategoryInteraction(ctx, categoryID, buyerID)
	require.NoError(t, err)
	assert.Zero(t, interaction.WeeklyCount)
	assert.Equal(t, int64(1), interaction.TotalCount)
	assert.InDelta(t, scoring.Engagement(1, 0, 1), interaction.EngagementScore, 1e-9)
}

// TestCleanupPurgesAgedData tests the retention sweep across both stores
func TestCleanupPurgesAgedData(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	productID := primitive.NewObjectID().Hex()

	now := time.Date(2026, time.August, 29, 2, 0, 0, 0, time.UTC)

	require.NoError(t, f.store.InsertActivityLogs(ctx, []*types.ActivityLog{
		{ProductID: productID, ActivityType: types.ActivityView, Count: 1, Timestamp: now.AddDate(0, 0, -120)},
		{ProductID: productID, ActivityType: types.ActivityView, Count: 1, Timestamp: now.AddDate(0, 0, -5)},
	}))
	require.NoError(t, f.store.BulkUpsertMonthlyPerformance(ctx, []*types.MonthlyPerformance{
		{ProductID: productID, Year: 2023, Month: 1, Totals: types.ActivityTotals{Views: 1}},
		{ProductID: productID, Year: 2026, Month: 8, Totals: types.ActivityTotals{Views: 1}},
	}))

	// A counter key that never got a TTL, e.g. written before a crash.
	require.NoError(t, f.counters.Increment(ctx, counterstore.NamespaceProduct, productID, counterstore.FieldView, 1))

	job := NewCleanupJob(f.counters, f.store, Retention{
		ActivityLogDays:        90,
		MonthlyPerformanceDays: 730,
		CounterDays: map[counterstore.Namespace]int{
			counterstore.NamespaceProduct: 90,
		},
	})
	job.now = func() time.Time { return now }
	require.NoError(t, job.Run(ctx))

	rows, err := f.store.ListUnprocessedActivity(ctx, 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Timestamp.After(now.AddDate(0, 0, -90)))

	_, err = f.store.GetMonthlyPerformance(ctx, productID, 2023, 1)
	assert.Error(t, err, "aged monthly document should be purged")
	_, err = f.store.GetMonthlyPerformance(ctx, productID, 2026, 8)
	assert.NoError(t, err)

	ttl, ok := f.counters.TTL(counterstore.NamespaceProduct, productID)
	require.True(t, ok, "orphaned counter key must get a retention TTL")
	assert.InDelta(t, 90*24*time.Hour, ttl, float64(time.Minute))
}
