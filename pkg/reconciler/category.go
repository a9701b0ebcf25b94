package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
	"github.com/canadian-bazar/buyer-analytics/pkg/log"
	"github.com/canadian-bazar/buyer-analytics/pkg/metrics"
	"github.com/canadian-bazar/buyer-analytics/pkg/scoring"
	"github.com/canadian-bazar/buyer-analytics/pkg/storage"
	"github.com/canadian-bazar/buyer-analytics/pkg/types"
)

// CategoryStatsReconciler drains category view/search counters into the
// durable category_stats documents, recomputing the popularity score from
// the merged counters in the same write.
type CategoryStatsReconciler struct {
	counters counterstore.Store
	store    storage.Store
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCategoryStatsReconciler(counters counterstore.Store, store storage.Store) *CategoryStatsReconciler {
	return &CategoryStatsReconciler{
		counters: counters,
		store:    store,
		logger:   log.WithJob(JobCategoryStats),
		now:      time.Now,
	}
}

func (r *CategoryStatsReconciler) Run(ctx context.Context) error {
	keys, records, err := takeDirtyRecords(ctx, r.counters, counterstore.NamespaceCategory)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	docs := make([]*types.CategoryStats, 0, len(keys))
	drained := make([]string, 0, len(keys))
	for _, key := range keys {
		fields := records[key]
		if len(fields) == 0 {
			// Expired or already drained by a crashed run. Release the claim.
			drained = append(drained, key)
			continue
		}
		if !validObjectID(key) {
			r.logger.Warn().Str("categoryId", key).Msg("Skipping malformed category key")
			metrics.SkippedRecordsTotal.WithLabelValues(JobCategoryStats).Inc()
			drained = append(drained, key)
			continue
		}

		doc, err := r.store.GetCategoryStats(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			doc = &types.CategoryStats{CategoryID: key}
		} else if err != nil {
			return err
		}

		doc.ViewCount += fields.Int(counterstore.FieldView)
		doc.SearchCount += fields.Int(counterstore.FieldSearch)
		doc.DailyViews += fields.Int(counterstore.FieldDailyView)
		doc.DailySearches += fields.Int(counterstore.FieldDailySearch)
		doc.WeeklyViews += fields.Int(counterstore.FieldWeeklyView)
		doc.WeeklySearches += fields.Int(counterstore.FieldWeeklySearch)
		doc.PopularityScore = scoring.CategoryPopularity(scoring.CategoryCounters{
			Views:          doc.ViewCount,
			Searches:       doc.SearchCount,
			DailyViews:     doc.DailyViews,
			DailySearches:  doc.DailySearches,
			WeeklyViews:    doc.WeeklyViews,
			WeeklySearches: doc.WeeklySearches,
		})
		doc.UpdatedAt = r.now()

		docs = append(docs, doc)
		drained = append(drained, key)
	}

	if len(docs) > 0 {
		if err := r.store.BulkUpsertCategoryStats(ctx, docs); err != nil {
			return err
		}
		metrics.BulkWriteDocsTotal.WithLabelValues(JobCategoryStats).Add(float64(len(docs)))
	}
	if err := ackDrained(ctx, r.counters, counterstore.NamespaceCategory, JobCategoryStats, drained); err != nil {
		return err
	}

	r.logger.Info().Int("categories", len(docs)).Msg("Category stats reconciled")
	return nil
}
