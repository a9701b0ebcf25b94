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

// CategoryInteractionReconciler drains per-(category, buyer) interaction
// counters into category_interactions, recomputing the engagement score from
// the merged totals.
type CategoryInteractionReconciler struct {
	counters counterstore.Store
	store    storage.Store
	logger   zerolog.Logger
	now      func() time.Time
}

func NewCategoryInteractionReconciler(counters counterstore.Store, store storage.Store) *CategoryInteractionReconciler {
	return &CategoryInteractionReconciler{
		counters: counters,
		store:    store,
		logger:   log.WithJob(JobCategoryInteraction),
		now:      time.Now,
	}
}

func (r *CategoryInteractionReconciler) Run(ctx context.Context) error {
	keys, records, err := takeDirtyRecords(ctx, r.counters, counterstore.NamespaceInteraction)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	docs := make([]*types.CategoryInteraction, 0, len(keys))
	drained := make([]string, 0, len(keys))
	for _, key := range keys {
		fields := records[key]
		if len(fields) == 0 {
			drained = append(drained, key)
			continue
		}
		parts, err := counterstore.SplitKey(key, 2)
		if err != nil || !validObjectID(parts[0]) || !validObjectID(parts[1]) {
			r.logger.Warn().Str("key", key).Msg("Skipping malformed interaction key")
			metrics.SkippedRecordsTotal.WithLabelValues(JobCategoryInteraction).Inc()
			drained = append(drained, key)
			continue
		}
		categoryID, buyerID := parts[0], parts[1]

		doc, err := r.store.GetCategoryInteraction(ctx, categoryID, buyerID)
		if errors.Is(err, storage.ErrNotFound) {
			doc = &types.CategoryInteraction{CategoryID: categoryID, BuyerID: buyerID}
		} else if err != nil {
			return err
		}

		doc.TotalCount += fields.Int(counterstore.FieldTotal)
		doc.DailyCount += fields.Int(counterstore.FieldDaily)
		doc.WeeklyCount += fields.Int(counterstore.FieldWeekly)
		doc.EngagementScore = scoring.Engagement(doc.TotalCount, doc.WeeklyCount, doc.DailyCount)
		if ms := fields.Int(counterstore.FieldLastInteracted); ms > 0 {
			doc.LastInteracted = time.UnixMilli(ms).UTC()
		}
		doc.UpdatedAt = r.now()

		docs = append(docs, doc)
		drained = append(drained, key)
	}

	if len(docs) > 0 {
		if err := r.store.BulkUpsertCategoryInteractions(ctx, docs); err != nil {
			return err
		}
		metrics.BulkWriteDocsTotal.WithLabelValues(JobCategoryInteraction).Add(float64(len(docs)))
	}
	if err := ackDrained(ctx, r.counters, counterstore.NamespaceInteraction, JobCategoryInteraction, drained); err != nil {
		return err
	}

	r.logger.Info().Int("interactions", len(docs)).Msg("Category interactions reconciled")
	return nil
}
