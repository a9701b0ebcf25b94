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

// activityFields maps drained counter fields to the activity rows appended
// for the performance rollup. In-progress is a transient quotation state and
// deliberately has no row.
var activityFields = []struct {
	field    counterstore.Field
	activity types.ActivityType
}{
	{counterstore.FieldView, types.ActivityView},
	{counterstore.FieldSent, types.ActivityQuotationSent},
	{counterstore.FieldAccepted, types.ActivityQuotationAccepted},
	{counterstore.FieldRejected, types.ActivityQuotationRejected},
	{counterstore.FieldSold, types.ActivitySold},
}

// ProductActivityReconciler drains product view and quotation counters into
// product_stats and appends one activity_logs row per drained activity type,
// which the performance rollup later consumes.
type ProductActivityReconciler struct {
	counters counterstore.Store
	store    storage.Store
	logger   zerolog.Logger
	now      func() time.Time
}

func NewProductActivityReconciler(counters counterstore.Store, store storage.Store) *ProductActivityReconciler {
	return &ProductActivityReconciler{
		counters: counters,
		store:    store,
		logger:   log.WithJob(JobProductActivity),
		now:      time.Now,
	}
}

func (r *ProductActivityReconciler) Run(ctx context.Context) error {
	keys, records, err := takeDirtyRecords(ctx, r.counters, counterstore.NamespaceProduct)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	now := r.now()
	docs := make([]*types.ProductStats, 0, len(keys))
	var rows []*types.ActivityLog
	drained := make([]string, 0, len(keys))
	for _, key := range keys {
		fields := records[key]
		if len(fields) == 0 {
			drained = append(drained, key)
			continue
		}
		if !validObjectID(key) {
			r.logger.Warn().Str("productId", key).Msg("Skipping malformed product key")
			metrics.SkippedRecordsTotal.WithLabelValues(JobProductActivity).Inc()
			drained = append(drained, key)
			continue
		}

		doc, err := r.store.GetProductStats(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			doc = &types.ProductStats{ProductID: key}
		} else if err != nil {
			return err
		}

		doc.ViewCount += fields.Int(counterstore.FieldView)
		doc.QuotationsSent += fields.Int(counterstore.FieldSent)
		doc.QuotationsAccepted += fields.Int(counterstore.FieldAccepted)
		doc.QuotationsRejected += fields.Int(counterstore.FieldRejected)
		doc.QuotationsInProgress += fields.Int(counterstore.FieldInProgress)
		doc.SoldCount += fields.Int(counterstore.FieldSold)
		doc.PopularityScore = scoring.ProductPopularity(doc.ViewCount, doc.QuotationsSent)
		doc.BestsellerScore = scoring.BestsellerScore(doc.QuotationsAccepted)
		doc.UpdatedAt = now
		docs = append(docs, doc)

		for _, af := range activityFields {
			if count := fields.Int(af.field); count > 0 {
				rows = append(rows, &types.ActivityLog{
					ProductID:    key,
					ActivityType: af.activity,
					Count:        count,
					Timestamp:    now,
				})
			}
		}
		drained = append(drained, key)
	}

	if len(docs) > 0 {
		if err := r.store.BulkUpsertProductStats(ctx, docs); err != nil {
			return err
		}
		metrics.BulkWriteDocsTotal.WithLabelValues(JobProductActivity).Add(float64(len(docs)))
	}
	if len(rows) > 0 {
		if err := r.store.InsertActivityLogs(ctx, rows); err != nil {
			return err
		}
	}
	if err := ackDrained(ctx, r.counters, counterstore.NamespaceProduct, JobProductActivity, drained); err != nil {
		return err
	}

	r.logger.Info().Int("products", len(docs)).Int("activityRows", len(rows)).Msg("Product activity reconciled")
	return nil
}
