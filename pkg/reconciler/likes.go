package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
	"github.com/canadian-bazar/buyer-analytics/pkg/log"
	"github.com/canadian-bazar/buyer-analytics/pkg/metrics"
	"github.com/canadian-bazar/buyer-analytics/pkg/storage"
	"github.com/canadian-bazar/buyer-analytics/pkg/types"
)

// LikesReconciler flushes buffered like/dislike state into the liked_products
// join collection. Each drained key carries the latest state for one
// (product, buyer) pair: a like becomes an idempotent insert, a dislike a
// deletion. Every drained key is removed afterwards regardless of which way
// it resolved, so a like followed by a dislike nets out to no row.
type LikesReconciler struct {
	counters counterstore.Store
	store    storage.Store
	logger   zerolog.Logger
	now      func() time.Time
}

func NewLikesReconciler(counters counterstore.Store, store storage.Store) *LikesReconciler {
	return &LikesReconciler{
		counters: counters,
		store:    store,
		logger:   log.WithJob(JobLikes),
		now:      time.Now,
	}
}

func (r *LikesReconciler) Run(ctx context.Context) error {
	keys, records, err := takeDirtyRecords(ctx, r.counters, counterstore.NamespaceLike)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	var likes []*types.LikedProduct
	var dislikes []types.LikeKey
	for _, key := range keys {
		fields := records[key]
		if len(fields) == 0 {
			continue
		}
		parts, err := counterstore.SplitKey(key, 2)
		if err != nil || !validObjectID(parts[0]) || !validObjectID(parts[1]) {
			r.logger.Warn().Str("key", key).Msg("Skipping malformed like key")
			metrics.SkippedRecordsTotal.WithLabelValues(JobLikes).Inc()
			continue
		}
		productID, buyerID := parts[0], parts[1]

		switch fields[counterstore.FieldType] {
		case counterstore.TypeLike:
			createdAt := r.now()
			if ms := fields.Int(counterstore.FieldLastInteracted); ms > 0 {
				createdAt = time.UnixMilli(ms).UTC()
			}
			likes = append(likes, &types.LikedProduct{
				ProductID: productID,
				BuyerID:   buyerID,
				CreatedAt: createdAt,
			})
		case counterstore.TypeDislike:
			dislikes = append(dislikes, types.LikeKey{ProductID: productID, BuyerID: buyerID})
		default:
			r.logger.Warn().Str("key", key).Str("type", fields[counterstore.FieldType]).Msg("Skipping like record with unknown type")
			metrics.SkippedRecordsTotal.WithLabelValues(JobLikes).Inc()
		}
	}

	if len(likes) > 0 || len(dislikes) > 0 {
		if err := r.store.BulkApplyLikes(ctx, likes, dislikes); err != nil {
			return err
		}
		metrics.BulkWriteDocsTotal.WithLabelValues(JobLikes).Add(float64(len(likes) + len(dislikes)))
	}
	// Drained like state is point-in-time: skipped and malformed keys are
	// discarded with the rest instead of being retried forever.
	if err := ackDrained(ctx, r.counters, counterstore.NamespaceLike, JobLikes, keys); err != nil {
		return err
	}

	r.logger.Info().Int("likes", len(likes)).Int("dislikes", len(dislikes)).Msg("Likes reconciled")
	return nil
}
