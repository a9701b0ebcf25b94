package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/canadian-bazar/buyer-analytics/pkg/types"
)

// ErrNotFound is returned by point lookups when no document exists.
var ErrNotFound = errors.New("document not found")

// Store defines the durable-store contract the reconcilers write through.
// Implemented by the MongoDB store in production and by an in-memory store
// in tests. Bulk methods are unordered: one malformed document must never
// block the rest of a batch.
type Store interface {
	// Category stats
	GetCategoryStats(ctx context.Context, categoryID string) (*types.CategoryStats, error)
	BulkUpsertCategoryStats(ctx context.Context, stats []*types.CategoryStats) error

	// Product stats
	GetProductStats(ctx context.Context, productID string) (*types.ProductStats, error)
	BulkUpsertProductStats(ctx context.Context, stats []*types.ProductStats) error

	// Activity log (append-only; IsProcessed is the idempotency boundary)
	InsertActivityLogs(ctx context.Context, logs []*types.ActivityLog) error
	ListUnprocessedActivity(ctx context.Context, limit int64) ([]*types.ActivityLog, error)
	MarkActivityProcessed(ctx context.Context, ids []primitive.ObjectID) error
	DeleteActivityBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Likes: one bulk write applying upserts for likes and deletes for
	// dislikes; at most one row per (product, buyer) pair survives.
	BulkApplyLikes(ctx context.Context, likes []*types.LikedProduct, dislikes []types.LikeKey) error
	IsLiked(ctx context.Context, productID, buyerID string) (bool, error)

	// Category interactions
	GetCategoryInteraction(ctx context.Context, categoryID, buyerID string) (*types.CategoryInteraction, error)
	BulkUpsertCategoryInteractions(ctx context.Context, interactions []*types.CategoryInteraction) error

	// Performance rollups
	GetMonthlyPerformance(ctx context.Context, productID string, year, month int) (*types.MonthlyPerformance, error)
	BulkUpsertMonthlyPerformance(ctx context.Context, docs []*types.MonthlyPerformance) error
	ListMonthlyPerformance(ctx context.Context, year int) ([]*types.MonthlyPerformance, error)
	BulkUpsertYearlyPerformance(ctx context.Context, docs []*types.YearlyPerformance) error
	GetYearlyPerformance(ctx context.Context, productID string, year int) (*types.YearlyPerformance, error)
	DeleteMonthlyBefore(ctx context.Context, year, month int) (int64, error)

	// Windowed counter resets. Scores are recomputed in the same update so
	// they are never stale relative to the zeroed counters.
	ResetDailyCounters(ctx context.Context) error
	ResetWeeklyCounters(ctx context.Context) error

	// Utility
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
