package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CategoryStats is the durable aggregate document for one category. Score
// fields are always recomputed from the counters in the same write, never
// left stale relative to them.
type CategoryStats struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	CategoryID      string             `bson:"categoryId"`
	ViewCount       int64              `bson:"viewCount"`
	SearchCount     int64              `bson:"searchCount"`
	DailyViews      int64              `bson:"dailyViews"`
	DailySearches   int64              `bson:"dailySearches"`
	WeeklyViews     int64              `bson:"weeklyViews"`
	WeeklySearches  int64              `bson:"weeklySearches"`
	PopularityScore float64            `bson:"popularityScore"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

// QuotationStatus enumerates quotation lifecycle transitions tracked per
// product. Using a fixed type keeps the write path and the reconciler
// switch aligned.
type QuotationStatus string

const (
	QuotationSent       QuotationStatus = "sent"
	QuotationAccepted   QuotationStatus = "accepted"
	QuotationRejected   QuotationStatus = "rejected"
	QuotationInProgress QuotationStatus = "in-progress"
	QuotationSold       QuotationStatus = "sold"
)

// ProductStats is the durable aggregate document for one product.
type ProductStats struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	ProductID            string             `bson:"productId"`
	ViewCount            int64              `bson:"viewCount"`
	QuotationsSent       int64              `bson:"quotationsSent"`
	QuotationsAccepted   int64              `bson:"quotationsAccepted"`
	QuotationsRejected   int64              `bson:"quotationsRejected"`
	QuotationsInProgress int64              `bson:"quotationsInProgress"`
	SoldCount            int64              `bson:"soldCount"`
	PopularityScore      float64            `bson:"popularityScore"`
	BestsellerScore      float64            `bson:"bestsellerScore"`
	UpdatedAt            time.Time          `bson:"updatedAt"`
}

// ActivityType enumerates product activity events.
type ActivityType string

const (
	ActivityView              ActivityType = "view"
	ActivityQuotationSent     ActivityType = "quotation-sent"
	ActivityQuotationAccepted ActivityType = "quotation-accepted"
	ActivityQuotationRejected ActivityType = "quotation-rejected"
	ActivitySold              ActivityType = "sold"
)

// ActivityLog is one append-only row per activity event drained from the
// counter store. IsProcessed is the idempotency boundary: once true, the row
// never contributes to a later aggregation pass.
type ActivityLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	ProductID    string             `bson:"productId"`
	ActivityType ActivityType       `bson:"activityType"`
	Count        int64              `bson:"count"`
	Timestamp    time.Time          `bson:"timestamp"`
	IsProcessed  bool               `bson:"isProcessed"`
}

// LikedProduct is the durable like join row: existence means liked.
// At most one row exists per (product, buyer) pair.
type LikedProduct struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ProductID string             `bson:"productId"`
	BuyerID   string             `bson:"buyerId"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// LikeKey identifies a (product, buyer) pair for dislike deletions.
type LikeKey struct {
	ProductID string
	BuyerID   string
}

// CategoryInteraction is the durable per-(category, buyer) engagement document.
type CategoryInteraction struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	CategoryID      string             `bson:"categoryId"`
	BuyerID         string             `bson:"buyerId"`
	TotalCount      int64              `bson:"totalCount"`
	DailyCount      int64              `bson:"dailyCount"`
	WeeklyCount     int64              `bson:"weeklyCount"`
	EngagementScore float64            `bson:"engagementScore"`
	LastInteracted  time.Time          `bson:"lastInteracted"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

// ActivityTotals are per-type activity counts inside a performance bucket.
type ActivityTotals struct {
	Views              int64 `bson:"views"`
	QuotationsSent     int64 `bson:"quotationsSent"`
	QuotationsAccepted int64 `bson:"quotationsAccepted"`
	QuotationsRejected int64 `bson:"quotationsRejected"`
	Sold               int64 `bson:"sold"`
}

// Add accumulates a single activity event into the totals.
func (t *ActivityTotals) Add(activity ActivityType, count int64) {
	switch activity {
	case ActivityView:
		t.Views += count
	case ActivityQuotationSent:
		t.QuotationsSent += count
	case ActivityQuotationAccepted:
		t.QuotationsAccepted += count
	case ActivityQuotationRejected:
		t.QuotationsRejected += count
	case ActivitySold:
		t.Sold += count
	}
}

// Merge accumulates another totals bucket.
func (t *ActivityTotals) Merge(o ActivityTotals) {
	t.Views += o.Views
	t.QuotationsSent += o.QuotationsSent
	t.QuotationsAccepted += o.QuotationsAccepted
	t.QuotationsRejected += o.QuotationsRejected
	t.Sold += o.Sold
}

// MonthlyPerformance fans one product's activity into three granularities:
// a per-day slot, a per-week-of-month bucket, and the monthly totals. It is
// built exclusively from ActivityLog rows with IsProcessed=false; the yearly
// rollup reads these documents and never the raw rows.
type MonthlyPerformance struct {
	ID        primitive.ObjectID        `bson:"_id,omitempty"`
	ProductID string                    `bson:"productId"`
	Year      int                       `bson:"year"`
	Month     int                       `bson:"month"`
	Daily     map[string]ActivityTotals `bson:"daily"`  // keyed by day of month, "1".."31"
	Weekly    map[string]ActivityTotals `bson:"weekly"` // keyed by week of month, "1".."5"
	Totals    ActivityTotals            `bson:"totals"`
	UpdatedAt time.Time                 `bson:"updatedAt"`
}

// YearlyPerformance is the second rollup level, derived only from
// MonthlyPerformance documents.
type YearlyPerformance struct {
	ID        primitive.ObjectID        `bson:"_id,omitempty"`
	ProductID string                    `bson:"productId"`
	Year      int                       `bson:"year"`
	Monthly   map[string]ActivityTotals `bson:"monthly"` // keyed by month, "1".."12"
	Totals    ActivityTotals            `bson:"totals"`
	UpdatedAt time.Time                 `bson:"updatedAt"`
}
