package storage

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/canadian-bazar/buyer-analytics/pkg/scoring"
	"github.com/canadian-bazar/buyer-analytics/pkg/types"
)

// MemoryStore is an in-memory Store for tests, mirroring the upsert and
// idempotency semantics of the MongoDB implementation.
type MemoryStore struct {
	mu            sync.Mutex
	categoryStats map[string]*types.CategoryStats
	productStats  map[string]*types.ProductStats
	activity      []*types.ActivityLog
	likes         map[types.LikeKey]*types.LikedProduct
	interactions  map[types.LikeKey]*types.CategoryInteraction // key reused as (categoryId, buyerId)
	monthly       map[string]*types.MonthlyPerformance
	yearly        map[string]*types.YearlyPerformance
}

// NewMemoryStore creates an empty in-memory durable store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categoryStats: make(map[string]*types.CategoryStats),
		productStats:  make(map[string]*types.ProductStats),
		likes:         make(map[types.LikeKey]*types.LikedProduct),
		interactions:  make(map[types.LikeKey]*types.CategoryInteraction),
		monthly:       make(map[string]*types.MonthlyPerformance),
		yearly:        make(map[string]*types.YearlyPerformance),
	}
}

func monthKey(productID string, year, month int) string {
	return productID + "/" + time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func yearKey(productID string, year int) string {
	return productID + "/" + time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
}

func (s *MemoryStore) GetCategoryStats(_ context.Context, categoryID string) (*types.CategoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.categoryStats[categoryID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) BulkUpsertCategoryStats(_ context.Context, stats []*types.CategoryStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range stats {
		cp := *doc
		s.categoryStats[doc.CategoryID] = &cp
	}
	return nil
}

func (s *MemoryStore) GetProductStats(_ context.Context, productID string) (*types.ProductStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.productStats[productID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) BulkUpsertProductStats(_ context.Context, stats []*types.ProductStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range stats {
		cp := *doc
		s.productStats[doc.ProductID] = &cp
	}
	return nil
}

func (s *MemoryStore) InsertActivityLogs(_ context.Context, logs []*types.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range logs {
		cp := *l
		if cp.ID.IsZero() {
			cp.ID = primitive.NewObjectID()
		}
		s.activity = append(s.activity, &cp)
	}
	return nil
}

func (s *MemoryStore) ListUnprocessedActivity(_ context.Context, limit int64) ([]*types.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.ActivityLog
	for _, l := range s.activity {
		if l.IsProcessed {
			continue
		}
		cp := *l
		out = append(out, &cp)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkActivityProcessed(_ context.Context, ids []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, l := range s.activity {
		if _, ok := set[l.ID]; ok {
			l.IsProcessed = true
		}
	}
	return nil
}

func (s *MemoryStore) DeleteActivityBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*types.ActivityLog
	var deleted int64
	for _, l := range s.activity {
		if l.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	s.activity = kept
	return deleted, nil
}

func (s *MemoryStore) BulkApplyLikes(_ context.Context, likes []*types.LikedProduct, dislikes []types.LikeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, like := range likes {
		key := types.LikeKey{ProductID: like.ProductID, BuyerID: like.BuyerID}
		if _, exists := s.likes[key]; !exists {
			cp := *like
			s.likes[key] = &cp
		}
	}
	for _, key := range dislikes {
		delete(s.likes, key)
	}
	return nil
}

func (s *MemoryStore) IsLiked(_ context.Context, productID, buyerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.likes[types.LikeKey{ProductID: productID, BuyerID: buyerID}]
	return ok, nil
}

func (s *MemoryStore) GetCategoryInteraction(_ context.Context, categoryID, buyerID string) (*types.CategoryInteraction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.interactions[types.LikeKey{ProductID: categoryID, BuyerID: buyerID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) BulkUpsertCategoryInteractions(_ context.Context, interactions []*types.CategoryInteraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range interactions {
		cp := *doc
		s.interactions[types.LikeKey{ProductID: doc.CategoryID, BuyerID: doc.BuyerID}] = &cp
	}
	return nil
}

func (s *MemoryStore) GetMonthlyPerformance(_ context.Context, productID string, year, month int) (*types.MonthlyPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.monthly[monthKey(productID, year, month)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) BulkUpsertMonthlyPerformance(_ context.Context, docs []*types.MonthlyPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		cp := *doc
		s.monthly[monthKey(doc.ProductID, doc.Year, doc.Month)] = &cp
	}
	return nil
}

func (s *MemoryStore) ListMonthlyPerformance(_ context.Context, year int) ([]*types.MonthlyPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.MonthlyPerformance
	for _, doc := range s.monthly {
		if doc.Year == year {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) BulkUpsertYearlyPerformance(_ context.Context, docs []*types.YearlyPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		cp := *doc
		s.yearly[yearKey(doc.ProductID, doc.Year)] = &cp
	}
	return nil
}

func (s *MemoryStore) GetYearlyPerformance(_ context.Context, productID string, year int) (*types.YearlyPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.yearly[yearKey(productID, year)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) DeleteMonthlyBefore(_ context.Context, year, month int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, doc := range s.monthly {
		if doc.Year < year || (doc.Year == year && doc.Month < month) {
			delete(s.monthly, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) ResetDailyCounters(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.categoryStats {
		doc.DailyViews, doc.DailySearches = 0, 0
		doc.PopularityScore = scoring.CategoryPopularity(scoring.CategoryCounters{
			Views: doc.ViewCount, Searches: doc.SearchCount,
			WeeklyViews: doc.WeeklyViews, WeeklySearches: doc.WeeklySearches,
		})
	}
	for _, doc := range s.interactions {
		doc.DailyCount = 0
		doc.EngagementScore = scoring.Engagement(doc.TotalCount, doc.WeeklyCount, 0)
	}
	return nil
}

func (s *MemoryStore) ResetWeeklyCounters(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.categoryStats {
		doc.WeeklyViews, doc.WeeklySearches = 0, 0
		doc.PopularityScore = scoring.CategoryPopularity(scoring.CategoryCounters{
			Views: doc.ViewCount, Searches: doc.SearchCount,
			DailyViews: doc.DailyViews, DailySearches: doc.DailySearches,
		})
	}
	for _, doc := range s.interactions {
		doc.WeeklyCount = 0
		doc.EngagementScore = scoring.Engagement(doc.TotalCount, 0, doc.DailyCount)
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }

// LikeCount reports the number of durable like rows, for test assertions.
func (s *MemoryStore) LikeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.likes)
}

// ActivityCount reports how many activity rows exist, for test assertions.
func (s *MemoryStore) ActivityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activity)
}
