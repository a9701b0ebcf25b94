package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/canadian-bazar/buyer-analytics/pkg/scoring"
	"github.com/canadian-bazar/buyer-analytics/pkg/types"
)

// Collection names consumed by the read-path aggregation pipelines.
const (
	collCategoryStats        = "category_stats"
	collProductStats         = "product_stats"
	collActivityLogs         = "activity_logs"
	collLikedProducts        = "liked_products"
	collCategoryInteractions = "category_interactions"
	collMonthlyPerformance   = "monthly_performance"
	collYearlyPerformance    = "yearly_performance"
)

// MongoStore is the production Store backed by MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and ensures the indexes the pipeline
// relies on (unique natural keys, the unprocessed-activity scan).
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &MongoStore{
		client: client,
		db:     client.Database(database),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		collCategoryStats: {
			{Keys: bson.D{{Key: "categoryId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "popularityScore", Value: -1}}},
		},
		collProductStats: {
			{Keys: bson.D{{Key: "productId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "popularityScore", Value: -1}}},
			{Keys: bson.D{{Key: "bestsellerScore", Value: -1}}},
		},
		collActivityLogs: {
			{Keys: bson.D{{Key: "isProcessed", Value: 1}, {Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "productId", Value: 1}}},
		},
		collLikedProducts: {
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "buyerId", Value: 1}}, Options: unique},
		},
		collCategoryInteractions: {
			{Keys: bson.D{{Key: "categoryId", Value: 1}, {Key: "buyerId", Value: 1}}, Options: unique},
		},
		collMonthlyPerformance: {
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "year", Value: 1}, {Key: "month", Value: 1}}},
		},
		collYearlyPerformance: {
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "year", Value: 1}}, Options: unique},
		},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *MongoStore) GetCategoryStats(ctx context.Context, categoryID string) (*types.CategoryStats, error) {
	var stats types.CategoryStats
	err := s.db.Collection(collCategoryStats).FindOne(ctx, bson.M{"categoryId": categoryID}).Decode(&stats)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category stats for %s: %w", categoryID, err)
	}
	return &stats, nil
}

func (s *MongoStore) BulkUpsertCategoryStats(ctx context.Context, stats []*types.CategoryStats) error {
	if len(stats) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(stats))
	for _, doc := range stats {
		doc.ID = primitive.NilObjectID
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"categoryId": doc.CategoryID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collCategoryStats, models)
}

func (s *MongoStore) GetProductStats(ctx context.Context, productID string) (*types.ProductStats, error) {
	var stats types.ProductStats
	err := s.db.Collection(collProductStats).FindOne(ctx, bson.M{"productId": productID}).Decode(&stats)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product stats for %s: %w", productID, err)
	}
	return &stats, nil
}

func (s *MongoStore) BulkUpsertProductStats(ctx context.Context, stats []*types.ProductStats) error {
	if len(stats) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(stats))
	for _, doc := range stats {
		doc.ID = primitive.NilObjectID
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"productId": doc.ProductID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collProductStats, models)
}

func (s *MongoStore) InsertActivityLogs(ctx context.Context, logs []*types.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(logs))
	for i, l := range logs {
		docs[i] = l
	}
	// Unordered insert: one bad row must not block the rest.
	_, err := s.db.Collection(collActivityLogs).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to insert activity logs: %w", err)
	}
	return nil
}

func (s *MongoStore) ListUnprocessedActivity(ctx context.Context, limit int64) ([]*types.ActivityLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.db.Collection(collActivityLogs).Find(ctx, bson.M{"isProcessed": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed activity: %w", err)
	}
	var logs []*types.ActivityLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode activity logs: %w", err)
	}
	return logs, nil
}

func (s *MongoStore) MarkActivityProcessed(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Collection(collActivityLogs).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"isProcessed": true}})
	if err != nil {
		return fmt.Errorf("failed to mark activity processed: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteActivityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Collection(collActivityLogs).DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old activity logs: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) BulkApplyLikes(ctx context.Context, likes []*types.LikedProduct, dislikes []types.LikeKey) error {
	if len(likes) == 0 && len(dislikes) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(likes)+len(dislikes))
	for _, like := range likes {
		// $setOnInsert keeps the original CreatedAt on repeated likes.
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"productId": like.ProductID, "buyerId": like.BuyerID}).
			SetUpdate(bson.M{"$setOnInsert": bson.M{
				"productId": like.ProductID,
				"buyerId":   like.BuyerID,
				"createdAt": like.CreatedAt,
			}}).
			SetUpsert(true))
	}
	for _, key := range dislikes {
		models = append(models, mongo.NewDeleteOneModel().
			SetFilter(bson.M{"productId": key.ProductID, "buyerId": key.BuyerID}))
	}
	return s.bulkWrite(ctx, collLikedProducts, models)
}

func (s *MongoStore) IsLiked(ctx context.Context, productID, buyerID string) (bool, error) {
	n, err := s.db.Collection(collLikedProducts).CountDocuments(ctx,
		bson.M{"productId": productID, "buyerId": buyerID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check like for %s/%s: %w", productID, buyerID, err)
	}
	return n > 0, nil
}

func (s *MongoStore) GetCategoryInteraction(ctx context.Context, categoryID, buyerID string) (*types.CategoryInteraction, error) {
	var doc types.CategoryInteraction
	err := s.db.Collection(collCategoryInteractions).
		FindOne(ctx, bson.M{"categoryId": categoryID, "buyerId": buyerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction for %s/%s: %w", categoryID, buyerID, err)
	}
	return &doc, nil
}

func (s *MongoStore) BulkUpsertCategoryInteractions(ctx context.Context, interactions []*types.CategoryInteraction) error {
	if len(interactions) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(interactions))
	for _, doc := range interactions {
		doc.ID = primitive.NilObjectID
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"categoryId": doc.CategoryID, "buyerId": doc.BuyerID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collCategoryInteractions, models)
}

func (s *MongoStore) GetMonthlyPerformance(ctx context.Context, productID string, year, month int) (*types.MonthlyPerformance, error) {
	var doc types.MonthlyPerformance
	err := s.db.Collection(collMonthlyPerformance).
		FindOne(ctx, bson.M{"productId": productID, "year": year, "month": month}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monthly performance for %s: %w", productID, err)
	}
	return &doc, nil
}

func (s *MongoStore) BulkUpsertMonthlyPerformance(ctx context.Context, docs []*types.MonthlyPerformance) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		doc.ID = primitive.NilObjectID
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"productId": doc.ProductID, "year": doc.Year, "month": doc.Month}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collMonthlyPerformance, models)
}

func (s *MongoStore) ListMonthlyPerformance(ctx context.Context, year int) ([]*types.MonthlyPerformance, error) {
	cur, err := s.db.Collection(collMonthlyPerformance).Find(ctx, bson.M{"year": year})
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly performance for %d: %w", year, err)
	}
	var docs []*types.MonthlyPerformance
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode monthly performance: %w", err)
	}
	return docs, nil
}

func (s *MongoStore) BulkUpsertYearlyPerformance(ctx context.Context, docs []*types.YearlyPerformance) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		doc.ID = primitive.NilObjectID
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"productId": doc.ProductID, "year": doc.Year}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collYearlyPerformance, models)
}

func (s *MongoStore) GetYearlyPerformance(ctx context.Context, productID string, year int) (*types.YearlyPerformance, error) {
	var doc types.YearlyPerformance
	err := s.db.Collection(collYearlyPerformance).
		FindOne(ctx, bson.M{"productId": productID, "year": year}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get yearly performance for %s: %w", productID, err)
	}
	return &doc, nil
}

func (s *MongoStore) DeleteMonthlyBefore(ctx context.Context, year, month int) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"year": bson.M{"$lt": year}},
		bson.M{"year": year, "month": bson.M{"$lt": month}},
	}}
	res, err := s.db.Collection(collMonthlyPerformance).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old monthly performance: %w", err)
	}
	return res.DeletedCount, nil
}

// categoryScoreExpr builds the popularity formula as an aggregation
// expression over the document's own counters, so resets can zero a window
// and recompute the score in the same update.
func categoryScoreExpr() bson.M {
	weighted := func(views, searches interface{}) bson.M {
		return bson.M{"$add": bson.A{views, bson.M{"$multiply": bson.A{searches, scoring.SearchWeight}}}}
	}
	return bson.M{"$add": bson.A{
		bson.M{"$multiply": bson.A{weighted("$viewCount", "$searchCount"), scoring.LongTermShare}},
		bson.M{"$multiply": bson.A{weighted("$weeklyViews", "$weeklySearches"), scoring.WeeklyNormalization, scoring.MediumShare}},
		bson.M{"$multiply": bson.A{weighted("$dailyViews", "$dailySearches"), scoring.DailyNormalization, scoring.ShortTermShare}},
	}}
}

func interactionScoreExpr() bson.M {
	return bson.M{"$add": bson.A{
		bson.M{"$multiply": bson.A{"$totalCount", scoring.LongTermShare}},
		bson.M{"$multiply": bson.A{"$weeklyCount", scoring.WeeklyNormalization, scoring.MediumShare}},
		bson.M{"$multiply": bson.A{"$dailyCount", scoring.DailyNormalization, scoring.ShortTermShare}},
	}}
}

// ResetDailyCounters zeroes the daily windows across category stats and
// interactions. The pipeline update recomputes each score from the zeroed
// counters in the same write, keeping the score invariant intact.
func (s *MongoStore) ResetDailyCounters(ctx context.Context) error {
	_, err := s.db.Collection(collCategoryStats).UpdateMany(ctx, bson.M{}, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"dailyViews": 0, "dailySearches": 0}}},
		{{Key: "$set", Value: bson.M{"popularityScore": categoryScoreExpr()}}},
	})
	if err != nil {
		return fmt.Errorf("failed to reset daily category counters: %w", err)
	}
	_, err = s.db.Collection(collCategoryInteractions).UpdateMany(ctx, bson.M{}, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"dailyCount": 0}}},
		{{Key: "$set", Value: bson.M{"engagementScore": interactionScoreExpr()}}},
	})
	if err != nil {
		return fmt.Errorf("failed to reset daily interaction counters: %w", err)
	}
	return nil
}

// ResetWeeklyCounters zeroes the weekly windows, same score invariant.
func (s *MongoStore) ResetWeeklyCounters(ctx context.Context) error {
	_, err := s.db.Collection(collCategoryStats).UpdateMany(ctx, bson.M{}, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"weeklyViews": 0, "weeklySearches": 0}}},
		{{Key: "$set", Value: bson.M{"popularityScore": categoryScoreExpr()}}},
	})
	if err != nil {
		return fmt.Errorf("failed to reset weekly category counters: %w", err)
	}
	_, err = s.db.Collection(collCategoryInteractions).UpdateMany(ctx, bson.M{}, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{"weeklyCount": 0}}},
		{{Key: "$set", Value: bson.M{"engagementScore": interactionScoreExpr()}}},
	})
	if err != nil {
		return fmt.Errorf("failed to reset weekly interaction counters: %w", err)
	}
	return nil
}

// bulkWrite executes an unordered bulk so a single bad document does not
// abort the batch; write errors surface after the rest have been applied.
func (s *MongoStore) bulkWrite(ctx context.Context, coll string, models []mongo.WriteModel) error {
	_, err := s.db.Collection(coll).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("bulk write on %s failed: %w", coll, err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
