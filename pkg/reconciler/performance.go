package reconciler

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/canadian-bazar/buyer-analytics/pkg/log"
	"github.com/canadian-bazar/buyer-analytics/pkg/metrics"
	"github.com/canadian-bazar/buyer-analytics/pkg/storage"
	"github.com/canadian-bazar/buyer-analytics/pkg/types"
)

// activityBatchLimit bounds one monthly rollup pass. Leftover rows are
// picked up on the next tick.
const activityBatchLimit = 1000

// weekOfMonth buckets a day of month into weeks "1".."5".
func weekOfMonth(day int) int {
	return (day-1)/7 + 1
}

// PerformanceReconciler is the first rollup stage: it folds unprocessed
// activity_logs rows into per-product monthly_performance documents and
// marks the rows processed only after the monthly write is acknowledged.
// A marked row never contributes to a later pass.
type PerformanceReconciler struct {
	store  storage.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewPerformanceReconciler(store storage.Store) *PerformanceReconciler {
	return &PerformanceReconciler{
		store:  store,
		logger: log.WithJob(JobMonthlyPerformance),
		now:    time.Now,
	}
}

type monthGroup struct {
	productID string
	year      int
	month     int
}

func (r *PerformanceReconciler) Run(ctx context.Context) error {
	rows, err := r.store.ListUnprocessedActivity(ctx, activityBatchLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	groups := make(map[monthGroup][]*types.ActivityLog)
	var order []monthGroup
	for _, row := range rows {
		g := monthGroup{
			productID: row.ProductID,
			year:      row.Timestamp.Year(),
			month:     int(row.Timestamp.Month()),
		}
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], row)
	}

	docs := make([]*types.MonthlyPerformance, 0, len(order))
	for _, g := range order {
		doc, err := r.store.GetMonthlyPerformance(ctx, g.productID, g.year, g.month)
		if errors.Is(err, storage.ErrNotFound) {
			doc = &types.MonthlyPerformance{
				ProductID: g.productID,
				Year:      g.year,
				Month:     g.month,
				Daily:     make(map[string]types.ActivityTotals),
				Weekly:    make(map[string]types.ActivityTotals),
			}
		} else if err != nil {
			return err
		}
		if doc.Daily == nil {
			doc.Daily = make(map[string]types.ActivityTotals)
		}
		if doc.Weekly == nil {
			doc.Weekly = make(map[string]types.ActivityTotals)
		}

		for _, row := range groups[g] {
			dayKey := strconv.Itoa(row.Timestamp.Day())
			weekKey := strconv.Itoa(weekOfMonth(row.Timestamp.Day()))

			daily := doc.Daily[dayKey]
			daily.Add(row.ActivityType, row.Count)
			doc.Daily[dayKey] = daily

			weekly := doc.Weekly[weekKey]
			weekly.Add(row.ActivityType, row.Count)
			doc.Weekly[weekKey] = weekly

			doc.Totals.Add(row.ActivityType, row.Count)
		}
		doc.UpdatedAt = r.now()
		docs = append(docs, doc)
	}

	if err := r.store.BulkUpsertMonthlyPerformance(ctx, docs); err != nil {
		return err
	}
	metrics.BulkWriteDocsTotal.WithLabelValues(JobMonthlyPerformance).Add(float64(len(docs)))

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	if err := r.store.MarkActivityProcessed(ctx, ids); err != nil {
		return err
	}

	r.logger.Info().Int("rows", len(rows)).Int("months", len(docs)).Msg("Monthly performance rolled up")
	return nil
}

// YearlyRollupReconciler is the second rollup stage. It rebuilds
// yearly_performance documents from the monthly level alone, never from raw
// activity rows, so re-running it is idempotent. Around the new year the
// previous year is rebuilt too, to catch late-arriving December activity.
type YearlyRollupReconciler struct {
	store  storage.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewYearlyRollupReconciler(store storage.Store) *YearlyRollupReconciler {
	return &YearlyRollupReconciler{
		store:  store,
		logger: log.WithJob(JobYearlyRollup),
		now:    time.Now,
	}
}

func (r *YearlyRollupReconciler) Run(ctx context.Context) error {
	now := r.now()
	years := []int{now.Year()}
	if now.Month() == time.January {
		years = append(years, now.Year()-1)
	}

	for _, year := range years {
		if err := r.rollupYear(ctx, year); err != nil {
			return err
		}
	}
	return nil
}

func (r *YearlyRollupReconciler) rollupYear(ctx context.Context, year int) error {
	monthly, err := r.store.ListMonthlyPerformance(ctx, year)
	if err != nil {
		return err
	}
	if len(monthly) == 0 {
		return nil
	}

	byProduct := make(map[string]*types.YearlyPerformance)
	for _, m := range monthly {
		doc, ok := byProduct[m.ProductID]
		if !ok {
			doc = &types.YearlyPerformance{
				ProductID: m.ProductID,
				Year:      year,
				Monthly:   make(map[string]types.ActivityTotals),
			}
			byProduct[m.ProductID] = doc
		}
		doc.Monthly[strconv.Itoa(m.Month)] = m.Totals
		doc.Totals.Merge(m.Totals)
	}

	docs := make([]*types.YearlyPerformance, 0, len(byProduct))
	for _, doc := range byProduct {
		doc.UpdatedAt = r.now()
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ProductID < docs[j].ProductID })

	if err := r.store.BulkUpsertYearlyPerformance(ctx, docs); err != nil {
		return err
	}
	metrics.BulkWriteDocsTotal.WithLabelValues(JobYearlyRollup).Add(float64(len(docs)))

	r.logger.Info().Int("year", year).Int("products", len(docs)).Msg("Yearly performance rolled up")
	return nil
}
