package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
	"github.com/canadian-bazar/buyer-analytics/pkg/log"
	"github.com/canadian-bazar/buyer-analytics/pkg/storage"
)

// dailyResetFields lists which buffered counter fields each namespace drops
// at the daily boundary.
var dailyResetFields = map[counterstore.Namespace][]counterstore.Field{
	counterstore.NamespaceCategory:    {counterstore.FieldDailyView, counterstore.FieldDailySearch},
	counterstore.NamespaceInteraction: {counterstore.FieldDaily},
}

var weeklyResetFields = map[counterstore.Namespace][]counterstore.Field{
	counterstore.NamespaceCategory:    {counterstore.FieldWeeklyView, counterstore.FieldWeeklySearch},
	counterstore.NamespaceInteraction: {counterstore.FieldWeekly},
}

// ResetJob zeroes the windowed counters at the daily and weekly boundaries.
// The durable store resets first, recomputing scores in the same write; the
// buffered fields are dropped afterwards. A failure between the two phases
// leaves window counts slightly inflated until the next boundary, which the
// windowed scores tolerate.
type ResetJob struct {
	counters counterstore.Store
	store    storage.Store
	logger   zerolog.Logger
}

func NewResetJob(counters counterstore.Store, store storage.Store) *ResetJob {
	return &ResetJob{
		counters: counters,
		store:    store,
		logger:   log.WithComponent("reset"),
	}
}

func (j *ResetJob) RunDaily(ctx context.Context) error {
	if err := j.store.ResetDailyCounters(ctx); err != nil {
		return err
	}
	if err := j.dropFields(ctx, dailyResetFields); err != nil {
		return err
	}
	j.logger.Info().Msg("Daily counters reset")
	return nil
}

func (j *ResetJob) RunWeekly(ctx context.Context) error {
	if err := j.store.ResetWeeklyCounters(ctx); err != nil {
		return err
	}
	if err := j.dropFields(ctx, weeklyResetFields); err != nil {
		return err
	}
	j.logger.Info().Msg("Weekly counters reset")
	return nil
}

// dropFields walks every live counter key and removes the windowed fields.
// Per-key failures are logged and skipped so one bad key cannot stall the
// whole boundary reset.
func (j *ResetJob) dropFields(ctx context.Context, nsFields map[counterstore.Namespace][]counterstore.Field) error {
	var failed int
	for ns, fields := range nsFields {
		keys, err := j.counters.ScanKeys(ctx, ns)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := j.counters.DeleteFields(ctx, ns, key, fields...); err != nil {
				j.logger.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("Window field reset failed")
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("window reset: %d keys failed", failed)
	}
	return nil
}

// CleanupJob purges aged data: old activity rows, monthly rollups past
// their window, and counter keys that never got a retention TTL.
type CleanupJob struct {
	counters counterstore.Store
	store    storage.Store
	ret      Retention
	logger   zerolog.Logger
	now      func() time.Time
}

// Retention holds the purge windows, all in whole days.
type Retention struct {
	ActivityLogDays        int
	MonthlyPerformanceDays int
	CounterDays            map[counterstore.Namespace]int
}

func NewCleanupJob(counters counterstore.Store, store storage.Store, ret Retention) *CleanupJob {
	return &CleanupJob{
		counters: counters,
		store:    store,
		ret:      ret,
		logger:   log.WithJob(JobCleanup),
		now:      time.Now,
	}
}

func (j *CleanupJob) Run(ctx context.Context) error {
	now := j.now()

	activityCutoff := now.AddDate(0, 0, -j.ret.ActivityLogDays)
	removedRows, err := j.store.DeleteActivityBefore(ctx, activityCutoff)
	if err != nil {
		return err
	}

	monthlyCutoff := now.AddDate(0, 0, -j.ret.MonthlyPerformanceDays)
	removedMonths, err := j.store.DeleteMonthlyBefore(ctx, monthlyCutoff.Year(), int(monthlyCutoff.Month()))
	if err != nil {
		return err
	}

	// Backstop for counter keys created before EnsureRetention ran, or whose
	// TTL was cleared. Keys with a live TTL are left untouched.
	for ns, days := range j.ret.CounterDays {
		keys, err := j.counters.ScanKeys(ctx, ns)
		if err != nil {
			return err
		}
		window := time.Duration(days) * 24 * time.Hour
		for _, key := range keys {
			if err := j.counters.EnsureRetention(ctx, ns, key, window); err != nil {
				j.logger.Warn().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("Retention sweep failed")
			}
		}
	}

	j.logger.Info().Int64("activityRows", removedRows).Int64("monthlyDocs", removedMonths).Msg("Cleanup finished")
	return nil
}
