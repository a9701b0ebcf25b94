package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/canadian-bazar/buyer-analytics/pkg/lock"
	"github.com/canadian-bazar/buyer-analytics/pkg/log"
	"github.com/canadian-bazar/buyer-analytics/pkg/metrics"
)

// Job names. Each doubles as the distributed lock name, so at most one
// process runs a given job at a time across the fleet.
const (
	JobCategoryStats       = "category-stats"
	JobProductActivity     = "product-activity"
	JobLikes               = "likes"
	JobCategoryInteraction = "category-interaction"
	JobMonthlyPerformance  = "performance-monthly"
	JobYearlyRollup        = "performance-yearly"
	JobDailyReset          = "daily-reset"
	JobWeeklyReset         = "weekly-reset"
	JobCleanup             = "cleanup"
)

// Runner wraps job execution with distributed locking, panic recovery,
// and run metrics. Jobs share one Runner; the lock name is the job name.
type Runner struct {
	locker lock.Locker
	lease  time.Duration
	logger zerolog.Logger
}

func NewRunner(locker lock.Locker, lease time.Duration) *Runner {
	return &Runner{
		locker: locker,
		lease:  lease,
		logger: log.WithComponent("reconciler"),
	}
}

// RunLocked acquires the named lock and runs fn under it. A held lock is
// not an error: the run is skipped and the next tick tries again. Errors
// from fn are logged, never propagated; a failed run leaves its sources
// in place for the next one.
func (r *Runner) RunLocked(ctx context.Context, job string, fn func(context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("job", job).Interface("panic", rec).Msg("Job panicked")
			metrics.JobRunsTotal.WithLabelValues(job, "panic").Inc()
		}
	}()

	token, err := r.locker.Acquire(ctx, job, r.lease)
	if err != nil {
		r.logger.Error().Err(err).Str("job", job).Msg("Lock acquisition failed")
		metrics.JobRunsTotal.WithLabelValues(job, "error").Inc()
		return
	}
	if token == "" {
		r.logger.Info().Str("job", job).Msg("Lock held elsewhere, skipping run")
		metrics.LockContentionTotal.WithLabelValues(job).Inc()
		metrics.JobRunsTotal.WithLabelValues(job, "skipped").Inc()
		return
	}
	defer func() {
		released, err := r.locker.Release(context.WithoutCancel(ctx), job, token)
		if err != nil {
			r.logger.Error().Err(err).Str("job", job).Msg("Lock release failed")
		} else if !released {
			r.logger.Warn().Str("job", job).Msg("Lock lease expired before release")
		}
	}()

	timer := metrics.NewTimer()
	if err := fn(ctx); err != nil {
		r.logger.Error().Err(err).Str("job", job).Msg("Job run failed")
		metrics.JobRunsTotal.WithLabelValues(job, "error").Inc()
		return
	}
	timer.ObserveDurationVec(metrics.JobDuration, job)
	metrics.JobRunsTotal.WithLabelValues(job, "success").Inc()
}
