package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/canadian-bazar/buyer-analytics/pkg/config"
	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
	"github.com/canadian-bazar/buyer-analytics/pkg/lock"
	"github.com/canadian-bazar/buyer-analytics/pkg/log"
	"github.com/canadian-bazar/buyer-analytics/pkg/metrics"
	"github.com/canadian-bazar/buyer-analytics/pkg/reconciler"
	"github.com/canadian-bazar/buyer-analytics/pkg/scheduler"
	"github.com/canadian-bazar/buyer-analytics/pkg/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return runDaemon(cmd.Context(), cfg)
	},
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	log.Init(log.Config{
		Level:      log.Level(cfg.Logging.Level),
		JSONOutput: cfg.Logging.Format == "json",
		Output:     os.Stdout,
	})
	logger := log.WithComponent("analyticsd")
	metrics.SetVersion(Version)

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	counters := counterstore.NewRedisStore(redisClient)
	if err := counters.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	metrics.RegisterComponent("redis", true, "connected")

	mongoCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	store, err := storage.NewMongoStore(mongoCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("connecting to mongo: %w", err)
	}
	metrics.RegisterComponent("mongo", true, "connected")

	locker := lock.NewRedisLocker(redisClient)
	runner := reconciler.NewRunner(locker, cfg.Locks.Lease)

	category := reconciler.NewCategoryStatsReconciler(counters, store)
	product := reconciler.NewProductActivityReconciler(counters, store)
	likes := reconciler.NewLikesReconciler(counters, store)
	interaction := reconciler.NewCategoryInteractionReconciler(counters, store)
	performance := reconciler.NewPerformanceReconciler(store)
	yearly := reconciler.NewYearlyRollupReconciler(store)
	resets := reconciler.NewResetJob(counters, store)
	cleanup := reconciler.NewCleanupJob(counters, store, reconciler.Retention{
		ActivityLogDays:        cfg.Retention.ActivityLogDays,
		MonthlyPerformanceDays: cfg.Retention.MonthlyPerformanceDays,
		CounterDays: map[counterstore.Namespace]int{
			counterstore.NamespaceCategory:    cfg.Retention.CategoryCounterDays,
			counterstore.NamespaceProduct:     cfg.Retention.ProductCounterDays,
			counterstore.NamespaceLike:        cfg.Retention.LikeCounterDays,
			counterstore.NamespaceInteraction: cfg.Retention.InteractionCounterDays,
		},
	})

	sched := scheduler.New()
	addLocked := func(name string, every time.Duration, run func(context.Context) error) {
		sched.AddInterval(name, every, func(ctx context.Context) {
			runner.RunLocked(ctx, name, run)
		})
	}
	addLocked(reconciler.JobCategoryStats, cfg.Jobs.CategoryStatsInterval, category.Run)
	addLocked(reconciler.JobProductActivity, cfg.Jobs.ProductActivityInterval, product.Run)
	addLocked(reconciler.JobLikes, cfg.Jobs.LikesInterval, likes.Run)
	addLocked(reconciler.JobCategoryInteraction, cfg.Jobs.CategoryInteractionInterval, interaction.Run)
	addLocked(reconciler.JobMonthlyPerformance, cfg.Jobs.PerformanceInterval, performance.Run)
	addLocked(reconciler.JobYearlyRollup, cfg.Jobs.YearlyRollupInterval, yearly.Run)

	dailyAt, err := config.ParseClock(cfg.Jobs.DailyResetAt)
	if err != nil {
		return fmt.Errorf("jobs.daily_reset_at: %w", err)
	}
	weeklyAt, err := config.ParseClock(cfg.Jobs.WeeklyResetAt)
	if err != nil {
		return fmt.Errorf("jobs.weekly_reset_at: %w", err)
	}
	cleanupAt, err := config.ParseClock(cfg.Jobs.CleanupAt)
	if err != nil {
		return fmt.Errorf("jobs.cleanup_at: %w", err)
	}
	sched.AddDaily(reconciler.JobDailyReset, dailyAt, func(ctx context.Context) {
		runner.RunLocked(ctx, reconciler.JobDailyReset, resets.RunDaily)
	})
	sched.AddWeekly(reconciler.JobWeeklyReset, cfg.Jobs.WeeklyResetDay, weeklyAt, func(ctx context.Context) {
		runner.RunLocked(ctx, reconciler.JobWeeklyReset, resets.RunWeekly)
	})
	sched.AddDaily(reconciler.JobCleanup, cleanupAt, func(ctx context.Context) {
		runner.RunLocked(ctx, reconciler.JobCleanup, cleanup.Run)
	})

	var metricsServer *metrics.Server
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(counters, []counterstore.Namespace{
			counterstore.NamespaceCategory,
			counterstore.NamespaceProduct,
			counterstore.NamespaceLike,
			counterstore.NamespaceInteraction,
		})
		collector.Start()

		metricsServer = metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics server listening")
	}

	sched.Start(ctx)
	logger.Info().Msg("Analytics daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
		logger.Info().Msg("Context cancelled, shutting down")
	}

	sched.Stop()
	if collector != nil {
		collector.Stop()
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		cancel()
	}
	if err := store.Close(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Mongo close failed")
	}
	if err := counters.Close(); err != nil {
		logger.Error().Err(err).Msg("Redis close failed")
	}

	logger.Info().Msg("Analytics daemon stopped")
	return nil
}
