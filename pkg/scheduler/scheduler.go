package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/canadian-bazar/buyer-analytics/pkg/log"
)

// JobFunc is one scheduled unit of work. It must honor ctx cancellation.
type JobFunc func(ctx context.Context)

type job struct {
	name string
	run  JobFunc
	next func(from time.Time) time.Time
}

// Scheduler runs named jobs on interval, daily, and weekly cadences, one
// goroutine per job. Nothing fires at Start itself: the first interval tick
// lands one full period later.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []job
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	logger  zerolog.Logger
	now     func() time.Time
}

func New() *Scheduler {
	return &Scheduler{
		stopCh: make(chan struct{}),
		logger: log.WithComponent("scheduler"),
		now:    time.Now,
	}
}

// AddInterval schedules fn every period.
func (s *Scheduler) AddInterval(name string, every time.Duration, fn JobFunc) {
	s.add(job{name: name, run: fn, next: func(from time.Time) time.Time {
		return from.Add(every)
	}})
}

// AddDaily schedules fn once a day at the given offset past midnight local time.
func (s *Scheduler) AddDaily(name string, at time.Duration, fn JobFunc) {
	s.add(job{name: name, run: fn, next: func(from time.Time) time.Time {
		return NextDaily(from, at)
	}})
}

// AddWeekly schedules fn once a week on the given weekday at the given
// offset past midnight local time.
func (s *Scheduler) AddWeekly(name string, day time.Weekday, at time.Duration, fn JobFunc) {
	s.add(job{name: name, run: fn, next: func(from time.Time) time.Time {
		return NextWeekly(from, day, at)
	}})
}

func (s *Scheduler) add(j job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
}

// Start launches one goroutine per registered job. Jobs registered after
// Start are ignored.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop signals all job loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	defer s.wg.Done()

	timer := time.NewTimer(time.Until(j.next(s.now())))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.runOne(ctx, j)
			timer.Reset(time.Until(j.next(s.now())))
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runOne executes a single tick. A panicking job kills its tick, not the
// scheduler.
func (s *Scheduler) runOne(ctx context.Context, j job) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Str("job", j.name).Interface("panic", rec).Msg("Scheduled job panicked")
		}
	}()
	s.logger.Debug().Str("job", j.name).Msg("Running scheduled job")
	j.run(ctx)
}

// NextDaily returns the next instant at the given offset past midnight,
// strictly after from.
func NextDaily(from time.Time, at time.Duration) time.Time {
	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	next := midnight.Add(at)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextWeekly returns the next instant on the given weekday at the given
// offset past midnight, strictly after from.
func NextWeekly(from time.Time, day time.Weekday, at time.Duration) time.Time {
	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	daysAhead := (int(day) - int(from.Weekday()) + 7) % 7
	next := midnight.AddDate(0, 0, daysAhead).Add(at)
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
