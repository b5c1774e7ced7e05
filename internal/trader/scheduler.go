package trader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TaskFunc is one unit of periodic work.
type TaskFunc func(ctx context.Context) error

type task struct {
	name string
	run  TaskFunc
	// next returns the first run time strictly after t.
	next func(t time.Time) time.Time
	due  time.Time
}

// Scheduler runs named periodic tasks one at a time on a single goroutine.
type Scheduler struct {
	tasks  []*task
	logger *zap.Logger
	now    func() time.Time
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger.Named("scheduler"), now: time.Now}
}

// Every registers fn to run every interval, first one interval from now.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFunc) {
	s.add(name, fn, func(t time.Time) time.Time { return t.Add(interval) })
}

// DailyAt registers fn to run once a day at hhmm ("15:04") local time.
func (s *Scheduler) DailyAt(name, hhmm string, fn TaskFunc) error {
	at, err := time.Parse("15:04", hhmm)
	if err != nil {
		return fmt.Errorf("invalid daily time %q: %w", hhmm, err)
	}
	s.add(name, fn, func(t time.Time) time.Time {
		next := time.Date(t.Year(), t.Month(), t.Day(), at.Hour(), at.Minute(), 0, 0, t.Location())
		if !next.After(t) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	})
	return nil
}

func (s *Scheduler) add(name string, fn TaskFunc, next func(time.Time) time.Time) {
	s.tasks = append(s.tasks, &task{name: name, run: fn, next: next, due: next(s.now())})
}

// Run blocks until ctx is cancelled. A task already running when ctx is
// cancelled finishes before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.tasks) == 0 {
		<-ctx.Done()
		return
	}
	for _, t := range s.tasks {
		s.logger.Info("Task scheduled", zap.String("task", t.name), zap.Time("next_run", t.due))
	}

	for {
		timer := time.NewTimer(s.untilNext())
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Scheduler stopped")
			return
		case <-timer.C:
		}
		s.RunPending(context.WithoutCancel(ctx))
	}
}

// RunPending runs every task that is due, in registration order, and returns
// how many ran. A failing task is logged and rescheduled like any other.
func (s *Scheduler) RunPending(ctx context.Context) int {
	ran := 0
	for _, t := range s.tasks {
		if s.now().Before(t.due) {
			continue
		}
		start := s.now()
		if err := t.run(ctx); err != nil {
			s.logger.Error("Task failed", zap.String("task", t.name), zap.Error(err))
		} else {
			s.logger.Debug("Task finished", zap.String("task", t.name), zap.Duration("took", s.now().Sub(start)))
		}
		t.due = t.next(s.now())
		ran++
	}
	return ran
}

func (s *Scheduler) untilNext() time.Duration {
	soonest := s.tasks[0].due
	for _, t := range s.tasks[1:] {
		if t.due.Before(soonest) {
			soonest = t.due
		}
	}
	return max(soonest.Sub(s.now()), 0)
}
