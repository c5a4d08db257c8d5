// Package scheduler refreshes the repository index on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Builder rebuilds the repository index.
type Builder interface {
	Build(ctx context.Context) error
}

// Scheduler wraps a gocron scheduler running the periodic index refresh.
type Scheduler struct {
	scheduler gocron.Scheduler
	builder   Builder
	logger    *log.Logger
}

// New creates a scheduler instance. It does nothing until a refresh is scheduled and Start is called.
func New(builder Builder, logger *log.Logger, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, builder: builder, logger: logger}, nil
}

// ScheduleRefresh registers the refresh job every interval and returns its ID.
// A tick that fires while the previous one is still running is skipped.
func (s *Scheduler) ScheduleRefresh(interval time.Duration) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.Refresh),
		gocron.WithName("index-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create refresh job: %w", err)
	}
	s.logger.Printf("Scheduler: refreshing the index every %s.\n", interval)
	return job.ID().String(), nil
}

// Refresh runs one scheduled build. Failures are logged and dropped;
// the next tick is the only retry.
func (s *Scheduler) Refresh() {
	if err := s.builder.Build(context.Background()); err != nil {
		s.logger.Printf("Scheduled fetch failed: %v\n", err)
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Println("Scheduler: starting.")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running refresh to finish.
func (s *Scheduler) Stop() error {
	s.logger.Println("Scheduler: stopping.")
	return s.scheduler.Shutdown()
}
