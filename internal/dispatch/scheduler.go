package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Enqueuer accepts fire-and-forget commands. *Worker implements it.
type Enqueuer interface {
	Enqueue(cmd Command) error
}

// Scheduler injects AutoRefresh commands into the worker queue at a fixed
// interval. A tick that finds the queue full is skipped.
type Scheduler struct {
	cron     *cron.Cron
	target   Enqueuer
	interval time.Duration
	logger   Logger
}

// NewScheduler creates a scheduler that enqueues AutoRefresh every interval.
func NewScheduler(target Enqueuer, interval time.Duration, logger Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Scheduler{
		cron:     cron.New(),
		target:   target,
		interval: interval,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), s.tick); err != nil {
		return nil, fmt.Errorf("scheduling auto refresh: %w", err)
	}
	return s, nil
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("auto refresh scheduled", "interval", s.interval.String())
}

// Stop halts the scheduler and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	err := s.target.Enqueue(AutoRefresh())
	switch {
	case err == nil:
	case errors.Is(err, ErrQueueFull):
		s.logger.Warn("auto refresh skipped, queue full")
	default:
		s.logger.Debug("auto refresh not queued", "error", err)
	}
}
