package batch

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// SchedulerState represents the current state of the scheduler.
type SchedulerState string

const (
	SchedulerStateStopped SchedulerState = "stopped"
	SchedulerStateRunning SchedulerState = "running"
	SchedulerStatePaused  SchedulerState = "paused"
)

// RunCallback is invoked with the result of every scheduled or manual
// batch run.
type RunCallback func(ctx context.Context, summary *Summary)

// Scheduler drives the Submitter on a cron schedule and exposes a
// manual trigger that reuses the exact same code path.
type Scheduler struct {
	mu sync.RWMutex

	submitter *Submitter
	callback  RunCallback
	schedule  string

	state  SchedulerState
	cron   *cron.Cron
	logger *log.Logger
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Schedule string // standard 5-field cron expression, e.g. "0 2 * * *"
	Callback RunCallback
	Logger   *log.Logger
}

// NewScheduler creates a Scheduler bound to submitter.
func NewScheduler(submitter *Submitter, cfg *SchedulerConfig) (*Scheduler, error) {
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if cfg == nil {
		cfg = &SchedulerConfig{}
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 2 * * *"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[batch] ", log.LstdFlags)
	}

	return &Scheduler{
		submitter: submitter,
		callback:  cfg.Callback,
		schedule:  cfg.Schedule,
		state:     SchedulerStateStopped,
		logger:    cfg.Logger,
	}, nil
}

// Start begins the cron-driven scheduler, running the batch submitter
// as a single logical task on its own goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SchedulerStateRunning {
		return ErrSchedulerRunning
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		s.runScheduled(ctx)
	}); err != nil {
		return err
	}

	s.cron = c
	s.state = SchedulerStateRunning
	c.Start()

	s.logger.Printf("batch scheduler started (schedule=%q)", s.schedule)
	return nil
}

// Stop halts the scheduler and waits for any in-flight run to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state == SchedulerStateStopped {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.state = SchedulerStateStopped
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	s.logger.Println("batch scheduler stopped")
	return nil
}

// Pause suspends scheduled runs without tearing down the cron job;
// the manual trigger still works while paused.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SchedulerStateRunning {
		s.state = SchedulerStatePaused
		s.logger.Println("batch scheduler paused")
	}
}

// Resume un-pauses a paused scheduler.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SchedulerStatePaused {
		s.state = SchedulerStateRunning
		s.logger.Println("batch scheduler resumed")
	}
}

// State returns the current scheduler state.
func (s *Scheduler) State() SchedulerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()
	if state != SchedulerStateRunning {
		return
	}
	s.run(ctx)
}

// TriggerManual runs the submitter immediately, reusing the same
// code path as the cron-scheduled run.
func (s *Scheduler) TriggerManual(ctx context.Context) (*Summary, error) {
	return s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) (*Summary, error) {
	summary, err := s.submitter.RunOnce(ctx)
	if err != nil {
		s.logger.Printf("batch run failed: %v", err)
		return nil, err
	}
	s.logger.Printf("batch run complete: %d submitted, %d devices failed, %d skipped",
		summary.Submitted, summary.Failed, summary.Skipped)

	s.mu.RLock()
	cb := s.callback
	s.mu.RUnlock()
	if cb != nil {
		cb(ctx, summary)
	}
	return summary, nil
}

// SetCallback sets the function invoked after every run.
func (s *Scheduler) SetCallback(cb RunCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}
