// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/rtmbot/pkg/bot/workerpool"
)

// ScheduledTask is a handler run once per interval.
type ScheduledTask struct {
	Name     string
	Handler  ScheduledFunc
	Interval time.Duration
	// LastRun is zero until the task first fires.
	LastRun time.Time
	Enabled bool
}

// Scheduler fires scheduled tasks from the control loop. Tick only decides
// what is due; the run function does the work, so a slow handler never holds
// up the loop when run hands it to the worker pool.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []*ScheduledTask
	started time.Time
	run     func(task *ScheduledTask)
	log     zerolog.Logger
}

// NewScheduler creates a scheduler whose never-run tasks become due one
// interval after start.
func NewScheduler(tasks []*ScheduledTask, start time.Time, run func(task *ScheduledTask), log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tasks:   tasks,
		started: start,
		run:     run,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Tick fires every enabled task whose interval has elapsed since its last run
// (or since start, for a task that never ran) and returns how many fired.
func (s *Scheduler) Tick(now time.Time) int {
	s.mu.Lock()
	var due []*ScheduledTask
	for _, task := range s.tasks {
		if !task.Enabled {
			continue
		}
		since := task.LastRun
		if since.IsZero() {
			since = s.started
		}
		if now.Sub(since) < task.Interval {
			continue
		}
		task.LastRun = now
		due = append(due, task)
	}
	s.mu.Unlock()

	for _, task := range due {
		s.log.Debug().Str("task", task.Name).Time("at", now).Msg("Running scheduled task")
		s.run(task)
	}
	return len(due)
}

// SetEnabled enables or disables a task by name.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.Name == name {
			task.Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("no scheduled task named %q", name)
}

// LastRun returns when a task last fired.
func (s *Scheduler) LastRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.Name == name {
			return task.LastRun, true
		}
	}
	return time.Time{}, false
}

// scheduledJob adapts a scheduled task run to the worker pool.
type scheduledJob struct {
	name   string
	fn     ScheduledFunc
	client *Client
}

var _ workerpool.Job = scheduledJob{}

func (j scheduledJob) ID() string {
	return "scheduled:" + j.name
}

func (j scheduledJob) Run(ctx context.Context) error {
	return j.fn(ctx, j.client)
}
