// Package scheduler runs recurring background tasks on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// Task describes one recurring background task.
type Task struct {
	ID         string
	Name       string
	Cron       string // standard five-field cron expression
	RunOnStart bool   // execute once immediately after Start
	Func       TaskFunc
}

// TaskInfo is the externally visible state of a registered task.
type TaskInfo struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Cron    string     `json:"cron"`
	LastRun *time.Time `json:"lastRun,omitempty"`
	NextRun *time.Time `json:"nextRun,omitempty"`
	Running bool       `json:"running"`
}

type entry struct {
	task    Task
	job     gocron.Job
	lastRun *time.Time
	running bool
}

// Scheduler manages background scheduled tasks.
type Scheduler struct {
	mu      sync.RWMutex
	gocron  gocron.Scheduler
	entries map[string]*entry
	logger  zerolog.Logger
}

// New creates an empty scheduler.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{
		gocron:  gs,
		entries: make(map[string]*entry),
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Register adds a task. Task IDs must be unique.
func (s *Scheduler) Register(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[task.ID]; exists {
		return fmt.Errorf("task %q already registered", task.ID)
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(task.Cron, false),
		gocron.NewTask(func() { s.run(task.ID) }),
		gocron.WithName(task.Name),
		gocron.WithTags(task.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule task %q: %w", task.ID, err)
	}

	s.entries[task.ID] = &entry{task: task, job: job}
	s.logger.Info().
		Str("id", task.ID).
		Str("cron", task.Cron).
		Bool("runOnStart", task.RunOnStart).
		Msg("Registered task")
	return nil
}

// Start begins the cron loop and kicks off RunOnStart tasks.
func (s *Scheduler) Start() {
	s.gocron.Start()

	s.mu.RLock()
	var startup []string
	for id, e := range s.entries {
		if e.task.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range startup {
		go s.run(id)
	}
}

// Stop shuts the scheduler down, waiting for running tasks.
func (s *Scheduler) Stop() error {
	return s.gocron.Shutdown()
}

// RunNow triggers a task outside its schedule.
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	e, exists := s.entries[id]
	running := exists && e.running
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("task %q not found", id)
	}
	if running {
		return fmt.Errorf("task %q is already running", id)
	}
	go s.run(id)
	return nil
}

// Tasks returns the state of every registered task.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]TaskInfo, 0, len(s.entries))
	for _, e := range s.entries {
		info := TaskInfo{
			ID:      e.task.ID,
			Name:    e.task.Name,
			Cron:    e.task.Cron,
			LastRun: e.lastRun,
			Running: e.running,
		}
		if next, err := e.job.NextRun(); err == nil {
			info.NextRun = &next
		}
		infos = append(infos, info)
	}
	return infos
}

func (s *Scheduler) run(id string) {
	s.mu.Lock()
	e, exists := s.entries[id]
	if !exists || e.running {
		s.mu.Unlock()
		return
	}
	e.running = true
	s.mu.Unlock()

	started := time.Now()
	s.logger.Info().Str("id", id).Msg("Starting task")

	err := e.task.Func(context.Background())

	s.mu.Lock()
	e.running = false
	e.lastRun = &started
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("id", id).Dur("duration", time.Since(started)).Msg("Task failed")
		return
	}
	s.logger.Info().Str("id", id).Dur("duration", time.Since(started)).Msg("Task completed")
}
