package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Task struct {
	ID       cron.EntryID
	Schedule string
	Action   func()
}

type Scheduler struct {
	cron   *cron.Cron
	tasks  map[string]*Task
	logger zerolog.Logger
	mu     sync.RWMutex
}

func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		tasks:  make(map[string]*Task),
		logger: logger,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// AddTask registers action under key on a cron schedule. Registering an
// existing key replaces its task.
func (s *Scheduler) AddTask(key string, schedule string, action func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[key]; ok {
		s.cron.Remove(existing.ID)
		delete(s.tasks, key)
	}

	id, err := s.cron.AddFunc(schedule, func() {
		s.logger.Info().Str("task", key).Msg("running scheduled task")
		action()
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.tasks[key] = &Task{
		ID:       id,
		Schedule: schedule,
		Action:   action,
	}

	return nil
}

func (s *Scheduler) RemoveTask(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, ok := s.tasks[key]; ok {
		s.cron.Remove(task.ID)
		delete(s.tasks, key)
	}
}

func (s *Scheduler) UpdateTask(key string, schedule string, action func()) error {
	return s.AddTask(key, schedule, action)
}

// TaskCount reports how many tasks are registered.
func (s *Scheduler) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
