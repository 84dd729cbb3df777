// ABOUTME: Background expiry sweeps for sessions, delegations, and challenges
// ABOUTME: Each task runs on its own ticker and stops with the supplied context

package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one periodic cleanup job. Run returns the number of records it
// affected.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// Sweeper schedules cleanup tasks off the foreground request path. Task
// errors are logged and the task keeps its schedule; a slow cycle delays
// only its own task.
type Sweeper struct {
	tasks  []Task
	logger *slog.Logger
}

// New creates a sweeper for the given tasks.
func New(tasks ...Task) *Sweeper {
	return &Sweeper{
		tasks:  tasks,
		logger: slog.Default().With("component", "sweeper"),
	}
}

// Run executes all tasks on their intervals until the context is cancelled.
// It blocks; callers own the goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, task := range s.tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			s.runTask(ctx, task)
		}(task)
	}
	wg.Wait()
}

// runTask loops one task's ticker until cancellation.
func (s *Sweeper) runTask(ctx context.Context, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	s.logger.Info("sweep task scheduled", "task", task.Name, "interval", task.Interval)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, task)
		case <-ctx.Done():
			s.logger.Debug("sweep task stopped", "task", task.Name)
			return
		}
	}
}

// runOnce executes a single sweep cycle.
func (s *Sweeper) runOnce(ctx context.Context, task Task) {
	start := time.Now()
	count, err := task.Run(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "task", task.Name, "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("sweep completed",
			"task", task.Name, "count", count, "duration", time.Since(start))
	}
}

// RunAll runs every task exactly once, for operator-triggered sweeps.
// Returns the total number of affected records.
func (s *Sweeper) RunAll(ctx context.Context) int {
	total := 0
	for _, task := range s.tasks {
		count, err := task.Run(ctx)
		if err != nil {
			s.logger.Error("sweep failed", "task", task.Name, "error", err)
			continue
		}
		total += count
	}
	return total
}
