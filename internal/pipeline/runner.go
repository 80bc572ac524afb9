package pipeline

import (
	"context"
	"fmt"
	"time"

	"idledata/pkg/logger"
	"idledata/pkg/ratelimit"
)

// Task is one unit of sequential pipeline work, such as one harvest
// query or one item of a market sync
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskResult records how a task went
type TaskResult struct {
	Task     string
	Duration time.Duration
	Error    error
}

// Summary is what a run produced
type Summary struct {
	Completed int
	Results   []TaskResult
	Duration  time.Duration
}

// Runner executes tasks one after another, pausing through its pacer
// after each completed task. The first failure stops the run.
type Runner struct {
	stage  string
	pacer  ratelimit.Pacer
	logger logger.Logger

	// OnDone, when set, is called after each successful task with the
	// number of tasks finished so far and the total.
	OnDone func(done, total int)
}

// NewRunner creates a runner for a named stage. A nil pacer never waits.
func NewRunner(stage string, pacer ratelimit.Pacer, log logger.Logger) *Runner {
	return &Runner{
		stage:  stage,
		pacer:  ratelimit.OrNoDelay(pacer),
		logger: logger.OrGlobal(log).WithField("stage", stage),
	}
}

// Run executes tasks in order
func (r *Runner) Run(ctx context.Context, tasks []Task) (*Summary, error) {
	start := time.Now()
	summary := &Summary{Results: make([]TaskResult, 0, len(tasks))}

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		r.logger.DebugWithFields("Task started", map[string]interface{}{
			"task":     task.Name,
			"position": i + 1,
			"total":    len(tasks),
		})

		taskStart := time.Now()
		err := task.Run(ctx)
		result := TaskResult{Task: task.Name, Duration: time.Since(taskStart), Error: err}
		summary.Results = append(summary.Results, result)

		if err != nil {
			r.logger.WithError(err).ErrorWithFields("Task failed", map[string]interface{}{
				"task":     task.Name,
				"duration": result.Duration,
			})
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("%s %s: %w", r.stage, task.Name, err)
		}

		summary.Completed++
		if r.OnDone != nil {
			r.OnDone(summary.Completed, len(tasks))
		}

		if err := r.pacer.Pause(ctx); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}
