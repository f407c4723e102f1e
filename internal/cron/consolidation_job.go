// Package cron runs the memory background jobs: periodic consolidation and
// the morning briefing. Each job serializes against itself with an executing
// guard; the two jobs are independent and may overlap.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reins-ai/reins/internal/memory"
	"github.com/reins-ai/reins/internal/schema"
)

// Schedule configures when a job fires.
type Schedule struct {
	Enabled  bool
	Interval time.Duration
	Expr     string // optional cron expression; overrides Interval when set
	TZ       string // IANA timezone for Expr, local time when empty
}

// ConsolidationRunner is the pipeline capability the consolidation job
// wraps.
type ConsolidationRunner interface {
	Run(ctx context.Context) (memory.RunResult, error)
}

// ConsolidationJob runs the consolidation pipeline on an interval.
type ConsolidationJob struct {
	runner   ConsolidationRunner
	schedule Schedule

	mu         sync.Mutex
	running    bool
	executing  bool
	cancel     context.CancelFunc
	lastRunAt  time.Time
	lastResult *memory.RunResult
	runCount   int

	onComplete func(memory.RunResult)
	onError    func(error)
}

// NewConsolidationJob builds the job. Callbacks may be nil.
func NewConsolidationJob(runner ConsolidationRunner, schedule Schedule, onComplete func(memory.RunResult), onError func(error)) *ConsolidationJob {
	return &ConsolidationJob{
		runner:     runner,
		schedule:   schedule,
		onComplete: onComplete,
		onError:    onError,
	}
}

// Start arms the interval. Starting a running job is a no-op.
func (j *ConsolidationJob) Start(ctx context.Context) error {
	if !j.schedule.Enabled {
		return schema.NewError(schema.CodeConsolidationJobDisabled, "consolidation job is disabled")
	}
	if j.schedule.Interval <= 0 {
		return schema.NewError(schema.CodeConsolidationJobInvalidInterval, "consolidation interval must be positive")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.running = true

	go j.loop(runCtx)
	slog.Info("cron: consolidation job started", "interval", j.schedule.Interval)
	return nil
}

// Stop cancels the interval. An in-flight execution runs to completion.
func (j *ConsolidationJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	j.cancel()
	j.running = false
	slog.Info("cron: consolidation job stopped")
}

// IsRunning reports whether the interval is armed.
func (j *ConsolidationJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// TriggerNow executes immediately. Returns CONSOLIDATION_JOB_ALREADY_RUNNING
// when an execution is already in flight.
func (j *ConsolidationJob) TriggerNow(ctx context.Context) error {
	if !j.claimExecution() {
		return schema.NewError(schema.CodeConsolidationJobAlreadyRunning, "consolidation already executing")
	}
	return j.executeInternal(ctx)
}

// LastResult returns the most recent successful run, if any.
func (j *ConsolidationJob) LastResult() (memory.RunResult, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.lastResult == nil {
		return memory.RunResult{}, false
	}
	return *j.lastResult, true
}

// RunCount returns the number of successful executions.
func (j *ConsolidationJob) RunCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runCount
}

func (j *ConsolidationJob) loop(ctx context.Context) {
	ticker := time.NewTicker(j.schedule.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick during an execution is skipped, not queued.
			if !j.claimExecution() {
				slog.Debug("cron: consolidation tick skipped, still executing")
				continue
			}
			if err := j.executeInternal(ctx); err != nil {
				slog.Error("cron: consolidation run failed", "err", err)
			}
		}
	}
}

// claimExecution flips the executing guard. Returns false when an execution
// already holds it.
func (j *ConsolidationJob) claimExecution() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.executing {
		return false
	}
	j.executing = true
	return true
}

// executeInternal runs the pipeline once. The caller must have claimed the
// executing guard.
func (j *ConsolidationJob) executeInternal(ctx context.Context) error {
	defer func() {
		j.mu.Lock()
		j.executing = false
		j.mu.Unlock()
	}()

	res, err := j.runner.Run(ctx)

	j.mu.Lock()
	j.lastRunAt = time.Now()
	if err == nil {
		j.lastResult = &res
		j.runCount++
	}
	onComplete, onError := j.onComplete, j.onError
	j.mu.Unlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return err
	}
	if onComplete != nil {
		onComplete(res)
	}
	return nil
}
