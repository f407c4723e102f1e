package cron

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reins-ai/reins/internal/memory"
	"github.com/reins-ai/reins/internal/schema"
)

// runnerFunc adapts a function to the ConsolidationRunner interface.
type runnerFunc func(ctx context.Context) (memory.RunResult, error)

func (f runnerFunc) Run(ctx context.Context) (memory.RunResult, error) { return f(ctx) }

func enabledEvery(d time.Duration) Schedule {
	return Schedule{Enabled: true, Interval: d}
}

func TestConsolidationStart_Disabled(t *testing.T) {
	j := NewConsolidationJob(runnerFunc(func(context.Context) (memory.RunResult, error) {
		return memory.RunResult{}, nil
	}), Schedule{Enabled: false, Interval: time.Minute}, nil, nil)

	err := j.Start(context.Background())
	if schema.CodeOf(err) != schema.CodeConsolidationJobDisabled {
		t.Fatalf("expected CONSOLIDATION_JOB_DISABLED, got %v", err)
	}
	if j.IsRunning() {
		t.Error("disabled job must not be running")
	}
}

func TestConsolidationStart_InvalidInterval(t *testing.T) {
	j := NewConsolidationJob(runnerFunc(func(context.Context) (memory.RunResult, error) {
		return memory.RunResult{}, nil
	}), Schedule{Enabled: true, Interval: 0}, nil, nil)

	err := j.Start(context.Background())
	if schema.CodeOf(err) != schema.CodeConsolidationJobInvalidInterval {
		t.Fatalf("expected CONSOLIDATION_JOB_INVALID_INTERVAL, got %v", err)
	}
}

func TestConsolidationStart_Idempotent(t *testing.T) {
	j := NewConsolidationJob(runnerFunc(func(context.Context) (memory.RunResult, error) {
		return memory.RunResult{}, nil
	}), enabledEvery(time.Hour), nil, nil)
	defer j.Stop()

	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("second start should be a no-op, got %v", err)
	}
	if !j.IsRunning() {
		t.Error("expected job running after Start")
	}
}

func TestConsolidationTriggerNow_Success(t *testing.T) {
	var completed atomic.Int32
	j := NewConsolidationJob(runnerFunc(func(context.Context) (memory.RunResult, error) {
		return memory.RunResult{RunID: "run-1"}, nil
	}), enabledEvery(time.Hour), func(memory.RunResult) { completed.Add(1) }, nil)

	if err := j.TriggerNow(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.RunCount() != 1 {
		t.Errorf("expected runCount=1, got %d", j.RunCount())
	}
	res, ok := j.LastResult()
	if !ok || res.RunID != "run-1" {
		t.Errorf("unexpected last result: %+v ok=%v", res, ok)
	}
	if completed.Load() != 1 {
		t.Errorf("expected onComplete once, got %d", completed.Load())
	}
}

func TestConsolidationTriggerNow_AlreadyRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	j := NewConsolidationJob(runnerFunc(func(context.Context) (memory.RunResult, error) {
		startedOnce.Do(func() { close(started) })
		<-release
		return memory.RunResult{}, nil
	}), enabledEvery(time.Hour), nil, nil)

	done := make(chan error, 1)
	go func() { done <- j.TriggerNow(context.Background()) }()
	<-started

	err := j.TriggerNow(context.Background())
	if schema.CodeOf(err) != schema.CodeConsolidationJobAlreadyRunning {
		t.Fatalf("expected CONSOLIDATION_JOB_ALREADY_RUNNING, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}
	if j.RunCount() != 1 {
		t.Errorf("expected exactly 1 successful run, got %d", j.RunCount())
	}

	// The guard is released once the first execution finishes.
	if err := j.TriggerNow(context.Background()); err != nil {
		t.Fatalf("trigger after completion: %v", err)
	}
}

func TestConsolidationTriggerNow_RunErrorDoesNotCount(t *testing.T) {
	runErr := errors.New("pipeline blew up")
	var gotErr error
	j := NewConsolidationJob(runnerFunc(func(context.Context) (memory.RunResult, error) {
		return memory.RunResult{}, runErr
	}), enabledEvery(time.Hour), nil, func(err error) { gotErr = err })

	err := j.TriggerNow(context.Background())
	if !errors.Is(err, runErr) {
		t.Fatalf("expected run error, got %v", err)
	}
	if j.RunCount() != 0 {
		t.Errorf("failed run must not increment runCount, got %d", j.RunCount())
	}
	if _, ok := j.LastResult(); ok {
		t.Error("failed run must not set lastResult")
	}
	if !errors.Is(gotErr, runErr) {
		t.Errorf("onError got %v", gotErr)
	}
}

func TestConsolidationInterval_Fires(t *testing.T) {
	var count atomic.Int32
	j := NewConsolidationJob(runnerFunc(func(context.Context) (memory.RunResult, error) {
		count.Add(1)
		return memory.RunResult{}, nil
	}), enabledEvery(20*time.Millisecond), nil, nil)

	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(120 * time.Millisecond)
	j.Stop()

	if n := count.Load(); n < 2 {
		t.Errorf("expected at least 2 interval executions, got %d", n)
	}
	if j.IsRunning() {
		t.Error("expected job stopped")
	}

	stopped := count.Load()
	time.Sleep(60 * time.Millisecond)
	if count.Load() != stopped {
		t.Error("job kept firing after Stop")
	}
}
