package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reins-ai/reins/internal/briefing"
	"github.com/reins-ai/reins/internal/schema"
)

// composerFunc adapts a function to the BriefingComposer interface.
type composerFunc func(ctx context.Context) (briefing.Briefing, error)

func (f composerFunc) Compose(ctx context.Context) (briefing.Briefing, error) { return f(ctx) }

func stubBriefing() briefing.Briefing {
	return briefing.Briefing{
		GeneratedAt: time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC),
		Sections: []briefing.Section{{
			SectionType: "open_threads",
			Title:       "Open Threads",
			Items:       []briefing.Item{{ID: "m1", Content: "Follow up with Dana", Type: "episode"}},
			ItemCount:   1,
		}},
		TotalItems: 1,
	}
}

func TestBriefingStart_Disabled(t *testing.T) {
	j := NewBriefingJob(composerFunc(func(context.Context) (briefing.Briefing, error) {
		return stubBriefing(), nil
	}), nil, Schedule{Enabled: false, Interval: time.Hour}, nil, nil)

	err := j.Start(context.Background())
	if schema.CodeOf(err) != schema.CodeBriefingJobDisabled {
		t.Fatalf("expected BRIEFING_JOB_DISABLED, got %v", err)
	}
}

func TestBriefingStart_NoSchedule(t *testing.T) {
	j := NewBriefingJob(composerFunc(func(context.Context) (briefing.Briefing, error) {
		return stubBriefing(), nil
	}), nil, Schedule{Enabled: true}, nil, nil)

	err := j.Start(context.Background())
	if schema.CodeOf(err) != schema.CodeBriefingJobInvalidInterval {
		t.Fatalf("expected BRIEFING_JOB_INVALID_INTERVAL, got %v", err)
	}
}

func TestBriefingStart_InvalidCronExpr(t *testing.T) {
	j := NewBriefingJob(composerFunc(func(context.Context) (briefing.Briefing, error) {
		return stubBriefing(), nil
	}), nil, Schedule{Enabled: true, Expr: "not a cron"}, nil, nil)

	err := j.Start(context.Background())
	if schema.CodeOf(err) != schema.CodeBriefingJobInvalidInterval {
		t.Fatalf("expected BRIEFING_JOB_INVALID_INTERVAL for bad expression, got %v", err)
	}
	if j.IsRunning() {
		t.Error("job must not be armed after a failed start")
	}
}

func TestBriefingStart_CronExpressionArms(t *testing.T) {
	j := NewBriefingJob(composerFunc(func(context.Context) (briefing.Briefing, error) {
		return stubBriefing(), nil
	}), nil, Schedule{Enabled: true, Expr: "0 8 * * *", TZ: "UTC"}, nil, nil)

	if err := j.Start(context.Background()); err != nil {
		t.Fatalf("start with cron expression: %v", err)
	}
	if !j.IsRunning() {
		t.Fatal("expected job armed")
	}
	j.Stop()
	if j.IsRunning() {
		t.Error("expected job stopped")
	}
}

func TestBriefingTriggerNow_ComposesAndDelivers(t *testing.T) {
	var delivered [][]briefing.DisplayMessage
	deliver := func(_ context.Context, msgs []briefing.DisplayMessage) error {
		delivered = append(delivered, msgs)
		return nil
	}
	j := NewBriefingJob(composerFunc(func(context.Context) (briefing.Briefing, error) {
		return stubBriefing(), nil
	}), deliver, enabledEvery(time.Hour), nil, nil)

	if err := j.TriggerNow(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected one delivery, got %d", len(delivered))
	}
	if len(delivered[0]) != 1 || delivered[0][0].SectionType != "open_threads" {
		t.Errorf("unexpected messages: %+v", delivered[0])
	}
	if j.RunCount() != 1 {
		t.Errorf("expected runCount=1, got %d", j.RunCount())
	}
	b, ok := j.LastBriefing()
	if !ok || b.TotalItems != 1 {
		t.Errorf("unexpected last briefing: %+v ok=%v", b, ok)
	}
}

func TestBriefingTriggerNow_AlreadyRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	j := NewBriefingJob(composerFunc(func(context.Context) (briefing.Briefing, error) {
		close(started)
		<-release
		return stubBriefing(), nil
	}), nil, enabledEvery(time.Hour), nil, nil)

	done := make(chan error, 1)
	go func() { done <- j.TriggerNow(context.Background()) }()
	<-started

	err := j.TriggerNow(context.Background())
	if schema.CodeOf(err) != schema.CodeBriefingJobAlreadyRunning {
		t.Fatalf("expected BRIEFING_JOB_ALREADY_RUNNING, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}
}

func TestBriefingTriggerNow_ComposeFailure(t *testing.T) {
	composeErr := errors.New("retrieval down")
	var gotErr error
	j := NewBriefingJob(composerFunc(func(context.Context) (briefing.Briefing, error) {
		return briefing.Briefing{}, composeErr
	}), nil, enabledEvery(time.Hour), nil, func(err error) { gotErr = err })

	err := j.TriggerNow(context.Background())
	if schema.CodeOf(err) != schema.CodeBriefingJobRunFailed {
		t.Fatalf("expected BRIEFING_JOB_RUN_FAILED, got %v", err)
	}
	if !errors.Is(err, composeErr) {
		t.Error("wrapped error should preserve the compose failure")
	}
	if j.RunCount() != 0 {
		t.Errorf("failed run must not increment runCount, got %d", j.RunCount())
	}
	if _, ok := j.LastBriefing(); ok {
		t.Error("failed run must not set lastBriefing")
	}
	if schema.CodeOf(gotErr) != schema.CodeBriefingJobRunFailed {
		t.Errorf("onError got %v", gotErr)
	}
}

func TestBriefingTriggerNow_DeliverFailure(t *testing.T) {
	deliverErr := errors.New("channel offline")
	j := NewBriefingJob(composerFunc(func(context.Context) (briefing.Briefing, error) {
		return stubBriefing(), nil
	}), func(context.Context, []briefing.DisplayMessage) error {
		return deliverErr
	}, enabledEvery(time.Hour), nil, nil)

	err := j.TriggerNow(context.Background())
	if schema.CodeOf(err) != schema.CodeBriefingJobRunFailed {
		t.Fatalf("expected BRIEFING_JOB_RUN_FAILED, got %v", err)
	}
	if !errors.Is(err, deliverErr) {
		t.Error("wrapped error should preserve the delivery failure")
	}
	if j.RunCount() != 0 {
		t.Errorf("failed delivery must not increment runCount, got %d", j.RunCount())
	}
}

func TestBriefingTriggerNow_PanicContained(t *testing.T) {
	var gotErr error
	j := NewBriefingJob(composerFunc(func(context.Context) (briefing.Briefing, error) {
		panic("boom")
	}), nil, enabledEvery(time.Hour), nil, func(err error) { gotErr = err })

	err := j.TriggerNow(context.Background())
	if schema.CodeOf(err) != schema.CodeBriefingJobUnexpected {
		t.Fatalf("expected BRIEFING_JOB_UNEXPECTED_ERROR, got %v", err)
	}
	if schema.CodeOf(gotErr) != schema.CodeBriefingJobUnexpected {
		t.Errorf("onError got %v", gotErr)
	}

	// The executing guard must be released even after a panic.
	err = j.TriggerNow(context.Background())
	if schema.CodeOf(err) != schema.CodeBriefingJobUnexpected {
		t.Fatalf("second trigger should run (and panic) again, got %v", err)
	}
}
