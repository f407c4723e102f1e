package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/reins-ai/reins/internal/briefing"
	"github.com/reins-ai/reins/internal/schema"
)

// BriefingComposer is the service capability the briefing job wraps.
type BriefingComposer interface {
	Compose(ctx context.Context) (briefing.Briefing, error)
}

// DeliverFunc pushes formatted briefing messages to the delivery channels.
type DeliverFunc func(ctx context.Context, messages []briefing.DisplayMessage) error

// BriefingJob composes and delivers the morning briefing on a schedule.
// The schedule is either a plain interval or a cron expression
// (e.g. "0 8 * * *" for 8am daily).
type BriefingJob struct {
	composer BriefingComposer
	deliver  DeliverFunc
	schedule Schedule

	mu           sync.Mutex
	running      bool
	executing    bool
	cancel       context.CancelFunc
	robfig       *robfigcron.Cron
	lastRunAt    time.Time
	lastBriefing *briefing.Briefing
	runCount     int

	onComplete func(briefing.Briefing)
	onError    func(error)
}

// NewBriefingJob builds the job. deliver and the callbacks may be nil.
func NewBriefingJob(composer BriefingComposer, deliver DeliverFunc, schedule Schedule, onComplete func(briefing.Briefing), onError func(error)) *BriefingJob {
	return &BriefingJob{
		composer:   composer,
		deliver:    deliver,
		schedule:   schedule,
		onComplete: onComplete,
		onError:    onError,
	}
}

// Start arms the schedule. Starting a running job is a no-op.
func (j *BriefingJob) Start(ctx context.Context) error {
	if !j.schedule.Enabled {
		return schema.NewError(schema.CodeBriefingJobDisabled, "briefing job is disabled")
	}
	if j.schedule.Expr == "" && j.schedule.Interval <= 0 {
		return schema.NewError(schema.CodeBriefingJobInvalidInterval, "briefing schedule needs an interval or a cron expression")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	if j.schedule.Expr != "" {
		c, err := j.newCronLocked(runCtx)
		if err != nil {
			cancel()
			return schema.WrapError(schema.CodeBriefingJobInvalidInterval,
				fmt.Sprintf("cron expression %q", j.schedule.Expr), err)
		}
		j.robfig = c
		j.robfig.Start()
	} else {
		go j.loop(runCtx)
	}

	j.cancel = cancel
	j.running = true
	slog.Info("cron: briefing job started", "interval", j.schedule.Interval, "expr", j.schedule.Expr)
	return nil
}

// newCronLocked builds a robfig scheduler for the configured expression.
func (j *BriefingJob) newCronLocked(ctx context.Context) (*robfigcron.Cron, error) {
	loc := time.Local
	if j.schedule.TZ != "" {
		l, err := time.LoadLocation(j.schedule.TZ)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", j.schedule.TZ, err)
		}
		loc = l
	}
	c := robfigcron.New(robfigcron.WithLocation(loc))
	_, err := c.AddFunc(j.schedule.Expr, func() {
		if !j.claimExecution() {
			slog.Debug("cron: briefing tick skipped, still executing")
			return
		}
		if err := j.executeInternal(ctx); err != nil {
			slog.Error("cron: briefing run failed", "err", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Stop cancels the schedule. An in-flight execution runs to completion.
func (j *BriefingJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	j.cancel()
	if j.robfig != nil {
		j.robfig.Stop()
		j.robfig = nil
	}
	j.running = false
	slog.Info("cron: briefing job stopped")
}

// IsRunning reports whether the schedule is armed.
func (j *BriefingJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// TriggerNow executes immediately. Returns BRIEFING_JOB_ALREADY_RUNNING when
// an execution is already in flight.
func (j *BriefingJob) TriggerNow(ctx context.Context) error {
	if !j.claimExecution() {
		return schema.NewError(schema.CodeBriefingJobAlreadyRunning, "briefing already executing")
	}
	return j.executeInternal(ctx)
}

// LastBriefing returns the most recent successfully composed briefing.
func (j *BriefingJob) LastBriefing() (briefing.Briefing, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.lastBriefing == nil {
		return briefing.Briefing{}, false
	}
	return *j.lastBriefing, true
}

// RunCount returns the number of successful executions.
func (j *BriefingJob) RunCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runCount
}

func (j *BriefingJob) loop(ctx context.Context) {
	ticker := time.NewTicker(j.schedule.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !j.claimExecution() {
				slog.Debug("cron: briefing tick skipped, still executing")
				continue
			}
			if err := j.executeInternal(ctx); err != nil {
				slog.Error("cron: briefing run failed", "err", err)
			}
		}
	}
}

func (j *BriefingJob) claimExecution() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.executing {
		return false
	}
	j.executing = true
	return true
}

// executeInternal composes, formats, and delivers one briefing. The caller
// must have claimed the executing guard. Panics in compose or delivery are
// contained as BRIEFING_JOB_UNEXPECTED_ERROR.
func (j *BriefingJob) executeInternal(ctx context.Context) (err error) {
	defer func() {
		j.mu.Lock()
		j.executing = false
		j.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			err = schema.NewError(schema.CodeBriefingJobUnexpected, fmt.Sprintf("briefing panic: %v", r))
			j.mu.Lock()
			onError := j.onError
			j.mu.Unlock()
			if onError != nil {
				onError(err)
			}
		}
	}()

	b, composeErr := j.composer.Compose(ctx)
	if composeErr == nil && j.deliver != nil {
		composeErr = j.deliver(ctx, briefing.Format(b))
	}

	j.mu.Lock()
	j.lastRunAt = time.Now()
	if composeErr == nil {
		j.lastBriefing = &b
		j.runCount++
	}
	onComplete, onError := j.onComplete, j.onError
	j.mu.Unlock()

	if composeErr != nil {
		wrapped := schema.WrapError(schema.CodeBriefingJobRunFailed, "briefing run", composeErr)
		if onError != nil {
			onError(wrapped)
		}
		return wrapped
	}
	if onComplete != nil {
		onComplete(b)
	}
	return nil
}
