package cron

import (
	"context"
	"log/slog"

	"github.com/reins-ai/reins/internal/schema"
)

// Handle controls the registered memory jobs as a unit.
type Handle struct {
	consolidation *ConsolidationJob
	briefing      *BriefingJob
}

// StopAll stops both jobs.
func (h *Handle) StopAll() {
	h.consolidation.Stop()
	h.briefing.Stop()
}

// IsConsolidationRunning reports the consolidation job's armed state.
func (h *Handle) IsConsolidationRunning() bool { return h.consolidation.IsRunning() }

// IsBriefingRunning reports the briefing job's armed state.
func (h *Handle) IsBriefingRunning() bool { return h.briefing.IsRunning() }

// RegisterMemoryJobs starts the consolidation and briefing jobs behind a
// readiness gate. On any failure no job is left running: a briefing start
// failure rolls back the already-started consolidation job.
func RegisterMemoryJobs(ctx context.Context, consolidation *ConsolidationJob, briefingJob *BriefingJob, isMemoryReady func() bool) (*Handle, error) {
	if isMemoryReady == nil || !isMemoryReady() {
		return nil, schema.NewError(schema.CodeMemoryNotReady, "memory store is not ready")
	}

	if err := consolidation.Start(ctx); err != nil {
		return nil, schema.WrapError(schema.CodeCronRegistrationFailed, "starting consolidation job", err)
	}
	if err := briefingJob.Start(ctx); err != nil {
		consolidation.Stop()
		return nil, schema.WrapError(schema.CodeCronRegistrationFailed, "starting briefing job", err)
	}

	slog.Info("cron: memory jobs registered")
	return &Handle{consolidation: consolidation, briefing: briefingJob}, nil
}
