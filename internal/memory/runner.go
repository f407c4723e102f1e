package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reins-ai/reins/internal/schema"
)

// LtmWriter is the long-term store boundary of the pipeline. GetExisting
// returns the records that could participate in duplicate/contradiction
// checks for the given facts; returning all live LTM is the conservative
// contract. Write persists atomically from the caller's perspective.
type LtmWriter interface {
	GetExisting(ctx context.Context, facts []DistilledFact) ([]MemoryRecord, error)
	Write(ctx context.Context, records []MemoryRecord) error
}

// RunStats summarises one pipeline run.
type RunStats struct {
	CandidatesProcessed int
	CandidatesFailed    int
	FactsDistilled      int
	Created             int
	Updated             int
	Superseded          int
	Skipped             int
}

// RunResult is the full outcome of one Run call. MergeResult is nil when
// the run short-circuited before merging (empty batch, no facts).
type RunResult struct {
	RunID       string
	Timestamp   time.Time
	Stats       RunStats
	MergeResult *MergeResult
	Errors      []string
	Duration    time.Duration
}

// Runner drives the pipeline: select, distill, merge, write, in strict
// order. Within a run there is no parallelism; candidate status transitions
// follow the selector state machine.
type Runner struct {
	selector  *Selector
	distiller *Distiller
	merger    *Merger
	writer    LtmWriter
	policy    RetryPolicy

	now      func() time.Time
	newRunID func() string
	sleep    sleepFunc
}

// NewRunner wires the pipeline stages together.
func NewRunner(selector *Selector, distiller *Distiller, merger *Merger, writer LtmWriter, policy RetryPolicy) *Runner {
	if policy.MaxRetries <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Runner{
		selector:  selector,
		distiller: distiller,
		merger:    merger,
		writer:    writer,
		policy:    policy,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// Run executes one consolidation pass. Recoverable conditions (parse
// warnings, per-fact skips) land in the result's Errors list; anything that
// prevents correct progress surfaces as a coded error with the batch marked
// failed so the selector retries it after the dedupe window.
func (r *Runner) Run(ctx context.Context) (RunResult, error) {
	start := r.now()
	res := RunResult{RunID: r.newRunID(), Timestamp: start}

	batch, err := r.selector.SelectBatch(ctx)
	if err != nil {
		return res, schema.WrapError(schema.CodeRunSelectFailed, "selecting batch", err)
	}
	if batch.Empty() {
		res.Duration = r.now().Sub(start)
		return res, nil
	}

	ids := batch.CandidateIDs()
	res.Stats.CandidatesProcessed = len(ids)
	r.selector.MarkProcessing(batch.BatchID, ids)

	slog.Info("consolidation: run started", "run", res.RunID, "batch", batch.BatchID, "candidates", len(ids))

	var distilled DistillationResult
	err = retryWithBackoff(ctx, r.policy, r.sleep, func(ctx context.Context) error {
		var derr error
		distilled, derr = r.distiller.Distill(ctx, batch)
		return derr
	})
	if err != nil {
		r.selector.MarkFailed(ids)
		return res, schema.WrapError(schema.CodeRunDistillFailed, "distilling batch", err)
	}

	res.Errors = append(res.Errors, distilled.Warnings...)
	failed := make(map[string]bool, len(distilled.FailedCandidateIDs))
	if len(distilled.FailedCandidateIDs) > 0 {
		r.selector.MarkFailed(distilled.FailedCandidateIDs)
		for _, id := range distilled.FailedCandidateIDs {
			failed[id] = true
		}
	}
	res.Stats.CandidatesFailed = len(failed)
	res.Stats.FactsDistilled = len(distilled.Facts)

	succeeded := make([]string, 0, len(ids))
	for _, id := range ids {
		if !failed[id] {
			succeeded = append(succeeded, id)
		}
	}

	if len(distilled.Facts) == 0 {
		r.selector.MarkConsolidated(succeeded)
		res.Duration = r.now().Sub(start)
		return res, nil
	}

	existing, err := r.writer.GetExisting(ctx, distilled.Facts)
	if err != nil {
		r.selector.MarkFailed(ids)
		return res, schema.WrapError(schema.CodeRunLtmFetchFailed, "fetching existing ltm", err)
	}

	merged, err := r.merger.Merge(distilled.Facts, existing)
	if err != nil {
		r.selector.MarkFailed(ids)
		return res, schema.WrapError(schema.CodeRunMergeFailed, "merging facts", err)
	}

	toWrite := make([]MemoryRecord, 0, len(merged.Created)+len(merged.Updated)+len(merged.Superseded))
	toWrite = append(toWrite, merged.Created...)
	toWrite = append(toWrite, merged.Updated...)
	toWrite = append(toWrite, merged.Superseded...)
	if len(toWrite) > 0 {
		err = retryWithBackoff(ctx, r.policy, r.sleep, func(ctx context.Context) error {
			return r.writer.Write(ctx, toWrite)
		})
		if err != nil {
			r.selector.MarkFailed(ids)
			return res, schema.WrapError(schema.CodeRunWriteFailed, "writing merged records", err)
		}
	}

	r.selector.MarkConsolidated(succeeded)

	res.MergeResult = &merged
	res.Stats.Created = len(merged.Created)
	res.Stats.Updated = len(merged.Updated)
	res.Stats.Superseded = len(merged.Superseded)
	res.Stats.Skipped = len(merged.Skipped)
	res.Duration = r.now().Sub(start)

	slog.Info("consolidation: run finished", "run", res.RunID,
		"facts", res.Stats.FactsDistilled, "created", res.Stats.Created,
		"updated", res.Stats.Updated, "superseded", res.Stats.Superseded,
		"failed", res.Stats.CandidatesFailed, "duration", res.Duration)

	return res, nil
}
