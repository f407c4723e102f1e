package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/reins-ai/reins/internal/schema"
	"github.com/reins-ai/reins/internal/shared/stringutils"
)

// DistillerConfig tunes fact filtering after validation.
type DistillerConfig struct {
	ConfidenceThreshold float64
	MaxFactsPerBatch    int
}

// DefaultDistillerConfig returns the stock tuning: 0.5 threshold, 25 facts.
func DefaultDistillerConfig() DistillerConfig {
	return DistillerConfig{ConfidenceThreshold: 0.5, MaxFactsPerBatch: 25}
}

// DistillationResult is the outcome of distilling one batch. Candidates
// whose content contributed to no surviving fact are reported failed so the
// selector can retry them.
type DistillationResult struct {
	Facts              []DistilledFact
	FailedCandidateIDs []string
	Warnings           []string
}

// Distiller turns an STM batch into validated facts via the provider.
// Bad provider output never fails the call; it degrades into warnings with
// all candidates reported failed. Only a provider transport failure errors.
type Distiller struct {
	provider schema.CompletionProvider
	prompts  *PromptSet
	cfg      DistillerConfig
}

// NewDistiller builds a Distiller. Zero-valued config fields fall back to
// defaults.
func NewDistiller(provider schema.CompletionProvider, prompts *PromptSet, cfg DistillerConfig) *Distiller {
	def := DefaultDistillerConfig()
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.MaxFactsPerBatch <= 0 {
		cfg.MaxFactsPerBatch = def.MaxFactsPerBatch
	}
	if prompts == nil {
		prompts = NewPromptSet("")
	}
	return &Distiller{provider: provider, prompts: prompts, cfg: cfg}
}

// Distill runs the provider over batch and returns the surviving facts.
func (d *Distiller) Distill(ctx context.Context, batch *StmBatch) (DistillationResult, error) {
	if batch.Empty() {
		return DistillationResult{}, nil
	}

	ids := batch.CandidateIDs()
	prompt := d.renderPrompt(batch)

	raw, err := d.provider.Complete(ctx, prompt)
	if err != nil {
		return DistillationResult{}, schema.WrapError(schema.CodeProviderFailed, "distillation completion", err)
	}

	allowed := make(map[string]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}

	parsed, err := ParseDistillationOutput(raw, allowed)
	if err != nil {
		slog.Warn("distiller: unparseable provider output", "batch", batch.BatchID, "err", err)
		return DistillationResult{
			FailedCandidateIDs: ids,
			Warnings:           []string{fmt.Sprintf("distillation output not parseable: %v", err)},
		}, nil
	}

	res := DistillationResult{Warnings: parsed.Warnings}

	var kept []DistilledFact
	for _, fact := range parsed.Facts {
		if fact.Confidence < d.cfg.ConfidenceThreshold {
			res.Warnings = append(res.Warnings, fmt.Sprintf("fact %q below confidence threshold (%.3f < %.3f)",
				stringutils.Truncate(fact.Content, 40), fact.Confidence, d.cfg.ConfidenceThreshold))
			continue
		}
		kept = append(kept, fact)
	}

	if len(kept) > d.cfg.MaxFactsPerBatch {
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].Confidence > kept[j].Confidence })
		res.Warnings = append(res.Warnings, fmt.Sprintf("fact cap exceeded: kept %d of %d", d.cfg.MaxFactsPerBatch, len(kept)))
		kept = kept[:d.cfg.MaxFactsPerBatch]
	}
	res.Facts = kept

	covered := make(map[string]bool)
	for _, fact := range kept {
		for _, id := range fact.SourceCandidateIDs {
			covered[id] = true
		}
	}
	for _, id := range ids {
		if !covered[id] {
			res.FailedCandidateIDs = append(res.FailedCandidateIDs, id)
		}
	}
	return res, nil
}

// renderPrompt fills the distillation template with config values and one
// line per candidate.
func (d *Distiller) renderPrompt(batch *StmBatch) string {
	var lines []string
	for _, cand := range batch.Candidates {
		rec := cand.Record
		lines = append(lines, fmt.Sprintf("- id=%s type=%s confidence=%.2f importance=%.2f createdAt=%s source=%s tags=[%s] entities=[%s] content=%q",
			rec.ID, rec.Type, rec.Confidence, rec.Importance,
			rec.CreatedAt.Format(time.RFC3339), rec.Provenance.SourceType,
			strings.Join(rec.Tags, ","), strings.Join(rec.Entities, ","),
			sanitizeContent(rec.Content)))
	}

	return strings.NewReplacer(
		"{{confidenceThreshold}}", strconv.FormatFloat(d.cfg.ConfidenceThreshold, 'g', -1, 64),
		"{{maxFactsPerBatch}}", strconv.Itoa(d.cfg.MaxFactsPerBatch),
		"{{candidates}}", strings.Join(lines, "\n"),
	).Replace(d.prompts.Distillation())
}

// sanitizeContent collapses all whitespace runs to single spaces so each
// candidate stays on one prompt line.
func sanitizeContent(s string) string {
	return stringutils.CollapseWhitespace(s)
}
