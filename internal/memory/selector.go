package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/reins-ai/reins/internal/schema"
)

// StmSource lists the short-term records available for consolidation.
// The selector filters; the source does not need to paginate.
type StmSource interface {
	ListStmRecords(ctx context.Context) ([]MemoryRecord, error)
}

// SelectorConfig tunes batch assembly.
type SelectorConfig struct {
	BatchSize    int
	DedupeWindow time.Duration
	MaxRetries   int
	MinAge       time.Duration
}

// DefaultSelectorConfig returns the stock tuning: 20 per batch, 30 minute
// dedupe window, 3 retries, 5 minute minimum age.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		BatchSize:    20,
		DedupeWindow: 30 * time.Minute,
		MaxRetries:   3,
		MinAge:       5 * time.Minute,
	}
}

// Selector owns the candidate state machine. Its candidate map is mutated
// only by the consolidation run that owns the selector; hosts wanting
// concurrent pipelines must give each its own Selector.
type Selector struct {
	source StmSource
	cfg    SelectorConfig

	now        func() time.Time
	newBatchID func() string

	candidates map[string]*ConsolidationCandidate
}

// NewSelector builds a Selector over source. Zero-valued config fields fall
// back to defaults.
func NewSelector(source StmSource, cfg SelectorConfig) *Selector {
	def := DefaultSelectorConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = def.DedupeWindow
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = def.MinAge
	}
	return &Selector{
		source:     source,
		cfg:        cfg,
		now:        time.Now,
		newBatchID: uuid.NewString,
		candidates: make(map[string]*ConsolidationCandidate),
	}
}

// SelectBatch assembles the next batch of eligible candidates: STM records
// old enough to be stable, not terminal, not in flight, and outside the
// dedupe window, ordered by (createdAt, id) and capped at BatchSize.
func (s *Selector) SelectBatch(ctx context.Context) (*StmBatch, error) {
	records, err := s.source.ListStmRecords(ctx)
	if err != nil {
		return nil, schema.WrapError(schema.CodeSelectionFailed, "listing stm records", err)
	}

	now := s.now()
	cutoff := now.Add(-s.cfg.MinAge)

	var selectable []MemoryRecord
	for _, rec := range records {
		if rec.Layer != LayerSTM || !rec.Live() || rec.CreatedAt.After(cutoff) {
			continue
		}
		if prior, ok := s.candidates[rec.ID]; ok {
			if prior.Status.Terminal() || prior.Status == StatusProcessing {
				continue
			}
			if !prior.lastOutcomeAt.IsZero() && now.Sub(prior.lastOutcomeAt) < s.cfg.DedupeWindow {
				continue
			}
		}
		selectable = append(selectable, rec)
	}

	sort.Slice(selectable, func(i, j int) bool {
		if !selectable[i].CreatedAt.Equal(selectable[j].CreatedAt) {
			return selectable[i].CreatedAt.Before(selectable[j].CreatedAt)
		}
		return selectable[i].ID < selectable[j].ID
	})
	if len(selectable) > s.cfg.BatchSize {
		selectable = selectable[:s.cfg.BatchSize]
	}

	batchID := s.newBatchID()
	batch := &StmBatch{BatchID: batchID, CreatedAt: now}
	for _, rec := range selectable {
		cand := &ConsolidationCandidate{
			Record:  rec,
			Status:  StatusEligible,
			BatchID: batchID,
		}
		if prior, ok := s.candidates[rec.ID]; ok {
			cand.RetryCount = prior.RetryCount
			cand.LastAttemptAt = prior.LastAttemptAt
			cand.lastOutcomeAt = prior.lastOutcomeAt
		}
		s.candidates[rec.ID] = cand
		batch.Candidates = append(batch.Candidates, cand)
	}
	return batch, nil
}

// MarkProcessing moves eligible candidates of the given batch to processing.
// Candidates from other batches, unknown ids, and wrong states are ignored.
func (s *Selector) MarkProcessing(batchID string, ids []string) {
	now := s.now()
	for _, id := range ids {
		cand, ok := s.candidates[id]
		if !ok || cand.Status != StatusEligible || cand.BatchID != batchID {
			continue
		}
		cand.Status = StatusProcessing
		cand.LastAttemptAt = now
	}
}

// MarkConsolidated moves processing candidates to the consolidated terminal
// state. Already-consolidated and unknown ids are ignored.
func (s *Selector) MarkConsolidated(ids []string) {
	now := s.now()
	for _, id := range ids {
		cand, ok := s.candidates[id]
		if !ok || cand.Status != StatusProcessing {
			continue
		}
		cand.Status = StatusConsolidated
		cand.LastAttemptAt = now
		cand.lastOutcomeAt = now
	}
}

// MarkFailed records a failed attempt for processing candidates. Once
// RetryCount reaches MaxRetries the candidate is skipped for good;
// otherwise it becomes re-eligible after the dedupe window.
func (s *Selector) MarkFailed(ids []string) {
	now := s.now()
	for _, id := range ids {
		cand, ok := s.candidates[id]
		if !ok || cand.Status != StatusProcessing {
			continue
		}
		cand.RetryCount++
		if cand.RetryCount >= s.cfg.MaxRetries {
			cand.Status = StatusSkipped
		} else {
			cand.Status = StatusFailed
		}
		cand.LastAttemptAt = now
		cand.lastOutcomeAt = now
	}
}

// Candidate returns a copy of the tracked candidate for id.
func (s *Selector) Candidate(id string) (ConsolidationCandidate, bool) {
	cand, ok := s.candidates[id]
	if !ok {
		return ConsolidationCandidate{}, false
	}
	return *cand, true
}
