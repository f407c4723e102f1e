package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reins-ai/reins/internal/schema"
)

// SkipReason explains why a fact produced no new record.
type SkipReason string

const (
	SkipLowConfidence      SkipReason = "low_confidence"
	SkipDuplicate          SkipReason = "duplicate"
	SkipChainDepthExceeded SkipReason = "supersession_chain_depth_exceeded"
)

// SkippedFact pairs a fact with the reason it was not created.
type SkippedFact struct {
	Fact   DistilledFact
	Reason SkipReason
}

// SupersessionEvent records one newer-wins replacement.
type SupersessionEvent struct {
	OriginalID   string
	ReplacedByID string
	Reason       string
	Timestamp    time.Time
}

// MergeResult is the complete outcome of applying facts against existing
// long-term memory. Records in Created/Updated/Superseded preserve input
// order and are the exact set the caller must persist.
type MergeResult struct {
	Created           []MemoryRecord
	Updated           []MemoryRecord
	Superseded        []MemoryRecord
	Skipped           []SkippedFact
	SupersessionChain []SupersessionEvent
}

// MergeConfig tunes duplicate and contradiction handling.
type MergeConfig struct {
	MinConfidenceToMerge      float64
	SimilarityThreshold       float64
	MaxSupersessionChainDepth int
}

// DefaultMergeConfig returns the stock tuning: 0.5 confidence floor, exact
// duplicate matching, chains bounded at depth 8.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		MinConfidenceToMerge:      0.5,
		SimilarityThreshold:       1.0,
		MaxSupersessionChainDepth: 8,
	}
}

// Merger applies distilled facts to a snapshot of long-term memory.
// It is deterministic given the same inputs and injected clock/id source,
// and never mutates the caller's record slice.
type Merger struct {
	cfg    MergeConfig
	scorer *Scorer

	now        func() time.Time
	generateID func() string
}

// NewMerger builds a Merger over scorer. Zero-valued config fields fall back
// to defaults.
func NewMerger(scorer *Scorer, cfg MergeConfig) *Merger {
	def := DefaultMergeConfig()
	if cfg.MinConfidenceToMerge <= 0 {
		cfg.MinConfidenceToMerge = def.MinConfidenceToMerge
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.MaxSupersessionChainDepth <= 0 {
		cfg.MaxSupersessionChainDepth = def.MaxSupersessionChainDepth
	}
	return &Merger{
		cfg:        cfg,
		scorer:     scorer,
		now:        time.Now,
		generateID: uuid.NewString,
	}
}

// Merge routes each fact through the duplicate, contradiction, or create
// path. The working snapshot starts as a decayed copy of existing and grows
// as records are created, so facts later in the slice see earlier outcomes.
func (m *Merger) Merge(facts []DistilledFact, existing []MemoryRecord) (MergeResult, error) {
	if m.scorer == nil {
		return MergeResult{}, schema.NewError(schema.CodeMergeFailed, "merger has no scorer")
	}

	now := m.now()

	// Decayed working snapshot; the caller's slice stays untouched.
	snapshot := make([]MemoryRecord, 0, len(existing))
	for _, rec := range existing {
		c := rec.Clone()
		c.Importance = m.scorer.Decay(c.Importance, c.AccessedAt, now)
		snapshot = append(snapshot, c)
	}

	var res MergeResult
	for _, fact := range facts {
		if fact.Confidence < m.cfg.MinConfidenceToMerge {
			res.Skipped = append(res.Skipped, SkippedFact{Fact: fact, Reason: SkipLowConfidence})
			continue
		}

		norm := NormalizeContent(fact.Content)
		if dup := FindDuplicate(fact, norm, snapshot, m.cfg.SimilarityThreshold); dup != nil {
			dup.Importance = m.scorer.Reinforce(dup.Importance, 1)
			dup.UpdatedAt = now
			dup.AccessedAt = now
			res.Updated = append(res.Updated, dup.Clone())
			res.Skipped = append(res.Skipped, SkippedFact{Fact: fact, Reason: SkipDuplicate})
			continue
		}

		contradictions := FindContradictions(fact, snapshot)
		if len(contradictions) > 0 {
			latest := newestByUpdatedAt(contradictions)
			if m.chainDepth(latest, snapshot) >= m.cfg.MaxSupersessionChainDepth {
				res.Skipped = append(res.Skipped, SkippedFact{Fact: fact, Reason: SkipChainDepthExceeded})
				continue
			}
			created := m.recordFromFact(fact, now, latest.ID)
			latest.SupersededBy = created.ID
			latest.UpdatedAt = now
			snapshot = append(snapshot, created.Clone())
			res.Created = append(res.Created, created)
			res.Superseded = append(res.Superseded, latest.Clone())
			res.SupersessionChain = append(res.SupersessionChain, SupersessionEvent{
				OriginalID:   latest.ID,
				ReplacedByID: created.ID,
				Reason:       "newer_wins_contradiction",
				Timestamp:    now,
			})
			continue
		}

		created := m.recordFromFact(fact, now, "")
		snapshot = append(snapshot, created.Clone())
		res.Created = append(res.Created, created)
	}
	return res, nil
}

// newestByUpdatedAt picks the contradiction to supersede: the record with
// the greatest updatedAt wins; the first of equals wins ties.
func newestByUpdatedAt(records []*MemoryRecord) *MemoryRecord {
	latest := records[0]
	for _, rec := range records[1:] {
		if rec.UpdatedAt.After(latest.UpdatedAt) {
			latest = rec
		}
	}
	return latest
}

// chainDepth walks rec's supersedes pointers through the snapshot. The
// visited set guards against cycles that should never exist but must not
// hang the pipeline if they do.
func (m *Merger) chainDepth(rec *MemoryRecord, snapshot []MemoryRecord) int {
	byID := make(map[string]*MemoryRecord, len(snapshot))
	for i := range snapshot {
		byID[snapshot[i].ID] = &snapshot[i]
	}

	depth := 0
	visited := map[string]bool{rec.ID: true}
	id := rec.Supersedes
	for id != "" && !visited[id] {
		depth++
		visited[id] = true
		prev, ok := byID[id]
		if !ok {
			break
		}
		id = prev.Supersedes
	}
	return depth
}

// recordFromFact mints a new LTM record from a validated fact. Importance
// starts at the fact's confidence; provenance tracks the source candidates.
func (m *Merger) recordFromFact(fact DistilledFact, now time.Time, supersedes string) MemoryRecord {
	return MemoryRecord{
		ID:         m.generateID(),
		Content:    strings.TrimSpace(fact.Content),
		Type:       fact.Type,
		Layer:      LayerLTM,
		Tags:       DedupStrings(fact.Tags),
		Entities:   DedupStrings(fact.Entities),
		Importance: fact.Confidence,
		Confidence: fact.Confidence,
		Provenance: Provenance{
			SourceType:     SourceConsolidation,
			ConversationID: strings.Join(fact.SourceCandidateIDs, ","),
		},
		Supersedes: supersedes,
		CreatedAt:  now,
		UpdatedAt:  now,
		AccessedAt: now,
	}
}
