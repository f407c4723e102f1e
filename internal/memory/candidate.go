package memory

import "time"

// CandidateStatus is the state of an STM record inside the selector's
// state machine.
type CandidateStatus string

const (
	StatusEligible     CandidateStatus = "eligible"
	StatusProcessing   CandidateStatus = "processing"
	StatusConsolidated CandidateStatus = "consolidated"
	StatusFailed       CandidateStatus = "failed"
	StatusSkipped      CandidateStatus = "skipped"
)

// Terminal reports whether the status ends a candidate's lifecycle.
// failed is transient: it becomes skipped once retries are exhausted.
func (s CandidateStatus) Terminal() bool {
	return s == StatusConsolidated || s == StatusSkipped
}

// ConsolidationCandidate wraps an STM record with its pipeline state.
type ConsolidationCandidate struct {
	Record        MemoryRecord
	Status        CandidateStatus
	RetryCount    int
	LastAttemptAt time.Time // most recent transition to processing/consolidated/failed
	BatchID       string    // batch that owns the current eligible/processing cycle

	// lastOutcomeAt is the most recent consolidated or failed transition,
	// used to enforce the dedupe window.
	lastOutcomeAt time.Time
}

// StmBatch is one selection's worth of candidates. It lives for a single
// pipeline run and is never persisted.
type StmBatch struct {
	BatchID    string
	Candidates []*ConsolidationCandidate
	CreatedAt  time.Time
}

// CandidateIDs returns the record ids of the batch, in batch order.
func (b *StmBatch) CandidateIDs() []string {
	ids := make([]string, len(b.Candidates))
	for i, c := range b.Candidates {
		ids[i] = c.Record.ID
	}
	return ids
}

// Empty reports whether the batch holds no candidates.
func (b *StmBatch) Empty() bool { return b == nil || len(b.Candidates) == 0 }
