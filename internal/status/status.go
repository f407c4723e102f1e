// Package status persists daemon run state to ~/.reins/daemon.json so the
// status subcommand can report on a running (or last-run) daemon.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/reins-ai/reins/internal/briefing"
	"github.com/reins-ai/reins/internal/memory"
)

// DaemonStatus is the wire format of the daemon status file.
type DaemonStatus struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`

	LastConsolidationAt *time.Time `json:"lastConsolidationAt,omitempty"`
	ConsolidationRuns   int        `json:"consolidationRuns"`
	LastRunStats        *RunStats  `json:"lastRunStats,omitempty"`

	LastBriefingAt    *time.Time `json:"lastBriefingAt,omitempty"`
	LastBriefingItems int        `json:"lastBriefingItems"`
}

// RunStats is the persisted summary of one consolidation run.
type RunStats struct {
	RunID               string `json:"runId"`
	CandidatesProcessed int    `json:"candidatesProcessed"`
	CandidatesFailed    int    `json:"candidatesFailed"`
	RecordsCreated      int    `json:"recordsCreated"`
	RecordsUpdated      int    `json:"recordsUpdated"`
	RecordsSuperseded   int    `json:"recordsSuperseded"`
}

// File owns the status file and serialises writes to it.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a File at path. The file itself is written on MarkStarted.
func NewFile(path string) *File {
	return &File{path: path}
}

// MarkStarted resets the status file for a fresh daemon run.
func (f *File) MarkStarted() error {
	return f.update(func(s *DaemonStatus) {
		*s = DaemonStatus{PID: os.Getpid(), StartedAt: time.Now()}
	})
}

// RecordConsolidation notes a successful consolidation run.
func (f *File) RecordConsolidation(res memory.RunResult) {
	_ = f.update(func(s *DaemonStatus) {
		now := time.Now()
		s.LastConsolidationAt = &now
		s.ConsolidationRuns++
		s.LastRunStats = &RunStats{
			RunID:               res.RunID,
			CandidatesProcessed: res.Stats.CandidatesProcessed,
			CandidatesFailed:    res.Stats.CandidatesFailed,
			RecordsCreated:      res.Stats.Created,
			RecordsUpdated:      res.Stats.Updated,
			RecordsSuperseded:   res.Stats.Superseded,
		}
	})
}

// RecordBriefing notes a successfully composed briefing.
func (f *File) RecordBriefing(b briefing.Briefing) {
	_ = f.update(func(s *DaemonStatus) {
		now := time.Now()
		s.LastBriefingAt = &now
		s.LastBriefingItems = b.TotalItems
	})
}

func (f *File) update(apply func(*DaemonStatus)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s DaemonStatus
	if data, err := os.ReadFile(f.path); err == nil {
		_ = json.Unmarshal(data, &s)
	}
	apply(&s)

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := os.WriteFile(f.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write status %s: %w", f.path, err)
	}
	return nil
}

// Read loads the status file at path.
func Read(path string) (DaemonStatus, error) {
	var s DaemonStatus
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse status %s: %w", path, err)
	}
	return s, nil
}
