// Package store persists memory records as a versioned JSON document under
// the workspace. One file holds both layers; the pipeline filters by layer.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/reins-ai/reins/internal/memory"
)

// recordStore is the on-disk document at <workspace>/memory/records.json.
type recordStore struct {
	Version int                   `json:"version"`
	Records []memory.MemoryRecord `json:"records"`
}

// FileStore is the single persistence backend of the memory pipeline. It
// implements the selector's STM source, the runner's LTM writer, the
// compaction hook's STM sink, and the briefing service's retrieval source.
// All methods are safe for concurrent use.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	order  []string // record ids in insertion order
	byID   map[string]memory.MemoryRecord
}

// NewFileStore creates a FileStore rooted at workspace. The memory/
// subdirectory is created if it does not exist.
func NewFileStore(workspace string) (*FileStore, error) {
	dir := filepath.Join(workspace, "memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &FileStore{
		path: filepath.Join(dir, "records.json"),
		byID: make(map[string]memory.MemoryRecord),
	}, nil
}

// Ready reports whether the store can serve the pipeline: the backing file
// either loads cleanly or does not exist yet.
func (f *FileStore) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked() == nil
}

// ListStmRecords returns all short-term records, in insertion order.
func (f *FileStore) ListStmRecords(ctx context.Context) ([]memory.MemoryRecord, error) {
	return f.listLayer(ctx, memory.LayerSTM, false)
}

// ListLtmRecords returns all long-term records, in insertion order.
// liveOnly excludes superseded records.
func (f *FileStore) ListLtmRecords(ctx context.Context, liveOnly bool) ([]memory.MemoryRecord, error) {
	return f.listLayer(ctx, memory.LayerLTM, liveOnly)
}

// GetExisting returns every long-term record, superseded ones included.
// Duplicate and contradiction lookups skip non-live records themselves, but
// the chain-depth walk needs superseded ancestors in the snapshot.
func (f *FileStore) GetExisting(ctx context.Context, facts []memory.DistilledFact) ([]memory.MemoryRecord, error) {
	return f.listLayer(ctx, memory.LayerLTM, false)
}

// Write upserts records by id and persists the store.
func (f *FileStore) Write(ctx context.Context, records []memory.MemoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return err
	}
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("store: record without id")
		}
		if _, ok := f.byID[rec.ID]; !ok {
			f.order = append(f.order, rec.ID)
		}
		f.byID[rec.ID] = rec.Clone()
	}
	return f.saveLocked()
}

// PersistStm stamps records as short-term and upserts them. Used by the
// compaction hook and the session extractor.
func (f *FileStore) PersistStm(ctx context.Context, records []memory.MemoryRecord) error {
	stamped := make([]memory.MemoryRecord, len(records))
	for i, rec := range records {
		rec.Layer = memory.LayerSTM
		stamped[i] = rec
	}
	return f.Write(ctx, stamped)
}

// Get returns the record for id, if present.
func (f *FileStore) Get(ctx context.Context, id string) (memory.MemoryRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return memory.MemoryRecord{}, false, err
	}
	rec, ok := f.byID[id]
	if !ok {
		return memory.MemoryRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

// TouchAccessed stamps accessedAt on the given records and persists. Missing
// ids are ignored.
func (f *FileStore) TouchAccessed(ctx context.Context, ids []string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return err
	}
	changed := false
	for _, id := range ids {
		rec, ok := f.byID[id]
		if !ok {
			continue
		}
		rec.AccessedAt = at
		f.byID[id] = rec
		changed = true
	}
	if !changed {
		return nil
	}
	return f.saveLocked()
}

func (f *FileStore) listLayer(ctx context.Context, layer memory.Layer, liveOnly bool) ([]memory.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(); err != nil {
		return nil, err
	}
	var out []memory.MemoryRecord
	for _, id := range f.order {
		rec := f.byID[id]
		if rec.Layer != layer {
			continue
		}
		if liveOnly && !rec.Live() {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

// loadLocked reads the backing file once. A missing file is an empty store.
func (f *FileStore) loadLocked() error {
	if f.loaded {
		return nil
	}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read record store: %w", err)
	}
	var doc recordStore
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse record store %s: %w", f.path, err)
	}
	for _, rec := range doc.Records {
		if _, ok := f.byID[rec.ID]; !ok {
			f.order = append(f.order, rec.ID)
		}
		f.byID[rec.ID] = rec
	}
	f.loaded = true
	return nil
}

// saveLocked writes the store atomically: marshal, write a temp file in the
// same directory, rename over the target.
func (f *FileStore) saveLocked() error {
	doc := recordStore{Version: 1, Records: make([]memory.MemoryRecord, 0, len(f.order))}
	for _, id := range f.order {
		doc.Records = append(doc.Records, f.byID[id])
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".records-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace record store: %w", err)
	}
	slog.Debug("store: saved", "records", len(doc.Records), "path", f.path)
	return nil
}
