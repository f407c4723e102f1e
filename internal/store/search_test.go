package store

import (
	"context"
	"testing"
	"time"

	"github.com/reins-ai/reins/internal/briefing"
	"github.com/reins-ai/reins/internal/memory"
)

func seedSearchStore(t *testing.T) *FileStore {
	t.Helper()
	s, _ := newTestStore(t)
	now := time.Date(2026, 8, 26, 7, 0, 0, 0, time.UTC)

	mk := func(id string, typ memory.MemoryType, importance float64, age time.Duration, tags ...string) memory.MemoryRecord {
		rec := record(id, memory.LayerLTM)
		rec.Type = typ
		rec.Importance = importance
		rec.UpdatedAt = now.Add(-age)
		rec.Tags = tags
		return rec
	}
	err := s.Write(context.Background(), []memory.MemoryRecord{
		mk("d1", memory.TypeDecision, 0.8, time.Hour),
		mk("d2", memory.TypeDecision, 0.3, time.Hour),
		mk("d3", memory.TypeDecision, 0.9, 48*time.Hour), // outside lookback
		mk("f1", memory.TypeFact, 0.9, time.Hour, "TODO"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestSearchByType(t *testing.T) {
	s := seedSearchStore(t)
	after := time.Date(2026, 8, 26, 7, 0, 0, 0, time.UTC).Add(-24 * time.Hour)

	got, err := s.SearchByType(context.Background(), []memory.MemoryType{memory.TypeDecision},
		briefing.SearchOptions{Limit: 10, MinImportance: 0.4, After: after})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "d1" {
		t.Errorf("unexpected results: %+v", got)
	}
}

func TestSearchByTagsCaseInsensitive(t *testing.T) {
	s := seedSearchStore(t)

	got, err := s.SearchByTags(context.Background(), []string{"todo"}, briefing.SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "f1" {
		t.Errorf("unexpected results: %+v", got)
	}
}

func TestSearchOrdersNewestCreatedFirst(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Date(2026, 8, 26, 7, 0, 0, 0, time.UTC)

	older := record("older", memory.LayerLTM)
	older.Type = memory.TypeDecision
	older.CreatedAt = now.Add(-3 * time.Hour)
	newer := record("newer", memory.LayerLTM)
	newer.Type = memory.TypeDecision
	newer.CreatedAt = now.Add(-time.Hour)

	// Insertion order deliberately puts the oldest-created record first.
	if err := s.Write(context.Background(), []memory.MemoryRecord{older, newer}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := s.SearchByType(context.Background(), []memory.MemoryType{memory.TypeDecision},
		briefing.SearchOptions{Limit: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "newer" {
		t.Errorf("expected newest-created record to win the limit, got %+v", got)
	}
}

func TestSearchHonorsLimit(t *testing.T) {
	s := seedSearchStore(t)

	got, err := s.SearchByType(context.Background(), []memory.MemoryType{memory.TypeDecision},
		briefing.SearchOptions{Limit: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("limit not honored: %+v", got)
	}
}
