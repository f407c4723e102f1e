package briefing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/reins-ai/reins/internal/memory"
	"github.com/reins-ai/reins/internal/schema"
)

// fakeRetrieval scripts search results, keyed by the first type or tag in
// each query.
type fakeRetrieval struct {
	byType map[string][]memory.MemoryRecord
	byTags map[string][]memory.MemoryRecord
	err    error

	typeCalls []SearchOptions
	tagCalls  []SearchOptions
}

func (f *fakeRetrieval) SearchByType(ctx context.Context, types []memory.MemoryType, opts SearchOptions) ([]memory.MemoryRecord, error) {
	f.typeCalls = append(f.typeCalls, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.byType[string(types[0])], nil
}

func (f *fakeRetrieval) SearchByTags(ctx context.Context, tags []string, opts SearchOptions) ([]memory.MemoryRecord, error) {
	f.tagCalls = append(f.tagCalls, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.byTags[tags[0]], nil
}

type listerFunc func(ctx context.Context, liveOnly bool) ([]memory.MemoryRecord, error)

func (f listerFunc) ListLtmRecords(ctx context.Context, liveOnly bool) ([]memory.MemoryRecord, error) {
	return f(ctx, liveOnly)
}

func ltmRecord(id, content string, typ memory.MemoryType, importance float64, tags ...string) memory.MemoryRecord {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	return memory.MemoryRecord{
		ID:         id,
		Content:    content,
		Type:       typ,
		Layer:      memory.LayerLTM,
		Importance: importance,
		Confidence: 0.8,
		Tags:       tags,
		Provenance: memory.Provenance{SourceType: memory.SourceConsolidation},
		CreatedAt:  now,
		UpdatedAt:  now,
		AccessedAt: now,
	}
}

func newTestService(provider RetrievalProvider, lister Lister, cfg Config) *Service {
	s := NewService(provider, lister, nil, cfg)
	s.now = func() time.Time { return time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestCompose_EmptyRetrieval(t *testing.T) {
	s := newTestService(&fakeRetrieval{}, nil, Config{})

	b, err := s.Compose(context.Background())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if b.TotalItems != 0 || len(b.Sections) != 0 {
		t.Errorf("expected empty briefing, got %+v", b)
	}
}

func TestCompose_SectionAssembly(t *testing.T) {
	provider := &fakeRetrieval{
		byType: map[string][]memory.MemoryRecord{
			string(memory.TypeEpisode): {
				ltmRecord("e1", "Follow up with Dana", memory.TypeEpisode, 0.4, "follow-up"),
			},
			string(memory.TypeDecision): {
				ltmRecord("d1", "Chose Postgres over SQLite", memory.TypeDecision, 0.6),
			},
		},
		// The open_threads tag search returns an overlap with e1 plus one extra.
		byTags: map[string][]memory.MemoryRecord{
			"action-item": {
				ltmRecord("e1", "Follow up with Dana", memory.TypeEpisode, 0.4, "follow-up"),
				ltmRecord("e2", "Renew passport", memory.TypeFact, 0.9, "todo"),
			},
		},
	}
	s := newTestService(provider, nil, Config{MaxItemsPerSection: 5})

	b, err := s.Compose(context.Background())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	var open *Section
	for i := range b.Sections {
		if b.Sections[i].SectionType == "open_threads" {
			open = &b.Sections[i]
		}
	}
	if open == nil {
		t.Fatalf("open_threads missing: %+v", b.Sections)
	}
	if open.ItemCount != 2 {
		t.Fatalf("union should deduplicate by id: %+v", open.Items)
	}
	// Importance descending.
	if open.Items[0].ID != "e2" || open.Items[1].ID != "e1" {
		t.Errorf("items not sorted by importance: %+v", open.Items)
	}
	// open_threads has e1+e2; recent_decisions has d1; upcoming picks up e1
	// again through its own type query.
	if b.TotalItems != 4 {
		t.Errorf("totalItems = %d, want 4", b.TotalItems)
	}

	// Search limit is always maxItemsPerSection × 3.
	for _, opts := range provider.typeCalls {
		if opts.Limit != 15 {
			t.Errorf("unexpected search limit %d", opts.Limit)
		}
	}
}

func TestCompose_TopicFilters(t *testing.T) {
	provider := &fakeRetrieval{
		byType: map[string][]memory.MemoryRecord{
			string(memory.TypeFact): {
				ltmRecord("f1", "Work fact", memory.TypeFact, 0.8, "Work"),
				ltmRecord("f2", "Hobby fact", memory.TypeFact, 0.9, "hobby"),
			},
		},
	}
	s := newTestService(provider, nil, Config{TopicFilters: []string{"work"}})

	b, err := s.Compose(context.Background())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	var high *Section
	for i := range b.Sections {
		if b.Sections[i].SectionType == "high_importance" {
			high = &b.Sections[i]
		}
	}
	if high == nil || high.ItemCount != 1 || high.Items[0].ID != "f1" {
		t.Errorf("topic filter should keep only tagged records, got %+v", high)
	}
}

func TestCompose_ItemCap(t *testing.T) {
	var records []memory.MemoryRecord
	for _, id := range []string{"a", "b", "c", "d"} {
		records = append(records, ltmRecord(id, "decision "+id, memory.TypeDecision, 0.5))
	}
	provider := &fakeRetrieval{byType: map[string][]memory.MemoryRecord{
		string(memory.TypeDecision): records,
	}}
	s := newTestService(provider, nil, Config{MaxItemsPerSection: 2})

	b, err := s.Compose(context.Background())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	for _, section := range b.Sections {
		if section.SectionType == "recent_decisions" && section.ItemCount != 2 {
			t.Errorf("section not capped: %+v", section)
		}
	}
}

func TestCompose_RetrievalFailureIsCoded(t *testing.T) {
	s := newTestService(&fakeRetrieval{err: errors.New("index offline")}, nil, Config{})

	_, err := s.Compose(context.Background())
	if schema.CodeOf(err) != schema.CodeBriefingRetrievalFailed {
		t.Fatalf("expected retrieval failure code, got %v", err)
	}
}

func TestHealthSection(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	fresh := ltmRecord("fresh", "recently used", memory.TypeFact, 0.5)
	fresh.AccessedAt = now.Add(-24 * time.Hour)
	staleNew := ltmRecord("stale-new", "untouched for a while", memory.TypeFact, 0.5)
	staleNew.AccessedAt = now.Add(-100 * 24 * time.Hour)
	staleOld := ltmRecord("stale-old", strings.Repeat("very old memory ", 10), memory.TypeFact, 0.5)
	staleOld.AccessedAt = now.Add(-200 * 24 * time.Hour)

	lister := listerFunc(func(ctx context.Context, liveOnly bool) ([]memory.MemoryRecord, error) {
		return []memory.MemoryRecord{fresh, staleNew, staleOld}, nil
	})
	s := newTestService(&fakeRetrieval{}, lister, Config{})

	b, err := s.Compose(context.Background())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(b.Sections) != 1 || b.Sections[0].SectionType != "health_check" {
		t.Fatalf("expected only the health section, got %+v", b.Sections)
	}
	item := b.Sections[0].Items[0]
	if item.Type != memory.TypeFact || item.Importance != 0.5 || item.Source != "health_check" {
		t.Errorf("unexpected health item: %+v", item)
	}
	if !strings.Contains(item.Content, "2 memories") {
		t.Errorf("content should carry the stale count: %q", item.Content)
	}
	if !strings.Contains(item.Content, "very old memory") {
		t.Errorf("content should preview the oldest stale record: %q", item.Content)
	}
	if strings.Contains(item.Content, strings.Repeat("very old memory ", 10)) {
		t.Errorf("preview should be clipped: %q", item.Content)
	}
}

func TestHealthSection_OmittedWhenNothingStale(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	fresh := ltmRecord("fresh", "recently used", memory.TypeFact, 0.5)
	fresh.AccessedAt = now.Add(-24 * time.Hour)
	lister := listerFunc(func(ctx context.Context, liveOnly bool) ([]memory.MemoryRecord, error) {
		return []memory.MemoryRecord{fresh}, nil
	})
	s := newTestService(&fakeRetrieval{}, lister, Config{})

	b, err := s.Compose(context.Background())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(b.Sections) != 0 {
		t.Errorf("expected no sections, got %+v", b.Sections)
	}
}

type trackerFunc func(ctx context.Context, ids []string, at time.Time) error

func (f trackerFunc) TouchAccessed(ctx context.Context, ids []string, at time.Time) error {
	return f(ctx, ids, at)
}

func TestCompose_StampsAccessedAtOnReadRecords(t *testing.T) {
	thread := ltmRecord("thread", "open thread", memory.TypeEpisode, 0.5)
	provider := &fakeRetrieval{byType: map[string][]memory.MemoryRecord{
		string(memory.TypeEpisode): {thread},
	}}

	var touched []string
	var touchedAt time.Time
	tracker := trackerFunc(func(ctx context.Context, ids []string, at time.Time) error {
		touched = append(touched, ids...)
		touchedAt = at
		return nil
	})

	s := NewService(provider, nil, tracker, Config{MaxSections: 1})
	want := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return want }

	if _, err := s.Compose(context.Background()); err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(touched) != 1 || touched[0] != "thread" {
		t.Errorf("expected the composed record to be touched, got %v", touched)
	}
	if !touchedAt.Equal(want) {
		t.Errorf("accessedAt stamp should use compose time, got %v", touchedAt)
	}
}

func TestHealthSection_CountsAgainstSectionCap(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	stale := ltmRecord("stale", "untouched for a while", memory.TypeFact, 0.5)
	stale.AccessedAt = now.Add(-100 * 24 * time.Hour)
	lister := listerFunc(func(ctx context.Context, liveOnly bool) ([]memory.MemoryRecord, error) {
		return []memory.MemoryRecord{stale}, nil
	})

	thread := ltmRecord("thread", "open thread", memory.TypeEpisode, 0.5)
	provider := &fakeRetrieval{byType: map[string][]memory.MemoryRecord{
		string(memory.TypeEpisode): {thread},
	}}

	s := newTestService(provider, lister, Config{MaxSections: 1})
	b, err := s.Compose(context.Background())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(b.Sections) != 1 || b.Sections[0].SectionType != "open_threads" {
		t.Fatalf("full section cap must exclude the health section, got %+v", b.Sections)
	}
}
