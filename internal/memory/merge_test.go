package memory

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

// newTestMerger returns a merger with a fixed clock and sequential ids.
func newTestMerger(t *testing.T, cfg MergeConfig) (*Merger, time.Time) {
	t.Helper()
	scorer, err := NewScorer(DefaultScorerConfig())
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	m := NewMerger(scorer, cfg)
	m.now = func() time.Time { return now }
	seq := 0
	m.generateID = func() string { seq++; return fmt.Sprintf("new-%d", seq) }
	return m, now
}

func prefFact(content string, confidence float64, entities ...string) DistilledFact {
	return DistilledFact{
		Type:               TypePreference,
		Content:            content,
		Confidence:         confidence,
		SourceCandidateIDs: []string{"r1"},
		Entities:           entities,
		Tags:               []string{"pref"},
		Reasoning:          "test",
	}
}

func TestMerge_CreatesNewRecord(t *testing.T) {
	m, now := newTestMerger(t, MergeConfig{})
	fact := prefFact("User prefers dark mode", 0.9, "user")

	res, err := m.Merge([]DistilledFact{fact}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Created) != 1 || len(res.Updated) != 0 || len(res.Superseded) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	rec := res.Created[0]
	if rec.ID != "new-1" || rec.Layer != LayerLTM || rec.Type != TypePreference {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Importance != 0.9 || rec.Confidence != 0.9 {
		t.Errorf("importance/confidence should equal fact confidence: %+v", rec)
	}
	if rec.Provenance.SourceType != SourceConsolidation || rec.Provenance.ConversationID != "r1" {
		t.Errorf("unexpected provenance: %+v", rec.Provenance)
	}
	if !rec.CreatedAt.Equal(now) || !rec.UpdatedAt.Equal(now) || !rec.AccessedAt.Equal(now) {
		t.Errorf("timestamps not stamped with now: %+v", rec)
	}
}

func TestMerge_SkipsLowConfidence(t *testing.T) {
	m, _ := newTestMerger(t, MergeConfig{MinConfidenceToMerge: 0.5})
	res, err := m.Merge([]DistilledFact{prefFact("x", 0.4, "user")}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Created) != 0 || len(res.Skipped) != 1 || res.Skipped[0].Reason != SkipLowConfidence {
		t.Fatalf("expected low_confidence skip, got %+v", res)
	}
}

func TestMerge_DuplicateReinforces(t *testing.T) {
	m, now := newTestMerger(t, MergeConfig{})
	existing := ltmRecord("old", "User prefers dark mode", TypePreference)
	existing.Importance = 0.5
	existing.AccessedAt = now.Add(-30 * 24 * time.Hour) // several decay windows old
	existing.UpdatedAt = existing.AccessedAt

	fact := prefFact("user prefers DARK mode!", 0.9, "user")
	res, err := m.Merge([]DistilledFact{fact}, []MemoryRecord{existing})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Updated) != 1 || len(res.Created) != 0 {
		t.Fatalf("expected one update, got %+v", res)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != SkipDuplicate {
		t.Fatalf("expected duplicate skip entry, got %+v", res.Skipped)
	}

	upd := res.Updated[0]
	scorer, _ := NewScorer(DefaultScorerConfig())
	decayed := scorer.Decay(0.5, existing.AccessedAt, now)
	if upd.Importance <= decayed {
		t.Errorf("reinforced importance %v should exceed decayed %v", upd.Importance, decayed)
	}
	if !upd.UpdatedAt.Equal(now) || !upd.AccessedAt.Equal(now) {
		t.Errorf("expected updatedAt/accessedAt stamped: %+v", upd)
	}
}

func TestMerge_ContradictionNewerWins(t *testing.T) {
	m, now := newTestMerger(t, MergeConfig{})
	old := ltmRecord("standup-old", "User does not like morning standups", TypePreference)
	old.Entities = []string{"user", "meeting"}
	old.Tags = []string{"preference"}
	old.UpdatedAt = now.Add(-time.Hour)
	old.AccessedAt = now.Add(-time.Hour)

	fact := DistilledFact{
		Type:               TypePreference,
		Content:            "User likes morning standups",
		Confidence:         0.9,
		SourceCandidateIDs: []string{"r1"},
		Entities:           []string{"user", "meeting"},
		Reasoning:          "recent statement",
	}

	res, err := m.Merge([]DistilledFact{fact}, []MemoryRecord{old})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Created) != 1 || len(res.Superseded) != 1 {
		t.Fatalf("expected created=1 superseded=1, got %+v", res)
	}
	created := res.Created[0]
	superseded := res.Superseded[0]
	if created.Supersedes != "standup-old" {
		t.Errorf("created.Supersedes = %q", created.Supersedes)
	}
	if superseded.SupersededBy != created.ID {
		t.Errorf("superseded.SupersededBy = %q, want %q", superseded.SupersededBy, created.ID)
	}
	if len(res.SupersessionChain) != 1 {
		t.Fatalf("expected one chain event, got %v", res.SupersessionChain)
	}
	ev := res.SupersessionChain[0]
	if ev.OriginalID != "standup-old" || ev.ReplacedByID != created.ID || ev.Reason != "newer_wins_contradiction" {
		t.Errorf("unexpected chain event: %+v", ev)
	}
}

func TestMerge_NewerOfMultipleContradictionsWins(t *testing.T) {
	m, now := newTestMerger(t, MergeConfig{})
	older := ltmRecord("older", "User does not like tea at all", TypePreference)
	older.Entities = []string{"tea"}
	older.UpdatedAt = now.Add(-48 * time.Hour)
	newer := ltmRecord("newer", "User does not like green tea", TypePreference)
	newer.Entities = []string{"tea"}
	newer.UpdatedAt = now.Add(-time.Hour)

	fact := prefFact("User likes tea", 0.9, "tea")
	res, err := m.Merge([]DistilledFact{fact}, []MemoryRecord{older, newer})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Superseded) != 1 || res.Superseded[0].ID != "newer" {
		t.Fatalf("expected newest contradiction superseded, got %+v", res.Superseded)
	}
}

func TestMerge_ChainDepthCeiling(t *testing.T) {
	m, now := newTestMerger(t, MergeConfig{MaxSupersessionChainDepth: 2})

	// Chain: c <- b <- a (depth of c is 2).
	a := ltmRecord("a", "User does not like standups version one", TypePreference)
	a.SupersededBy = "b"
	b := ltmRecord("b", "User does not like standups version two", TypePreference)
	b.Supersedes = "a"
	b.SupersededBy = "c"
	c := ltmRecord("c", "User does not like standups", TypePreference)
	c.Supersedes = "b"
	c.Entities = []string{"standups"}
	c.UpdatedAt = now.Add(-time.Hour)

	fact := prefFact("User likes standups", 0.9, "standups")
	res, err := m.Merge([]DistilledFact{fact}, []MemoryRecord{a, b, c})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Created) != 0 || len(res.Superseded) != 0 {
		t.Fatalf("expected no created/superseded at depth ceiling, got %+v", res)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != SkipChainDepthExceeded {
		t.Fatalf("expected chain depth skip, got %+v", res.Skipped)
	}
}

func TestMerge_Deterministic(t *testing.T) {
	facts := []DistilledFact{
		prefFact("User prefers dark mode", 0.9, "user", "editor"),
		prefFact("User prefers dark mode", 0.8, "user", "editor"), // duplicate of the first created
		prefFact("low", 0.1, "user"),
	}
	existing := []MemoryRecord{ltmRecord("e1", "User prefers vim keybindings", TypePreference)}

	run := func() MergeResult {
		m, _ := newTestMerger(t, MergeConfig{})
		res, err := m.Merge(facts, existing)
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		return res
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Fatal("merge is not deterministic for identical inputs")
	}
}

func TestMerge_DoesNotMutateCallerRecords(t *testing.T) {
	m, now := newTestMerger(t, MergeConfig{})
	existing := ltmRecord("old", "User does not like jogging", TypePreference)
	existing.Entities = []string{"jogging"}
	existing.UpdatedAt = now.Add(-time.Hour)
	input := []MemoryRecord{existing}

	_, err := m.Merge([]DistilledFact{prefFact("User likes jogging", 0.9, "jogging")}, input)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if input[0].SupersededBy != "" {
		t.Error("merge mutated the caller's record slice")
	}
}

func TestMerge_FactSeesEarlierCreatedRecord(t *testing.T) {
	m, _ := newTestMerger(t, MergeConfig{})
	first := prefFact("User prefers tabs over spaces", 0.9, "editor")
	duplicate := prefFact("user prefers TABS over spaces", 0.85, "editor")

	res, err := m.Merge([]DistilledFact{first, duplicate}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(res.Created) != 1 {
		t.Fatalf("expected one created, got %d", len(res.Created))
	}
	if len(res.Updated) != 1 || len(res.Skipped) != 1 || res.Skipped[0].Reason != SkipDuplicate {
		t.Fatalf("expected second fact to reinforce the first, got %+v", res)
	}
}
