package memory

import (
	"strings"
	"testing"
)

var factAllowed = map[string]bool{"r1": true, "r2": true}

const validFactJSON = `{"facts":[{"type":"preference","content":"Dark mode preferred","confidence":0.9,"sourceCandidateIds":["r1"],"entities":["user"],"tags":["ui"],"reasoning":"stated twice"}]}`

func TestParseDistillationOutput_DirectJSON(t *testing.T) {
	res, err := ParseDistillationOutput(validFactJSON, factAllowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Facts) != 1 {
		t.Fatalf("expected 1 fact, got %d (warnings: %v)", len(res.Facts), res.Warnings)
	}
	f := res.Facts[0]
	if f.Type != TypePreference || f.Content != "Dark mode preferred" || f.Confidence != 0.9 {
		t.Errorf("unexpected fact: %+v", f)
	}
}

func TestParseDistillationOutput_FencedBlock(t *testing.T) {
	raw := "Here are the facts:\n```json\n" + validFactJSON + "\n```\nDone."
	res, err := ParseDistillationOutput(raw, factAllowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(res.Facts))
	}
}

func TestParseDistillationOutput_EmbeddedObject(t *testing.T) {
	raw := "Sure! " + validFactJSON + " — hope that helps."
	res, err := ParseDistillationOutput(raw, factAllowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(res.Facts))
	}
}

func TestParseDistillationOutput_BareArray(t *testing.T) {
	raw := `[{"type":"fact","content":"Works remotely","confidence":0.8,"sourceCandidateIds":["r2"],"reasoning":"said so"}]`
	res, err := ParseDistillationOutput(raw, factAllowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Facts) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(res.Facts))
	}
}

func TestParseDistillationOutput_NoJSON(t *testing.T) {
	if _, err := ParseDistillationOutput("I could not find anything useful.", factAllowed); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseDistillationOutput_RejectsBadFacts(t *testing.T) {
	raw := `{"facts":[
		{"type":"opinion","content":"x","confidence":0.9,"sourceCandidateIds":["r1"],"reasoning":"r"},
		{"type":"fact","content":"  ","confidence":0.9,"sourceCandidateIds":["r1"],"reasoning":"r"},
		{"type":"fact","content":"x","confidence":1.5,"sourceCandidateIds":["r1"],"reasoning":"r"},
		{"type":"fact","content":"x","confidence":0.9,"sourceCandidateIds":[],"reasoning":"r"},
		{"type":"fact","content":"x","confidence":0.9,"sourceCandidateIds":["stranger"],"reasoning":"r"},
		{"type":"fact","content":"x","confidence":0.9,"sourceCandidateIds":["r1"],"reasoning":""},
		{"type":"fact","content":"kept","confidence":0.9,"sourceCandidateIds":["r1"],"reasoning":"ok"}
	]}`
	res, err := ParseDistillationOutput(raw, factAllowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Facts) != 1 || res.Facts[0].Content != "kept" {
		t.Fatalf("expected only the valid fact, got %+v", res.Facts)
	}
	if res.InvalidCount != 6 {
		t.Errorf("expected 6 invalid, got %d", res.InvalidCount)
	}
	if len(res.Warnings) != 6 {
		t.Errorf("expected 6 warnings, got %d: %v", len(res.Warnings), res.Warnings)
	}
}

func TestParseDistillationOutput_RoundsConfidence(t *testing.T) {
	raw := `{"facts":[{"type":"fact","content":"x","confidence":0.87654,"sourceCandidateIds":["r1"],"reasoning":"r"}]}`
	res, err := ParseDistillationOutput(raw, factAllowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Facts[0].Confidence != 0.877 {
		t.Errorf("expected 0.877, got %v", res.Facts[0].Confidence)
	}
}

func TestParseDistillationOutput_DedupesTagsAndEntities(t *testing.T) {
	raw := `{"facts":[{"type":"fact","content":"x","confidence":0.9,"sourceCandidateIds":["r1"],"entities":["a","a"," ","b"],"tags":["t","t"],"reasoning":"r"}]}`
	res, err := ParseDistillationOutput(raw, factAllowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := res.Facts[0]
	if strings.Join(f.Entities, ",") != "a,b" {
		t.Errorf("unexpected entities: %v", f.Entities)
	}
	if strings.Join(f.Tags, ",") != "t" {
		t.Errorf("unexpected tags: %v", f.Tags)
	}
}

func TestExtractJSON_PrefersDirectParse(t *testing.T) {
	payload, err := ExtractJSON(`  {"a":1}  `)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"a":1}` {
		t.Errorf("unexpected payload: %s", payload)
	}
}
