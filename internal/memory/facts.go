package memory

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DistilledFact is one validated unit of LLM distillation output.
type DistilledFact struct {
	Type               MemoryType `json:"type"`
	Content            string     `json:"content"`
	Confidence         float64    `json:"confidence"`
	SourceCandidateIDs []string   `json:"sourceCandidateIds"`
	Entities           []string   `json:"entities,omitempty"`
	Tags               []string   `json:"tags,omitempty"`
	Reasoning          string     `json:"reasoning"`
}

// factTypeAllowed limits distilled facts to the four distillable types.
// Episodes and skills enter memory through other paths.
func factTypeAllowed(t MemoryType) bool {
	switch t {
	case TypeFact, TypePreference, TypeDecision, TypeEntity:
		return true
	}
	return false
}

// ValidationResult is the outcome of validating a distillation payload.
// Validation never fails wholesale: bad facts are dropped with a warning.
type ValidationResult struct {
	Facts        []DistilledFact
	Warnings     []string
	InvalidCount int
}

// ExtractJSON pulls a JSON document out of raw LLM output. Providers wrap
// JSON in prose or code fences often enough that three strategies are tried
// in order: direct parse, fenced ```json block, then slicing from the first
// { to the last } (or [ to ]).
func ExtractJSON(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return json.RawMessage(trimmed), nil
	}

	if fenced := extractFencedBlock(trimmed); fenced != "" && json.Valid([]byte(fenced)) {
		return json.RawMessage(fenced), nil
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(trimmed, pair[0])
		end := strings.LastIndex(trimmed, pair[1])
		if start >= 0 && end > start {
			slice := trimmed[start : end+1]
			if json.Valid([]byte(slice)) {
				return json.RawMessage(slice), nil
			}
		}
	}

	return nil, fmt.Errorf("no JSON payload found in response")
}

// extractFencedBlock returns the body of the first ```json (or bare ```)
// fenced block, or "" when none exists.
func extractFencedBlock(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return ""
	}
	body := s[start+3:]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		lang := strings.TrimSpace(body[:nl])
		if lang == "json" || lang == "" {
			body = body[nl+1:]
		} else {
			return ""
		}
	}
	end := strings.Index(body, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(body[:end])
}

// ParseDistillationOutput extracts the facts payload from raw LLM output and
// validates each fact against allowedIDs (the ids of the originating batch).
// It returns an error only when no JSON could be extracted at all; individual
// bad facts become warnings.
func ParseDistillationOutput(raw string, allowedIDs map[string]bool) (ValidationResult, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return ValidationResult{}, err
	}

	var items []json.RawMessage
	var envelope struct {
		Facts []json.RawMessage `json:"facts"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Facts != nil {
		items = envelope.Facts
	} else if err := json.Unmarshal(payload, &items); err != nil {
		return ValidationResult{}, fmt.Errorf("payload is neither a facts object nor an array")
	}

	var res ValidationResult
	for i, item := range items {
		fact, warn := validateFact(item, allowedIDs)
		if warn != "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("fact %d rejected: %s", i, warn))
			res.InvalidCount++
			continue
		}
		res.Facts = append(res.Facts, fact)
	}
	return res, nil
}

// validateFact type-checks and trims one fact. The returned warning is ""
// on success.
func validateFact(item json.RawMessage, allowedIDs map[string]bool) (DistilledFact, string) {
	var raw struct {
		Type               string    `json:"type"`
		Content            string    `json:"content"`
		Confidence         *float64  `json:"confidence"`
		SourceCandidateIDs []string  `json:"sourceCandidateIds"`
		Entities           []string  `json:"entities"`
		Tags               []string  `json:"tags"`
		Reasoning          string    `json:"reasoning"`
	}
	if err := json.Unmarshal(item, &raw); err != nil {
		return DistilledFact{}, fmt.Sprintf("malformed fact object: %v", err)
	}

	t := MemoryType(strings.TrimSpace(raw.Type))
	if !factTypeAllowed(t) {
		return DistilledFact{}, fmt.Sprintf("unknown type %q", raw.Type)
	}
	content := strings.TrimSpace(raw.Content)
	if content == "" {
		return DistilledFact{}, "empty content"
	}
	if raw.Confidence == nil {
		return DistilledFact{}, "missing confidence"
	}
	conf := *raw.Confidence
	if conf < 0 || conf > 1 {
		return DistilledFact{}, fmt.Sprintf("confidence %v out of range", conf)
	}
	conf = math.Round(conf*1000) / 1000

	sources := DedupStrings(raw.SourceCandidateIDs)
	if len(sources) == 0 {
		return DistilledFact{}, "empty sourceCandidateIds"
	}
	for _, id := range sources {
		if !allowedIDs[id] {
			return DistilledFact{}, fmt.Sprintf("source candidate %q not in batch", id)
		}
	}
	reasoning := strings.TrimSpace(raw.Reasoning)
	if reasoning == "" {
		return DistilledFact{}, "empty reasoning"
	}

	return DistilledFact{
		Type:               t,
		Content:            content,
		Confidence:         conf,
		SourceCandidateIDs: sources,
		Entities:           DedupStrings(raw.Entities),
		Tags:               DedupStrings(raw.Tags),
		Reasoning:          reasoning,
	}, ""
}
