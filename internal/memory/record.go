// Package memory implements the consolidation pipeline: short-term records
// are selected into batches, distilled into typed facts by an LLM, and merged
// into long-term memory with duplicate reinforcement and newer-wins
// supersession.
package memory

import (
	"strings"
	"time"
)

// MemoryType classifies what a record asserts.
type MemoryType string

const (
	TypeFact       MemoryType = "fact"
	TypePreference MemoryType = "preference"
	TypeDecision   MemoryType = "decision"
	TypeEntity     MemoryType = "entity"
	TypeEpisode    MemoryType = "episode"
	TypeSkill      MemoryType = "skill"
)

// ValidType reports whether t is a known memory type.
func ValidType(t MemoryType) bool {
	switch t {
	case TypeFact, TypePreference, TypeDecision, TypeEntity, TypeEpisode, TypeSkill:
		return true
	}
	return false
}

// Layer is the storage tier a record lives in.
type Layer string

const (
	LayerSTM Layer = "stm"
	LayerLTM Layer = "ltm"
)

// SourceType records how a memory entered the system.
type SourceType string

const (
	SourceImplicit      SourceType = "implicit"
	SourceExplicit      SourceType = "explicit"
	SourceConversation  SourceType = "conversation"
	SourceConsolidation SourceType = "consolidation"
)

// Provenance describes where a record came from.
type Provenance struct {
	SourceType     SourceType `json:"sourceType"`
	ConversationID string     `json:"conversationId,omitempty"`
}

// MemoryRecord is the single persisted memory entity. A record is never
// deleted; when it becomes obsolete it is superseded and left inert.
type MemoryRecord struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	Type         MemoryType `json:"type"`
	Layer        Layer      `json:"layer"`
	Tags         []string   `json:"tags,omitempty"`
	Entities     []string   `json:"entities,omitempty"`
	Importance   float64    `json:"importance"`
	Confidence   float64    `json:"confidence"`
	Provenance   Provenance `json:"provenance"`
	Supersedes   string     `json:"supersedes,omitempty"`
	SupersededBy string     `json:"supersededBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	AccessedAt   time.Time  `json:"accessedAt"`
}

// Live reports whether the record still participates in matching and
// briefings. Superseded records are inert.
func (r *MemoryRecord) Live() bool { return r.SupersededBy == "" }

// Clone returns a deep copy so callers can mutate snapshots freely.
func (r MemoryRecord) Clone() MemoryRecord {
	out := r
	out.Tags = append([]string(nil), r.Tags...)
	out.Entities = append([]string(nil), r.Entities...)
	return out
}

// DedupStrings trims, drops empties, and removes duplicates while keeping
// first-seen order. Tags and entities are semantic sets.
func DedupStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
