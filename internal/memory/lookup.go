package memory

import (
	"strings"
	"unicode"
)

// negationTokens flip the polarity of a statement. Exactly one side carrying
// a negation is the strongest contradiction signal we have without semantics.
var negationTokens = map[string]bool{
	"not":     true,
	"never":   true,
	"no":      true,
	"cannot":  true,
	"don't":   true,
	"doesn't": true,
	"won't":   true,
	"dislike": true,
}

// genericEntities are too common to indicate a shared referent.
var genericEntities = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"me":        true,
}

// NormalizeContent lowercases, replaces non-alphanumerics with spaces, and
// collapses whitespace. Two records with equal normalized content are
// considered the same statement.
func NormalizeContent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// jaccard computes set similarity over whitespace-split tokens of two
// normalized strings. Empty-vs-empty is 0; the exact-equality path catches
// that case before similarity is consulted.
func jaccard(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ContainsNegation reports whether content carries a negation token.
// The check runs on the raw text so contractions like "don't" survive.
func ContainsNegation(content string) bool {
	for _, tok := range strings.Fields(strings.ToLower(content)) {
		tok = strings.Trim(tok, ".,:;!?\"()[]")
		if negationTokens[tok] {
			return true
		}
	}
	return false
}

// FindDuplicate returns the first live LTM record of the fact's type whose
// normalized content equals normalizedFactContent, or whose token Jaccard
// similarity reaches similarityThreshold. Returns nil when nothing matches.
func FindDuplicate(fact DistilledFact, normalizedFactContent string, records []MemoryRecord, similarityThreshold float64) *MemoryRecord {
	for i := range records {
		rec := &records[i]
		if rec.Type != fact.Type || rec.Layer != LayerLTM || !rec.Live() {
			continue
		}
		norm := NormalizeContent(rec.Content)
		if norm == normalizedFactContent {
			return rec
		}
		if jaccard(norm, normalizedFactContent) >= similarityThreshold {
			return rec
		}
	}
	return nil
}

// FindContradictions returns the live LTM records of the fact's type that
// share a non-generic entity or a tag with the fact and either differ from
// it in negative polarity or overlap heavily (Jaccard >= 0.5) in content.
func FindContradictions(fact DistilledFact, records []MemoryRecord) []*MemoryRecord {
	normFact := NormalizeContent(fact.Content)
	factNegated := ContainsNegation(fact.Content)

	var out []*MemoryRecord
	for i := range records {
		rec := &records[i]
		if rec.Type != fact.Type || rec.Layer != LayerLTM || !rec.Live() {
			continue
		}
		norm := NormalizeContent(rec.Content)
		if norm == normFact {
			continue
		}
		if !sharesReferent(fact, rec) {
			continue
		}
		polarityDiffers := ContainsNegation(rec.Content) != factNegated
		if polarityDiffers || jaccard(norm, normFact) >= 0.5 {
			out = append(out, rec)
		}
	}
	return out
}

// sharesReferent reports whether fact and rec mention at least one common
// non-generic entity, or at least one common tag.
func sharesReferent(fact DistilledFact, rec *MemoryRecord) bool {
	for _, fe := range fact.Entities {
		fl := strings.ToLower(fe)
		if genericEntities[fl] {
			continue
		}
		for _, re := range rec.Entities {
			if strings.EqualFold(fe, re) {
				return true
			}
		}
	}
	for _, ft := range fact.Tags {
		for _, rt := range rec.Tags {
			if strings.EqualFold(ft, rt) {
				return true
			}
		}
	}
	return false
}
