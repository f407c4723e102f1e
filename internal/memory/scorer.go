package memory

import (
	"fmt"
	"time"
)

// ImportanceLevel is the banded view of a numeric importance score.
type ImportanceLevel string

const (
	LevelCritical ImportanceLevel = "critical"
	LevelHigh     ImportanceLevel = "high"
	LevelMedium   ImportanceLevel = "medium"
	LevelLow      ImportanceLevel = "low"
)

// ScorerConfig bounds and tunes importance arithmetic.
type ScorerConfig struct {
	MinImportance      float64
	MaxImportance      float64
	ReinforcementBoost float64
	DecayRate          float64
	DecayWindow        time.Duration
}

// DefaultScorerConfig returns the stock tuning: full [0,1] range, 0.2 boost,
// 0.08 decay per 7-day window.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		MinImportance:      0,
		MaxImportance:      1,
		ReinforcementBoost: 0.2,
		DecayRate:          0.08,
		DecayWindow:        7 * 24 * time.Hour,
	}
}

// Scorer converts qualitative evidence (repetition, elapsed time) into
// bounded importance updates.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg ScorerConfig) (*Scorer, error) {
	if cfg.MinImportance < 0 || cfg.MinImportance >= cfg.MaxImportance || cfg.MaxImportance > 1 {
		return nil, fmt.Errorf("scorer: need 0 <= min < max <= 1, got min=%v max=%v", cfg.MinImportance, cfg.MaxImportance)
	}
	if cfg.ReinforcementBoost < 0 {
		return nil, fmt.Errorf("scorer: reinforcementBoost must be >= 0, got %v", cfg.ReinforcementBoost)
	}
	if cfg.DecayRate < 0 {
		return nil, fmt.Errorf("scorer: decayRate must be >= 0, got %v", cfg.DecayRate)
	}
	if cfg.DecayWindow <= 0 {
		return nil, fmt.Errorf("scorer: decayWindow must be > 0, got %v", cfg.DecayWindow)
	}
	return &Scorer{cfg: cfg}, nil
}

func (s *Scorer) clamp(v float64) float64 {
	if v < s.cfg.MinImportance {
		return s.cfg.MinImportance
	}
	if v > s.cfg.MaxImportance {
		return s.cfg.MaxImportance
	}
	return v
}

// Reinforce applies n reinforcement events to score. Each event closes a
// fraction of the remaining gap to the maximum, scaled down by 1/(i+1) so
// successive events contribute strictly less.
func (s *Scorer) Reinforce(score float64, n int) float64 {
	score = s.clamp(score)
	for i := 0; i < n; i++ {
		if score >= s.cfg.MaxImportance {
			break
		}
		score += (s.cfg.MaxImportance - score) * s.cfg.ReinforcementBoost / float64(i+1)
		score = s.clamp(score)
	}
	return score
}

// Decay lowers score in proportion to how many full decay windows have
// elapsed since lastAccessedAt. Records touched within one window are
// returned unchanged to avoid churn.
func (s *Scorer) Decay(score float64, lastAccessedAt, now time.Time) float64 {
	elapsed := now.Sub(lastAccessedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed < s.cfg.DecayWindow {
		return score
	}
	windows := float64(elapsed) / float64(s.cfg.DecayWindow)
	return s.clamp(score - s.cfg.DecayRate*windows)
}

// Level maps a score into its importance band. Bands are closed on the
// lower bound.
func (s *Scorer) Level(score float64) ImportanceLevel {
	switch {
	case score >= 0.85:
		return LevelCritical
	case score >= 0.6:
		return LevelHigh
	case score >= 0.3:
		return LevelMedium
	default:
		return LevelLow
	}
}
