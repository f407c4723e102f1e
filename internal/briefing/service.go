// Package briefing assembles the morning briefing from long-term memory and
// formats it for delivery.
package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/reins-ai/reins/internal/memory"
	"github.com/reins-ai/reins/internal/schema"
	"github.com/reins-ai/reins/internal/shared/stringutils"
)

// Item is one briefing entry.
type Item struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Type       memory.MemoryType `json:"type"`
	Importance float64           `json:"importance"`
	Source     string            `json:"source,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
}

// Section groups items under one briefing heading.
type Section struct {
	SectionType string `json:"sectionType"`
	Title       string `json:"title"`
	Items       []Item `json:"items"`
	ItemCount   int    `json:"itemCount"`
}

// Briefing is one morning's assembled report. Only sections with at least
// one item appear.
type Briefing struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Sections    []Section `json:"sections"`
	TotalItems  int       `json:"totalItems"`
}

// SearchOptions narrows a retrieval query. After is the lookback cutoff;
// zero means unbounded. MinImportance of zero means no floor.
type SearchOptions struct {
	Limit         int
	MinImportance float64
	After         time.Time
}

// RetrievalProvider is the memory search capability the service depends on.
type RetrievalProvider interface {
	SearchByType(ctx context.Context, types []memory.MemoryType, opts SearchOptions) ([]memory.MemoryRecord, error)
	SearchByTags(ctx context.Context, tags []string, opts SearchOptions) ([]memory.MemoryRecord, error)
}

// Lister enumerates long-term records for the health check. Optional: a
// service without a Lister simply omits the health section.
type Lister interface {
	ListLtmRecords(ctx context.Context, liveOnly bool) ([]memory.MemoryRecord, error)
}

// AccessTracker stamps accessedAt on records that were read into a briefing,
// which feeds the importance decay clock.
type AccessTracker interface {
	TouchAccessed(ctx context.Context, ids []string, at time.Time) error
}

// Config tunes briefing assembly.
type Config struct {
	MaxSections        int
	MaxItemsPerSection int
	LookbackWindow     time.Duration
	TopicFilters       []string
}

// DefaultConfig returns the stock tuning: 4 sections, 5 items each, 24 hour
// lookback, no topic filtering.
func DefaultConfig() Config {
	return Config{
		MaxSections:        4,
		MaxItemsPerSection: 5,
		LookbackWindow:     24 * time.Hour,
	}
}

// staleAfter is how long a record may go untouched before the health check
// reports it.
const staleAfter = 90 * 24 * time.Hour

// sectionDef describes one retrieval-backed section.
type sectionDef struct {
	sectionType   string
	title         string
	types         []memory.MemoryType
	minImportance float64
	tags          []string
}

// sectionDefs is the fixed briefing layout, in display order.
var sectionDefs = []sectionDef{
	{
		sectionType:   "open_threads",
		title:         "Open Threads",
		types:         []memory.MemoryType{memory.TypeEpisode, memory.TypeFact},
		minImportance: 0.3,
		tags:          []string{"action-item", "todo", "unresolved", "follow-up", "open"},
	},
	{
		sectionType:   "high_importance",
		title:         "High Importance",
		types:         []memory.MemoryType{memory.TypeFact, memory.TypePreference, memory.TypeSkill, memory.TypeEntity},
		minImportance: 0.7,
	},
	{
		sectionType:   "recent_decisions",
		title:         "Recent Decisions",
		types:         []memory.MemoryType{memory.TypeDecision},
		minImportance: 0.4,
	},
	{
		sectionType:   "upcoming",
		title:         "Upcoming",
		types:         []memory.MemoryType{memory.TypeEpisode, memory.TypeFact},
		minImportance: 0.3,
		tags:          []string{"upcoming", "deadline", "scheduled", "reminder", "time-sensitive"},
	},
}

// Service composes briefings from an injected retrieval provider.
type Service struct {
	provider RetrievalProvider
	lister   Lister
	tracker  AccessTracker
	cfg      Config

	now func() time.Time
}

// NewService builds a briefing Service. lister may be nil to disable the
// health section; tracker may be nil to skip accessedAt stamping.
// Zero-valued config fields fall back to defaults.
func NewService(provider RetrievalProvider, lister Lister, tracker AccessTracker, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MaxSections <= 0 {
		cfg.MaxSections = def.MaxSections
	}
	if cfg.MaxItemsPerSection <= 0 {
		cfg.MaxItemsPerSection = def.MaxItemsPerSection
	}
	if cfg.LookbackWindow <= 0 {
		cfg.LookbackWindow = def.LookbackWindow
	}
	return &Service{provider: provider, lister: lister, tracker: tracker, cfg: cfg, now: time.Now}
}

// Compose assembles one briefing. Sections that retrieve nothing are omitted;
// a briefing with zero items is valid and formats as the empty message.
func (s *Service) Compose(ctx context.Context) (Briefing, error) {
	now := s.now()
	after := now.Add(-s.cfg.LookbackWindow)

	briefing := Briefing{GeneratedAt: now}

	defs := sectionDefs
	if len(defs) > s.cfg.MaxSections {
		defs = defs[:s.cfg.MaxSections]
	}
	for _, def := range defs {
		items, err := s.composeSection(ctx, def, after)
		if err != nil {
			return Briefing{}, schema.WrapError(schema.CodeBriefingRetrievalFailed,
				fmt.Sprintf("retrieving %s section", def.sectionType), err)
		}
		if len(items) == 0 {
			continue
		}
		briefing.Sections = append(briefing.Sections, Section{
			SectionType: def.sectionType,
			Title:       def.title,
			Items:       items,
			ItemCount:   len(items),
		})
		briefing.TotalItems += len(items)
	}

	if s.tracker != nil {
		var ids []string
		for _, section := range briefing.Sections {
			for _, item := range section.Items {
				ids = append(ids, item.ID)
			}
		}
		if len(ids) > 0 {
			if err := s.tracker.TouchAccessed(ctx, ids, now); err != nil {
				slog.Warn("briefing: could not stamp accessedAt", "err", err)
			}
		}
	}

	// The health section counts against the section cap like any other.
	if len(briefing.Sections) < s.cfg.MaxSections {
		if health := s.healthSection(ctx, now); health != nil {
			briefing.Sections = append(briefing.Sections, *health)
			briefing.TotalItems += health.ItemCount
		}
	}

	slog.Info("briefing: composed", "sections", len(briefing.Sections), "items", briefing.TotalItems)
	return briefing, nil
}

// composeSection runs def's type and tag queries, unions the results, and
// applies filtering, ordering, and the per-section cap.
func (s *Service) composeSection(ctx context.Context, def sectionDef, after time.Time) ([]Item, error) {
	limit := s.cfg.MaxItemsPerSection * 3

	records, err := s.provider.SearchByType(ctx, def.types, SearchOptions{
		Limit:         limit,
		MinImportance: def.minImportance,
		After:         after,
	})
	if err != nil {
		return nil, err
	}
	if len(def.tags) > 0 {
		tagged, err := s.provider.SearchByTags(ctx, def.tags, SearchOptions{Limit: limit, After: after})
		if err != nil {
			return nil, err
		}
		records = append(records, tagged...)
	}

	seen := make(map[string]bool, len(records))
	var unique []memory.MemoryRecord
	for _, rec := range records {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		if !s.matchesTopics(rec.Tags) {
			continue
		}
		unique = append(unique, rec)
	}

	sort.SliceStable(unique, func(i, j int) bool { return unique[i].Importance > unique[j].Importance })
	if len(unique) > s.cfg.MaxItemsPerSection {
		unique = unique[:s.cfg.MaxItemsPerSection]
	}

	items := make([]Item, len(unique))
	for i, rec := range unique {
		items[i] = Item{
			ID:         rec.ID,
			Content:    rec.Content,
			Type:       rec.Type,
			Importance: rec.Importance,
			Source:     string(rec.Provenance.SourceType),
			Tags:       rec.Tags,
		}
	}
	return items, nil
}

// matchesTopics applies the case-insensitive tag allow-list. An empty filter
// list matches everything.
func (s *Service) matchesTopics(tags []string) bool {
	if len(s.cfg.TopicFilters) == 0 {
		return true
	}
	for _, filter := range s.cfg.TopicFilters {
		for _, tag := range tags {
			if strings.EqualFold(filter, tag) {
				return true
			}
		}
	}
	return false
}

// healthSection reports long-untouched records. Returns nil when there is
// nothing to report or no lister is wired. Health is advisory: a listing
// failure logs and drops the section rather than failing the briefing.
func (s *Service) healthSection(ctx context.Context, now time.Time) *Section {
	if s.lister == nil {
		return nil
	}
	records, err := s.lister.ListLtmRecords(ctx, true)
	if err != nil {
		slog.Warn("briefing: health listing failed", "err", err)
		return nil
	}

	var stale []memory.MemoryRecord
	for _, rec := range records {
		if now.Sub(rec.AccessedAt) > staleAfter {
			stale = append(stale, rec)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	oldest := stale[0]
	for _, rec := range stale[1:] {
		if rec.AccessedAt.Before(oldest.AccessedAt) {
			oldest = rec
		}
	}

	content := fmt.Sprintf("%d memories have not been touched in over 90 days. Oldest: %q",
		len(stale), stringutils.Truncate(oldest.Content, 60))
	return &Section{
		SectionType: "health_check",
		Title:       "Memory Health",
		Items: []Item{{
			ID:         "health-" + now.Format("2006-01-02"),
			Content:    content,
			Type:       memory.TypeFact,
			Importance: 0.5,
			Source:     "health_check",
		}},
		ItemCount: 1,
	}
}
