package store

import (
	"context"
	"sort"
	"strings"

	"github.com/reins-ai/reins/internal/briefing"
	"github.com/reins-ai/reins/internal/memory"
)

// SearchByType returns live long-term records matching any of the given
// types, newest-created first, honoring the importance floor and lookback
// cutoff. Implements the briefing service's retrieval provider.
func (f *FileStore) SearchByType(ctx context.Context, types []memory.MemoryType, opts briefing.SearchOptions) ([]memory.MemoryRecord, error) {
	wanted := make(map[memory.MemoryType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	return f.search(ctx, opts, func(rec memory.MemoryRecord) bool {
		if !wanted[rec.Type] {
			return false
		}
		return opts.MinImportance <= 0 || rec.Importance >= opts.MinImportance
	})
}

// SearchByTags returns live long-term records carrying any of the given tags
// (case-insensitive), honoring the lookback cutoff.
func (f *FileStore) SearchByTags(ctx context.Context, tags []string, opts briefing.SearchOptions) ([]memory.MemoryRecord, error) {
	return f.search(ctx, opts, func(rec memory.MemoryRecord) bool {
		for _, want := range tags {
			for _, tag := range rec.Tags {
				if strings.EqualFold(want, tag) {
					return true
				}
			}
		}
		return false
	})
}

func (f *FileStore) search(ctx context.Context, opts briefing.SearchOptions, match func(memory.MemoryRecord) bool) ([]memory.MemoryRecord, error) {
	records, err := f.ListLtmRecords(ctx, true)
	if err != nil {
		return nil, err
	}
	var out []memory.MemoryRecord
	for _, rec := range records {
		if !opts.After.IsZero() && rec.UpdatedAt.Before(opts.After) {
			continue
		}
		if !match(rec) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
