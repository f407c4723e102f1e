package compaction

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/reins-ai/reins/internal/memory"
	"github.com/reins-ai/reins/internal/schema"
)

// CompactionContext describes one impending truncation.
type CompactionContext struct {
	ConversationID   string
	SessionID        string
	CompactionReason string
	Timestamp        time.Time
	TruncationPoint  int
}

// PreservationResult summarises one hook invocation.
type PreservationResult struct {
	PersistedIDs      []string
	ItemsExtracted    int
	ItemsPersisted    int
	SkippedDuplicates int
}

// preservedTypes are the categories worth keeping across a truncation.
var preservedTypes = map[memory.MemoryType]bool{
	memory.TypeDecision:   true,
	memory.TypePreference: true,
	memory.TypeFact:       true,
}

// PreservationHook extracts durable memory from messages about to be
// truncated. Each hook instance tracks the truncations it has already
// handled, so a retried compaction never persists the same slice twice.
type PreservationHook struct {
	extractor SessionExtractor

	mu   sync.Mutex
	seen map[string]bool
}

// NewPreservationHook builds a hook over extractor.
func NewPreservationHook(extractor SessionExtractor) *PreservationHook {
	return &PreservationHook{extractor: extractor, seen: make(map[string]bool)}
}

// Preserve extracts and persists memory items for one truncation. A repeat
// invocation for the same (conversation, truncation point, message set) is a
// successful no-op reported via SkippedDuplicates. An empty message slice is
// also a successful no-op, and still claims the idempotency key.
func (h *PreservationHook) Preserve(ctx context.Context, cctx CompactionContext, messages []schema.Message) (PreservationResult, error) {
	key := idempotencyKey(cctx, messages)

	h.mu.Lock()
	if h.seen[key] {
		h.mu.Unlock()
		slog.Debug("compaction: duplicate preservation call", "conversation", cctx.ConversationID, "truncationPoint", cctx.TruncationPoint)
		return PreservationResult{SkippedDuplicates: 1}, nil
	}
	h.mu.Unlock()

	if len(messages) == 0 {
		h.claim(key)
		return PreservationResult{}, nil
	}

	extracted, err := h.extractor.ExtractFromSession(ctx, messages, ExtractionContext{
		SessionID:      cctx.SessionID,
		ConversationID: cctx.ConversationID,
		Timestamp:      cctx.Timestamp,
	})
	if err != nil {
		return PreservationResult{}, schema.WrapError(schema.CodePreservationExtractFailed, "extracting from doomed messages", err)
	}

	res := PreservationResult{ItemsExtracted: len(extracted.Items)}

	var kept []ExtractedItem
	for _, item := range extracted.Items {
		if !preservedTypes[item.Type] {
			continue
		}
		item.Tags = append(item.Tags,
			"source:compaction",
			"compaction-reason:"+cctx.CompactionReason,
			"compaction-truncation-point:"+strconv.Itoa(cctx.TruncationPoint),
		)
		kept = append(kept, item)
	}

	if len(kept) > 0 {
		ids, err := h.extractor.PersistExtractions(ctx, ExtractionResult{Items: kept, Context: extracted.Context})
		if err != nil {
			return PreservationResult{}, schema.WrapError(schema.CodePreservationPersistFailed, "persisting preserved items", err)
		}
		res.PersistedIDs = ids
		res.ItemsPersisted = len(ids)
	}

	h.claim(key)
	slog.Info("compaction: preserved memory", "conversation", cctx.ConversationID,
		"extracted", res.ItemsExtracted, "persisted", res.ItemsPersisted)
	return res, nil
}

func (h *PreservationHook) claim(key string) {
	h.mu.Lock()
	h.seen[key] = true
	h.mu.Unlock()
}

// idempotencyKey is conversationId : truncationPoint : sha256 of the sorted
// message ids. Message order does not matter; the set does.
func idempotencyKey(cctx CompactionContext, messages []schema.Message) string {
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return fmt.Sprintf("%s:%d:%x", cctx.ConversationID, cctx.TruncationPoint, sum)
}
