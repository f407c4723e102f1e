// Package compaction preserves high-value memory before conversation
// history is truncated. The hook extracts items from the doomed messages,
// filters them to durable categories, and persists them as short-term
// memory for the consolidation pipeline to pick up.
package compaction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reins-ai/reins/internal/memory"
	"github.com/reins-ai/reins/internal/schema"
	"github.com/reins-ai/reins/internal/shared/stringutils"
)

// ExtractionContext identifies the conversation slice being extracted.
type ExtractionContext struct {
	SessionID      string
	ConversationID string
	Timestamp      time.Time
}

// ExtractedItem is one memory item pulled from a conversation.
type ExtractedItem struct {
	Type       memory.MemoryType `json:"type"`
	Content    string            `json:"content"`
	Confidence float64           `json:"confidence"`
	Entities   []string          `json:"entities,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
}

// ExtractionResult carries the extracted items plus their context, so
// persistence can attach provenance.
type ExtractionResult struct {
	Items   []ExtractedItem
	Context ExtractionContext
}

// SessionExtractor is the capability the preservation hook depends on.
type SessionExtractor interface {
	ExtractFromSession(ctx context.Context, messages []schema.Message, ectx ExtractionContext) (ExtractionResult, error)
	PersistExtractions(ctx context.Context, result ExtractionResult) ([]string, error)
}

// StmWriter persists records into short-term memory.
type StmWriter interface {
	PersistStm(ctx context.Context, records []memory.MemoryRecord) error
}

// LLMExtractor implements SessionExtractor with a completion provider.
// Unusable provider output degrades to an empty result rather than failing
// the compaction that triggered it.
type LLMExtractor struct {
	provider schema.CompletionProvider
	prompts  *memory.PromptSet
	writer   StmWriter

	now        func() time.Time
	generateID func() string
}

// NewLLMExtractor builds an extractor over provider, persisting into writer.
func NewLLMExtractor(provider schema.CompletionProvider, prompts *memory.PromptSet, writer StmWriter) *LLMExtractor {
	if prompts == nil {
		prompts = memory.NewPromptSet("")
	}
	return &LLMExtractor{
		provider:   provider,
		prompts:    prompts,
		writer:     writer,
		now:        time.Now,
		generateID: uuid.NewString,
	}
}

// ExtractFromSession runs the extraction prompt over messages. An empty
// message slice yields an empty result without a provider call.
func (e *LLMExtractor) ExtractFromSession(ctx context.Context, messages []schema.Message, ectx ExtractionContext) (ExtractionResult, error) {
	if ectx.SessionID == "" || ectx.ConversationID == "" {
		return ExtractionResult{}, schema.NewError(schema.CodeExtractorInvalidContext, "extraction requires sessionId and conversationId")
	}
	res := ExtractionResult{Context: ectx}
	if len(messages) == 0 {
		return res, nil
	}

	var lines []string
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			msg.Timestamp.UTC().Format("2006-01-02T15:04"), msg.Role,
			stringutils.CollapseWhitespace(msg.Content)))
	}
	if len(lines) == 0 {
		return res, nil
	}

	prompt := strings.Replace(e.prompts.Extraction(), "{{messages}}", strings.Join(lines, "\n"), 1)
	raw, err := e.provider.Complete(ctx, prompt)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("extraction completion: %w", err)
	}

	res.Items = parseExtractionOutput(raw)
	return res, nil
}

// PersistExtractions writes items into short-term memory and returns the new
// record ids, in item order.
func (e *LLMExtractor) PersistExtractions(ctx context.Context, result ExtractionResult) ([]string, error) {
	if len(result.Items) == 0 {
		return nil, nil
	}

	now := e.now()
	records := make([]memory.MemoryRecord, 0, len(result.Items))
	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		id := e.generateID()
		records = append(records, memory.MemoryRecord{
			ID:         id,
			Content:    strings.TrimSpace(item.Content),
			Type:       item.Type,
			Layer:      memory.LayerSTM,
			Tags:       memory.DedupStrings(item.Tags),
			Entities:   memory.DedupStrings(item.Entities),
			Importance: item.Confidence,
			Confidence: item.Confidence,
			Provenance: memory.Provenance{
				SourceType:     memory.SourceConversation,
				ConversationID: result.Context.ConversationID,
			},
			CreatedAt:  now,
			UpdatedAt:  now,
			AccessedAt: now,
		})
		ids = append(ids, id)
	}

	if err := e.writer.PersistStm(ctx, records); err != nil {
		return nil, schema.WrapError(schema.CodeExtractorPersistFailed, "persisting extracted records", err)
	}
	return ids, nil
}

// parseExtractionOutput pulls items out of raw provider output. Anything
// unparseable or invalid is dropped with a log line; extraction runs in the
// compaction path and must not fail it over sloppy output.
func parseExtractionOutput(raw string) []ExtractedItem {
	payload, err := memory.ExtractJSON(raw)
	if err != nil {
		slog.Warn("compaction: no JSON in extraction output")
		return nil
	}

	var items []json.RawMessage
	var envelope struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Items != nil {
		items = envelope.Items
	} else if err := json.Unmarshal(payload, &items); err != nil {
		slog.Warn("compaction: extraction payload is neither an items object nor an array")
		return nil
	}

	var out []ExtractedItem
	for _, itemRaw := range items {
		var item ExtractedItem
		if err := json.Unmarshal(itemRaw, &item); err != nil {
			continue
		}
		item.Content = strings.TrimSpace(item.Content)
		if item.Content == "" || !memory.ValidType(item.Type) {
			continue
		}
		if item.Confidence < 0 || item.Confidence > 1 {
			continue
		}
		out = append(out, item)
	}
	return out
}
