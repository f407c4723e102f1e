package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reins-ai/reins/internal/schema"
)

// SessionSaver persists a session after truncation.
type SessionSaver interface {
	Save(s *Session) error
}

// Manager drives a compaction: validate, preserve memory via the hook, then
// truncate the session. The hook runs before any message is dropped; a hook
// failure aborts the compaction with the history intact.
type Manager struct {
	hook  *PreservationHook
	saver SessionSaver

	now func() time.Time
}

// NewManager builds a compaction Manager.
func NewManager(hook *PreservationHook, saver SessionSaver) *Manager {
	return &Manager{hook: hook, saver: saver, now: time.Now}
}

// Compact truncates session at truncationPoint after preserving memory from
// the removed messages.
func (m *Manager) Compact(ctx context.Context, session *Session, reason string, truncationPoint int) (PreservationResult, error) {
	if session == nil || session.Key == "" {
		return PreservationResult{}, schema.NewError(schema.CodeCompactionInvalidContext, "compaction requires a keyed session")
	}
	if truncationPoint < 0 || truncationPoint > session.Len() {
		return PreservationResult{}, schema.NewError(schema.CodeCompactionInvalidContext,
			fmt.Sprintf("truncation point %d out of range [0, %d]", truncationPoint, session.Len()))
	}

	doomed := session.MessagesBefore(truncationPoint)
	cctx := CompactionContext{
		ConversationID:   session.Key,
		SessionID:        session.ID,
		CompactionReason: reason,
		Timestamp:        m.now(),
		TruncationPoint:  truncationPoint,
	}

	res, err := m.hook.Preserve(ctx, cctx, doomed)
	if err != nil {
		return PreservationResult{}, schema.WrapError(schema.CodeCompactionHookFailed, "preservation hook", err)
	}

	session.Truncate(truncationPoint)
	if m.saver != nil {
		if err := m.saver.Save(session); err != nil {
			slog.Warn("compaction: failed to persist truncated session", "key", session.Key, "err", err)
		}
	}

	slog.Info("compaction: done", "key", session.Key, "reason", reason,
		"truncated", len(doomed), "persisted", res.ItemsPersisted)
	return res, nil
}
