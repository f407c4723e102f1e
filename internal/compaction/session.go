package compaction

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reins-ai/reins/internal/schema"
)

// Session is one conversation's message history. All methods are safe for
// concurrent use.
type Session struct {
	ID        string
	Key       string // conversation key, e.g. "telegram:12345"
	CreatedAt time.Time

	mu       sync.Mutex
	messages []schema.Message
}

// Append adds a message to the history.
func (s *Session) Append(msg schema.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Messages returns a copy of the full history.
func (s *Session) Messages() []schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.Message(nil), s.messages...)
}

// Len returns the current message count.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// MessagesBefore returns a copy of the messages that a truncation at point
// would remove.
func (s *Session) MessagesBefore(point int) []schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if point > len(s.messages) {
		point = len(s.messages)
	}
	return append([]schema.Message(nil), s.messages[:point]...)
}

// Truncate drops the first point messages.
func (s *Session) Truncate(point int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if point > len(s.messages) {
		point = len(s.messages)
	}
	s.messages = append([]schema.Message(nil), s.messages[point:]...)
}

// sessionMeta is the first line of a session file.
type sessionMeta struct {
	Type      string `json:"_type"`
	ID        string `json:"id"`
	Key       string `json:"key"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// SessionManager loads and persists sessions as JSONL files under
// <workspace>/sessions/: one metadata line followed by one message per line.
type SessionManager struct {
	dir   string
	cache sync.Map // key → *Session
}

// NewSessionManager creates a SessionManager rooted at workspace.
func NewSessionManager(workspace string) (*SessionManager, error) {
	dir := filepath.Join(workspace, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &SessionManager{dir: dir}, nil
}

// GetOrCreate returns the cached session for key, loading from disk if
// needed, or creating an empty new one.
func (m *SessionManager) GetOrCreate(key string) *Session {
	if v, ok := m.cache.Load(key); ok {
		return v.(*Session)
	}
	s := m.load(key)
	if s == nil {
		s = &Session{ID: uuid.NewString(), Key: key, CreatedAt: time.Now()}
	}
	actual, _ := m.cache.LoadOrStore(key, s)
	return actual.(*Session)
}

// Save writes the session to disk.
func (m *SessionManager) Save(s *Session) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	meta := sessionMeta{
		Type:      "metadata",
		ID:        s.ID,
		Key:       s.Key,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}
	for _, msg := range s.Messages() {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("encode session message: %w", err)
		}
	}

	path := m.sessionPath(s.Key)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	m.cache.Store(s.Key, s)
	return nil
}

func (m *SessionManager) sessionPath(key string) string {
	name := safeFilename(strings.ReplaceAll(key, ":", "_"))
	return filepath.Join(m.dir, name+".jsonl")
}

// safeFilename replaces filesystem-unsafe characters with underscores.
func safeFilename(name string) string {
	const unsafe = `<>:"/\|?*`
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(unsafe, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// load reads a session from disk, skipping malformed lines.
func (m *SessionManager) load(key string) *Session {
	f, err := os.Open(m.sessionPath(key))
	if err != nil {
		return nil
	}
	defer f.Close()

	s := &Session{Key: key}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var probe struct {
			Type string `json:"_type"`
		}
		if json.Unmarshal(line, &probe) == nil && probe.Type == "metadata" {
			var meta sessionMeta
			if json.Unmarshal(line, &meta) == nil {
				s.ID = meta.ID
				if t, err := time.Parse(time.RFC3339, meta.CreatedAt); err == nil {
					s.CreatedAt = t
				}
			}
			continue
		}

		var msg schema.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			slog.Warn("session: skipping malformed line", "key", key, "err", err)
			continue
		}
		s.messages = append(s.messages, msg)
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("session: read failed", "key", key, "err", err)
		return nil
	}

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return s
}
