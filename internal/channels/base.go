// Package channels provides the delivery channel implementations that carry
// briefing messages to the user.
package channels

import (
	"context"
	"strings"

	"github.com/reins-ai/reins/internal/bus"
)

// Channel is one delivery destination. Start blocks until ctx is cancelled;
// Send pushes a single message out.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Send(ctx context.Context, msg bus.DeliveryMessage) error
}

// Base holds common state shared by all channels.
type Base struct {
	channelName bus.Channel
}

// NewBase creates a Base with the given channel name.
func NewBase(name bus.Channel) Base {
	return Base{channelName: name}
}

// splitMessage splits content into chunks that fit within maxLen,
// preferring newline breaks, then space breaks, then hard cut.
func splitMessage(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}
	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}
		cut := content[:maxLen]
		pos := strings.LastIndex(cut, "\n")
		if pos <= 0 {
			pos = strings.LastIndex(cut, " ")
		}
		if pos <= 0 {
			pos = maxLen
		}
		chunks = append(chunks, content[:pos])
		content = strings.TrimLeft(content[pos:], " \t\n")
	}
	return chunks
}
