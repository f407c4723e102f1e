package bus

// DeliveryMessage is one briefing message addressed to a channel.
type DeliveryMessage struct {
	channel     Channel        // destination channel name
	chatID      string         // destination chat / channel / DM identifier
	content     string         // text to send
	sectionType string         // originating briefing section, for channel formatting
	metadata    map[string]any // channel-specific hints (thread_ts, parse_mode, …)
}

func (m DeliveryMessage) Channel() Channel         { return m.channel }
func (m DeliveryMessage) ChatID() string           { return m.chatID }
func (m DeliveryMessage) Content() string          { return m.content }
func (m DeliveryMessage) SectionType() string      { return m.sectionType }
func (m DeliveryMessage) Metadata() map[string]any { return m.metadata }

type DeliveryMessageBuilder struct {
	channel     Channel
	chatID      string
	content     string
	sectionType string
	metadata    map[string]any
}

func NewDeliveryMessageBuilder(channel Channel, chatID, content string) *DeliveryMessageBuilder {
	return &DeliveryMessageBuilder{
		channel: channel,
		chatID:  chatID,
		content: content,
	}
}

func (b *DeliveryMessageBuilder) SectionType(s string) *DeliveryMessageBuilder {
	b.sectionType = s
	return b
}

func (b *DeliveryMessageBuilder) Metadata(md map[string]any) *DeliveryMessageBuilder {
	b.metadata = md
	return b
}

func (b *DeliveryMessageBuilder) Build() DeliveryMessage {
	return DeliveryMessage{
		channel:     b.channel,
		chatID:      b.chatID,
		content:     b.content,
		sectionType: b.sectionType,
		metadata:    b.metadata,
	}
}
