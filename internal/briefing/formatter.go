package briefing

import "strings"

// DisplayMessage is one formatted briefing message ready for a delivery
// channel.
type DisplayMessage struct {
	SectionType string `json:"sectionType"`
	Text        string `json:"text"`
}

// emptyBriefingText is delivered when there is nothing to report.
const emptyBriefingText = "Good morning! Nothing to report today."

// sectionEmoji maps known section types to their header emoji.
var sectionEmoji = map[string]string{
	"open_threads":     "📋",
	"high_importance":  "⚠️",
	"recent_decisions": "✅",
	"upcoming":         "📅",
}

// Format renders a briefing into one message per non-empty section. A
// briefing with no items yields the single empty-state message.
func Format(b Briefing) []DisplayMessage {
	var out []DisplayMessage
	if b.TotalItems > 0 {
		for _, section := range b.Sections {
			if len(section.Items) == 0 {
				continue
			}
			out = append(out, DisplayMessage{
				SectionType: section.SectionType,
				Text:        formatSection(section),
			})
		}
	}
	if len(out) == 0 {
		return []DisplayMessage{{SectionType: "empty", Text: emptyBriefingText}}
	}
	return out
}

func formatSection(section Section) string {
	emoji, ok := sectionEmoji[section.SectionType]
	if !ok {
		emoji = "📌"
	}

	var sb strings.Builder
	sb.WriteString(emoji)
	sb.WriteString(" ")
	sb.WriteString(section.Title)
	sb.WriteString("\n")
	for _, item := range section.Items {
		sb.WriteString("\n• ")
		sb.WriteString(item.Content)
		if item.Source != "" {
			sb.WriteString(" (")
			sb.WriteString(item.Source)
			sb.WriteString(")")
		}
	}
	return sb.String()
}
