package channels

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/reins-ai/reins/internal/bus"
	"github.com/reins-ai/reins/internal/config"
)

// TelegramChannel delivers briefings through a Telegram bot.
type TelegramChannel struct {
	Base
	cfg *config.TelegramConfig
	bot *tgbotapi.BotAPI
}

// NewTelegramChannel creates a TelegramChannel.
func NewTelegramChannel(cfg *config.TelegramConfig) *TelegramChannel {
	return &TelegramChannel{
		Base: NewBase(bus.ChannelTelegram),
		cfg:  cfg,
	}
}

func (t *TelegramChannel) Name() string { return string(bus.ChannelTelegram) }

// Start connects the bot and holds the connection until ctx is cancelled.
// Delivery is push-only; no update polling.
func (t *TelegramChannel) Start(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token not configured")
	}
	bot, err := tgbotapi.NewBotAPI(t.cfg.Token)
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	t.bot = bot
	slog.Info("telegram: connected", "username", bot.Self.UserName)

	<-ctx.Done()
	return ctx.Err()
}

func (t *TelegramChannel) Send(_ context.Context, msg bus.DeliveryMessage) error {
	if t.bot == nil {
		return fmt.Errorf("telegram: bot not running")
	}
	chatID, err := parseChatID(msg.ChatID())
	if err != nil {
		return err
	}
	if msg.Content() == "" {
		return nil
	}

	for _, chunk := range splitMessage(msg.Content(), 4000) {
		m := tgbotapi.NewMessage(chatID, telegramHTML(chunk))
		m.ParseMode = "HTML"
		if _, err := t.bot.Send(m); err != nil {
			// Fallback to plain text.
			m2 := tgbotapi.NewMessage(chatID, chunk)
			if _, err := t.bot.Send(m2); err != nil {
				return fmt.Errorf("telegram: send to %d: %w", chatID, err)
			}
		}
	}
	return nil
}

func parseChatID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid chat_id: %s", s)
	}
	return id, nil
}

var (
	reTGInlineCode = regexp.MustCompile("`([^`]+)`")
	reTGBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reTGBullet     = regexp.MustCompile(`(?m)^[-*]\s+`)
)

// telegramHTML converts the light markdown that appears in memory content
// (bold, inline code, list markers) into Telegram HTML.
func telegramHTML(text string) string {
	text = htmlEscape(text)
	text = reTGInlineCode.ReplaceAllString(text, "<code>$1</code>")
	text = reTGBold.ReplaceAllString(text, "<b>$1</b>")
	text = reTGBullet.ReplaceAllString(text, "• ")
	return text
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
