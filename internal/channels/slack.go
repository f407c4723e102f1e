package channels

import (
	"context"
	"fmt"
	"log/slog"

	slackgo "github.com/slack-go/slack"

	"github.com/reins-ai/reins/internal/bus"
	"github.com/reins-ai/reins/internal/config"
)

// SlackChannel delivers briefings through the Slack Web API.
type SlackChannel struct {
	Base
	cfg       *config.SlackConfig
	webClient *slackgo.Client
}

func NewSlackChannel(cfg *config.SlackConfig) *SlackChannel {
	return &SlackChannel{
		Base: NewBase(bus.ChannelSlack),
		cfg:  cfg,
	}
}

func (s *SlackChannel) Name() string { return string(bus.ChannelSlack) }

// Start authenticates the bot and holds until ctx is cancelled.
func (s *SlackChannel) Start(ctx context.Context) error {
	if s.cfg.BotToken == "" {
		return fmt.Errorf("slack: bot token not configured")
	}
	s.webClient = slackgo.New(s.cfg.BotToken)

	if resp, err := s.webClient.AuthTestContext(ctx); err == nil {
		slog.Info("slack: connected", "bot_user_id", resp.UserID)
	} else {
		slog.Warn("slack: auth test failed", "err", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (s *SlackChannel) Send(ctx context.Context, msg bus.DeliveryMessage) error {
	if s.webClient == nil {
		return fmt.Errorf("slack: client not running")
	}
	for _, chunk := range splitMessage(msg.Content(), 4000) {
		_, _, err := s.webClient.PostMessageContext(ctx, msg.ChatID(),
			slackgo.MsgOptionText(chunk, false))
		if err != nil {
			return fmt.Errorf("slack: post to %s: %w", msg.ChatID(), err)
		}
	}
	return nil
}
