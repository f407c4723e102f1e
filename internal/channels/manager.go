package channels

import (
	"context"
	"log/slog"

	"github.com/reins-ai/reins/internal/briefing"
	"github.com/reins-ai/reins/internal/bus"
	"github.com/reins-ai/reins/internal/config"
)

// Manager owns all enabled channels and routes delivery messages to them.
type Manager struct {
	channels    map[string]Channel
	deliveryBus *bus.DeliveryBus
	targets     []config.DeliveryTarget
}

// NewManager creates a Manager and initialises all enabled channels.
// The CLIChannel is always registered so foreground runs show briefings
// with no external channel configured.
func NewManager(cfg *config.Config, deliveryBus *bus.DeliveryBus) *Manager {
	m := &Manager{
		channels:    make(map[string]Channel),
		deliveryBus: deliveryBus,
		targets:     cfg.Briefing.DeliverTo,
	}

	cli := NewCLIChannel()
	m.channels[cli.Name()] = cli
	slog.Info("channel enabled", "name", cli.Name())

	if cfg.Channels.Telegram.Enabled {
		ch := NewTelegramChannel(&cfg.Channels.Telegram)
		m.channels[ch.Name()] = ch
		slog.Info("channel enabled", "name", ch.Name())
	}
	if cfg.Channels.Slack.Enabled {
		ch := NewSlackChannel(&cfg.Channels.Slack)
		m.channels[ch.Name()] = ch
		slog.Info("channel enabled", "name", ch.Name())
	}
	if cfg.Channels.Bridge.Enabled {
		ch := NewBridgeChannel(&cfg.Channels.Bridge)
		m.channels[ch.Name()] = ch
		slog.Info("channel enabled", "name", ch.Name())
	}

	return m
}

// EnabledChannels returns the names of all enabled channels.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, n)
	}
	return names
}

// DeliverBriefing fans formatted briefing messages out to every configured
// delivery target. With no targets configured the briefing goes to the CLI
// channel. Satisfies the briefing job's delivery capability.
func (m *Manager) DeliverBriefing(_ context.Context, messages []briefing.DisplayMessage) error {
	targets := m.targets
	if len(targets) == 0 {
		targets = []config.DeliveryTarget{{Channel: string(bus.ChannelCLI)}}
	}
	for _, target := range targets {
		if _, ok := m.channels[target.Channel]; !ok {
			slog.Warn("briefing target channel not enabled",
				"destination", bus.RoutingKey(bus.Channel(target.Channel), target.ChatID))
			continue
		}
		for _, msg := range messages {
			dm := bus.NewDeliveryMessageBuilder(bus.Channel(target.Channel), target.ChatID, msg.Text).
				SectionType(msg.SectionType).
				Build()
			m.deliveryBus.Publish(dm)
		}
	}
	return nil
}

// StartAll starts all channels concurrently and dispatches delivery messages.
// Blocks until ctx is cancelled.
func (m *Manager) StartAll(ctx context.Context) error {
	go m.dispatchDeliveries(ctx)

	for name, ch := range m.channels {
		go func(n string, c Channel) {
			slog.Info("starting channel", "name", n)
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("channel exited with error", "name", n, "err", err)
			}
		}(name, ch)
	}

	<-ctx.Done()
	return ctx.Err()
}

// dispatchDeliveries reads from the delivery bus and routes each message to
// the destination channel's Send method.
func (m *Manager) dispatchDeliveries(ctx context.Context) {
	for {
		select {
		case msg := <-m.deliveryBus.Subscribe():
			ch, ok := m.channels[string(msg.Channel())]
			if !ok {
				slog.Debug("unknown channel for delivery", "channel", msg.Channel())
				continue
			}
			if err := ch.Send(ctx, msg); err != nil {
				slog.Error("send error", "destination", bus.RoutingKey(msg.Channel(), msg.ChatID()), "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
