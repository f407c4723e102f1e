package channels

import (
	"context"
	"fmt"

	"github.com/reins-ai/reins/internal/bus"
)

// CLIChannel prints delivered briefings to stdout. It is always registered
// so a daemon run in the foreground shows briefings even with no external
// channel configured.
type CLIChannel struct {
	Base
}

// NewCLIChannel creates a CLIChannel.
func NewCLIChannel() *CLIChannel {
	return &CLIChannel{Base: NewBase(bus.ChannelCLI)}
}

func (c *CLIChannel) Name() string { return string(bus.ChannelCLI) }

// Start blocks until ctx is cancelled; the CLI channel has no connection to
// maintain.
func (c *CLIChannel) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Send prints the message to stdout.
func (c *CLIChannel) Send(_ context.Context, msg bus.DeliveryMessage) error {
	fmt.Println(msg.Content())
	return nil
}
