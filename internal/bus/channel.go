// Package bus defines the message types that flow from the briefing jobs to
// the delivery channels.
package bus

type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelSlack    Channel = "slack"
	ChannelBridge   Channel = "bridge"
	ChannelCLI      Channel = "cli"
)

// RoutingKey returns the "channel:chatId" key identifying a delivery
// destination in logs.
func RoutingKey(channel Channel, chatID string) string {
	if chatID == "" {
		return string(channel)
	}
	return string(channel) + ":" + chatID
}
