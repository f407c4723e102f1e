package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reins-ai/reins/internal/bus"
	"github.com/reins-ai/reins/internal/config"
)

// BridgeChannel connects to a local WebSocket bridge process and pushes
// briefing messages over it. The bridge owns whatever end transport sits
// behind it (desktop notifier, web UI, another messenger).
type BridgeChannel struct {
	Base
	cfg *config.BridgeConfig

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func NewBridgeChannel(cfg *config.BridgeConfig) *BridgeChannel {
	return &BridgeChannel{
		Base: NewBase(bus.ChannelBridge),
		cfg:  cfg,
	}
}

func (b *BridgeChannel) Name() string { return string(bus.ChannelBridge) }

// Start maintains the bridge connection, reconnecting every 5s on loss.
func (b *BridgeChannel) Start(ctx context.Context) error {
	url := b.cfg.URL
	if url == "" {
		url = "ws://localhost:3001"
	}
	slog.Info("bridge: connecting", "url", url)

	for {
		if err := b.connectOnce(ctx, url); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("bridge: connection lost, reconnecting in 5s", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (b *BridgeChannel) connectOnce(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	b.setConn(conn, true)
	defer func() {
		conn.Close()
		b.setConn(nil, false)
	}()

	slog.Info("bridge: connected")

	if b.cfg.Token != "" {
		auth, _ := json.Marshal(map[string]string{"type": "auth", "token": b.cfg.Token})
		_ = conn.WriteMessage(websocket.TextMessage, auth)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		b.handleBridgeMessage(raw)
	}
}

func (b *BridgeChannel) setConn(conn *websocket.Conn, connected bool) {
	b.mu.Lock()
	b.conn = conn
	b.connected = connected
	b.mu.Unlock()
}

func (b *BridgeChannel) handleBridgeMessage(raw []byte) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}
	msgType, _ := data["type"].(string)
	switch msgType {
	case "status":
		status, _ := data["status"].(string)
		slog.Info("bridge: status", "status", status)
		b.mu.Lock()
		b.connected = status == "connected" || status == ""
		b.mu.Unlock()
	case "error":
		slog.Error("bridge: error", "error", data["error"])
	}
}

func (b *BridgeChannel) Send(_ context.Context, msg bus.DeliveryMessage) error {
	b.mu.Lock()
	conn, connected := b.conn, b.connected
	b.mu.Unlock()
	if conn == nil || !connected {
		return fmt.Errorf("bridge: not connected")
	}
	payload, _ := json.Marshal(map[string]string{
		"type":        "briefing",
		"to":          msg.ChatID(),
		"sectionType": msg.SectionType(),
		"text":        msg.Content(),
	})
	return conn.WriteMessage(websocket.TextMessage, payload)
}
