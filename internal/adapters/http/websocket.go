package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/vastmap/internal/adapters/nats"
	"github.com/samirrijal/vastmap/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "vehicles" | "weather" (default: vehicles)
}

// wsFallbackInterval paces the snapshot push when no broker is
// available and the handler reads straight from the local store.
const wsFallbackInterval = 2 * time.Second

// WebSocketHandler returns a handler that upgrades to WebSocket and
// pushes live snapshots to connected clients. With NATS available it
// relays the broadcast subjects; without it, it polls the local
// snapshot store. Every client gets the current snapshot immediately on
// connect, then one message per refresh.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Initial frame so the map renders without waiting for the
		// next refresh cycle.
		_ = writeJSON(deps.Snapshots.Read())

		done := make(chan struct{})
		subs := make(map[string]*nats.Subscription)

		subscribe := func(subject string) error {
			if deps.NATS == nil {
				return nil
			}
			if _, exists := subs[subject]; exists {
				return nil
			}
			sub, err := deps.NATS.Subscribe(subject, func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				return err
			}
			subs[subject] = sub
			return nil
		}

		if deps.NATS != nil && deps.NATS.IsConnected() {
			if err := subscribe(natsadapter.SubjectSnapshot); err != nil {
				slog.Warn("ws snapshot subscribe failed", "error", err)
				return
			}
		} else {
			// No broker: push from the local store on a fixed cadence.
			go func() {
				ticker := time.NewTicker(wsFallbackInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if writeJSON(deps.Snapshots.Read()) != nil {
							return
						}
					case <-done:
						return
					}
				}
			}()
		}

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Read client messages for subscribe/unsubscribe
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			channel := m.Channel
			if channel == "" {
				channel = "vehicles"
			}

			var subject string
			switch channel {
			case "vehicles":
				subject = natsadapter.SubjectSnapshot
			case "weather":
				subject = natsadapter.SubjectWeather
			default:
				_ = writeJSON(map[string]string{"error": "unknown channel: " + channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if deps.NATS == nil {
					_ = writeJSON(map[string]string{"error": "live channels unavailable"})
					continue
				}
				if err := subscribe(subject); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "channel": channel})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "channel": channel})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + channel})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
