package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/enviro-meter/firewatch/internal/adapters/nats"
	"github.com/enviro-meter/firewatch/internal/pkg/metrics"
)

// wsMessage is sent by clients to change what the connection receives.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "all" | "wildfire" | "clear" (default: all)
}

// subjectForChannel maps a client-facing channel name onto the NATS subject
// it relays.
func subjectForChannel(channel string) (string, bool) {
	switch channel {
	case "", "all":
		return natsadapter.SubjectDetectionsAll, true
	case "wildfire":
		return natsadapter.SubjectWildfireDetected, true
	case "clear":
		return natsadapter.SubjectAllClear, true
	default:
		return "", false
	}
}

// WebSocketHandler relays detection events from NATS to the connected
// client. A fresh connection receives every detection; clients narrow or
// widen the feed with {"action":"subscribe","channel":"wildfire"} messages.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remote := c.RemoteAddr().String()
		slog.Info("detections ws connected", "remote", remote)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		// The NATS callbacks and the ping loop both write to the socket.
		var mu sync.Mutex
		send := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		relay := func(msg *nats.Msg) {
			_ = send(json.RawMessage(msg.Data))
		}

		subs := make(map[string]*nats.Subscription)
		all, _ := subjectForChannel("all")
		sub, err := nc.Subscribe(all, relay)
		if err != nil {
			slog.Error("detections ws default subscribe failed", "error", err)
			return
		}
		subs[all] = sub
		_ = send(map[string]string{"status": "subscribed", "subject": all})

		// Keep-alive ping
		done := make(chan struct{})
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

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = send(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, ok := subjectForChannel(m.Channel)
			if !ok {
				_ = send(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, active := subs[subject]; active {
					_ = send(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = send(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = send(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				s, active := subs[subject]
				if !active {
					_ = send(map[string]string{"error": "not subscribed to " + subject})
					continue
				}
				_ = s.Unsubscribe()
				delete(subs, subject)
				_ = send(map[string]string{"status": "unsubscribed", "subject": subject})

			default:
				_ = send(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("detections ws disconnected", "remote", remote)
	}
}
