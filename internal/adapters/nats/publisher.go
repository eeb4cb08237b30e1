package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/enviro-meter/firewatch/internal/core/domain"
)

// Detection event subjects. The last token carries the verdict, so alerting
// consumers can subscribe to wildfire positives only while the WebSocket
// relay watches the whole tree.
const (
	SubjectPrefix           = "firewatch.detections"
	SubjectDetectionsAll    = SubjectPrefix + ".>"
	SubjectWildfireDetected = SubjectPrefix + ".wildfire"
	SubjectAllClear         = SubjectPrefix + ".clear"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS, enables JetStream and ensures the
// detections stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      "FIREWATCH_DETECTIONS",
		Subjects:  []string{SubjectDetectionsAll},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist — try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishDetection emits one detection event, routed by verdict.
func (p *Publisher) PublishDetection(ctx context.Context, event *domain.DetectionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectFor(event.Verdict), data, nats.Context(ctx))
	return err
}

// SubjectFor returns the subject a verdict is published under.
func SubjectFor(v domain.Verdict) string {
	if v.Positive() {
		return SubjectWildfireDetected
	}
	return SubjectAllClear
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
