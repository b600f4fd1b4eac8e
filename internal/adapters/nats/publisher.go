package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/vastmap/internal/core/domain"
)

// Subjects carrying the live feeds. Snapshots are ephemeral by nature:
// a new one lands every couple of seconds, so plain core NATS is used
// rather than JetStream. A subscriber that misses one simply gets the
// next.
const (
	SubjectSnapshot = "transit.vehicles.snapshot"
	SubjectWeather  = "transit.weather.current"
)

// Publisher implements ports.EventPublisher over core NATS.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS. The connection retries forever in the
// background; a broker outage degrades the broadcast, never the service.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// PublishSnapshot broadcasts a full vehicle snapshot.
func (p *Publisher) PublishSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return p.conn.Publish(SubjectSnapshot, data)
}

// PublishWeather broadcasts a current-conditions reading.
func (p *Publisher) PublishWeather(ctx context.Context, weather *domain.Weather) error {
	data, err := json.Marshal(weather)
	if err != nil {
		return fmt.Errorf("marshal weather: %w", err)
	}
	return p.conn.Publish(SubjectWeather, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. the
// WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
