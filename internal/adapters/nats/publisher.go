package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// Subjects used on the bus.
const (
	RouteEventSubjectPrefix = "routes."
	RouteBroadcastSubject   = "routes.updates.broadcast"
	LocationSubjects        = "location.samples.>"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "ROUTE_EVENTS",
			Subjects:  []string{"routes.edited.>", "routes.saved.>", "routes.snapped.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "LOCATION_SAMPLES",
			Subjects:  []string{LocationSubjects},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishRouteEvent stores the event on routes.<kind>.<route id> and relays
// it to live listeners on the broadcast subject.
func (p *Publisher) PublishRouteEvent(ctx context.Context, ev *domain.RouteEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := p.js.Publish(RouteEventSubjectPrefix+ev.Kind+"."+ev.RouteID, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish route event: %w", err)
	}
	return p.conn.Publish(RouteBroadcastSubject, data)
}

// PublishLocationSample feeds a sample onto the location stream.
func (p *Publisher) PublishLocationSample(ctx context.Context, s *domain.LocationSample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	subject := "location.samples." + strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s.DeviceID)
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish location sample: %w", err)
	}
	return nil
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
