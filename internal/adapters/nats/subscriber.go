package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/pkg/metrics"
)

// ErrStaleSample marks a sample older than the subscriber's max age.
var ErrStaleSample = errors.New("stale location sample")

// Subscriber implements ports.LocationSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	subs    []*nats.Subscription
	durable string
	maxAge  time.Duration
	now     func() time.Time
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithDurable sets the JetStream consumer name.
func WithDurable(name string) SubscriberOption {
	return func(s *Subscriber) { s.durable = name }
}

// WithMaxAge drops samples whose timestamp is older than d. Zero keeps all.
func WithMaxAge(d time.Duration) SubscriberOption {
	return func(s *Subscriber) { s.maxAge = d }
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string, opts ...SubscriberOption) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	s := &Subscriber{conn: conn, js: js, durable: "location-processor", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DecodeLocationSample parses a message body. Samples without a timestamp
// are stamped with now; samples older than maxAge return ErrStaleSample.
func DecodeLocationSample(data []byte, now time.Time, maxAge time.Duration) (*domain.LocationSample, error) {
	var sample domain.LocationSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return nil, fmt.Errorf("decode location sample: %w", err)
	}
	if sample.Time.IsZero() {
		sample.Time = now
	}
	if maxAge > 0 && now.Sub(sample.Time) > maxAge {
		return &sample, ErrStaleSample
	}
	return &sample, nil
}

// SubscribeLocationSamples delivers samples from the location provider.
// Undecodable messages are terminated rather than redelivered; stale
// samples are acked and skipped.
func (s *Subscriber) SubscribeLocationSamples(ctx context.Context, handler func(ctx context.Context, sample *domain.LocationSample) error) error {
	sub, err := s.js.Subscribe(LocationSubjects, func(msg *nats.Msg) {
		sample, err := DecodeLocationSample(msg.Data, s.now(), s.maxAge)
		switch {
		case errors.Is(err, ErrStaleSample):
			metrics.LocationSamplesDropped.WithLabelValues("stale").Inc()
			_ = msg.Ack()
			return
		case err != nil:
			slog.Warn("drop malformed location sample", "subject", msg.Subject, "error", err)
			metrics.LocationSamplesDropped.WithLabelValues("malformed").Inc()
			_ = msg.Term()
			return
		}
		if err := handler(ctx, sample); err != nil {
			slog.Debug("location sample handler failed", "device_id", sample.DeviceID, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", LocationSubjects, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
