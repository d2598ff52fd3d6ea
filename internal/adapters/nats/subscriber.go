package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/sirius/internal/core/domain"
)

// Subscriber implements ports.SnapshotSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeSnapshots delivers the latest snapshot of every server, then every
// new one. Each instance gets its own ephemeral consumer.
func (s *Subscriber) SubscribeSnapshots(ctx context.Context, handler func(ctx context.Context, snap *domain.ServerSnapshot) error) error {
	sub, err := s.js.Subscribe(snapshotSubject+".>", func(msg *nats.Msg) {
		var snap domain.ServerSnapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			slog.Warn("drop undecodable snapshot", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &snap); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverLastPerSubject(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return fmt.Errorf("subscribe snapshots: %w", err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Conn exposes the underlying connection for readiness checks.
func (s *Subscriber) Conn() *nats.Conn { return s.conn }

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
