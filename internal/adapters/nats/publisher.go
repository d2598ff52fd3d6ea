package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/sirius/internal/core/domain"
)

const (
	snapshotStream  = "EDR_SNAPSHOTS"
	snapshotSubject = "edr.snapshots"
)

// SnapshotSubject is the subject a server's snapshots are published on.
func SnapshotSubject(server string) string {
	return snapshotSubject + "." + server
}

// Publisher implements ports.SnapshotPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and makes sure the snapshot stream exists.
// The stream keeps only the latest snapshot per server.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:              snapshotStream,
		Subjects:          []string{snapshotSubject + ".>"},
		Retention:         nats.LimitsPolicy,
		MaxMsgsPerSubject: 1,
		MaxAge:            15 * time.Minute,
		Storage:           nats.MemoryStorage,
		Discard:           nats.DiscardOld,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishSnapshot publishes a server snapshot. The snapshot ID doubles as the
// message ID so a retried publish is deduplicated by the server.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap *domain.ServerSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := p.js.Publish(SnapshotSubject(snap.Server), data, nats.Context(ctx), nats.MsgId(snap.ID)); err != nil {
		return fmt.Errorf("publish snapshot %s: %w", snap.Server, err)
	}
	return nil
}

// Conn exposes the underlying connection for readiness checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("sirius"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
