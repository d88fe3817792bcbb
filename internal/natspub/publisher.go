// Package natspub pushes counter snapshots to NATS so other services can
// consume registry state without scraping the agent.
package natspub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/inflight/internal/config"
	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
	"git.home.luguber.info/inful/inflight/internal/logfields"
	"git.home.luguber.info/inful/inflight/internal/retry"
	"git.home.luguber.info/inful/inflight/internal/snapshot"
)

const kvBucket = "inflight-latest"

// Publisher manages the NATS connection and snapshot publishing.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	kv      jetstream.KeyValue
	subject string
	policy  retry.Policy
}

// Batch is the wire payload for one snapshot pass.
type Batch struct {
	Registry  string              `json:"registry"`
	TakenAt   time.Time           `json:"taken_at"`
	Snapshots []snapshot.Snapshot `json:"snapshots"`
}

// latestEntry is the KV payload holding the newest value per counter.
type latestEntry struct {
	Counter string    `json:"counter"`
	Count   int64     `json:"count"`
	TakenAt time.Time `json:"taken_at"`
}

// NewPublisher creates a snapshot publisher from the NATS configuration.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, ierrors.New(ierrors.CategoryConfig, ierrors.SeverityError, "NATS publishing is disabled")
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, ierrors.NATSConnectError(cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ierrors.NATSConnectError(cfg.URL, err)
	}

	p := &Publisher{
		conn:    conn,
		js:      js,
		subject: cfg.Subject,
		policy:  retry.NewPolicy(retry.BackoffLinear, time.Second, 10*time.Second, 2),
	}

	if err := p.initKVBucket(); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("NATS snapshot publisher initialized",
		"url", cfg.URL,
		logfields.Subject(cfg.Subject))

	return p, nil
}

// initKVBucket creates or gets the KV bucket holding latest counter values.
func (p *Publisher) initKVBucket() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := p.js.KeyValue(ctx, kvBucket)
	if err == nil {
		p.kv = kv
		return nil
	}

	kv, err = p.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      kvBucket,
		Description: "Latest counter values published by inflight",
		History:     1, // Keep only latest value
	})
	if err != nil {
		return ierrors.WrapError(err, ierrors.CategoryNATS, "failed to create KV bucket").
			WithContext("bucket", kvBucket)
	}

	p.kv = kv
	slog.Info("Created KV bucket for latest counter values", "bucket", kvBucket)
	return nil
}

// PublishBatch publishes one snapshot pass and updates the per-counter KV
// entries. Counter names containing characters NATS keys reject are
// skipped from the KV update but still included in the batch message.
func (p *Publisher) PublishBatch(ctx context.Context, registry string, snaps []snapshot.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch := Batch{
		Registry:  registry,
		TakenAt:   time.Now(),
		Snapshots: snaps,
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return ierrors.NATSPublishError(p.subject, err)
	}

	err = retry.Do(ctx, p.policy, func(ctx context.Context) error {
		if err := p.conn.Publish(p.subject, data); err != nil {
			return ierrors.NATSPublishError(p.subject, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, snap := range snaps {
		entry := latestEntry{Counter: snap.Counter, Count: snap.Count, TakenAt: snap.TakenAt}
		value, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if _, err := p.kv.Put(ctx, snap.Counter, value); err != nil {
			slog.Debug("Failed to update latest-value KV entry",
				logfields.Counter(snap.Counter),
				logfields.Error(err))
		}
	}

	slog.Debug("Published snapshot batch",
		logfields.Subject(p.subject),
		slog.Int("snapshots", len(snaps)))

	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
