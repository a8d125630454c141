// Package publisher ships outbox rows to Kafka. It polls the outbox table for
// unpublished events, produces them synchronously, and marks rows published
// only after the broker acknowledges. A crash between produce and mark yields
// a duplicate, never a loss; consumers dedupe on the event id.
package publisher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 100
)

// Outbox polls the outbox table and publishes pending events to Kafka.
type Outbox struct {
	db           *sql.DB
	client       *kgo.Client
	topic        string
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
	published    prometheus.Counter
}

// Option configures the Outbox publisher.
type Option func(*Outbox)

// WithPollInterval overrides the poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(o *Outbox) { o.pollInterval = d }
}

// WithBatchSize overrides how many rows one poll claims.
func WithBatchSize(n int) Option {
	return func(o *Outbox) { o.batchSize = n }
}

// WithPublishedCounter counts events acknowledged by the broker.
func WithPublishedCounter(c prometheus.Counter) Option {
	return func(o *Outbox) { o.published = c }
}

// New connects to the brokers and ensures the audit topic exists.
func New(db *sql.DB, brokers []string, topic string, logger *slog.Logger, opts ...Option) (*Outbox, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	o := &Outbox{
		db:           db,
		client:       client,
		topic:        topic,
		logger:       logger,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// EnsureTopic creates the audit topic when it does not exist yet.
func (o *Outbox) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(o.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, o.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", o.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Run polls until the context is cancelled.
func (o *Outbox) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.publishPending(ctx); err != nil {
				o.logger.ErrorContext(ctx, "publish outbox batch", "error", err)
			}
		}
	}
}

// Close flushes buffered records and releases the Kafka client.
func (o *Outbox) Close() {
	o.client.Close()
}

type outboxRow struct {
	id          string
	aggregateID string
	eventType   string
	payload     []byte
}

func (o *Outbox) publishPending(ctx context.Context) error {
	rows, err := o.fetchPending(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, &kgo.Record{
			Topic: o.topic,
			// Key by aggregate so one candidate's events stay ordered
			// within a partition.
			Key:   []byte(row.aggregateID),
			Value: row.payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(row.id)},
				{Key: "event_type", Value: []byte(row.eventType)},
			},
		})
	}

	results := o.client.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce audit events: %w", err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.id
	}
	if err := o.markPublished(ctx, ids); err != nil {
		return err
	}
	if o.published != nil {
		o.published.Add(float64(len(rows)))
	}

	o.logger.DebugContext(ctx, "published outbox batch", "count", len(rows))
	return nil
}

func (o *Outbox) fetchPending(ctx context.Context) ([]outboxRow, error) {
	const query = `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := o.db.QueryContext(ctx, query, o.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox rows: %w", err)
	}
	defer rows.Close()

	var out []outboxRow
	for rows.Next() {
		var r outboxRow
		if err := rows.Scan(&r.id, &r.aggregateID, &r.eventType, &r.payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (o *Outbox) markPublished(ctx context.Context, ids []string) error {
	const query = `UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)`
	if _, err := o.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark outbox rows published: %w", err)
	}
	return nil
}
