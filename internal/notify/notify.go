// Package notify publishes one message per produced output artifact to the
// downstream consumers of the curated zone.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultChannel is the outbox channel used when none is configured.
const DefaultChannel = "landingzone_ingest"

// Message announces one output artifact.
type Message struct {
	SourceFileName   string `json:"source_file_name"`
	SourceFilePrefix string `json:"source_file_prefix"`
	SourceName       string `json:"source_name"`
	SplitFile        bool   `json:"split_file"`
	SummaryCount     *int64 `json:"summary_count"`
}

// Publisher delivers messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

const insertNotification = `
INSERT INTO ingest_notification (channel, payload)
VALUES ($1, $2)
RETURNING notification_id`

// Outbox stores messages in the ingest_notification table and signals
// listeners with pg_notify in the same transaction, so a message is only
// announced once it is durable.
type Outbox struct {
	pool    *pgxpool.Pool
	channel string
}

// NewOutbox creates a Postgres outbox publisher.
func NewOutbox(pool *pgxpool.Pool, channel string) *Outbox {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Outbox{pool: pool, channel: channel}
}

// Publish implements Publisher.
func (o *Outbox) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	return pgx.BeginFunc(ctx, o.pool, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx, insertNotification, o.channel, payload).Scan(&id); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", o.channel, string(payload)); err != nil {
			return fmt.Errorf("notify %s: %w", o.channel, err)
		}
		return nil
	})
}

// MemQueue collects messages in memory.
type MemQueue struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

// Publish implements Publisher.
func (q *MemQueue) Publish(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

// Messages returns the published messages in order.
func (q *MemQueue) Messages() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.msgs...)
}
