package delivery

import (
	"context"
	"time"
)

// Publisher is the queue producer surface used by dispatch and the worker's
// DLQ path. *nsq.Producer satisfies it.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// Ledger records delivery state transitions. Queue state drives retries; the
// ledger is the audit surface that makes outcomes observable.
type Ledger interface {
	// CreateQueued records a new queued delivery and returns its id.
	CreateQueued(ctx context.Context, eventID, webhookID string) (string, error)
	// MarkInflight records that a worker claimed the delivery.
	MarkInflight(ctx context.Context, deliveryID string) error
	// MarkSent records the moment the outbound request was issued.
	MarkSent(ctx context.Context, deliveryID string, at time.Time) error
	// MarkDelivered records a successful attempt. Terminal.
	MarkDelivered(ctx context.Context, deliveryID string, httpStatus, latencyMS int) error
	// MarkFailed records a failed attempt and returns the new attempt count.
	MarkFailed(ctx context.Context, deliveryID string, httpStatus, latencyMS int, lastErr string) (int, error)
	// MarkDead records retry exhaustion and the DLQ entry. Terminal.
	MarkDead(ctx context.Context, deliveryID, reason string) error
}

// Attempt is one delivery row as exposed by status queries.
type Attempt struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	WebhookID   string     `json:"webhook_id"`
	Status      string     `json:"status"`
	Attempt     int        `json:"attempt"`
	HTTPStatus  int        `json:"http_status,omitempty"`
	LatencyMS   int        `json:"latency_ms,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	ReplayOf    string     `json:"replay_of,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	DequeuedAt  *time.Time `json:"dequeued_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
	DLQAt       *time.Time `json:"dlq_at,omitempty"`
}

// AttemptFilter narrows status queries. OrgID is required; every read is
// scoped to the caller's organization.
type AttemptFilter struct {
	OrgID     string
	EventID   string
	WebhookID string
	Limit     int
}

// ReplaySource is the snapshot needed to enqueue a fresh delivery referencing
// a previous attempt. The current subscription secret/url are used, not the
// original task's snapshot.
type ReplaySource struct {
	EventID   string
	OrgID     string
	EventType string
	Payload   []byte
	WebhookID string
	URL       string
	Secret    string
}
