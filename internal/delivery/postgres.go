package delivery

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger implements Ledger plus the status/DLQ/replay queries the
// admin API exposes.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) CreateQueued(ctx context.Context, eventID, webhookID string) (string, error) {
	id := "dlv_" + uuid.New().String()
	_, err := l.pool.Exec(ctx, `
		INSERT INTO emberhook.deliveries(id, event_id, webhook_id, status)
		VALUES ($1, $2, $3, 'queued')`,
		id, eventID, webhookID,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateReplay records a fresh queued delivery referencing a prior attempt.
func (l *PostgresLedger) CreateReplay(ctx context.Context, eventID, webhookID, replayOf, reason string) (string, error) {
	id := "dlv_" + uuid.New().String()
	_, err := l.pool.Exec(ctx, `
		INSERT INTO emberhook.deliveries(id, event_id, webhook_id, status, replay_of, replay_reason)
		VALUES ($1, $2, $3, 'queued', $4, $5)`,
		id, eventID, webhookID, replayOf, reason,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (l *PostgresLedger) MarkInflight(ctx context.Context, deliveryID string) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE emberhook.deliveries
		SET status='inflight', dequeued_at=now(), updated_at=now()
		WHERE id=$1`, deliveryID)
	return err
}

func (l *PostgresLedger) MarkSent(ctx context.Context, deliveryID string, at time.Time) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE emberhook.deliveries
		SET sent_at=$2, updated_at=now()
		WHERE id=$1`, deliveryID, at)
	return err
}

func (l *PostgresLedger) MarkDelivered(ctx context.Context, deliveryID string, httpStatus, latencyMS int) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE emberhook.deliveries
		SET status='delivered', delivered_at=now(), attempt=attempt+1, http_status=$2, latency_ms=$3, updated_at=now(), last_error=NULL
		WHERE id=$1`,
		deliveryID, httpStatus, latencyMS,
	)
	return err
}

func (l *PostgresLedger) MarkFailed(ctx context.Context, deliveryID string, httpStatus, latencyMS int, lastErr string) (int, error) {
	var attempt int
	err := l.pool.QueryRow(ctx, `
		UPDATE emberhook.deliveries
		SET status='failed', failed_at=now(), attempt=attempt+1, http_status=$2, latency_ms=$3, updated_at=now(), last_error=$4
		WHERE id=$1
		RETURNING attempt`,
		deliveryID, httpStatus, latencyMS, lastErr,
	).Scan(&attempt)
	return attempt, err
}

func (l *PostgresLedger) MarkDead(ctx context.Context, deliveryID, reason string) error {
	if _, err := l.pool.Exec(ctx, `
		INSERT INTO emberhook.dlq(delivery_id, reason) VALUES ($1, $2)`,
		deliveryID, reason,
	); err != nil {
		return err
	}
	_, err := l.pool.Exec(ctx, `
		UPDATE emberhook.deliveries
		SET status='dead', dlq_at=now(), updated_at=now()
		WHERE id=$1`, deliveryID)
	return err
}

const attemptColumns = `
	d.id, d.event_id, d.webhook_id, d.status, d.attempt, d.http_status, d.latency_ms,
	COALESCE(d.last_error, ''), COALESCE(d.replay_of, ''),
	d.enqueued_at, d.dequeued_at, d.sent_at, d.delivered_at, d.failed_at, d.dlq_at`

// ListAttempts returns delivery rows matching the filter, oldest first. Rows
// are scoped to the filter's organization through the owning event.
func (l *PostgresLedger) ListAttempts(ctx context.Context, f AttemptFilter) ([]Attempt, error) {
	args := []any{f.OrgID}
	where := "ev.org_id = $1"
	if f.EventID != "" {
		args = append(args, f.EventID)
		where += fmt.Sprintf(" AND d.event_id = $%d", len(args))
	}
	if f.WebhookID != "" {
		args = append(args, f.WebhookID)
		where += fmt.Sprintf(" AND d.webhook_id = $%d", len(args))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT %s
		FROM emberhook.deliveries d
		JOIN emberhook.events ev ON ev.id = d.event_id
		WHERE %s
		ORDER BY d.enqueued_at ASC
		LIMIT $%d`, attemptColumns, where, len(args))

	rows, err := l.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListDLQ returns dead-lettered deliveries for the organization, newest
// first.
func (l *PostgresLedger) ListDLQ(ctx context.Context, orgID, webhookID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 10
	}
	args := []any{orgID}
	where := "ev.org_id = $1"
	if webhookID != "" {
		args = append(args, webhookID)
		where += fmt.Sprintf(" AND d.webhook_id = $%d", len(args))
	}
	args = append(args, limit)

	q := fmt.Sprintf(`
		SELECT %s
		FROM emberhook.deliveries d
		JOIN emberhook.events ev ON ev.id = d.event_id
		JOIN emberhook.dlq q ON q.delivery_id = d.id
		WHERE %s
		ORDER BY q.created_at DESC
		LIMIT $%d`, attemptColumns, where, len(args))

	rows, err := l.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetReplaySource joins the source delivery with its event and the current
// subscription row.
func (l *PostgresLedger) GetReplaySource(ctx context.Context, deliveryID string) (ReplaySource, error) {
	var src ReplaySource
	var payload string
	err := l.pool.QueryRow(ctx, `
		SELECT d.event_id, ev.org_id, ev.event_type, ev.payload::text, d.webhook_id, w.url, w.secret
		FROM emberhook.deliveries d
		JOIN emberhook.events ev ON ev.id = d.event_id
		JOIN emberhook.webhooks w ON w.id = d.webhook_id
		WHERE d.id = $1`, deliveryID,
	).Scan(&src.EventID, &src.OrgID, &src.EventType, &payload, &src.WebhookID, &src.URL, &src.Secret)
	if err != nil {
		return ReplaySource{}, fmt.Errorf("source delivery not found: %w", err)
	}
	src.Payload = []byte(payload)
	return src, nil
}

func scanAttempt(scan func(dest ...any) error) (Attempt, error) {
	var a Attempt
	var httpStatus, latencyMS sql.NullInt32
	var deq, sent, deliv, fail, dlq sql.NullTime
	if err := scan(&a.ID, &a.EventID, &a.WebhookID, &a.Status, &a.Attempt, &httpStatus, &latencyMS,
		&a.LastError, &a.ReplayOf,
		&a.EnqueuedAt, &deq, &sent, &deliv, &fail, &dlq,
	); err != nil {
		return Attempt{}, err
	}
	if httpStatus.Valid {
		a.HTTPStatus = int(httpStatus.Int32)
	}
	if latencyMS.Valid {
		a.LatencyMS = int(latencyMS.Int32)
	}
	a.DequeuedAt = nullTime(deq)
	a.SentAt = nullTime(sent)
	a.DeliveredAt = nullTime(deliv)
	a.FailedAt = nullTime(fail)
	a.DLQAt = nullTime(dlq)
	return a, nil
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
