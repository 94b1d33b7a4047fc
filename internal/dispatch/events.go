// Package dispatch accepts domain events and fans them out to every matching
// webhook subscription and enabled plugin installation in the organization.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is one accepted domain event. The payload is stored verbatim so
// deliveries can be replayed later.
type Event struct {
	ID             string         `json:"id"`
	OrgID          string         `json:"org_id"`
	Type           string         `json:"type"`
	Payload        map[string]any `json:"payload"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// EventStore persists accepted events. Insert is idempotent on
// (org, idempotency key): a repeat returns the original event id with
// inserted=false, and the caller must not fan out again.
type EventStore interface {
	Insert(ctx context.Context, e Event) (id string, inserted bool, err error)
}

// PostgresEventStore stores events in emberhook.events.
type PostgresEventStore struct {
	pool *pgxpool.Pool
}

func NewPostgresEventStore(pool *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{pool: pool}
}

func (s *PostgresEventStore) Insert(ctx context.Context, e Event) (string, bool, error) {
	if e.IdempotencyKey == "" {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO emberhook.events (id, org_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			e.ID, e.OrgID, e.Type, e.Payload, e.CreatedAt,
		)
		if err != nil {
			return "", false, fmt.Errorf("insert event: %w", err)
		}
		return e.ID, true, nil
	}

	// ON CONFLICT DO NOTHING returns no row on a duplicate key, so we fall
	// through to look up the original event id.
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO emberhook.events (id, org_id, event_type, payload, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (org_id, idempotency_key) WHERE idempotency_key IS NOT NULL
		DO NOTHING
		RETURNING id`,
		e.ID, e.OrgID, e.Type, e.Payload, e.IdempotencyKey, e.CreatedAt,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("insert event: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT id FROM emberhook.events
		WHERE org_id = $1 AND idempotency_key = $2`,
		e.OrgID, e.IdempotencyKey,
	).Scan(&id)
	if err != nil {
		return "", false, fmt.Errorf("lookup event by idempotency key: %w", err)
	}
	return id, false, nil
}

// MemoryEventStore is an in-process EventStore used by tests.
type MemoryEventStore struct {
	mu     sync.Mutex
	events []Event
	byKey  map[string]string // org|key -> event id
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{byKey: make(map[string]string)}
}

func (s *MemoryEventStore) Insert(_ context.Context, e Event) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.IdempotencyKey != "" {
		k := e.OrgID + "|" + e.IdempotencyKey
		if id, ok := s.byKey[k]; ok {
			return id, false, nil
		}
		s.byKey[k] = e.ID
	}
	s.events = append(s.events, e)
	return e.ID, true, nil
}

// Events returns a copy of everything inserted so far.
func (s *MemoryEventStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
