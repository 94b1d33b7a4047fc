package webhook

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists subscriptions in the emberhook.webhooks table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, sub Subscription) error {
	events, err := json.Marshal(sub.Events)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO emberhook.webhooks(id, org_id, url, secret, events, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`,
		sub.ID, sub.OrgID, sub.URL, sub.Secret, string(events), sub.CreatedAt, sub.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) ListByOrg(ctx context.Context, orgID string) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, url, secret, events::text, created_at, updated_at
		FROM emberhook.webhooks
		WHERE org_id = $1
		ORDER BY created_at ASC`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id, orgID string) (Subscription, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, url, secret, events::text, created_at, updated_at
		FROM emberhook.webhooks
		WHERE id = $1 AND org_id = $2`,
		id, orgID,
	)
	if err != nil {
		return Subscription{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return Subscription{}, false, rows.Err()
	}
	sub, err := scanSubscription(rows.Scan)
	if err != nil {
		return Subscription{}, false, err
	}
	return sub, true, nil
}

func (s *PostgresStore) Update(ctx context.Context, sub Subscription) (bool, error) {
	events, err := json.Marshal(sub.Events)
	if err != nil {
		return false, err
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE emberhook.webhooks
		SET url = $3, secret = $4, events = $5::jsonb, updated_at = $6
		WHERE id = $1 AND org_id = $2`,
		sub.ID, sub.OrgID, sub.URL, sub.Secret, string(events), sub.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id, orgID string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM emberhook.webhooks WHERE id = $1 AND org_id = $2`,
		id, orgID,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func scanSubscription(scan func(dest ...any) error) (Subscription, error) {
	var sub Subscription
	var eventsJSON string
	if err := scan(&sub.ID, &sub.OrgID, &sub.URL, &sub.Secret, &eventsJSON, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return Subscription{}, err
	}
	if err := json.Unmarshal([]byte(eventsJSON), &sub.Events); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}
