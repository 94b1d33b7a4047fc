package plugin

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresInstallStore persists installations in emberhook.plugin_installations.
type PostgresInstallStore struct {
	pool *pgxpool.Pool
}

func NewPostgresInstallStore(pool *pgxpool.Pool) *PostgresInstallStore {
	return &PostgresInstallStore{pool: pool}
}

func (s *PostgresInstallStore) Upsert(ctx context.Context, inst Installation) error {
	cfg, err := json.Marshal(inst.Config)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO emberhook.plugin_installations(org_id, slug, enabled, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		ON CONFLICT (org_id, slug)
		DO UPDATE SET enabled = EXCLUDED.enabled, config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`,
		inst.OrgID, inst.Slug, inst.Enabled, string(cfg), inst.CreatedAt, inst.UpdatedAt,
	)
	return err
}

func (s *PostgresInstallStore) Get(ctx context.Context, orgID, slug string) (Installation, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT org_id, slug, enabled, config::text, created_at, updated_at
		FROM emberhook.plugin_installations
		WHERE org_id = $1 AND slug = $2`,
		orgID, slug,
	)
	if err != nil {
		return Installation{}, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return Installation{}, false, rows.Err()
	}
	inst, err := scanInstallation(rows.Scan)
	if err != nil {
		return Installation{}, false, err
	}
	return inst, true, nil
}

func (s *PostgresInstallStore) ListByOrg(ctx context.Context, orgID string) ([]Installation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT org_id, slug, enabled, config::text, created_at, updated_at
		FROM emberhook.plugin_installations
		WHERE org_id = $1
		ORDER BY slug ASC`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Installation
	for rows.Next() {
		inst, err := scanInstallation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *PostgresInstallStore) Delete(ctx context.Context, orgID, slug string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM emberhook.plugin_installations WHERE org_id = $1 AND slug = $2`,
		orgID, slug,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func scanInstallation(scan func(dest ...any) error) (Installation, error) {
	var inst Installation
	var cfgJSON string
	if err := scan(&inst.OrgID, &inst.Slug, &inst.Enabled, &cfgJSON, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		return Installation{}, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &inst.Config); err != nil {
		return Installation{}, err
	}
	return inst, nil
}
