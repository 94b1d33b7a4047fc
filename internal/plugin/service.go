package plugin

import (
	"context"
	"time"
)

// Service applies registry and schema rules on top of an InstallStore.
type Service struct {
	registry *Registry
	store    InstallStore
	now      func() time.Time
}

func NewService(registry *Registry, store InstallStore) *Service {
	return &Service{registry: registry, store: store, now: time.Now}
}

// Install creates or updates an installation. The slug must name a registered
// plugin and the configuration must satisfy its schema.
func (s *Service) Install(ctx context.Context, orgID, slug string, config map[string]string, enabled bool) (Installation, error) {
	def, ok := s.registry.Get(slug)
	if !ok {
		return Installation{}, &NotFoundError{Slug: slug}
	}
	if config == nil {
		config = map[string]string{}
	}
	if err := def.Schema.Validate(config); err != nil {
		return Installation{}, err
	}

	now := s.now().UTC()
	inst := Installation{
		OrgID:     orgID,
		Slug:      def.Slug,
		Enabled:   enabled,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, exists, err := s.store.Get(ctx, orgID, def.Slug); err != nil {
		return Installation{}, err
	} else if exists {
		inst.CreatedAt = prev.CreatedAt
	}

	if err := s.store.Upsert(ctx, inst); err != nil {
		return Installation{}, err
	}
	return inst, nil
}

// Get returns the installation for the (org, slug) pair.
func (s *Service) Get(ctx context.Context, orgID, slug string) (Installation, error) {
	inst, ok, err := s.store.Get(ctx, orgID, slug)
	if err != nil {
		return Installation{}, err
	}
	if !ok {
		return Installation{}, &NotFoundError{OrgID: orgID, Slug: slug}
	}
	return inst, nil
}

// ListByOrg returns all installations for the organization.
func (s *Service) ListByOrg(ctx context.Context, orgID string) ([]Installation, error) {
	return s.store.ListByOrg(ctx, orgID)
}

// ListEnabled returns the organization's enabled installations whose slug is
// still registered. Installations of plugins no longer in the registry are
// skipped rather than failing the caller.
func (s *Service) ListEnabled(ctx context.Context, orgID string) ([]Installation, error) {
	installs, err := s.store.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	out := installs[:0]
	for _, inst := range installs {
		if !inst.Enabled {
			continue
		}
		if _, ok := s.registry.Get(inst.Slug); !ok {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

// Uninstall removes the installation for the (org, slug) pair.
func (s *Service) Uninstall(ctx context.Context, orgID, slug string) error {
	ok, err := s.store.Delete(ctx, orgID, slug)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{OrgID: orgID, Slug: slug}
	}
	return nil
}
