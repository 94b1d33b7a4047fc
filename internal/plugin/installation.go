package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Installation is an organization's configured instance of a plugin.
// (OrgID, Slug) is unique; a plugin is only invoked for an organization when
// an enabled installation exists for that pair.
type Installation struct {
	OrgID     string            `json:"org_id"`
	Slug      string            `json:"slug"`
	Enabled   bool              `json:"enabled"`
	Config    map[string]string `json:"config"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NotFoundError reports a missing installation or an unknown plugin slug.
type NotFoundError struct {
	OrgID string
	Slug  string
}

func (e *NotFoundError) Error() string {
	if e.OrgID == "" {
		return fmt.Sprintf("plugin %s not found", e.Slug)
	}
	return fmt.Sprintf("plugin %s not installed for organization %s", e.Slug, e.OrgID)
}

// InstallStore is the persistence boundary for installations.
type InstallStore interface {
	Upsert(ctx context.Context, inst Installation) error
	Get(ctx context.Context, orgID, slug string) (Installation, bool, error)
	ListByOrg(ctx context.Context, orgID string) ([]Installation, error)
	Delete(ctx context.Context, orgID, slug string) (bool, error)
}

// MemoryInstallStore is an in-process InstallStore used by tests.
type MemoryInstallStore struct {
	mu       sync.RWMutex
	installs map[string]Installation
}

func NewMemoryInstallStore() *MemoryInstallStore {
	return &MemoryInstallStore{installs: make(map[string]Installation)}
}

func installKey(orgID, slug string) string { return orgID + "/" + slug }

func (s *MemoryInstallStore) Upsert(_ context.Context, inst Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installs[installKey(inst.OrgID, inst.Slug)] = cloneInstall(inst)
	return nil
}

func (s *MemoryInstallStore) Get(_ context.Context, orgID, slug string) (Installation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.installs[installKey(orgID, slug)]
	if !ok {
		return Installation{}, false, nil
	}
	return cloneInstall(inst), true, nil
}

func (s *MemoryInstallStore) ListByOrg(_ context.Context, orgID string) ([]Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Installation
	for _, inst := range s.installs {
		if inst.OrgID == orgID {
			out = append(out, cloneInstall(inst))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *MemoryInstallStore) Delete(_ context.Context, orgID, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := installKey(orgID, slug)
	if _, ok := s.installs[key]; !ok {
		return false, nil
	}
	delete(s.installs, key)
	return true, nil
}

func cloneInstall(inst Installation) Installation {
	out := inst
	out.Config = make(map[string]string, len(inst.Config))
	for k, v := range inst.Config {
		out.Config[k] = v
	}
	return out
}
