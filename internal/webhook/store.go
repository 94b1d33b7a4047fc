package webhook

import (
	"context"
	"sort"
	"sync"
)

// Store is the persistence boundary for subscriptions. Implementations return
// ok=false from Get/Update/Delete when no row matches the (id, org) pair; the
// service layer maps that to NotFoundError.
type Store interface {
	Insert(ctx context.Context, sub Subscription) error
	ListByOrg(ctx context.Context, orgID string) ([]Subscription, error)
	Get(ctx context.Context, id, orgID string) (Subscription, bool, error)
	Update(ctx context.Context, sub Subscription) (bool, error)
	Delete(ctx context.Context, id, orgID string) (bool, error)
}

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]Subscription)}
}

func (s *MemoryStore) Insert(_ context.Context, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = cloneSub(sub)
	return nil
}

func (s *MemoryStore) ListByOrg(_ context.Context, orgID string) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Subscription
	for _, sub := range s.subs {
		if sub.OrgID == orgID {
			out = append(out, cloneSub(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id, orgID string) (Subscription, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok || sub.OrgID != orgID {
		return Subscription{}, false, nil
	}
	return cloneSub(sub), true, nil
}

func (s *MemoryStore) Update(_ context.Context, sub Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.subs[sub.ID]
	if !ok || prev.OrgID != sub.OrgID {
		return false, nil
	}
	s.subs[sub.ID] = cloneSub(sub)
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id, orgID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.OrgID != orgID {
		return false, nil
	}
	delete(s.subs, id)
	return true, nil
}

func cloneSub(sub Subscription) Subscription {
	out := sub
	out.Events = append([]string(nil), sub.Events...)
	return out
}
