package webhook

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/emberhook/emberhook/internal/event"
)

// Service applies validation and ownership rules on top of a Store.
type Service struct {
	store  Store
	events *event.Registry
	now    func() time.Time
}

func NewService(store Store, events *event.Registry) *Service {
	return &Service{store: store, events: events, now: time.Now}
}

// Create registers a new subscription. The URL must be an absolute http(s)
// URL and the event set must be non-empty; a signing secret is generated
// when the caller does not supply one.
func (s *Service) Create(ctx context.Context, orgID, rawURL, secret string, events []string) (Subscription, error) {
	if err := s.validateURL(rawURL); err != nil {
		return Subscription{}, err
	}
	if err := s.validateEvents(events); err != nil {
		return Subscription{}, err
	}

	if secret == "" {
		var err error
		secret, err = generateSecret(32) // 256-bit
		if err != nil {
			return Subscription{}, err
		}
	}

	now := s.now().UTC()
	sub := Subscription{
		ID:        "wh_" + uuid.New().String(),
		OrgID:     orgID,
		URL:       rawURL,
		Secret:    secret,
		Events:    append([]string(nil), events...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, sub); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

// ListByOrg returns all subscriptions belonging to the organization.
func (s *Service) ListByOrg(ctx context.Context, orgID string) ([]Subscription, error) {
	return s.store.ListByOrg(ctx, orgID)
}

// Get returns the subscription matching the (id, org) pair.
func (s *Service) Get(ctx context.Context, id, orgID string) (Subscription, error) {
	sub, ok, err := s.store.Get(ctx, id, orgID)
	if err != nil {
		return Subscription{}, err
	}
	if !ok {
		return Subscription{}, &NotFoundError{ID: id, OrgID: orgID}
	}
	return sub, nil
}

// Update applies a partial update. Unset patch fields retain their prior
// value; supplied fields are re-validated. An id under the wrong organization
// fails with NotFoundError and leaves the row unchanged.
func (s *Service) Update(ctx context.Context, id, orgID string, patch Patch) (Subscription, error) {
	sub, ok, err := s.store.Get(ctx, id, orgID)
	if err != nil {
		return Subscription{}, err
	}
	if !ok {
		return Subscription{}, &NotFoundError{ID: id, OrgID: orgID}
	}

	if patch.URL != nil {
		if err := s.validateURL(*patch.URL); err != nil {
			return Subscription{}, err
		}
		sub.URL = *patch.URL
	}
	if patch.Secret != nil {
		sub.Secret = *patch.Secret
	}
	if patch.Events != nil {
		if err := s.validateEvents(patch.Events); err != nil {
			return Subscription{}, err
		}
		sub.Events = append([]string(nil), patch.Events...)
	}
	sub.UpdatedAt = s.now().UTC()

	ok, err = s.store.Update(ctx, sub)
	if err != nil {
		return Subscription{}, err
	}
	if !ok {
		// Row vanished between read and write; last-write-wins semantics
		// make this equivalent to a plain miss.
		return Subscription{}, &NotFoundError{ID: id, OrgID: orgID}
	}
	return sub, nil
}

// Delete removes the subscription matching the (id, org) pair.
func (s *Service) Delete(ctx context.Context, id, orgID string) error {
	ok, err := s.store.Delete(ctx, id, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{ID: id, OrgID: orgID}
	}
	return nil
}

func (s *Service) validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &ValidationError{Field: "url", Reason: "must be an absolute URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "url", Reason: "scheme must be http or https"}
	}
	return nil
}

func (s *Service) validateEvents(events []string) error {
	if len(events) == 0 {
		return &ValidationError{Field: "events", Reason: "at least one event is required"}
	}
	for _, e := range events {
		if e == "" {
			return &ValidationError{Field: "events", Reason: "event names must be non-empty"}
		}
		if s.events != nil && !s.events.Contains(e) {
			return &ValidationError{Field: "events", Reason: "unknown event " + e}
		}
	}
	return nil
}

// generateSecret generates a random base64-encoded string of n bytes
func generateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + base64.RawURLEncoding.EncodeToString(b), nil
}
