package webhook

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emberhook/emberhook/internal/event"
)

func newTestService() *Service {
	return NewService(NewMemoryStore(), event.NewRegistry())
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tests := []struct {
		name      string
		url       string
		events    []string
		wantField string
	}{
		{
			name:      "relative url",
			url:       "/hook",
			events:    []string{"lead.created"},
			wantField: "url",
		},
		{
			name:      "missing host",
			url:       "https://",
			events:    []string{"lead.created"},
			wantField: "url",
		},
		{
			name:      "bad scheme",
			url:       "ftp://example.com/hook",
			events:    []string{"lead.created"},
			wantField: "url",
		},
		{
			name:      "empty events",
			url:       "https://example.com/hook",
			events:    nil,
			wantField: "events",
		},
		{
			name:      "blank event name",
			url:       "https://example.com/hook",
			events:    []string{""},
			wantField: "events",
		},
		{
			name:      "unknown event",
			url:       "https://example.com/hook",
			events:    []string{"payment.created"},
			wantField: "events",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "org_1", tt.url, "", tt.events)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("validation field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestCreateGeneratesSecret(t *testing.T) {
	svc := newTestService()
	sub, err := svc.Create(context.Background(), "org_1", "https://example.com/hook", "", []string{"lead.created"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !strings.HasPrefix(sub.ID, "wh_") {
		t.Errorf("id %q missing wh_ prefix", sub.ID)
	}
	if !strings.HasPrefix(sub.Secret, "whsec_") {
		t.Errorf("secret %q missing whsec_ prefix", sub.Secret)
	}
	if len(sub.Secret) < 40 {
		t.Errorf("generated secret too short: %d chars", len(sub.Secret))
	}
}

func TestCreateKeepsCallerSecret(t *testing.T) {
	svc := newTestService()
	sub, err := svc.Create(context.Background(), "org_1", "https://example.com/hook", "whsec_custom", []string{"lead.created"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sub.Secret != "whsec_custom" {
		t.Errorf("secret = %q, want caller-supplied value", sub.Secret)
	}
}

func TestGetScopedToOrg(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sub, err := svc.Create(ctx, "org_1", "https://example.com/hook", "", []string{"lead.created"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(ctx, sub.ID, "org_1"); err != nil {
		t.Fatalf("owner Get: %v", err)
	}

	// another org sees a miss, not a forbidden
	_, err = svc.Get(ctx, sub.ID, "org_2")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for foreign org, got %v", err)
	}
}

func TestUpdatePartialPatch(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sub, err := svc.Create(ctx, "org_1", "https://example.com/hook", "", []string{"lead.created"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newURL := "https://example.com/hook2"
	updated, err := svc.Update(ctx, sub.ID, "org_1", Patch{URL: &newURL})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.URL != newURL {
		t.Errorf("url = %q, want %q", updated.URL, newURL)
	}
	if updated.Secret != sub.Secret {
		t.Error("secret changed by URL-only patch")
	}
	if len(updated.Events) != 1 || updated.Events[0] != "lead.created" {
		t.Errorf("events changed by URL-only patch: %v", updated.Events)
	}
}

func TestUpdateValidatesPatch(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sub, err := svc.Create(ctx, "org_1", "https://example.com/hook", "", []string{"lead.created"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	badURL := "not a url"
	if _, err := svc.Update(ctx, sub.ID, "org_1", Patch{URL: &badURL}); err == nil {
		t.Error("expected validation error for bad URL patch")
	}
	if _, err := svc.Update(ctx, sub.ID, "org_1", Patch{Events: []string{"bogus.event"}}); err == nil {
		t.Error("expected validation error for unknown event patch")
	}

	// failed patches leave the row untouched
	got, err := svc.Get(ctx, sub.ID, "org_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.URL != sub.URL {
		t.Errorf("url mutated by rejected patch: %q", got.URL)
	}
}

func TestUpdateForeignOrg(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sub, err := svc.Create(ctx, "org_1", "https://example.com/hook", "", []string{"lead.created"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newURL := "https://evil.example.com/steal"
	_, err = svc.Update(ctx, sub.ID, "org_2", Patch{URL: &newURL})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	got, _ := svc.Get(ctx, sub.ID, "org_1")
	if got.URL != sub.URL {
		t.Error("foreign org update mutated the subscription")
	}
}

func TestDelete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	sub, err := svc.Create(ctx, "org_1", "https://example.com/hook", "", []string{"lead.created"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// foreign org delete is a miss
	var nf *NotFoundError
	if err := svc.Delete(ctx, sub.ID, "org_2"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for foreign delete, got %v", err)
	}

	if err := svc.Delete(ctx, sub.ID, "org_1"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := svc.Delete(ctx, sub.ID, "org_1"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for second delete, got %v", err)
	}
}

func TestListByOrgIsolation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "org_1", "https://a.example.com/hook", "", []string{"lead.created"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "org_1", "https://b.example.com/hook", "", []string{"contact.created"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "org_2", "https://c.example.com/hook", "", []string{"lead.created"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	subs, err := svc.ListByOrg(ctx, "org_1")
	if err != nil {
		t.Fatalf("ListByOrg: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions for org_1, got %d", len(subs))
	}
	for _, sub := range subs {
		if sub.OrgID != "org_1" {
			t.Errorf("foreign subscription leaked: %+v", sub)
		}
	}
}
