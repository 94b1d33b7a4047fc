package providers

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/emberhook/emberhook/internal/plugin"
)

// Mailchimp upserts list members from events that carry an email address.
// Events without one are a no-op; this provider is an audience sync, not a
// general notifier.
type Mailchimp struct {
	client *http.Client

	// BaseURL overrides the Mailchimp API host in tests. When empty, the
	// host is derived from the API key's datacenter suffix.
	BaseURL string
}

func NewMailchimp(client *http.Client) plugin.Definition {
	return plugin.Definition{
		Slug:  "mailchimp",
		Label: "Mailchimp",
		Schema: plugin.Schema{Fields: []plugin.Field{
			{Name: "api_key", Label: "API key", Kind: plugin.FieldString, Required: true, Secret: true},
			{Name: "list_id", Label: "Audience ID", Kind: plugin.FieldString, Required: true},
		}},
		Handler: &Mailchimp{client: client},
	}
}

func (m *Mailchimp) SendEvent(ctx context.Context, pc plugin.Context) error {
	email := strings.ToLower(strings.TrimSpace(stringField(pc.Input.Data, "email")))
	if email == "" {
		// Nothing to sync for this event.
		return nil
	}

	apiKey := pc.Config["api_key"]
	_, dc, ok := strings.Cut(apiKey, "-")
	if !ok || dc == "" {
		return fmt.Errorf("api_key has no datacenter suffix")
	}

	member := map[string]any{
		"email_address": email,
		"status_if_new": "subscribed",
	}
	merge := map[string]any{}
	if v := stringField(pc.Input.Data, "first_name"); v != "" {
		merge["FNAME"] = v
	}
	if v := stringField(pc.Input.Data, "last_name"); v != "" {
		merge["LNAME"] = v
	}
	if len(merge) > 0 {
		member["merge_fields"] = merge
	}

	base := m.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.api.mailchimp.com", dc)
	}
	hash := md5.Sum([]byte(email))
	url := fmt.Sprintf("%s/3.0/lists/%s/members/%s",
		base, pc.Config["list_id"], hex.EncodeToString(hash[:]))

	b, err := json.Marshal(member)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("emberhook", apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
