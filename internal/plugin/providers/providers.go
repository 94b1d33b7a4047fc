// Package providers contains the built-in plugin integrations. Each provider
// shapes the generic event payload into its own API schema and performs its
// own outbound HTTP call; failure classification stays provider-local.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/emberhook/emberhook/internal/plugin"
)

// All returns the definitions for every built-in provider. A nil client gets
// a default one with a 10 second timeout.
func All(client *http.Client) []plugin.Definition {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return []plugin.Definition{
		NewDiscord(client),
		NewSlack(client),
		NewTelegram(client),
		NewZapier(client),
		NewMake(client),
		NewMailchimp(client),
	}
}

// postJSON sends one JSON POST and fails on transport errors or 4xx/5xx
// responses. The response body is drained so connections can be reused.
func postJSON(ctx context.Context, client *http.Client, url string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
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

// summarize renders a short human-readable line for chat-style providers:
// the event label followed by the payload's scalar fields in key order.
func summarize(event string, data map[string]any) string {
	var sb strings.Builder
	sb.WriteString(eventTitle(event))

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	first := true
	for _, k := range keys {
		v := data[k]
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		if first {
			sb.WriteString(": ")
			first = false
		} else {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", k, v)
	}
	return sb.String()
}

// eventTitle turns "lead.created" into "Lead created".
func eventTitle(event string) string {
	domain, action, ok := strings.Cut(event, ".")
	if !ok || domain == "" {
		return event
	}
	title := strings.ToUpper(domain[:1]) + domain[1:]
	if action != "" {
		title += " " + strings.ReplaceAll(action, "_", " ")
	}
	return title
}

// stringField pulls a string value out of the generic payload.
func stringField(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
