package providers

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emberhook/emberhook/internal/plugin"
)

// capture records the single request a test server received.
type capture struct {
	method string
	path   string
	header http.Header
	body   []byte
}

// newCaptureServer returns a server that records the last request and answers
// with the given status.
func newCaptureServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.method = r.Method
		c.path = r.URL.Path
		c.header = r.Header.Clone()
		c.body = body
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func decodeBody(t *testing.T, c *capture) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(c.body, &out); err != nil {
		t.Fatalf("decode captured body: %v (body=%q)", err, c.body)
	}
	return out
}

func sampleInput() plugin.Input {
	return plugin.Input{
		Event: "lead.created",
		Data: map[string]any{
			"name":   "Ada Lovelace",
			"email":  "ada@example.com",
			"score":  float64(87),
			"nested": map[string]any{"ignored": true},
		},
	}
}

func TestPostJSONStatusHandling(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"200 ok", http.StatusOK, false},
		{"204 no content", http.StatusNoContent, false},
		{"400 bad request", http.StatusBadRequest, true},
		{"500 server error", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, c := newCaptureServer(t, tt.status)
			err := postJSON(context.Background(), srv.Client(), srv.URL, map[string]any{"k": "v"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("postJSON status %d: err = %v, wantErr %v", tt.status, err, tt.wantErr)
			}
			if ct := c.header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
		})
	}
}

func TestEventTitle(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{"lead.created", "Lead created"},
		{"invoice.payment_failed", "Invoice payment failed"},
		{"member.deleted", "Member deleted"},
		{"noseparator", "noseparator"},
		{".created", ".created"},
	}
	for _, tt := range tests {
		if got := eventTitle(tt.event); got != tt.want {
			t.Errorf("eventTitle(%q) = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	got := summarize("lead.created", map[string]any{
		"name":   "Ada",
		"score":  float64(87),
		"nested": map[string]any{"dropped": true},
		"tags":   []any{"a", "b"},
	})
	want := "Lead created: name=Ada, score=87"
	if got != want {
		t.Fatalf("summarize = %q, want %q", got, want)
	}
}

func TestSummarizeNoScalars(t *testing.T) {
	got := summarize("lead.created", map[string]any{"nested": map[string]any{}})
	if got != "Lead created" {
		t.Fatalf("summarize = %q, want %q", got, "Lead created")
	}
}

func TestDiscordShaping(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusNoContent)
	d := &Discord{client: srv.Client()}
	pc := plugin.Context{
		Config: map[string]string{"webhook_url": srv.URL, "username": "EmberHook"},
		Input:  sampleInput(),
	}
	if err := d.SendEvent(context.Background(), pc); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}

	body := decodeBody(t, c)
	if body["username"] != "EmberHook" {
		t.Errorf("username = %v, want EmberHook", body["username"])
	}
	embeds, ok := body["embeds"].([]any)
	if !ok || len(embeds) != 1 {
		t.Fatalf("embeds = %v, want one embed", body["embeds"])
	}
	embed := embeds[0].(map[string]any)
	if embed["title"] != "Lead created" {
		t.Errorf("embed title = %v, want Lead created", embed["title"])
	}
	fields := embed["fields"].([]any)
	// Scalar fields only, sorted by key: email, name, score.
	if len(fields) != 3 {
		t.Fatalf("embed fields = %d, want 3", len(fields))
	}
	first := fields[0].(map[string]any)
	if first["name"] != "email" || first["value"] != "ada@example.com" {
		t.Errorf("first field = %v, want email=ada@example.com", first)
	}
	if first["inline"] != true {
		t.Errorf("field inline = %v, want true", first["inline"])
	}
}

func TestDiscordOmitsUsernameWhenUnset(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusNoContent)
	d := &Discord{client: srv.Client()}
	pc := plugin.Context{
		Config: map[string]string{"webhook_url": srv.URL},
		Input:  sampleInput(),
	}
	if err := d.SendEvent(context.Background(), pc); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}
	if _, ok := decodeBody(t, c)["username"]; ok {
		t.Error("username present in body, want omitted")
	}
}

func TestDiscordFieldCap(t *testing.T) {
	data := make(map[string]any)
	for i := 0; i < 30; i++ {
		data[string(rune('a'+i))] = i
	}
	if got := len(discordFields(data)); got != 25 {
		t.Fatalf("discordFields length = %d, want 25", got)
	}
}

func TestSlackShaping(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusOK)
	s := &Slack{client: srv.Client()}
	pc := plugin.Context{
		Config: map[string]string{"webhook_url": srv.URL},
		Input:  sampleInput(),
	}
	if err := s.SendEvent(context.Background(), pc); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}

	body := decodeBody(t, c)
	text, _ := body["text"].(string)
	if text == "" {
		t.Fatal("text missing from slack body")
	}
	blocks, ok := body["blocks"].([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("blocks = %v, want header + section", body["blocks"])
	}
	header := blocks[0].(map[string]any)
	if header["type"] != "header" {
		t.Errorf("first block type = %v, want header", header["type"])
	}
	headerText := header["text"].(map[string]any)
	if headerText["text"] != "Lead created" {
		t.Errorf("header text = %v, want Lead created", headerText["text"])
	}
	section := blocks[1].(map[string]any)
	if section["type"] != "section" {
		t.Errorf("second block type = %v, want section", section["type"])
	}
}

func TestTelegramShaping(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusOK)
	tg := &Telegram{client: srv.Client(), BaseURL: srv.URL}
	pc := plugin.Context{
		Config: map[string]string{"bot_token": "123:abc", "chat_id": "-100200"},
		Input:  sampleInput(),
	}
	if err := tg.SendEvent(context.Background(), pc); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}

	if c.path != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q, want /bot123:abc/sendMessage", c.path)
	}
	body := decodeBody(t, c)
	if body["chat_id"] != "-100200" {
		t.Errorf("chat_id = %v, want -100200", body["chat_id"])
	}
	if body["text"] == "" {
		t.Error("text missing from telegram body")
	}
}

func TestZapierForwardsRawEvent(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusOK)
	z := &Zapier{client: srv.Client()}
	pc := plugin.Context{
		Config: map[string]string{"hook_url": srv.URL},
		Input:  sampleInput(),
	}
	if err := z.SendEvent(context.Background(), pc); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}

	body := decodeBody(t, c)
	if body["event"] != "lead.created" {
		t.Errorf("event = %v, want lead.created", body["event"])
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["name"] != "Ada Lovelace" {
		t.Errorf("data = %v, want full payload including nested values", body["data"])
	}
	if _, ok := data["nested"]; !ok {
		t.Error("nested payload values dropped, want raw forward")
	}
}

func TestMakeForwardsRawEvent(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusOK)
	m := &Make{client: srv.Client()}
	pc := plugin.Context{
		Config: map[string]string{"webhook_url": srv.URL},
		Input:  sampleInput(),
	}
	if err := m.SendEvent(context.Background(), pc); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}

	body := decodeBody(t, c)
	if body["event"] != "lead.created" {
		t.Errorf("event = %v, want lead.created", body["event"])
	}
	if _, ok := body["data"].(map[string]any); !ok {
		t.Errorf("data = %v, want payload map", body["data"])
	}
}

func TestMailchimpUpsertsMember(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusOK)
	m := &Mailchimp{client: srv.Client(), BaseURL: srv.URL}
	pc := plugin.Context{
		Config: map[string]string{"api_key": "secret-us21", "list_id": "list42"},
		Input: plugin.Input{
			Event: "contact.created",
			Data: map[string]any{
				"email":      "Ada@Example.com ",
				"first_name": "Ada",
				"last_name":  "Lovelace",
			},
		},
	}
	if err := m.SendEvent(context.Background(), pc); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}

	if c.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", c.method)
	}
	hash := md5.Sum([]byte("ada@example.com"))
	wantPath := "/3.0/lists/list42/members/" + hex.EncodeToString(hash[:])
	if c.path != wantPath {
		t.Errorf("path = %q, want %q", c.path, wantPath)
	}
	user, pass, ok := parseBasicAuth(c.header.Get("Authorization"))
	if !ok || pass != "secret-us21" {
		t.Errorf("basic auth = %q/%q ok=%v, want api key as password", user, pass, ok)
	}

	body := decodeBody(t, c)
	if body["email_address"] != "ada@example.com" {
		t.Errorf("email_address = %v, want normalized ada@example.com", body["email_address"])
	}
	if body["status_if_new"] != "subscribed" {
		t.Errorf("status_if_new = %v, want subscribed", body["status_if_new"])
	}
	merge, ok := body["merge_fields"].(map[string]any)
	if !ok || merge["FNAME"] != "Ada" || merge["LNAME"] != "Lovelace" {
		t.Errorf("merge_fields = %v, want FNAME/LNAME", body["merge_fields"])
	}
}

func TestMailchimpSkipsEventsWithoutEmail(t *testing.T) {
	srv, c := newCaptureServer(t, http.StatusOK)
	m := &Mailchimp{client: srv.Client(), BaseURL: srv.URL}
	pc := plugin.Context{
		Config: map[string]string{"api_key": "secret-us21", "list_id": "list42"},
		Input:  plugin.Input{Event: "member.deleted", Data: map[string]any{"id": "m_1"}},
	}
	if err := m.SendEvent(context.Background(), pc); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}
	if c.method != "" {
		t.Fatalf("request sent for email-less event: %s %s", c.method, c.path)
	}
}

func TestMailchimpRejectsKeyWithoutDatacenter(t *testing.T) {
	m := &Mailchimp{client: http.DefaultClient}
	pc := plugin.Context{
		Config: map[string]string{"api_key": "nodatacenter", "list_id": "list42"},
		Input:  plugin.Input{Event: "contact.created", Data: map[string]any{"email": "a@b.com"}},
	}
	if err := m.SendEvent(context.Background(), pc); err == nil {
		t.Fatal("SendEvent accepted api_key without datacenter suffix")
	}
}

func TestAllRegistersEveryProvider(t *testing.T) {
	defs := All(nil)
	want := map[string]bool{
		"discord": false, "slack": false, "telegram": false,
		"zapier": false, "make": false, "mailchimp": false,
	}
	for _, def := range defs {
		if _, ok := want[def.Slug]; !ok {
			t.Errorf("unexpected provider %q", def.Slug)
			continue
		}
		want[def.Slug] = true
		if def.Handler == nil {
			t.Errorf("provider %q has nil handler", def.Slug)
		}
	}
	for slug, seen := range want {
		if !seen {
			t.Errorf("provider %q missing from All", slug)
		}
	}
}

// parseBasicAuth decodes an Authorization header via a throwaway request so
// the test does not reimplement base64 handling.
func parseBasicAuth(header string) (user, pass string, ok bool) {
	r := &http.Request{Header: http.Header{"Authorization": []string{header}}}
	return r.BasicAuth()
}
