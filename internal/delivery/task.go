package delivery

// Task is one queued webhook delivery. URL and secret are snapshots taken at
// enqueue time; the subscription is never re-read at delivery time, so a
// subscription edit or delete after enqueue does not affect in-flight work.
type Task struct {
	DeliveryID   string            `json:"delivery_id"`
	EventID      string            `json:"event_id"`
	OrgID        string            `json:"org_id"`
	WebhookID    string            `json:"webhook_id"`
	URL          string            `json:"url"`
	Secret       string            `json:"secret"`
	EventType    string            `json:"event_type"`
	Payload      map[string]any    `json:"payload"`
	Attempt      int               `json:"attempt"`
	PublishedAt  string            `json:"published_at"`             // RFC3339
	TraceHeaders map[string]string `json:"trace_headers,omitempty"` // OTel trace propagation headers
}
