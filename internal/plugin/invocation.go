package plugin

// Invocation is one queued plugin action call. Like webhook delivery tasks it
// snapshots the installation's configuration at enqueue time; a configuration
// change between enqueue and invocation does not affect in-flight work.
type Invocation struct {
	InvocationID string            `json:"invocation_id"`
	EventID      string            `json:"event_id"`
	OrgID        string            `json:"org_id"`
	Slug         string            `json:"slug"`
	EventType    string            `json:"event_type"`
	Payload      map[string]any    `json:"payload"`
	Config       map[string]string `json:"config"`
	PublishedAt  string            `json:"published_at"` // RFC3339
	TraceHeaders map[string]string `json:"trace_headers,omitempty"`
}
