// Package webhook implements the organization-scoped webhook subscription
// registry: the records pairing a destination URL and signing secret with the
// set of event names the destination wants to receive.
package webhook

import (
	"fmt"
	"time"
)

// Subscription is one organization-owned webhook registration.
type Subscription struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret"`
	Events    []string  `json:"events"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch carries a partial update. Nil pointer fields keep their prior value;
// a nil Events slice keeps the prior event set.
type Patch struct {
	URL    *string  `json:"url,omitempty"`
	Secret *string  `json:"secret,omitempty"`
	Events []string `json:"events,omitempty"`
}

// ValidationError reports malformed registration input. It is surfaced
// synchronously to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an (id, org) pair with no matching subscription.
// A correct id under the wrong organization yields the same error.
type NotFoundError struct {
	ID    string
	OrgID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("webhook %s not found for organization %s", e.ID, e.OrgID)
}
