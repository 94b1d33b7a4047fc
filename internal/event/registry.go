// Package event holds the vocabulary of domain events the application can
// emit. Event identifiers are "<domain>.<action>" strings; the full set is
// fixed at startup and queryable for subscription UIs.
package event

import (
	"sort"
	"strings"
)

// Descriptor is one subscribable event: the canonical identifier plus a
// human-readable display label.
type Descriptor struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// domainActions is the statically known set of event-emitting operations.
var domainActions = []struct {
	domain  string
	actions []string
}{
	{"lead", []string{"created", "updated", "deleted"}},
	{"contact", []string{"created", "updated", "deleted"}},
	{"submission", []string{"created"}},
	{"member", []string{"invited", "joined", "removed"}},
	{"organization", []string{"created", "updated"}},
	{"invoice", []string{"created", "paid", "payment_failed"}},
}

// Registry is the immutable event vocabulary, built once at process
// initialization and injected where needed.
type Registry struct {
	descriptors []Descriptor
	index       map[string]struct{}
}

// NewRegistry builds the registry from the built-in domain operations.
func NewRegistry() *Registry {
	return newRegistryFrom(domainActions)
}

func newRegistryFrom(src []struct {
	domain  string
	actions []string
}) *Registry {
	r := &Registry{index: make(map[string]struct{})}
	for _, d := range src {
		for _, a := range d.actions {
			value := d.domain + "." + a
			if _, dup := r.index[value]; dup {
				continue
			}
			r.index[value] = struct{}{}
			r.descriptors = append(r.descriptors, Descriptor{
				Value: value,
				Label: label(d.domain, a),
			})
		}
	}
	sort.Slice(r.descriptors, func(i, j int) bool {
		return r.descriptors[i].Value < r.descriptors[j].Value
	})
	return r
}

// List returns the full vocabulary, sorted by identifier. The returned slice
// is a copy; callers may not mutate registry state through it.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Contains reports whether value is a known event identifier.
func (r *Registry) Contains(value string) bool {
	_, ok := r.index[value]
	return ok
}

// label turns "lead" + "payment_failed" into "Lead payment failed".
func label(domain, action string) string {
	d := strings.ToUpper(domain[:1]) + domain[1:]
	return d + " " + strings.ReplaceAll(action, "_", " ")
}
