// Package plugin implements third-party integration fan-out: the registry of
// available plugins, per-organization installations, and the router that
// invokes plugin handlers for dispatched events.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Input is the generic event delivered to a plugin action.
type Input struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// Context carries everything a handler invocation may use: the installation's
// validated configuration and the event input.
type Context struct {
	Config map[string]string
	Input  Input
}

// Handler is the action surface a plugin implements. SendEvent shapes the
// generic payload into the provider's schema and performs the outbound call.
// Events the provider has no use for are a no-op, not an error.
type Handler interface {
	SendEvent(ctx context.Context, pc Context) error
}

// Definition describes one installable plugin.
type Definition struct {
	Slug    string
	Label   string
	Schema  Schema
	Handler Handler
}

// Registry maps plugin slugs to definitions. It is populated once at process
// startup and injected; registration after startup is not supported.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Definition)}
}

func (r *Registry) Register(def Definition) error {
	slug := strings.TrimSpace(def.Slug)
	if slug == "" {
		return fmt.Errorf("plugin: slug is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("plugin: handler is required for %s", slug)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[slug]; exists {
		return fmt.Errorf("plugin: already registered: %s", slug)
	}
	r.plugins[slug] = def
	return nil
}

// MustRegister registers all definitions and panics on conflict. Intended for
// process initialization where a duplicate slug is a programming error.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(slug string) (Definition, bool) {
	r.mu.RLock()
	def, ok := r.plugins[strings.TrimSpace(slug)]
	r.mu.RUnlock()
	return def, ok
}

// List returns all definitions sorted by slug.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.plugins))
	for _, def := range r.plugins {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}
