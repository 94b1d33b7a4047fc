// Package api exposes the control-plane REST surface: event vocabulary,
// webhook subscription CRUD, plugin installation management, event dispatch,
// and the delivery/DLQ status queries. All /v1 routes are JWT-authenticated
// and scoped to the token's organization.
package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/emberhook/emberhook/internal/auth"
	"github.com/emberhook/emberhook/internal/delivery"
	"github.com/emberhook/emberhook/internal/dispatch"
	"github.com/emberhook/emberhook/internal/event"
	"github.com/emberhook/emberhook/internal/logging"
	"github.com/emberhook/emberhook/internal/plugin"
	"github.com/emberhook/emberhook/internal/webhook"
)

// AttemptReader is the ledger read surface the status endpoints need.
// *delivery.PostgresLedger satisfies it.
type AttemptReader interface {
	ListAttempts(ctx context.Context, f delivery.AttemptFilter) ([]delivery.Attempt, error)
	ListDLQ(ctx context.Context, orgID, webhookID string, limit int) ([]delivery.Attempt, error)
}

// Server holds the wired services behind the REST routes.
type Server struct {
	Events     *event.Registry
	Webhooks   *webhook.Service
	Plugins    *plugin.Service
	Catalog    *plugin.Registry
	Dispatcher *dispatch.Dispatcher
	Attempts   AttemptReader
	Auth       *auth.JWTValidator
	Logger     *logging.Logger

	// Health and Metrics are mounted unauthenticated.
	Health  http.HandlerFunc
	Metrics http.Handler
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := httprouter.New()

	if s.Health != nil {
		r.HandlerFunc(http.MethodGet, "/healthz", s.Health)
	}
	if s.Metrics != nil {
		r.Handler(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Handler(http.MethodGet, "/v1/events", s.authed(s.listEvents))

	r.Handler(http.MethodPost, "/v1/webhooks", s.authed(s.createWebhook))
	r.Handler(http.MethodGet, "/v1/webhooks", s.authed(s.listWebhooks))
	r.Handler(http.MethodGet, "/v1/webhooks/:id", s.authed(s.getWebhook))
	r.Handler(http.MethodPatch, "/v1/webhooks/:id", s.authed(s.updateWebhook))
	r.Handler(http.MethodDelete, "/v1/webhooks/:id", s.authed(s.deleteWebhook))

	r.Handler(http.MethodGet, "/v1/plugins", s.authed(s.listPlugins))
	r.Handler(http.MethodGet, "/v1/plugins/:slug", s.authed(s.getPlugin))
	r.Handler(http.MethodPut, "/v1/plugins/:slug", s.authed(s.installPlugin))
	r.Handler(http.MethodDelete, "/v1/plugins/:slug", s.authed(s.uninstallPlugin))

	r.Handler(http.MethodPost, "/v1/dispatch", s.authed(s.dispatchEvent))

	r.Handler(http.MethodGet, "/v1/deliveries", s.authed(s.listDeliveries))
	r.Handler(http.MethodPost, "/v1/deliveries/:id/replay", s.authed(s.replayDelivery))
	r.Handler(http.MethodGet, "/v1/dlq", s.authed(s.listDLQ))

	return r
}

// authed wraps a handler with bearer-token validation. When no validator is
// configured (tests, local dev with AUTH_DISABLED) the handler runs with
// whatever org the request context already carries.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	if s.Auth == nil {
		return h
	}
	return s.Auth.Middleware(h)
}

func orgID(r *http.Request) string {
	org, _ := auth.OrgFromContext(r.Context())
	return org
}
