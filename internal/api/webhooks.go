package api

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/emberhook/emberhook/internal/webhook"
)

// webhookResponse is the wire shape of a subscription. The signing secret is
// returned only from create; reads omit it.
type webhookResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Events    []string  `json:"events"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWebhookResponse(sub webhook.Subscription, includeSecret bool) webhookResponse {
	resp := webhookResponse{
		ID:        sub.ID,
		URL:       sub.URL,
		Events:    sub.Events,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
	if includeSecret {
		resp.Secret = sub.Secret
	}
	return resp
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": s.Events.List()})
}

func (s *Server) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string   `json:"url"`
		Secret string   `json:"secret"`
		Events []string `json:"events"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := s.Webhooks.Create(r.Context(), orgID(r), req.URL, req.Secret, req.Events)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWebhookResponse(sub, true))
}

func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request) {
	subs, err := s.Webhooks.ListByOrg(r.Context(), orgID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]webhookResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toWebhookResponse(sub, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": out})
}

func (s *Server) getWebhook(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	sub, err := s.Webhooks.Get(r.Context(), id, orgID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWebhookResponse(sub, false))
}

func (s *Server) updateWebhook(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	var patch webhook.Patch
	if !decodeBody(w, r, &patch) {
		return
	}
	sub, err := s.Webhooks.Update(r.Context(), id, orgID(r), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWebhookResponse(sub, false))
}

func (s *Server) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	if err := s.Webhooks.Delete(r.Context(), id, orgID(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
