package api

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/emberhook/emberhook/internal/delivery"
)

func (s *Server) dispatchEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "event is required")
		return
	}
	res, err := s.Dispatcher.Dispatch(r.Context(), orgID(r), req.Event, req.Data, r.Header.Get("Idempotency-Key"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusAccepted
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *Server) listDeliveries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	attempts, err := s.Attempts.ListAttempts(r.Context(), delivery.AttemptFilter{
		OrgID:     orgID(r),
		EventID:   q.Get("event_id"),
		WebhookID: q.Get("webhook_id"),
		Limit:     queryLimit(q.Get("limit")),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []delivery.Attempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": attempts})
}

func (s *Server) replayDelivery(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "manual replay"
	}
	newID, err := s.Dispatcher.Replay(r.Context(), orgID(r), id, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"delivery_id": newID,
		"replay_of":   id,
	})
}

func (s *Server) listDLQ(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	attempts, err := s.Attempts.ListDLQ(r.Context(), orgID(r), q.Get("webhook_id"), queryLimit(q.Get("limit")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []delivery.Attempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"dlq": attempts})
}

func queryLimit(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
