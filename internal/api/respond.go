package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/emberhook/emberhook/internal/dispatch"
	"github.com/emberhook/emberhook/internal/plugin"
	"github.com/emberhook/emberhook/internal/webhook"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg, Code: status})
}

// fail maps service errors onto the response envelope. Unrecognized errors
// become a 500 with a generic message so internals don't leak.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		whValidation *webhook.ValidationError
		plValidation *plugin.ValidationError
		whNotFound   *webhook.NotFoundError
		plNotFound   *plugin.NotFoundError
		dpNotFound   *dispatch.NotFoundError
		unknownEvent *dispatch.UnknownEventError
	)
	switch {
	case errors.As(err, &whValidation), errors.As(err, &plValidation):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.As(err, &unknownEvent):
		writeError(w, http.StatusBadRequest, "unknown_event", err.Error())
	case errors.As(err, &whNotFound), errors.As(err, &plNotFound), errors.As(err, &dpNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.Logger.WithContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body: "+err.Error())
		return false
	}
	return true
}
