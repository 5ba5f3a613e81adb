package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avstrong/hotel/internal/apperr"
)

type errorBody struct {
	Error     string              `json:"error"`
	Fields    map[string][]string `json:"fields,omitempty"`
	Remaining *int64              `json:"remaining,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

// writeError maps domain errors onto status codes. Anything unrecognised is logged and
// hidden behind a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if inputErr := apperr.IsValidationError(err); inputErr != nil {
		body := errorBody{Error: "validation failed", Fields: inputErr.Fields()} //nolint:exhaustruct
		if remaining, ok := inputErr.Remaining(); ok {
			body.Remaining = &remaining
		}

		s.writeJSON(w, http.StatusBadRequest, body)

		return
	}

	if errors.Is(err, apperr.ErrIdempotencyKey) {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "Idempotency-Key header is missing"}) //nolint:exhaustruct

		return
	}

	if errors.Is(err, apperr.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()}) //nolint:exhaustruct

		return
	}

	if errors.Is(err, apperr.ErrDuplicate) {
		s.writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()}) //nolint:exhaustruct

		return
	}

	if conflictErr := apperr.IsStateConflictError(err); conflictErr != nil {
		s.writeJSON(w, http.StatusConflict, errorBody{Error: conflictErr.Error()}) //nolint:exhaustruct

		return
	}

	if staleErr := apperr.IsStaleDataError(err); staleErr != nil {
		s.writeJSON(w, http.StatusPreconditionFailed, errorBody{Error: staleErr.Error()}) //nolint:exhaustruct

		return
	}

	if transientErr := apperr.IsTransientIOError(err); transientErr != nil {
		s.l.LogWarnf("Transient failure: %v", transientErr.Error())
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "temporarily unavailable, retry"}) //nolint:exhaustruct

		return
	}

	s.l.LogErrorf("Request failed: %v", err.Error())
	s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: http.StatusText(http.StatusInternalServerError)}) //nolint:exhaustruct
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorBody{Error: msg}) //nolint:exhaustruct
}
