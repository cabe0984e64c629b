// Package api provides HTTP handlers for the drafting API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okovalenko/draftflow/internal/contracts"
	"github.com/okovalenko/draftflow/internal/domain"
	"github.com/okovalenko/draftflow/internal/schema"
	"github.com/okovalenko/draftflow/internal/session"
	"github.com/okovalenko/draftflow/internal/store"
)

// participantHeader carries the caller's identity. It is a trusted
// bearer identifier; authentication sits in front of this service.
const participantHeader = "X-Participant-ID"

// Handler provides common handler utilities and dependencies.
type Handler struct {
	backend   store.Backend
	svc       *session.Service
	schemas   *schema.Registry
	contracts contracts.Repository // nil disables the contracts surface
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(backend store.Backend, svc *session.Service, schemas *schema.Registry, repo contracts.Repository) *Handler {
	return &Handler{
		backend:   backend,
		svc:       svc,
		schemas:   schemas,
		contracts: repo,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeErr maps domain errors onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrLockTimeout):
		Error(w, http.StatusServiceUnavailable, "session is busy, retry later")
	case errors.Is(err, domain.ErrSessionImmutable):
		Error(w, http.StatusConflict, "session is completed and immutable")
	case domain.IsSchemaError(err):
		Error(w, http.StatusBadRequest, err.Error())
	case domain.IsRoleConflict(err):
		Error(w, http.StatusConflict, err.Error())
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// participantID extracts the caller's identity, writing a 400 and
// returning "" when the header is missing.
func participantID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(participantHeader)
	if id == "" {
		Error(w, http.StatusBadRequest, participantHeader+" header is required")
	}
	return id
}

// decodeBody parses a JSON request body into v, writing a 400 on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
