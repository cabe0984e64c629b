package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/okovalenko/draftflow/internal/contracts"
	"github.com/okovalenko/draftflow/internal/domain"
	"github.com/okovalenko/draftflow/internal/session"
	"github.com/okovalenko/draftflow/internal/store"
)

// RegisterRoutes mounts the session and catalog endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/", h.ListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Get("/missing", h.MissingFields)
			r.Post("/category", h.SetCategory)
			r.Post("/template", h.SetTemplate)
			r.Post("/party-type", h.SetPartyType)
			r.Post("/fields", h.UpdateField)
			r.Post("/claim", h.ClaimRole)
			r.Post("/sign", h.Sign)
			r.Post("/build", h.Build)
			r.Post("/ready-to-sign", h.ReadyToSign)
		})
	})
	r.Get("/api/categories", h.ListCategories)
	if h.contracts != nil {
		r.Get("/api/contracts", h.ListContracts)
		r.Get("/api/contracts/{sessionID}", h.GetContract)
	}
}

// CreateSession opens a session, generating an id when none is given.
// Reposting an existing id returns the existing session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	pid := participantID(w, r)
	if pid == "" {
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	sess, err := h.backend.GetOrCreate(r.Context(), req.SessionID, pid)
	if err != nil {
		writeErr(w, err)
		return
	}
	JSON(w, http.StatusOK, sess)
}

// GetSession returns the full session aggregate.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.backend.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	JSON(w, http.StatusOK, sess)
}

// ListSessions returns the caller's sessions, newest first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	pid := participantID(w, r)
	if pid == "" {
		return
	}
	sessions, err := h.backend.ListByParticipant(r.Context(), pid)
	if err != nil {
		writeErr(w, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	JSON(w, http.StatusOK, sessions)
}

// MissingFields lists the required fields that do not validate yet.
func (h *Handler) MissingFields(w http.ResponseWriter, r *http.Request) {
	sess, err := h.backend.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	missing, err := h.svc.MissingFields(sess)
	if err != nil {
		writeErr(w, err)
		return
	}
	if missing == nil {
		missing = []session.MissingField{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"can_build_contract": sess.CanBuildContract,
		"progress":           sess.Progress,
		"missing":            missing,
	})
}

// mutate runs body against the session under its transactional lock
// and responds with the updated aggregate.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, body func(*domain.Session) error) {
	sessionID := chi.URLParam(r, "sessionID")
	var updated *domain.Session
	err := h.backend.WithTransaction(r.Context(), sessionID, func(sess *domain.Session) error {
		if err := body(sess); err != nil {
			return err
		}
		updated = sess
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	JSON(w, http.StatusOK, updated)
}

// SetCategory selects the document category.
func (h *Handler) SetCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID string `json:"category_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, func(sess *domain.Session) error {
		return h.svc.SetCategory(sess, req.CategoryID)
	})
}

// SetTemplate selects a template within the current category.
func (h *Handler) SetTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, func(sess *domain.Session) error {
		return h.svc.SetTemplate(sess, req.TemplateID)
	})
}

// SetPartyType records a role's person type.
func (h *Handler) SetPartyType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role       string `json:"role"`
		PersonType string `json:"person_type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, func(sess *domain.Session) error {
		return h.svc.SetPartyType(sess, req.Role, req.PersonType)
	})
}

// UpdateField applies one field mutation. Validation failures are
// regular 200 responses with ok=false; the field state and the user
// message travel back to the client either way.
func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	pid := participantID(w, r)
	if pid == "" {
		return
	}
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
		Role  string `json:"role"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Field == "" {
		Error(w, http.StatusBadRequest, "field is required")
		return
	}

	var resp struct {
		OK         bool              `json:"ok"`
		Message    string            `json:"message,omitempty"`
		FieldState domain.FieldState `json:"field_state"`
		Session    *domain.Session   `json:"session"`
	}
	actor := session.Actor{ParticipantID: pid, Source: "api"}
	err := h.backend.WithTransaction(r.Context(), chi.URLParam(r, "sessionID"), func(sess *domain.Session) error {
		ok, msg, fs, err := h.svc.UpdateField(sess, req.Field, req.Value, req.Role, actor)
		if err != nil {
			return err
		}
		resp.OK, resp.Message, resp.FieldState, resp.Session = ok, msg, fs, sess
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// ClaimRole assigns a role to the caller.
func (h *Handler) ClaimRole(w http.ResponseWriter, r *http.Request) {
	pid := participantID(w, r)
	if pid == "" {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, func(sess *domain.Session) error {
		return h.svc.ClaimRole(sess, req.Role, pid)
	})
}

// Sign records the caller's signature for their claimed role.
func (h *Handler) Sign(w http.ResponseWriter, r *http.Request) {
	pid := participantID(w, r)
	if pid == "" {
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, func(sess *domain.Session) error {
		if err := h.svc.Sign(sess, req.Role, pid); err != nil {
			return err
		}
		h.registerContract(r.Context(), sess)
		return nil
	})
}

// Build marks a ready session as built and registers the contract.
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(sess *domain.Session) error {
		if err := h.svc.MarkBuilt(sess); err != nil {
			return domain.Schemaf("%v", err)
		}
		h.registerContract(r.Context(), sess)
		return nil
	})
}

// ReadyToSign freezes a built session for signing.
func (h *Handler) ReadyToSign(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(sess *domain.Session) error {
		if err := h.svc.MarkReadyToSign(sess); err != nil {
			return domain.Schemaf("%v", err)
		}
		h.registerContract(r.Context(), sess)
		return nil
	})
}

// registerContract upserts the contract record for a session. Failures
// are logged and never fail the request; the session itself remains the
// source of truth.
func (h *Handler) registerContract(ctx context.Context, sess *domain.Session) {
	if h.contracts == nil {
		return
	}
	payload, err := json.Marshal(store.BuildProjection(sess, h.schemas))
	if err != nil {
		return
	}
	rec := &contracts.Record{
		SessionID:  sess.SessionID,
		CategoryID: sess.CategoryID,
		TemplateID: sess.TemplateID,
		OwnerID:    sess.CreatorID,
		State:      string(sess.State),
		Payload:    payload,
	}
	if err := h.contracts.Upsert(ctx, rec); err != nil {
		slog.Warn("contract registration failed",
			"session_id", sess.SessionID, "error", err)
	}
}

// ListContracts returns the caller's registered contracts.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	pid := participantID(w, r)
	if pid == "" {
		return
	}
	records, err := h.contracts.ListForOwner(r.Context(), pid)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list contracts")
		return
	}
	if records == nil {
		records = []*contracts.Record{}
	}
	JSON(w, http.StatusOK, records)
}

// GetContract returns one registered contract.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	rec, err := h.contracts.GetBySession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load contract")
		return
	}
	if rec == nil {
		Error(w, http.StatusNotFound, "contract not found")
		return
	}
	JSON(w, http.StatusOK, rec)
}
