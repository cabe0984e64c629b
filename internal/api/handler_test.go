package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/okovalenko/draftflow/internal/contracts"
	"github.com/okovalenko/draftflow/internal/domain"
	"github.com/okovalenko/draftflow/internal/schema"
	"github.com/okovalenko/draftflow/internal/session"
	"github.com/okovalenko/draftflow/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func testRegistry() *schema.Registry {
	r := schema.NewRegistry()
	r.AddCategory(&schema.Category{
		ID:    "lease",
		Label: "Оренда",
		Roles: map[string]schema.RoleMeta{
			"lessor": {DefaultPersonType: "individual"},
			"lessee": {DefaultPersonType: "individual"},
		},
		PartyModules: map[string]schema.PartyModule{
			"individual": {Fields: []schema.PartyField{
				{Field: "full_name", Label: "ПІБ", Required: true},
			}},
		},
		ContractFields: []schema.ContractField{
			{Field: "contract_date", Type: "date", Label: "Дата", Required: true},
		},
	})
	r.AddTemplate(&schema.Template{ID: "lease_flat", CategoryID: "lease", Name: "Квартира"})
	return r
}

func newTestServer(t *testing.T) *httptest.Server {
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, repo contracts.Repository) *httptest.Server {
	t.Helper()
	schemas := testRegistry()
	backend := store.NewSelector(nil, store.NewMemory(store.MemoryOptions{Schemas: schemas}))
	h := NewHandler(backend, session.NewService(schemas), schemas, repo)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// contractSpy records every Upsert and can be made to fail.
type contractSpy struct {
	states []string
	err    error
}

func (c *contractSpy) Upsert(ctx context.Context, rec *contracts.Record) error {
	c.states = append(c.states, rec.State)
	return c.err
}

func (c *contractSpy) GetBySession(ctx context.Context, sessionID string) (*contracts.Record, error) {
	return nil, nil
}

func (c *contractSpy) ListForOwner(ctx context.Context, ownerID string) ([]*contracts.Record, error) {
	return nil, nil
}

func (c *contractSpy) Close() error { return nil }

func doJSON(t *testing.T, method, url, participant string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if participant != "" {
		req.Header.Set(participantHeader, participant)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) *domain.Session {
	t.Helper()
	var s domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("Failed to decode session: %v", err)
	}
	return &s
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	// Create.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", "u1", map[string]string{"session_id": "s1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", resp.StatusCode)
	}
	s := decodeSession(t, resp)
	if s.SessionID != "s1" || s.State != domain.StateIdle {
		t.Fatalf("unexpected fresh session: %+v", s)
	}

	// Category with a single template auto-selects it.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/category", "u1", map[string]string{"category_id": "lease"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("category: expected 200, got %d", resp.StatusCode)
	}
	s = decodeSession(t, resp)
	if s.TemplateID != "lease_flat" || s.State != domain.StateTemplateSelected {
		t.Fatalf("expected auto-selected template, got %+v", s)
	}

	// Claim both roles.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/claim", "u1", map[string]string{"role": "lessor"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/claim", "u2", map[string]string{"role": "lessee"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d", resp.StatusCode)
	}
	// Claiming the taken role conflicts.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/claim", "u3", map[string]string{"role": "lessor"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for a taken role, got %d", resp.StatusCode)
	}

	// Fill every required field.
	for _, upd := range []map[string]string{
		{"field": "contract_date", "value": "01.09.2025"},
		{"field": "full_name", "value": "Іваненко Іван", "role": "lessor"},
		{"field": "full_name", "value": "Петренко Петро", "role": "lessee"},
	} {
		resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/fields", "u1", upd)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("fields: expected 200, got %d", resp.StatusCode)
		}
		var fr struct {
			OK      bool   `json:"ok"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
			t.Fatal(err)
		}
		if !fr.OK {
			t.Fatalf("field %s rejected: %s", upd["field"], fr.Message)
		}
	}

	// Build and freeze for signing.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/build", "u1", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("build: expected 200, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/ready-to-sign", "u1", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready-to-sign: expected 200, got %d", resp.StatusCode)
	}

	// Both parties sign; the session completes.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/sign", "u1", map[string]string{"role": "lessor"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign: expected 200, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/sign", "u2", map[string]string{"role": "lessee"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign: expected 200, got %d", resp.StatusCode)
	}
	s = decodeSession(t, resp)
	if s.State != domain.StateCompleted {
		t.Errorf("expected completed, got %s", s.State)
	}

	// Completed sessions refuse further edits with a conflict.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/sign", "u1", map[string]string{"role": "lessor"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for signing a completed session, got %d", resp.StatusCode)
	}
}

// fillToReady drives a fresh session through category, claims and all
// required fields so build and ready-to-sign can succeed.
func fillToReady(t *testing.T, srv *httptest.Server) {
	t.Helper()
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions", "u1", map[string]string{"session_id": "s1"})
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/category", "u1", map[string]string{"category_id": "lease"})
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/claim", "u1", map[string]string{"role": "lessor"})
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/claim", "u2", map[string]string{"role": "lessee"})
	for _, upd := range []map[string]string{
		{"field": "contract_date", "value": "01.09.2025"},
		{"field": "full_name", "value": "Іваненко Іван", "role": "lessor"},
		{"field": "full_name", "value": "Петренко Петро", "role": "lessee"},
	} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/fields", "u1", upd)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("fields: expected 200, got %d", resp.StatusCode)
		}
	}
}

func TestBuildAndReadyToSignRegisterContract(t *testing.T) {
	repo := &contractSpy{}
	srv := newTestServerWith(t, repo)
	fillToReady(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/build", "u1", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("build: expected 200, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/ready-to-sign", "u1", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready-to-sign: expected 200, got %d", resp.StatusCode)
	}

	if len(repo.states) != 2 || repo.states[0] != "built" || repo.states[1] != "ready_to_sign" {
		t.Errorf("expected contract records for built and ready_to_sign, got %v", repo.states)
	}
}

func TestContractRegistrationFailureKeepsRequestOK(t *testing.T) {
	repo := &contractSpy{err: errors.New("registry down")}
	srv := newTestServerWith(t, repo)
	fillToReady(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/build", "u1", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("build must stay 200 when the registry fails, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/ready-to-sign", "u1", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready-to-sign must stay 200 when the registry fails, got %d", resp.StatusCode)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/nope", "u1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateSessionRequiresParticipant(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", "", map[string]string{"session_id": "s1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without participant header, got %d", resp.StatusCode)
	}
}

func TestSetCategoryUnknownIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/sessions", "u1", map[string]string{"session_id": "s1"})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/s1/category", "u1", map[string]string{"category_id": "nope"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown category, got %d", resp.StatusCode)
	}
}

func TestListCategories(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/categories", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got []categoryView
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "lease" {
		t.Errorf("unexpected catalog: %+v", got)
	}
	if len(got[0].Templates) != 1 {
		t.Errorf("expected 1 template, got %+v", got[0].Templates)
	}
}
