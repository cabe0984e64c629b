// Package domain holds the session aggregate and its state machine.
package domain

import (
	"time"
)

// SessionState is the lifecycle state of a drafting session.
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateCategorySelected SessionState = "category_selected"
	StateTemplateSelected SessionState = "template_selected"
	StateCollectingFields SessionState = "collecting_fields"
	StateReadyToBuild     SessionState = "ready_to_build"
	StateBuilt            SessionState = "built"
	StateReadyToSign      SessionState = "ready_to_sign"
	StateCompleted        SessionState = "completed"
)

// FillingMode controls who fills which role's fields.
// In partial mode each participant fills only their own role;
// in full mode one participant may drive all roles.
type FillingMode string

const (
	FillingPartial FillingMode = "partial"
	FillingFull    FillingMode = "full"
)

// FieldStatus is the validity status of a single field.
type FieldStatus string

const (
	FieldEmpty FieldStatus = "empty"
	FieldOK    FieldStatus = "ok"
	FieldError FieldStatus = "error"
)

// FieldState tracks the status of one field without storing its value.
// Values live in Session.AllData so that cheap summaries never expose them.
type FieldState struct {
	Status FieldStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// FieldEvent is one append-only audit entry for a field submission.
type FieldEvent struct {
	Value      string    `json:"value"`
	Normalized string    `json:"normalized,omitempty"`
	Valid      bool      `json:"valid"`
	Actor      string    `json:"actor,omitempty"`
	Role       string    `json:"role,omitempty"`
	Timestamp  time.Time `json:"ts"`
}

// FieldRecord aggregates everything known about one field value.
// Current is the last accepted valid value; an invalid submission appends
// to History but leaves Current unchanged.
type FieldRecord struct {
	Current   string       `json:"current,omitempty"`
	Validated bool         `json:"validated"`
	Source    string       `json:"source,omitempty"`
	History   []FieldEvent `json:"history"`
}

// Event is a session-level audit entry (field updates, signatures).
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	Key       string    `json:"key,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Role      string    `json:"role,omitempty"`
	Valid     bool      `json:"valid"`
}

// Progress holds aggregate fill counters, recomputed on every mutation.
type Progress struct {
	RequiredTotal  int `json:"required_total"`
	RequiredFilled int `json:"required_filled"`
}

// Session is the aggregate root of one document-drafting workflow.
type Session struct {
	SessionID string `json:"session_id"`
	CreatorID string `json:"creator_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
	Locale    string    `json:"locale,omitempty"`

	CategoryID string `json:"category_id,omitempty"`
	TemplateID string `json:"template_id,omitempty"`

	// ActiveRole/ActivePersonType are the "currently editing" context,
	// retained for single-actor flows that never claim roles explicitly.
	ActiveRole       string `json:"active_role,omitempty"`
	ActivePersonType string `json:"active_person_type,omitempty"`

	// PartyTypes maps role -> person type (individual / fop / company).
	PartyTypes map[string]string `json:"party_types"`

	// PartyUsers maps role -> participant that has claimed it.
	PartyUsers map[string]string `json:"party_users"`

	// RequiredRoles are the roles the category declares; all of them must
	// sign before the session is considered complete.
	RequiredRoles []string `json:"required_roles"`

	FillingMode FillingMode  `json:"filling_mode"`
	State       SessionState `json:"state"`

	ContractFields map[string]*FieldState            `json:"contract_fields"`
	PartyFields    map[string]map[string]*FieldState `json:"party_fields"`

	// AllData maps a flat key (field name, or "role.field" for party
	// fields) to its value record with full submission history.
	AllData map[string]*FieldRecord `json:"all_data"`

	// Signatures maps role -> whether that role has signed.
	Signatures map[string]bool `json:"signatures"`

	CanBuildContract bool     `json:"can_build_contract"`
	Progress         Progress `json:"progress"`

	History []Event `json:"history"`
}

// NewSession creates an empty session in the idle state.
func NewSession(sessionID, creatorID string) *Session {
	return &Session{
		SessionID:      sessionID,
		CreatorID:      creatorID,
		UpdatedAt:      time.Now().UTC(),
		Locale:         "uk",
		FillingMode:    FillingPartial,
		State:          StateIdle,
		PartyTypes:     map[string]string{},
		PartyUsers:     map[string]string{},
		ContractFields: map[string]*FieldState{},
		PartyFields:    map[string]map[string]*FieldState{},
		AllData:        map[string]*FieldRecord{},
		Signatures:     map[string]bool{},
	}
}

// PartyKey builds the flat AllData key for a party field.
func PartyKey(role, field string) string {
	return role + "." + field
}

// IsFullySigned reports whether every required role has signed.
// Sessions without declared roles can never be fully signed.
func (s *Session) IsFullySigned() bool {
	roles := s.RequiredRoles
	if len(roles) == 0 {
		for role := range s.PartyTypes {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return false
	}
	for _, role := range roles {
		if !s.Signatures[role] {
			return false
		}
	}
	return true
}

// PartyFieldState returns the state of a party field, or nil.
func (s *Session) PartyFieldState(role, field string) *FieldState {
	if fields, ok := s.PartyFields[role]; ok {
		return fields[field]
	}
	return nil
}

// SetPartyFieldState records the state of a party field.
func (s *Session) SetPartyFieldState(role, field string, fs *FieldState) {
	if s.PartyFields == nil {
		s.PartyFields = map[string]map[string]*FieldState{}
	}
	if s.PartyFields[role] == nil {
		s.PartyFields[role] = map[string]*FieldState{}
	}
	s.PartyFields[role][field] = fs
}

// Record returns the value record for a flat key, creating it if absent.
func (s *Session) Record(key string) *FieldRecord {
	if s.AllData == nil {
		s.AllData = map[string]*FieldRecord{}
	}
	rec, ok := s.AllData[key]
	if !ok {
		rec = &FieldRecord{}
		s.AllData[key] = rec
	}
	return rec
}

// RolesOf returns the roles claimed by the given participant.
func (s *Session) RolesOf(participantID string) []string {
	if participantID == "" {
		return nil
	}
	var roles []string
	for role, owner := range s.PartyUsers {
		if owner == participantID {
			roles = append(roles, role)
		}
	}
	return roles
}

// Participants returns the distinct participant ids attached to the
// session: role owners plus the creator.
func (s *Session) Participants() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, uid := range s.PartyUsers {
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; !ok {
			seen[uid] = struct{}{}
			out = append(out, uid)
		}
	}
	if s.CreatorID != "" {
		if _, ok := seen[s.CreatorID]; !ok {
			out = append(out, s.CreatorID)
		}
	}
	return out
}

// HasParticipant reports whether the participant owns a role or created
// the session.
func (s *Session) HasParticipant(participantID string) bool {
	if participantID == "" {
		return false
	}
	if s.CreatorID == participantID {
		return true
	}
	for _, uid := range s.PartyUsers {
		if uid == participantID {
			return true
		}
	}
	return false
}

// AppendEvent appends a session-level audit event.
func (s *Session) AppendEvent(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.History = append(s.History, ev)
}
