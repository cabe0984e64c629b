package store

import (
	"encoding/json"
	"fmt"

	"github.com/okovalenko/draftflow/internal/domain"
)

// encodeSession serializes a session to its canonical JSON record. Both
// backends use this codec so a record written against one backend stays
// legible after failover to the other.
func encodeSession(s *domain.Session) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.SessionID, err)
	}
	return payload, nil
}

// decodeSession restores a session from its JSON record, reestablishing
// the map invariants the engine relies on.
func decodeSession(payload []byte) (*domain.Session, error) {
	var s domain.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.PartyTypes == nil {
		s.PartyTypes = map[string]string{}
	}
	if s.PartyUsers == nil {
		s.PartyUsers = map[string]string{}
	}
	if s.ContractFields == nil {
		s.ContractFields = map[string]*domain.FieldState{}
	}
	if s.PartyFields == nil {
		s.PartyFields = map[string]map[string]*domain.FieldState{}
	}
	if s.AllData == nil {
		s.AllData = map[string]*domain.FieldRecord{}
	}
	if s.Signatures == nil {
		s.Signatures = map[string]bool{}
	}
	if s.FillingMode == "" {
		s.FillingMode = domain.FillingPartial
	}
	if s.State == "" {
		s.State = domain.StateIdle
	}
	return &s, nil
}
