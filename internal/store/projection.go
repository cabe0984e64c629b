package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/okovalenko/draftflow/internal/domain"
	"github.com/okovalenko/draftflow/internal/schema"
)

// PartyProjection is the denormalized view of one party.
type PartyProjection struct {
	PersonType string            `json:"person_type"`
	Fields     map[string]string `json:"fields"`
}

// DocumentProjection is the derived "public document" view written
// alongside every session save. It carries current values only, no
// history, for cheap consumption by document renderers.
type DocumentProjection struct {
	DocumentID     string                     `json:"document_id"`
	SessionID      string                     `json:"session_id"`
	CategoryID     string                     `json:"category_id,omitempty"`
	TemplateID     string                     `json:"template_id,omitempty"`
	Status         string                     `json:"status"`
	UpdatedAt      time.Time                  `json:"updated_at"`
	ContractFields map[string]string          `json:"contract_fields"`
	Parties        map[string]PartyProjection `json:"parties"`
}

// BuildProjection derives the public document view from a session.
func BuildProjection(s *domain.Session, schemas *schema.Registry) *DocumentProjection {
	doc := &DocumentProjection{
		DocumentID:     s.SessionID,
		SessionID:      s.SessionID,
		CategoryID:     s.CategoryID,
		TemplateID:     s.TemplateID,
		Status:         "draft",
		UpdatedAt:      s.UpdatedAt,
		ContractFields: map[string]string{},
		Parties:        map[string]PartyProjection{},
	}
	if s.TemplateID != "" {
		doc.DocumentID = fmt.Sprintf("%s_%s", s.TemplateID, s.SessionID)
	}
	switch s.State {
	case domain.StateBuilt, domain.StateReadyToSign:
		doc.Status = "built"
	case domain.StateCompleted:
		doc.Status = "completed"
	}

	if s.CategoryID == "" {
		return doc
	}

	if fields, err := schemas.ContractFieldsFor(s.CategoryID); err == nil {
		for _, cf := range fields {
			if rec, ok := s.AllData[cf.Field]; ok {
				doc.ContractFields[cf.Field] = rec.Current
			} else {
				doc.ContractFields[cf.Field] = ""
			}
		}
	}

	roles, err := schemas.RoleNames(s.CategoryID)
	if err != nil {
		return doc
	}
	for _, role := range roles {
		personType := s.PartyTypes[role]
		if personType == "" && role == s.ActiveRole && s.ActivePersonType != "" {
			personType = s.ActivePersonType
		}
		if personType == "" {
			personType = schemas.DefaultPersonType(s.CategoryID, role)
		}
		party := PartyProjection{PersonType: personType, Fields: map[string]string{}}
		if fields, err := schemas.PartyFieldsFor(s.CategoryID, personType); err == nil {
			for _, pf := range fields {
				if rec, ok := s.AllData[domain.PartyKey(role, pf.Field)]; ok {
					party.Fields[pf.Field] = rec.Current
				}
			}
		}
		doc.Parties[role] = party
	}
	return doc
}

// encodeProjection serializes the projection record.
func encodeProjection(s *domain.Session, schemas *schema.Registry) ([]byte, error) {
	return json.Marshal(BuildProjection(s, schemas))
}
