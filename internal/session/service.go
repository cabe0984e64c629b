// Package session implements the drafting-session engine: field
// updates with validation, readiness computation, role claiming,
// signatures and the state machine transitions.
package session

import (
	"github.com/okovalenko/draftflow/internal/schema"
)

// Actor identifies who performed a mutation, for the audit trail.
// The participant id is a trusted bearer identifier; verifying it is
// out of scope.
type Actor struct {
	ParticipantID string
	Source        string // "api", "chat", ...
}

// Service applies mutations to session aggregates against the schema
// registry. It is stateless and safe for concurrent use; callers must
// hold the session's transactional lock while mutating.
type Service struct {
	schemas *schema.Registry
}

// NewService creates a session service over a schema registry.
func NewService(schemas *schema.Registry) *Service {
	return &Service{schemas: schemas}
}
