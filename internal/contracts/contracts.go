// Package contracts persists the registry of built contracts: one row
// per session that produced a rendered document, carrying the document
// projection so a contract survives its session's expiry.
package contracts

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one registered contract.
type Record struct {
	SessionID  string          `json:"session_id"`
	CategoryID string          `json:"category_id"`
	TemplateID string          `json:"template_id"`
	OwnerID    string          `json:"owner_id"`
	State      string          `json:"state"`
	Payload    json.RawMessage `json:"document"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Repository stores contract records.
type Repository interface {
	// Upsert inserts or refreshes the record for a session. created_at
	// is set on first insert and never changes afterwards.
	Upsert(ctx context.Context, rec *Record) error
	// GetBySession returns the record for a session, or nil when absent.
	GetBySession(ctx context.Context, sessionID string) (*Record, error)
	// ListForOwner returns the owner's contracts, newest first.
	ListForOwner(ctx context.Context, ownerID string) ([]*Record, error)
	Close() error
}
