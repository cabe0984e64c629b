// Package store provides session persistence: a remote Redis backend, a
// local in-process backend, and a failover selector that degrades from
// remote to local for the lifetime of the process.
package store

import (
	"context"
	"fmt"

	"github.com/okovalenko/draftflow/internal/domain"
)

// Backend is the storage contract shared by both backends and the
// selector. All operations are safe for concurrent use.
type Backend interface {
	// Load retrieves a session by id, or domain.ErrSessionNotFound.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Save writes the whole session, overwriting, and refreshes its TTL.
	// Every save also triggers a best-effort public-document projection
	// write; projection failure never fails the save.
	Save(ctx context.Context, s *domain.Session) error

	// GetOrCreate loads a session or creates a fresh one. Concurrent
	// first access must not double-create.
	GetOrCreate(ctx context.Context, sessionID, participantID string) (*domain.Session, error)

	// ListByParticipant returns the sessions in which the participant
	// owns a role (or which they created), most recently updated first.
	ListByParticipant(ctx context.Context, participantID string) ([]*domain.Session, error)

	// WithTransaction acquires the per-session lock, loads the session,
	// runs body, and persists the result on normal return. When body
	// returns an error nothing is persisted. The lock is released on
	// every exit path. Exactly one body runs at a time per session id.
	WithTransaction(ctx context.Context, sessionID string, body func(*domain.Session) error) error
}

// BackendError marks an infrastructure failure of a backend (connection
// refused, protocol error), as opposed to domain outcomes such as
// not-found, lock timeouts or errors returned by a transaction body.
// The failover selector degrades only on this kind.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func backendErr(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}
