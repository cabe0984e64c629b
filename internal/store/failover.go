package store

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/okovalenko/draftflow/internal/domain"
)

// Selector presents the Backend interface while routing every call to
// the remote backend first and falling back to the local backend on
// infrastructure failure. The degrade is one-way for the process
// lifetime: once the remote is known bad we stop paying its latency
// cost on every call. Domain outcomes (not-found, lock timeouts,
// transaction-body errors) pass through untouched and never degrade.
type Selector struct {
	remote Backend
	local  Backend

	remoteDisabled atomic.Bool
}

// NewSelector wires a remote-then-local selector. remote may be nil,
// in which case everything goes straight to local.
func NewSelector(remote, local Backend) *Selector {
	return &Selector{remote: remote, local: local}
}

// RemoteDisabled reports whether the remote backend has been degraded.
func (f *Selector) RemoteDisabled() bool {
	return f.remoteDisabled.Load()
}

func (f *Selector) remoteIfHealthy() Backend {
	if f.remote == nil || f.remoteDisabled.Load() {
		return nil
	}
	return f.remote
}

func (f *Selector) degrade(op string, err error) {
	if f.remoteDisabled.CompareAndSwap(false, true) {
		slog.Error("remote backend failed, degrading to local for process lifetime",
			"op", op, "error", err)
	}
}

// shouldDegrade reports whether an error from the remote backend is an
// infrastructure failure rather than a domain outcome.
func shouldDegrade(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// Load routes remote-then-local.
func (f *Selector) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	if b := f.remoteIfHealthy(); b != nil {
		s, err := b.Load(ctx, sessionID)
		if err == nil || !shouldDegrade(err) {
			return s, err
		}
		f.degrade("load", err)
	}
	return f.local.Load(ctx, sessionID)
}

// Save routes remote-then-local.
func (f *Selector) Save(ctx context.Context, s *domain.Session) error {
	if b := f.remoteIfHealthy(); b != nil {
		err := b.Save(ctx, s)
		if err == nil || !shouldDegrade(err) {
			return err
		}
		f.degrade("save", err)
	}
	return f.local.Save(ctx, s)
}

// GetOrCreate routes remote-then-local.
func (f *Selector) GetOrCreate(ctx context.Context, sessionID, participantID string) (*domain.Session, error) {
	if b := f.remoteIfHealthy(); b != nil {
		s, err := b.GetOrCreate(ctx, sessionID, participantID)
		if err == nil || !shouldDegrade(err) {
			return s, err
		}
		f.degrade("get_or_create", err)
	}
	return f.local.GetOrCreate(ctx, sessionID, participantID)
}

// ListByParticipant routes remote-then-local.
func (f *Selector) ListByParticipant(ctx context.Context, participantID string) ([]*domain.Session, error) {
	if b := f.remoteIfHealthy(); b != nil {
		sessions, err := b.ListByParticipant(ctx, participantID)
		if err == nil || !shouldDegrade(err) {
			return sessions, err
		}
		f.degrade("list", err)
	}
	return f.local.ListByParticipant(ctx, participantID)
}

// WithTransaction routes remote-then-local. A transaction that fails
// with an infrastructure error is re-issued against the local backend;
// the body may therefore run twice, once per backend, which matches
// the at-least-once semantics of the degrade path. Lock timeouts and
// body errors surface to the caller without retry.
func (f *Selector) WithTransaction(ctx context.Context, sessionID string, body func(*domain.Session) error) error {
	if b := f.remoteIfHealthy(); b != nil {
		err := b.WithTransaction(ctx, sessionID, body)
		if err == nil || !shouldDegrade(err) {
			return err
		}
		f.degrade("transaction", err)
	}
	return f.local.WithTransaction(ctx, sessionID, body)
}
