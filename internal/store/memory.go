package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/okovalenko/draftflow/internal/domain"
	"github.com/okovalenko/draftflow/internal/schema"
)

// MemoryStore is the local backend: an in-process map of serialized
// sessions guarded by per-session locks, with an optional best-effort
// filesystem mirror for durability and for the lifecycle cleaner.
type MemoryStore struct {
	ttl     domain.TTLPolicy
	schemas *schema.Registry

	// mirrorDir / documentsDir are optional; empty disables mirroring.
	mirrorDir    string
	documentsDir string

	// mu guards the maps and the lock registry. It is held only for
	// map lookups and mutations, never for a transaction body.
	mu           sync.Mutex
	sessions     map[string][]byte
	expiresAt    map[string]time.Time
	sessionUsers map[string]map[string]struct{}
	userIndex    map[string]map[string]time.Time

	// locks is the per-session lock registry. Entries are created
	// lazily and never removed; session-id cardinality is bounded and
	// each entry is just a mutex, not the payload.
	locks map[string]*sync.Mutex
}

// MemoryOptions configures the local backend.
type MemoryOptions struct {
	TTL          domain.TTLPolicy
	Schemas      *schema.Registry
	MirrorDir    string
	DocumentsDir string
}

// NewMemory creates a local backend.
func NewMemory(opts MemoryOptions) *MemoryStore {
	if opts.TTL == (domain.TTLPolicy{}) {
		opts.TTL = domain.DefaultTTLPolicy()
	}
	if opts.Schemas == nil {
		opts.Schemas = schema.NewRegistry()
	}
	return &MemoryStore{
		ttl:          opts.TTL,
		schemas:      opts.Schemas,
		mirrorDir:    opts.MirrorDir,
		documentsDir: opts.DocumentsDir,
		sessions:     map[string][]byte{},
		expiresAt:    map[string]time.Time{},
		sessionUsers: map[string]map[string]struct{}{},
		userIndex:    map[string]map[string]time.Time{},
		locks:        map[string]*sync.Mutex{},
	}
}

// lockFor returns the session's lock, creating it on first use. The
// global lock is held only for the lookup.
func (m *MemoryStore) lockFor(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock
}

// evictIfExpiredLocked removes a session past its TTL. Caller holds mu.
func (m *MemoryStore) evictIfExpiredLocked(sessionID string) bool {
	expire, ok := m.expiresAt[sessionID]
	if !ok || time.Now().Before(expire) {
		return false
	}
	m.removeLocked(sessionID)
	return true
}

func (m *MemoryStore) removeLocked(sessionID string) {
	delete(m.sessions, sessionID)
	delete(m.expiresAt, sessionID)
	delete(m.sessionUsers, sessionID)
	for uid, idx := range m.userIndex {
		delete(idx, sessionID)
		if len(idx) == 0 {
			delete(m.userIndex, uid)
		}
	}
}

func (m *MemoryStore) updateIndexesLocked(s *domain.Session) {
	users := map[string]struct{}{}
	for _, uid := range s.Participants() {
		users[uid] = struct{}{}
	}
	for uid := range m.sessionUsers[s.SessionID] {
		if _, still := users[uid]; !still {
			if idx, ok := m.userIndex[uid]; ok {
				delete(idx, s.SessionID)
			}
		}
	}
	for uid := range users {
		idx, ok := m.userIndex[uid]
		if !ok {
			idx = map[string]time.Time{}
			m.userIndex[uid] = idx
		}
		idx[s.SessionID] = s.UpdatedAt
	}
	m.sessionUsers[s.SessionID] = users
}

// Load retrieves a session, evicting it first if its TTL has passed.
func (m *MemoryStore) Load(_ context.Context, sessionID string) (*domain.Session, error) {
	m.mu.Lock()
	if m.evictIfExpiredLocked(sessionID) {
		m.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	payload, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return decodeSession(payload)
}

// Save writes the session, refreshes its TTL and mirrors it to disk.
func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	s.UpdatedAt = time.Now().UTC()
	payload, err := encodeSession(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sessions[s.SessionID] = payload
	m.expiresAt[s.SessionID] = s.UpdatedAt.Add(m.ttl.ForSession(s))
	m.updateIndexesLocked(s)
	m.mu.Unlock()

	m.mirror(s, payload)
	return nil
}

// mirror writes the session record and its document projection to disk.
// Both are best-effort; failures are logged and never fail the save.
func (m *MemoryStore) mirror(s *domain.Session, payload []byte) {
	if m.mirrorDir != "" {
		if err := writeFileAtomic(filepath.Join(m.mirrorDir, s.SessionID+".json"), payload); err != nil {
			slog.Warn("session mirror write failed", "session_id", s.SessionID, "error", err)
		}
	}
	if m.documentsDir != "" {
		doc, err := encodeProjection(s, m.schemas)
		if err == nil {
			err = writeFileAtomic(filepath.Join(m.documentsDir, s.SessionID+".json"), doc)
		}
		if err != nil {
			slog.Warn("document projection write failed", "session_id", s.SessionID, "error", err)
		}
	}
}

func writeFileAtomic(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// GetOrCreate loads the session or creates it under the session lock so
// concurrent first access cannot double-create.
func (m *MemoryStore) GetOrCreate(ctx context.Context, sessionID, participantID string) (*domain.Session, error) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.Load(ctx, sessionID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}
	s = domain.NewSession(sessionID, participantID)
	if err := m.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListByParticipant returns the participant's sessions, newest first.
// Index entries whose session is gone or no longer lists the
// participant are dropped along the way.
func (m *MemoryStore) ListByParticipant(ctx context.Context, participantID string) ([]*domain.Session, error) {
	if participantID == "" {
		return nil, nil
	}

	m.mu.Lock()
	ids := make([]string, 0, len(m.userIndex[participantID]))
	for sid := range m.userIndex[participantID] {
		ids = append(ids, sid)
	}
	m.mu.Unlock()

	var sessions []*domain.Session
	var stale []string
	for _, sid := range ids {
		s, err := m.Load(ctx, sid)
		if errors.Is(err, domain.ErrSessionNotFound) {
			stale = append(stale, sid)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !s.HasParticipant(participantID) {
			stale = append(stale, sid)
			continue
		}
		sessions = append(sessions, s)
	}

	if len(stale) > 0 {
		m.mu.Lock()
		if idx, ok := m.userIndex[participantID]; ok {
			for _, sid := range stale {
				delete(idx, sid)
			}
			if len(idx) == 0 {
				delete(m.userIndex, participantID)
			}
		}
		m.mu.Unlock()
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// WithTransaction serializes all mutation of one session behind its
// lock: load, run body, save on success. A body error aborts the save.
func (m *MemoryStore) WithTransaction(ctx context.Context, sessionID string, body func(*domain.Session) error) error {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := body(s); err != nil {
		return err
	}
	return m.Save(ctx, s)
}
