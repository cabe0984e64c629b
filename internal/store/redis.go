package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okovalenko/draftflow/internal/domain"
	"github.com/okovalenko/draftflow/internal/schema"
)

const (
	sessionKeyPrefix  = "session:"
	documentKeyPrefix = "document:"
	userIndexPrefix   = "user_sessions:"
	lockKeyPrefix     = "session_lock:"

	// DefaultLockTTL bounds how long a crashed holder can wedge a
	// session. DefaultLockWait bounds how long a caller polls before
	// giving up with ErrLockTimeout.
	DefaultLockTTL  = 10 * time.Second
	DefaultLockWait = 5 * time.Second
)

// RedisStore is the remote backend: sessions as JSON records with a
// per-state TTL, a per-participant ZSET index, and a distributed
// per-session lock for transactions.
type RedisStore struct {
	client   redis.UniversalClient
	ttl      domain.TTLPolicy
	schemas  *schema.Registry
	lockTTL  time.Duration
	lockWait time.Duration
}

// RedisOptions configures the remote backend.
type RedisOptions struct {
	Client   redis.UniversalClient
	TTL      domain.TTLPolicy
	Schemas  *schema.Registry
	LockTTL  time.Duration
	LockWait time.Duration
}

// NewRedis creates a remote backend over an existing client.
func NewRedis(opts RedisOptions) *RedisStore {
	if opts.TTL == (domain.TTLPolicy{}) {
		opts.TTL = domain.DefaultTTLPolicy()
	}
	if opts.Schemas == nil {
		opts.Schemas = schema.NewRegistry()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultLockWait
	}
	return &RedisStore{
		client:   opts.Client,
		ttl:      opts.TTL,
		schemas:  opts.Schemas,
		lockTTL:  opts.LockTTL,
		lockWait: opts.LockWait,
	}
}

func sessionKey(id string) string   { return sessionKeyPrefix + id }
func documentKey(id string) string  { return documentKeyPrefix + id }
func userIndexKey(id string) string { return userIndexPrefix + id }
func lockKey(id string) string      { return lockKeyPrefix + id }

// Load retrieves a session record.
func (r *RedisStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, backendErr("load", err)
	}
	return decodeSession(payload)
}

// Save writes the session with its state's TTL, refreshes the
// participant indexes and fires the document projection write.
func (r *RedisStore) Save(ctx context.Context, s *domain.Session) error {
	s.UpdatedAt = time.Now().UTC()
	payload, err := encodeSession(s)
	if err != nil {
		return err
	}
	ttl := r.ttl.ForSession(s)
	if err := r.client.Set(ctx, sessionKey(s.SessionID), payload, ttl).Err(); err != nil {
		return backendErr("save", err)
	}

	score := float64(s.UpdatedAt.UnixNano()) / float64(time.Second)
	for _, uid := range s.Participants() {
		if err := r.client.ZAdd(ctx, userIndexKey(uid), redis.Z{
			Score:  score,
			Member: s.SessionID,
		}).Err(); err != nil {
			return backendErr("index", err)
		}
	}

	// Projection failure must never fail the primary save.
	if doc, err := encodeProjection(s, r.schemas); err == nil {
		if err := r.client.Set(ctx, documentKey(s.SessionID), doc, ttl).Err(); err != nil {
			slog.Warn("document projection write failed", "session_id", s.SessionID, "error", err)
		}
	}
	return nil
}

// GetOrCreate loads a session, creating it atomically when missing.
// SET NX decides the winner under concurrent first access; the loser
// loads whatever the winner wrote.
func (r *RedisStore) GetOrCreate(ctx context.Context, sessionID, participantID string) (*domain.Session, error) {
	s, err := r.Load(ctx, sessionID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}

	s = domain.NewSession(sessionID, participantID)
	payload, err := encodeSession(s)
	if err != nil {
		return nil, err
	}
	created, err := r.client.SetNX(ctx, sessionKey(sessionID), payload, r.ttl.ForSession(s)).Result()
	if err != nil {
		return nil, backendErr("create", err)
	}
	if !created {
		return r.Load(ctx, sessionID)
	}
	if participantID != "" {
		score := float64(s.UpdatedAt.UnixNano()) / float64(time.Second)
		if err := r.client.ZAdd(ctx, userIndexKey(participantID), redis.Z{
			Score:  score,
			Member: sessionID,
		}).Err(); err != nil {
			return nil, backendErr("index", err)
		}
	}
	return s, nil
}

// ListByParticipant walks the participant's ZSET index newest-first,
// dropping entries whose session expired or no longer lists them.
func (r *RedisStore) ListByParticipant(ctx context.Context, participantID string) ([]*domain.Session, error) {
	if participantID == "" {
		return nil, nil
	}
	key := userIndexKey(participantID)
	ids, err := r.client.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, backendErr("list", err)
	}

	var sessions []*domain.Session
	var stale []any
	for _, sid := range ids {
		s, err := r.Load(ctx, sid)
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
		if err := r.client.ZRem(ctx, key, stale...).Err(); err != nil {
			slog.Warn("stale index cleanup failed", "participant_id", participantID, "error", err)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// WithTransaction takes the distributed lock, loads, runs body, saves.
//
// The lock is a SET NX EX record keyed by session id with an owner
// token; acquisition polls with jittered backoff until the wait window
// elapses. Release deletes the key only while it still holds our token,
// so a holder that lost its lease never releases a successor's lock.
// A lease that expires mid-body is an accepted consistency risk: the
// old holder may still be mutating for up to the TTL window.
func (r *RedisStore) WithTransaction(ctx context.Context, sessionID string, body func(*domain.Session) error) error {
	token := uuid.NewString()
	key := lockKey(sessionID)
	deadline := time.Now().Add(r.lockWait)

	for {
		acquired, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return backendErr("lock", err)
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("session %s: %w", sessionID, domain.ErrLockTimeout)
		}
		backoff := time.Duration(30+rand.Intn(70)) * time.Millisecond
		select {
		case <-ctx.Done():
			return fmt.Errorf("session %s: %w", sessionID, ctx.Err())
		case <-time.After(backoff):
		}
	}
	defer r.releaseLock(key, token)

	s, err := r.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := body(s); err != nil {
		return err
	}
	return r.Save(ctx, s)
}

// releaseLock is best-effort: lock records expire on their own.
func (r *RedisStore) releaseLock(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	val, err := r.client.Get(ctx, key).Result()
	if err != nil || val != token {
		return
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("lock release failed", "key", key, "error", err)
	}
}

// Ping verifies connectivity; used at startup to log the active backend.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return backendErr("ping", err)
	}
	return nil
}
