package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okovalenko/draftflow/internal/domain"
)

// Cleaner sweeps the filesystem session mirror for stale and abandoned
// sessions. It only ever touches *.json files under its own directory,
// so a concurrent writer replacing a file via rename is safe to race
// with: the loser of the race simply deletes or skips the newer file
// on the next sweep.
type Cleaner struct {
	dir          string
	documentsDir string
	ttl          domain.TTLPolicy
}

// NewCleaner creates a cleaner over the session mirror directory.
// documentsDir is where finalized artifacts live; their presence
// protects a session file from deletion.
func NewCleaner(dir, documentsDir string, ttl domain.TTLPolicy) *Cleaner {
	return &Cleaner{dir: dir, documentsDir: documentsDir, ttl: ttl}
}

// cleanerView is the subset of the session document the cleaner needs.
// Decoding the full aggregate would couple the sweep to every schema
// change for no benefit.
type cleanerView struct {
	SessionID string                     `json:"session_id"`
	State     domain.SessionState        `json:"state"`
	UpdatedAt time.Time                  `json:"updated_at"`
	AllData   map[string]json.RawMessage `json:"all_data"`
}

func (c *Cleaner) readView(path string) (*cleanerView, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v cleanerView
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// finalizedArtifactExists reports whether a rendered document for the
// session survives on disk. A session whose artifact exists is never
// swept, whatever its state or age.
func (c *Cleaner) finalizedArtifactExists(sessionID string) bool {
	if c.documentsDir == "" || sessionID == "" {
		return false
	}
	matches, err := filepath.Glob(filepath.Join(c.documentsDir, "contract_"+sessionID+".*"))
	if err != nil {
		return false
	}
	return len(matches) > 0
}

// SweepStale deletes session files older than their per-state TTL.
// Sessions in ready_to_sign and sessions with a finalized artifact on
// disk are skipped regardless of age. A non-zero maxAge caps every
// per-state TTL, letting an operator force a tighter sweep. Returns
// deleted and error counts.
func (c *Cleaner) SweepStale(maxAge time.Duration) (deleted, errs int) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cleaner cannot read sessions directory", "dir", c.dir, "error", err)
		}
		return 0, 0
	}
	now := time.Now().UTC()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		view, err := c.readView(path)
		if err != nil {
			slog.Error("cleaner failed to read session file", "path", path, "error", err)
			errs++
			continue
		}

		if view.State == domain.StateReadyToSign {
			continue
		}
		if c.finalizedArtifactExists(view.SessionID) {
			continue
		}

		threshold := c.ttl.ForState(view.State)
		if maxAge > 0 && maxAge < threshold {
			threshold = maxAge
		}

		updatedAt := view.UpdatedAt
		if updatedAt.IsZero() {
			info, err := entry.Info()
			if err != nil {
				errs++
				continue
			}
			updatedAt = info.ModTime()
		}

		if now.Sub(updatedAt) <= threshold {
			continue
		}
		slog.Info("deleting stale session",
			"file", entry.Name(),
			"state", view.State,
			"updated_at", updatedAt)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Error("cleaner failed to delete session file", "path", path, "error", err)
			errs++
			continue
		}
		deleted++
	}
	slog.Info("stale sweep finished", "deleted", deleted, "errors", errs)
	return deleted, errs
}

// SweepAbandoned deletes empty sessions nobody is connected to. A
// session qualifies when it is absent from activeIDs, has no field
// data at all, and has been idle longer than the grace period. The
// grace period shields sessions whose connection dropped momentarily.
func (c *Cleaner) SweepAbandoned(activeIDs map[string]struct{}, grace time.Duration) (deleted int) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	now := time.Now().UTC()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		view, err := c.readView(path)
		if err != nil {
			slog.Error("cleaner failed to read session file", "path", path, "error", err)
			continue
		}
		if _, active := activeIDs[view.SessionID]; active {
			continue
		}
		if len(view.AllData) > 0 {
			// Has data; aging it out is the stale sweep's job.
			continue
		}

		updatedAt := view.UpdatedAt
		if updatedAt.IsZero() {
			if info, err := entry.Info(); err == nil {
				updatedAt = info.ModTime()
			}
		}
		if now.Sub(updatedAt) <= grace {
			continue
		}

		slog.Info("deleting abandoned empty session", "file", entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Error("cleaner failed to delete session file", "path", path, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		slog.Info("abandoned sweep finished", "deleted", deleted)
	}
	return deleted
}

// ActiveFunc reports the session ids with a live connection at sweep
// time. The cleaner calls it fresh on every tick.
type ActiveFunc func() map[string]struct{}

// StartWorker runs the periodic cleanup loop in a background goroutine.
// One final stale sweep runs at shutdown so a restart does not inherit
// a backlog.
func (c *Cleaner) StartWorker(ctx context.Context, interval, grace time.Duration, active ActiveFunc) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("cleanup worker started", "interval", interval, "dir", c.dir)

		for {
			select {
			case <-ticker.C:
				c.SweepStale(0)
				ids := map[string]struct{}{}
				if active != nil {
					ids = active()
				}
				c.SweepAbandoned(ids, grace)
			case <-ctx.Done():
				slog.Info("cleanup worker shutting down", "reason", ctx.Err())
				c.SweepStale(0)
				return
			}
		}
	}()
}
