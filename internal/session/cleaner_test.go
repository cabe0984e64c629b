package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okovalenko/draftflow/internal/domain"
)

func writeSessionFile(t *testing.T, dir, id string, state domain.SessionState, age time.Duration, withData bool) string {
	t.Helper()
	doc := map[string]interface{}{
		"session_id": id,
		"state":      state,
		"updated_at": time.Now().UTC().Add(-age),
		"all_data":   map[string]interface{}{},
	}
	if withData {
		doc["all_data"] = map[string]interface{}{
			"contract_date": map[string]interface{}{"current": "01.09.2025"},
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, id+".json")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSweepStale(t *testing.T) {
	dir := t.TempDir()
	ttl := domain.TTLPolicy{Draft: time.Hour, Filled: 3 * time.Hour, Signed: 24 * time.Hour}
	c := NewCleaner(dir, "", ttl)

	oldDraft := writeSessionFile(t, dir, "old-draft", domain.StateCollectingFields, 2*time.Hour, true)
	freshDraft := writeSessionFile(t, dir, "fresh-draft", domain.StateCollectingFields, 10*time.Minute, true)
	oldBuilt := writeSessionFile(t, dir, "old-built", domain.StateBuilt, 2*time.Hour, true)
	protected := writeSessionFile(t, dir, "signing", domain.StateReadyToSign, 48*time.Hour, true)

	deleted, errs := c.SweepStale(0)
	if errs != 0 {
		t.Errorf("unexpected errors: %d", errs)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}
	if exists(oldDraft) {
		t.Error("stale draft must be deleted")
	}
	if !exists(freshDraft) {
		t.Error("fresh draft must survive")
	}
	if !exists(oldBuilt) {
		t.Error("built session within its longer TTL must survive")
	}
	if !exists(protected) {
		t.Error("ready_to_sign must never be swept")
	}
}

func TestSweepStaleMaxAgeCapsTTL(t *testing.T) {
	dir := t.TempDir()
	ttl := domain.TTLPolicy{Draft: time.Hour, Filled: 100 * time.Hour, Signed: 200 * time.Hour}
	c := NewCleaner(dir, "", ttl)

	built := writeSessionFile(t, dir, "built", domain.StateBuilt, 5*time.Hour, true)

	c.SweepStale(0)
	if !exists(built) {
		t.Fatal("built session must survive without a cap")
	}
	c.SweepStale(2 * time.Hour)
	if exists(built) {
		t.Error("the max-age cap must tighten the per-state TTL")
	}
}

func TestSweepStaleKeepsSessionsWithArtifact(t *testing.T) {
	dir := t.TempDir()
	docs := t.TempDir()
	ttl := domain.TTLPolicy{Draft: time.Hour, Filled: time.Hour, Signed: time.Hour}
	c := NewCleaner(dir, docs, ttl)

	done := writeSessionFile(t, dir, "done", domain.StateCompleted, 48*time.Hour, true)
	if err := os.WriteFile(filepath.Join(docs, "contract_done.docx"), []byte("doc"), 0644); err != nil {
		t.Fatal(err)
	}
	// The artifact shields the session whatever state it sits in, not
	// only after completion.
	built := writeSessionFile(t, dir, "built-art", domain.StateBuilt, 48*time.Hour, true)
	if err := os.WriteFile(filepath.Join(docs, "contract_built-art.docx"), []byte("doc"), 0644); err != nil {
		t.Fatal(err)
	}
	gone := writeSessionFile(t, dir, "done-noart", domain.StateCompleted, 48*time.Hour, true)

	c.SweepStale(0)
	if !exists(done) {
		t.Error("completed session with a surviving artifact must be kept")
	}
	if !exists(built) {
		t.Error("built session with a surviving artifact must be kept")
	}
	if exists(gone) {
		t.Error("completed session without an artifact follows its TTL")
	}
}

func TestSweepStaleToleratesGarbage(t *testing.T) {
	dir := t.TempDir()
	c := NewCleaner(dir, "", domain.DefaultTTLPolicy())
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	deleted, errs := c.SweepStale(0)
	if deleted != 0 || errs != 1 {
		t.Errorf("expected the broken file to count as an error, got deleted=%d errs=%d", deleted, errs)
	}
}

func TestSweepAbandoned(t *testing.T) {
	dir := t.TempDir()
	c := NewCleaner(dir, "", domain.DefaultTTLPolicy())

	empty := writeSessionFile(t, dir, "empty", domain.StateIdle, 30*time.Minute, false)
	withData := writeSessionFile(t, dir, "has-data", domain.StateIdle, 30*time.Minute, true)
	active := writeSessionFile(t, dir, "active", domain.StateIdle, 30*time.Minute, false)
	young := writeSessionFile(t, dir, "young", domain.StateIdle, time.Minute, false)

	deleted := c.SweepAbandoned(map[string]struct{}{"active": {}}, 5*time.Minute)
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}
	if exists(empty) {
		t.Error("abandoned empty session must be deleted")
	}
	if !exists(withData) {
		t.Error("sessions with data are the stale sweep's business")
	}
	if !exists(active) {
		t.Error("active sessions must survive")
	}
	if !exists(young) {
		t.Error("sessions inside the grace period must survive")
	}
}

func TestSweepMissingDirIsNoop(t *testing.T) {
	c := NewCleaner(filepath.Join(t.TempDir(), "does-not-exist"), "", domain.DefaultTTLPolicy())
	if deleted, errs := c.SweepStale(0); deleted != 0 || errs != 0 {
		t.Errorf("missing directory must be a no-op, got deleted=%d errs=%d", deleted, errs)
	}
	if deleted := c.SweepAbandoned(nil, time.Minute); deleted != 0 {
		t.Errorf("missing directory must be a no-op, got %d", deleted)
	}
}
