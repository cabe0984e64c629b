package contracts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-backed contracts repository.
func NewSQLite(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS contracts (
		session_id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		state TEXT NOT NULL,
		json_payload TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contracts_owner ON contracts(owner_id, updated_at);
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Upsert creates or refreshes a contract record.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec *Record) error {
	now := time.Now().Unix()
	query := `
	INSERT INTO contracts (session_id, category_id, template_id, owner_id, state, json_payload, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		category_id = excluded.category_id,
		template_id = excluded.template_id,
		owner_id = excluded.owner_id,
		state = excluded.state,
		json_payload = excluded.json_payload,
		updated_at = excluded.updated_at`

	var payload interface{}
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID, rec.CategoryID, rec.TemplateID,
		rec.OwnerID, rec.State, payload, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert contract: %w", err)
	}
	return nil
}

func scanRecord(scan func(dest ...any) error) (*Record, error) {
	var rec Record
	var payload sql.NullString
	var createdAt, updatedAt int64

	err := scan(
		&rec.SessionID, &rec.CategoryID, &rec.TemplateID,
		&rec.OwnerID, &rec.State, &payload, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		rec.Payload = json.RawMessage(payload.String)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// GetBySession retrieves a contract by session id.
func (r *SQLiteRepository) GetBySession(ctx context.Context, sessionID string) (*Record, error) {
	query := `
		SELECT session_id, category_id, template_id, owner_id, state, json_payload, created_at, updated_at
		FROM contracts WHERE session_id = ?`

	row := r.db.QueryRowContext(ctx, query, sessionID)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan contract row: %w", err)
	}
	return rec, nil
}

// ListForOwner retrieves all contracts owned by a participant, newest
// first.
func (r *SQLiteRepository) ListForOwner(ctx context.Context, ownerID string) ([]*Record, error) {
	query := `
		SELECT session_id, category_id, template_id, owner_id, state, json_payload, created_at, updated_at
		FROM contracts WHERE owner_id = ? ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan contract row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
