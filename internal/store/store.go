// Package store implements the durable single-node store: policy
// snapshots, decision records, memory items, decision events, and the
// idempotency index, all backed by SQLite in WAL mode with a single
// connection — a single-writer, embedded store needs no connection pool.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lumyn-labs/lumyn/internal/errkit"
	"github.com/lumyn-labs/lumyn/internal/model"
)

// Store wraps a single SQLite connection. SetMaxOpenConns(1) avoids
// SQLITE_BUSY under the engine's re-entrant, multi-goroutine decide calls.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// runs the idempotent schema migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errkit.Wrap(errkit.StorageUnavailable, "failed to create store directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=ON", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errkit.Wrap(errkit.StorageUnavailable, "failed to open store", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Init runs the idempotent schema migration.
func (s *Store) Init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS policy_snapshots (
			policy_hash TEXT PRIMARY KEY,
			policy_id TEXT NOT NULL,
			policy_version TEXT NOT NULL,
			policy_text TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS decision_records (
			decision_id TEXT PRIMARY KEY,
			tenant_key TEXT NOT NULL,
			created_at TEXT NOT NULL,
			record_json TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS request_idempotency (
			tenant_key TEXT NOT NULL,
			request_id TEXT NOT NULL,
			decision_id TEXT NOT NULL,
			PRIMARY KEY (tenant_key, request_id)
		)`,
		`CREATE TABLE IF NOT EXISTS memory_items (
			memory_id TEXT PRIMARY KEY,
			tenant_id TEXT,
			action_type TEXT NOT NULL,
			label TEXT NOT NULL,
			feature_json TEXT NOT NULL,
			summary TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_items_lookup ON memory_items(action_type, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS decision_events (
			event_id TEXT PRIMARY KEY,
			decision_id TEXT NOT NULL,
			type TEXT NOT NULL,
			data_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errkit.Wrap(errkit.StorageUnavailable, "schema migration failed", err)
		}
	}
	return nil
}

// PutPolicySnapshot upserts a policy snapshot; inserting the same hash
// twice is a no-op.
func (s *Store) PutPolicySnapshot(ctx context.Context, hash, id, version, text string, createdAt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policy_snapshots (policy_hash, policy_id, policy_version, policy_text, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(policy_hash) DO NOTHING
	`, hash, id, version, text, createdAt)
	if err != nil {
		return errkit.Wrap(errkit.StorageUnavailable, "put_policy_snapshot failed", err)
	}
	return nil
}

// PutDecisionRecord inserts a decision record; if requestID is non-empty
// it also inserts the idempotency row in the same transaction. Violating
// the unique index surfaces as errkit.Integrity.
func (s *Store) PutDecisionRecord(ctx context.Context, rec model.DecisionRecord, tenantKey, requestID string) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errkit.Wrap(errkit.Internal, "failed to marshal decision record", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errkit.Wrap(errkit.StorageUnavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO decision_records (decision_id, tenant_key, created_at, record_json)
		VALUES (?, ?, ?, ?)
	`, rec.DecisionID, tenantKey, rec.CreatedAt, string(payload)); err != nil {
		return classifyWriteError(err)
	}

	if requestID != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO request_idempotency (tenant_key, request_id, decision_id)
			VALUES (?, ?, ?)
		`, tenantKey, requestID, rec.DecisionID); err != nil {
			return classifyWriteError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errkit.Wrap(errkit.StorageUnavailable, "failed to commit transaction", err)
	}
	return nil
}

// GetPolicySnapshot fetches a snapshot's policy text by hash, or
// ("", false, nil) if unknown.
func (s *Store) GetPolicySnapshot(ctx context.Context, hash string) (string, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `
		SELECT policy_text FROM policy_snapshots WHERE policy_hash = ?
	`, hash).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errkit.Wrap(errkit.StorageUnavailable, "get_policy_snapshot failed", err)
	}
	return text, true, nil
}

// GetDecisionRecord fetches a record by id, or (zero, false, nil) if unknown.
func (s *Store) GetDecisionRecord(ctx context.Context, id string) (model.DecisionRecord, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT record_json FROM decision_records WHERE decision_id = ?
	`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return model.DecisionRecord{}, false, nil
	}
	if err != nil {
		return model.DecisionRecord{}, false, errkit.Wrap(errkit.StorageUnavailable, "get_decision_record failed", err)
	}

	var rec model.DecisionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return model.DecisionRecord{}, false, errkit.Wrap(errkit.Internal, "stored record is corrupt", err)
	}
	return rec, true, nil
}

// GetDecisionIDForRequestID implements the idempotency probe.
func (s *Store) GetDecisionIDForRequestID(ctx context.Context, tenantKey, requestID string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT decision_id FROM request_idempotency WHERE tenant_key = ? AND request_id = ?
	`, tenantKey, requestID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errkit.Wrap(errkit.StorageUnavailable, "idempotency probe failed", err)
	}
	return id, true, nil
}

// ListMemoryItems filters by tenant (empty = any) and action type,
// ordered by created_at DESC, limited to limit rows.
func (s *Store) ListMemoryItems(ctx context.Context, tenantID, actionType string, limit int) ([]model.MemoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_id, tenant_id, action_type, label, feature_json, summary, created_at
		FROM memory_items
		WHERE (? = '' OR tenant_id = ?) AND action_type = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, tenantID, tenantID, actionType, limit)
	if err != nil {
		return nil, errkit.Wrap(errkit.StorageUnavailable, "list_memory_items failed", err)
	}
	defer rows.Close()

	var items []model.MemoryItem
	for rows.Next() {
		var item model.MemoryItem
		var tenant sql.NullString
		var featureJSON string
		if err := rows.Scan(&item.MemoryID, &tenant, &item.ActionType, &item.Label, &featureJSON, &item.Summary, &item.CreatedAt); err != nil {
			return nil, errkit.Wrap(errkit.StorageUnavailable, "list_memory_items scan failed", err)
		}
		if tenant.Valid {
			t := tenant.String
			item.TenantID = &t
		}
		if err := json.Unmarshal([]byte(featureJSON), &item.Feature); err != nil {
			return nil, errkit.Wrap(errkit.Internal, "stored memory feature is corrupt", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errkit.Wrap(errkit.StorageUnavailable, "list_memory_items iteration failed", err)
	}
	if items == nil {
		items = []model.MemoryItem{}
	}
	return items, nil
}

// PutMemoryItem inserts a memory item, used by tests to seed similarity
// candidates.
func (s *Store) PutMemoryItem(ctx context.Context, item model.MemoryItem) error {
	featureJSON, err := json.Marshal(item.Feature)
	if err != nil {
		return errkit.Wrap(errkit.Internal, "failed to marshal memory feature", err)
	}
	var tenant any
	if item.TenantID != nil {
		tenant = *item.TenantID
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_items (memory_id, tenant_id, action_type, label, feature_json, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.MemoryID, tenant, item.ActionType, item.Label, string(featureJSON), item.Summary, item.CreatedAt)
	if err != nil {
		return errkit.Wrap(errkit.StorageUnavailable, "put_memory_item failed", err)
	}
	return nil
}

// AppendDecisionEvent appends an event with the caller-supplied eventID
// to a known decision. Errors (errkit.NotFound) if the decision is unknown.
func (s *Store) AppendDecisionEvent(ctx context.Context, decisionID, eventID, typ string, data map[string]any, createdAt string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM decision_records WHERE decision_id = ?`, decisionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return errkit.New(errkit.NotFound, fmt.Sprintf("unknown decision id: %s", decisionID))
	}
	if err != nil {
		return errkit.Wrap(errkit.StorageUnavailable, "append_decision_event lookup failed", err)
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return errkit.Wrap(errkit.Internal, "failed to marshal event data", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_events (event_id, decision_id, type, data_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, eventID, decisionID, typ, string(dataJSON), createdAt)
	if err != nil {
		return errkit.Wrap(errkit.StorageUnavailable, "append_decision_event insert failed", err)
	}
	return nil
}

func classifyWriteError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return errkit.Wrap(errkit.Integrity, "unique constraint violated", err)
	}
	return errkit.Wrap(errkit.StorageUnavailable, "store write failed", err)
}
