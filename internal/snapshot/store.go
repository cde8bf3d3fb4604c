// Package snapshot persists irm.State snapshots to SQLite: one row per
// named model holding its latest Serialize output, plus a history of
// sampler runs performed against it. It never holds a live *irm.State --
// callers own the State and hand this package JSON-serializable value
// types to store and load.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MycelicMemory/irm"
	"github.com/MycelicMemory/irm/internal/logging"
)

var log = logging.GetLogger("snapshot")

// DefinitionSummary is the inspectable, non-reconstructible shape of an
// irm.Definition: enough to describe a model over the wire without
// requiring the concrete models.Hypers types a real Definition carries.
type DefinitionSummary struct {
	DomainSizes     []int  `json:"domain_sizes"`
	RelationDomains [][]int `json:"relation_domains"`
}

// Store is a SQLite-backed table of named model snapshots.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens (creating if necessary) a snapshot store at path.
func Open(path string) (*Store, error) {
	log.Info("opening snapshot store", "path", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot store directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping snapshot store: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(CoreSchema); err != nil {
		return fmt.Errorf("failed to create snapshot schema: %w", err)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// DB returns the underlying *sql.DB, for callers that need it directly
// (e.g. the sampler service's run-history bookkeeping).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Save upserts modelID's current snapshot, alongside a DefinitionSummary
// for inspection endpoints that don't want to reconstruct a full
// irm.Definition just to report shape.
func (s *Store) Save(modelID string, defn DefinitionSummary, snap irm.Snapshot) error {
	defnJSON, err := json.Marshal(defn)
	if err != nil {
		return fmt.Errorf("failed to marshal definition summary: %w", err)
	}
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO model_snapshots (model_id, definition, snapshot, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(model_id) DO UPDATE SET
			definition = excluded.definition,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, modelID, string(defnJSON), string(snapJSON))
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %q: %w", modelID, err)
	}
	return nil
}

// Load returns the most recently saved snapshot and definition summary for
// modelID, or ErrModelNotFound if none exists.
func (s *Store) Load(modelID string) (DefinitionSummary, irm.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var defnJSON, snapJSON string
	err := s.db.QueryRow(`SELECT definition, snapshot FROM model_snapshots WHERE model_id = ?`, modelID).Scan(&defnJSON, &snapJSON)
	if err == sql.ErrNoRows {
		return DefinitionSummary{}, irm.Snapshot{}, ErrModelNotFound
	}
	if err != nil {
		return DefinitionSummary{}, irm.Snapshot{}, fmt.Errorf("failed to load snapshot for %q: %w", modelID, err)
	}

	var defn DefinitionSummary
	if err := json.Unmarshal([]byte(defnJSON), &defn); err != nil {
		return DefinitionSummary{}, irm.Snapshot{}, fmt.Errorf("failed to unmarshal definition summary: %w", err)
	}
	var snap irm.Snapshot
	if err := json.Unmarshal([]byte(snapJSON), &snap); err != nil {
		return DefinitionSummary{}, irm.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return defn, snap, nil
}

// ListModelIDs returns every model id currently stored, most recently
// updated first.
func (s *Store) ListModelIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT model_id FROM model_snapshots ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes modelID's stored snapshot, if any.
func (s *Store) Delete(modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM model_snapshots WHERE model_id = ?`, modelID)
	return err
}
