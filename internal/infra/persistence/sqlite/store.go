// Package sqlite persists the registry state to a single SQLite table as JSON
// snapshot buckets, refreshed after every successful transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"linkreview/internal/infra/persistence/memory"
	"linkreview/pkg/domain"
)

// Store wraps the in-memory store and snapshots its full state to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "linkreview.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

const (
	bucketPersons          = "persons"
	bucketPotentialMatches = "potential_matches"
)

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{}
	loaded := false
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		switch bucket {
		case bucketPersons:
			if err := json.Unmarshal(payload, &snapshot.Persons); err != nil {
				return fmt.Errorf("decode persons: %w", err)
			}
			loaded = true
		case bucketPotentialMatches:
			if err := json.Unmarshal(payload, &snapshot.PotentialMatches); err != nil {
				return fmt.Errorf("decode potential matches: %w", err)
			}
			loaded = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if loaded {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	buckets := []struct {
		name string
		data any
	}{
		{bucketPersons, snapshot.Persons},
		{bucketPotentialMatches, snapshot.PotentialMatches},
	}
	for _, b := range buckets {
		payload, err := json.Marshal(b.data)
		if err != nil {
			retErr = fmt.Errorf("encode %s: %w", b.name, err)
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, b.name, payload); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", b.name, err)
			return retErr
		}
	}
	return tx.Commit()
}

// RunInTransaction applies fn in memory, then snapshots state to SQLite when
// it succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	if err := s.Store.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	return s.persist()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

var _ domain.PersistentStore = (*Store)(nil)
