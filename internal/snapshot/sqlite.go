package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based snapshot store.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ierrors.StorageOpenError(dbPath, err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, ierrors.StorageOpenError(dbPath, err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		counter TEXT NOT NULL,
		registry TEXT NOT NULL,
		count INTEGER NOT NULL,
		taken_at INTEGER NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_counter ON snapshots(counter);
	CREATE INDEX IF NOT EXISTS idx_taken_at ON snapshots(taken_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new snapshot to the store.
func (s *SQLiteStore) Append(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if snap.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(snap.Metadata)
		if err != nil {
			return ierrors.StorageError("marshal metadata", err)
		}
	}

	takenAt := snap.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO snapshots (counter, registry, count, taken_at, metadata) VALUES (?, ?, ?, ?, ?)",
		snap.Counter, snap.Registry, snap.Count, takenAt.Unix(), metadataJSON,
	)
	if err != nil {
		return ierrors.StorageError("insert snapshot", err)
	}

	return nil
}

// ByCounter retrieves all snapshots for a specific counter name.
func (s *SQLiteStore) ByCounter(ctx context.Context, counter string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, counter, registry, count, taken_at, metadata FROM snapshots WHERE counter = ? ORDER BY id",
		counter,
	)
	if err != nil {
		return nil, ierrors.StorageError("query snapshots", err)
	}
	defer rows.Close()

	return s.scanSnapshots(rows)
}

// Range retrieves snapshots within a time range.
func (s *SQLiteStore) Range(ctx context.Context, start, end time.Time) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, counter, registry, count, taken_at, metadata FROM snapshots WHERE taken_at >= ? AND taken_at <= ? ORDER BY id",
		start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, ierrors.StorageError("query snapshots", err)
	}
	defer rows.Close()

	return s.scanSnapshots(rows)
}

func (s *SQLiteStore) scanSnapshots(rows *sql.Rows) ([]Snapshot, error) {
	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var takenAtUnix int64
		var metadataJSON []byte

		err := rows.Scan(&snap.ID, &snap.Counter, &snap.Registry, &snap.Count, &takenAtUnix, &metadataJSON)
		if err != nil {
			return nil, ierrors.StorageError("scan snapshot", err)
		}

		snap.TakenAt = time.Unix(takenAtUnix, 0)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &snap.Metadata); err != nil {
				return nil, ierrors.StorageError("unmarshal metadata", err)
			}
		}

		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, ierrors.StorageError("iterate rows", err)
	}

	return snaps, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
