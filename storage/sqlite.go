package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/semcnl/registry"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS registries (
	user_id    TEXT PRIMARY KEY,
	revision   INTEGER NOT NULL,
	snapshot   BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteStore keeps one registry snapshot per user in a SQLite table. A
// revision column provides the compare-and-set.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	db.Exec("PRAGMA busy_timeout=5000")

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the user's snapshot at its stored revision.
func (s *SQLiteStore) Load(ctx context.Context, userID string) (*registry.Snapshot, error) {
	var (
		rev  uint64
		data []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, snapshot FROM registries WHERE user_id = ?`, userID,
	).Scan(&rev, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}

	snap, err := registry.UnmarshalSnapshot(data)
	if err != nil {
		return nil, err
	}
	snap.Revision = rev
	return snap, nil
}

// Save writes the snapshot if the stored revision still matches.
func (s *SQLiteStore) Save(ctx context.Context, userID string, snap *registry.Snapshot) error {
	data, err := registry.MarshalSnapshot(snap)
	if err != nil {
		return err
	}
	next := snap.Revision + 1
	updated := s.now().UnixMilli()

	var res sql.Result
	if snap.Revision == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO registries (user_id, revision, snapshot, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(user_id) DO NOTHING`,
			userID, next, data, updated)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE registries SET revision = ?, snapshot = ?, updated_at = ?
			 WHERE user_id = ? AND revision = ?`,
			next, data, updated, userID, snap.Revision)
	}
	if err != nil {
		return fmt.Errorf("write registry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: user %s changed since revision %d", registry.ErrConflict, userID, snap.Revision)
	}

	snap.Revision = next
	return nil
}

// Delete removes the user's registry.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM registries WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete registry: %w", err)
	}
	return nil
}
