package decision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `CREATE TABLE IF NOT EXISTS decisions (
	image_key  TEXT PRIMARY KEY,
	choice     INTEGER NOT NULL CHECK (choice >= 0),
	decided_at TEXT NOT NULL
)`

// SQLiteStore keeps decisions in an SQLite database
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLiteStore opens or creates the database at path. A file that is
// not a valid database is moved aside to <path>.corrupt-<unix> and a fresh
// database is created in its place.
func OpenSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := openDecisionsDB(ctx, path)
	if err != nil && isCorrupt(err) && path != ":memory:" {
		backup := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		logger.Warn("decision database corrupt, recreating",
			"path", path,
			"backup", backup,
			"error", err)
		if rerr := os.Rename(path, backup); rerr != nil {
			return nil, fmt.Errorf("failed to move corrupt database aside: %w", rerr)
		}
		db, err = openDecisionsDB(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

func openDecisionsDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision database: %w", err)
	}
	// one writer; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create decisions table: %w", err)
	}

	return db, nil
}

func isCorrupt(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return true
	}
	return false
}

// Lookup returns the stored index for key
func (s *SQLiteStore) Lookup(ctx context.Context, key string) (int, bool, error) {
	var idx int
	err := s.db.QueryRowContext(ctx,
		`SELECT choice FROM decisions WHERE image_key = ?`, key).Scan(&idx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up decision: %w", err)
	}
	return idx, true, nil
}

// Save records index for key. An existing decision for key is kept.
func (s *SQLiteStore) Save(ctx context.Context, key string, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChoice, index)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (image_key, choice, decided_at) VALUES (?, ?, ?)
		 ON CONFLICT(image_key) DO NOTHING`,
		key, index, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
