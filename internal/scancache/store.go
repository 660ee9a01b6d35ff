package scancache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"micromanagerr/internal/classify"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever the table layout changes. The cache is
// disposable, so a mismatch is resolved by recreating the tables.
const schemaVersion = 1

// Key identifies one classification. A changed size or modification time
// means the file was replaced and the entry no longer applies.
type Key struct {
	Path             string
	SizeBytes        int64
	ModTime          time.Time
	FilenameHint     string
	ReferenceRuntime *float64
	// Options fingerprints classifier settings that change the verdict.
	Options string
}

// KeyForFile stats path and builds its key.
func KeyForFile(path, hint string, reference *float64, options string) (Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Key{}, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Key{}, fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return Key{}, fmt.Errorf("%s is a directory", abs)
	}
	return Key{
		Path:             abs,
		SizeBytes:        info.Size(),
		ModTime:          info.ModTime(),
		FilenameHint:     hint,
		ReferenceRuntime: reference,
		Options:          options,
	}, nil
}

func (k Key) reference() string {
	if k.ReferenceRuntime == nil {
		return ""
	}
	return strconv.FormatFloat(*k.ReferenceRuntime, 'f', -1, 64)
}

// Store is a SQLite-backed classification cache.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the cache database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 1 {
		var version int
		err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
		if err == nil && version == schemaVersion {
			return nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read schema version: %w", err)
		}
	}
	return s.createSchema(ctx)
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DROP TABLE IF EXISTS classifications", "DROP TABLE IF EXISTS schema_version"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset schema: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Lookup returns the cached classification for key.
func (s *Store) Lookup(ctx context.Context, key Key) (classify.Classification, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT classification_json FROM classifications
         WHERE path = ? AND size_bytes = ? AND mtime_ns = ? AND filename_hint = ? AND reference_runtime = ? AND options = ?`,
		key.Path, key.SizeBytes, key.ModTime.UnixNano(), key.FilenameHint, key.reference(), key.Options,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return classify.Classification{}, false, nil
	}
	if err != nil {
		return classify.Classification{}, false, fmt.Errorf("query classification: %w", err)
	}
	var c classify.Classification
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return classify.Classification{}, false, fmt.Errorf("decode cached classification: %w", err)
	}
	return c, true, nil
}

// Save stores c under key and drops entries for earlier versions of the
// same file.
func (s *Store) Save(ctx context.Context, key Key, c classify.Classification) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode classification: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	mtime := key.ModTime.UnixNano()
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM classifications WHERE path = ? AND (size_bytes != ? OR mtime_ns != ?)",
		key.Path, key.SizeBytes, mtime,
	); err != nil {
		return fmt.Errorf("drop stale entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO classifications (
            path, size_bytes, mtime_ns, filename_hint, reference_runtime, options, classification_json, cached_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.Path, key.SizeBytes, mtime, key.FilenameHint, key.reference(), key.Options,
		string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert classification: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Stats summarises the cache contents.
type Stats struct {
	Entries int
	Files   int
}

// Stats counts cached classifications and distinct files.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COUNT(DISTINCT path) FROM classifications",
	).Scan(&st.Entries, &st.Files)
	if err != nil {
		return Stats{}, fmt.Errorf("count classifications: %w", err)
	}
	return st, nil
}

// Clear removes every cached classification and reports how many were
// removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM classifications")
	if err != nil {
		return 0, fmt.Errorf("clear classifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
