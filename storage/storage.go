// Package storage persists the dashboard's tracked collections in SQLite.
// Each collection is a single JSON-array blob stored under its own key,
// loaded once at startup and overwritten wholesale on every mutation.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a collection key has never been written.
var ErrNotFound = errors.New("not found")

// Collection keys for the persisted entity kinds.
const (
	KeyTrackedRepos = "tracked_repos"
	KeyNewsSources  = "news_sources"
	KeyVideoTags    = "video_tags"
)

// DB wraps the SQLite database connection and provides collection storage.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Load reads a collection blob into v. Returns ErrNotFound for a key that
// has never been saved.
func (db *DB) Load(ctx context.Context, key string, v any) error {
	query := `SELECT value FROM collections WHERE key = ?`
	var value string
	err := db.conn.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(value), v); err != nil {
		return fmt.Errorf("unmarshal collection %q: %w", key, err)
	}
	return nil
}

// Save overwrites a collection blob with the JSON encoding of v.
func (db *DB) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal collection %q: %w", key, err)
	}

	query := `
	INSERT INTO collections (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err = db.conn.ExecContext(ctx, query, key, string(data))
	return err
}
