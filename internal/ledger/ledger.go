// Package ledger keeps a SQLite record of uploaded recipe images so that
// images whose recipe write never succeeded can be found later.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/panela/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS uploads (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	filename    TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	recipe_id   INTEGER,
	created_at  DATETIME NOT NULL,
	attached_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_uploads_recipe ON uploads(recipe_id);
CREATE INDEX IF NOT EXISTS idx_uploads_checksum ON uploads(checksum);
`

// Upload is one image handed to the remote API.
type Upload struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Filename   string     `json:"filename"`
	Checksum   string     `json:"checksum"`
	RecipeID   int64      `json:"recipe_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	AttachedAt *time.Time `json:"attached_at,omitempty"`
}

// Attached reports whether a recipe references the upload.
func (u Upload) Attached() bool {
	return u.AttachedAt != nil
}

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// RecordUpload stores a fresh, unattached upload and returns its id.
func (db *DB) RecordUpload(ctx context.Context, url, filename, checksum string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO uploads (id, url, filename, checksum, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, url, filename, checksum, db.now().UTC())
	if err != nil {
		return "", fmt.Errorf("ledger: record upload: %w", err)
	}
	return id, nil
}

// MarkAttached links the upload to the recipe that now references it.
func (db *DB) MarkAttached(ctx context.Context, id string, recipeID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE uploads SET recipe_id = ?, attached_at = ? WHERE id = ?`,
		recipeID, db.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("ledger: mark attached: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: mark attached: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ledger: upload %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Get returns one upload by id.
func (db *DB) Get(ctx context.Context, id string) (*Upload, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, url, filename, checksum, recipe_id, created_at, attached_at FROM uploads WHERE id = ?`, id)
	u, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger: upload %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: get upload: %w", err)
	}
	return u, nil
}

// Orphans lists uploads never attached to a recipe and older than minAge,
// oldest first.
func (db *DB) Orphans(ctx context.Context, minAge time.Duration) ([]Upload, error) {
	cutoff := db.now().UTC().Add(-minAge)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, url, filename, checksum, recipe_id, created_at, attached_at
		FROM uploads
		WHERE attached_at IS NULL AND created_at <= ?
		ORDER BY created_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("ledger: orphans: %w", err)
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan orphan: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(s scanner) (*Upload, error) {
	var (
		u        Upload
		recipeID sql.NullInt64
		attached sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.URL, &u.Filename, &u.Checksum, &recipeID, &u.CreatedAt, &attached); err != nil {
		return nil, err
	}
	if recipeID.Valid {
		u.RecipeID = recipeID.Int64
	}
	if attached.Valid {
		t := attached.Time
		u.AttachedAt = &t
	}
	return &u, nil
}
