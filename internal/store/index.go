package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

// Index records every cached lyric file along with its accumulated sync
// offset, backed by SQLite.
type Index struct {
	db *sql.DB
}

// Entry is one indexed lyric file
type Entry struct {
	ID        int64
	Title     string
	Artist    string
	Path      string
	OffsetMs  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewIndex opens or creates the index database at dbPath
func NewIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS lyrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			path TEXT NOT NULL,
			offset_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			UNIQUE (title, artist)
		);

		CREATE INDEX IF NOT EXISTS idx_updated_at ON lyrics(updated_at);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the database connection
func (x *Index) Close() error {
	if x.db != nil {
		return x.db.Close()
	}
	return nil
}

// Upsert records the file for a track, keeping any accumulated offset
func (x *Index) Upsert(ctx context.Context, title, artist, path string) error {
	query := `
		INSERT INTO lyrics (title, artist, path, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (title, artist) DO UPDATE SET
			path = excluded.path,
			updated_at = excluded.updated_at
	`

	if _, err := x.db.ExecContext(ctx, query, title, artist, path, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to upsert lyrics entry: %w", err)
	}
	return nil
}

// AddOffset adds deltaMs to the track's accumulated offset
func (x *Index) AddOffset(ctx context.Context, title, artist string, deltaMs int64) error {
	query := `
		UPDATE lyrics
		SET offset_ms = offset_ms + ?, updated_at = ?
		WHERE title = ? AND artist = ?
	`

	result, err := x.db.ExecContext(ctx, query, deltaMs, time.Now().Unix(), title, artist)
	if err != nil {
		return fmt.Errorf("failed to update offset: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("no lyrics entry for %q by %q", title, artist)
	}

	return nil
}

// Get returns the entry for a track. The bool is false when none exists.
func (x *Index) Get(ctx context.Context, title, artist string) (Entry, bool, error) {
	query := `
		SELECT id, title, artist, path, offset_ms, created_at, updated_at
		FROM lyrics
		WHERE title = ? AND artist = ?
	`

	e, err := scanEntry(x.db.QueryRowContext(ctx, query, title, artist))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get lyrics entry: %w", err)
	}
	return e, true, nil
}

// List returns entries, most recently updated first. A limit of zero
// returns everything.
func (x *Index) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, title, artist, path, offset_ms, created_at, updated_at
		FROM lyrics
		ORDER BY updated_at DESC, id DESC
	`

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := x.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lyrics entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lyrics entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lyrics entries: %w", err)
	}

	return entries, nil
}

// Delete removes the entry for a track and returns its path
func (x *Index) Delete(ctx context.Context, title, artist string) (string, error) {
	e, ok, err := x.Get(ctx, title, artist)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no lyrics entry for %q by %q", title, artist)
	}

	if _, err := x.db.ExecContext(ctx, "DELETE FROM lyrics WHERE id = ?", e.ID); err != nil {
		return "", fmt.Errorf("failed to delete lyrics entry: %w", err)
	}
	return e.Path, nil
}

// Prune removes entries whose file no longer exists
func (x *Index) Prune(ctx context.Context) (int64, error) {
	entries, err := x.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, e := range entries {
		if _, err := os.Stat(e.Path); err == nil || !os.IsNotExist(err) {
			continue
		}
		if _, err := x.db.ExecContext(ctx, "DELETE FROM lyrics WHERE id = ?", e.ID); err != nil {
			return deleted, fmt.Errorf("failed to prune lyrics entry %d: %w", e.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

// Count returns the number of indexed entries
func (x *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lyrics").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count lyrics entries: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var created, updated int64
	if err := s.Scan(&e.ID, &e.Title, &e.Artist, &e.Path, &e.OffsetMs, &created, &updated); err != nil {
		return Entry{}, err
	}
	e.CreatedAt = time.Unix(created, 0)
	e.UpdatedAt = time.Unix(updated, 0)
	return e, nil
}
