// Package gamedb persists ROM hash to game identity mappings in SQLite
// so repeated resolutions and offline sessions skip the network. It
// holds both individual resolution results and bulk imports of the
// backend's per-console hash library.
package gamedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rom_hashes (
    hash TEXT PRIMARY KEY,
    game_id INTEGER NOT NULL,
    console_id INTEGER NOT NULL DEFAULT 0,
    source TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rom_hashes_console ON rom_hashes(console_id);
`

// Sources for a stored mapping. Library rows come from a bulk hash
// library sync; resolved rows from individual gameid lookups.
const (
	SourceLibrary  = "library"
	SourceResolved = "resolved"
)

// Store persists hash to game identity mappings in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the store at path and creates the schema if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// LookupHash returns the cached game ID for a ROM hash. A cached
// "not recognized" answer is returned as (0, true, nil); an uncached
// hash as (0, false, nil).
func (s *Store) LookupHash(ctx context.Context, hash string) (uint32, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, false, fmt.Errorf("storage is not configured")
	}

	var gameID int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT game_id FROM rom_hashes WHERE hash = ?`,
		strings.ToLower(hash),
	).Scan(&gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup hash: %w", err)
	}
	if gameID < 0 {
		gameID = 0
	}
	return uint32(gameID), true, nil
}

// SaveResolution stores one hash to game ID mapping from a gameid
// lookup. A gameID of 0 records "not recognized" so the resolver does
// not retry the backend for it.
func (s *Store) SaveResolution(ctx context.Context, hash string, gameID uint32, consoleID uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(hash) == "" {
		return fmt.Errorf("hash is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO rom_hashes (hash, game_id, console_id, source, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET
		   game_id = excluded.game_id,
		   console_id = excluded.console_id,
		   source = excluded.source,
		   updated_at = excluded.updated_at`,
		strings.ToLower(hash), gameID, consoleID, SourceResolved, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save resolution: %w", err)
	}
	return nil
}

// ReplaceHashLibrary replaces all library-sourced rows for a console
// with the given hash library. Individually resolved rows survive.
func (s *Store) ReplaceHashLibrary(ctx context.Context, consoleID uint32, library map[string]uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rom_hashes WHERE console_id = ? AND source = ?`,
		consoleID, SourceLibrary,
	); err != nil {
		return fmt.Errorf("clear hash library: %w", err)
	}

	now := time.Now().UTC().UnixMilli()
	for hash, gameID := range library {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rom_hashes (hash, game_id, console_id, source, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(hash) DO UPDATE SET
			   game_id = excluded.game_id,
			   console_id = excluded.console_id,
			   source = excluded.source,
			   updated_at = excluded.updated_at`,
			strings.ToLower(hash), gameID, consoleID, SourceLibrary, now,
		); err != nil {
			return fmt.Errorf("insert hash library row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit hash library: %w", err)
	}
	return nil
}

// CountHashes returns the number of stored mappings for a console, or
// for all consoles when consoleID is 0.
func (s *Store) CountHashes(ctx context.Context, consoleID uint32) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int64
	var err error
	if consoleID == 0 {
		err = s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM rom_hashes`).Scan(&count)
	} else {
		err = s.sqlDB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM rom_hashes WHERE console_id = ?`, consoleID,
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count hashes: %w", err)
	}
	return count, nil
}
