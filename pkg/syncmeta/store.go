// Package syncmeta keeps the local record of what each profile looked like
// at its last successful sync, in a small SQLite database
package syncmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/latoulicious/rpsync/pkg/conflict"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version, stored in user_version
const CurrentSchemaVersion = 1

// Store is the sync metadata database
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync metadata: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS sync_metadata (
		  profile_id           TEXT PRIMARY KEY,
		  last_synced_at       TEXT NOT NULL,
		  last_synced_checksum TEXT NOT NULL,
		  cloud_version        INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", 1)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}

	return nil
}

// Get returns the baseline of a profile, or nil when it was never synced
func (s *Store) Get(ctx context.Context, profileID string) (*conflict.Baseline, error) {
	var (
		b        conflict.Baseline
		syncedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT profile_id, last_synced_at, last_synced_checksum, cloud_version
		 FROM sync_metadata WHERE profile_id = ?`, profileID,
	).Scan(&b.ProfileID, &syncedAt, &b.LastSyncedChecksum, &b.CloudVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync metadata for %s: %w", profileID, err)
	}

	b.LastSyncedAt, err = time.Parse(time.RFC3339Nano, syncedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt sync timestamp for %s: %w", profileID, err)
	}
	return &b, nil
}

// Put records a successful sync, replacing any earlier baseline
func (s *Store) Put(ctx context.Context, b conflict.Baseline) error {
	if b.ProfileID == "" {
		return errors.New("profile id is required")
	}
	if b.LastSyncedAt.IsZero() {
		b.LastSyncedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_metadata
		 (profile_id, last_synced_at, last_synced_checksum, cloud_version)
		 VALUES (?, ?, ?, ?)`,
		b.ProfileID, b.LastSyncedAt.UTC().Format(time.RFC3339Nano), b.LastSyncedChecksum, b.CloudVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to write sync metadata for %s: %w", b.ProfileID, err)
	}
	return nil
}

// Delete forgets a profile's baseline
func (s *Store) Delete(ctx context.Context, profileID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_metadata WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("failed to delete sync metadata for %s: %w", profileID, err)
	}
	return nil
}
