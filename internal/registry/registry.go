// Package registry is host-local bookkeeping for which workspaces have a
// daemon running: a single SQLite table the supervisor upserts into on
// start and deletes from on clean shutdown, and `roslynq list`/`roslynq gc`
// read and reconcile. It mirrors the corpus's store package's
// open-or-create-then-migrate shape, but the schema tracks daemons, not
// analysis results — no cached symbol or diagnostic data lives here.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	rqerrors "github.com/roslynq/roslynq/internal/errors"
)

// DaemonRecord is one row of the daemons table.
type DaemonRecord struct {
	WorkspaceKey string
	Root         string
	SocketPath   string
	PIDPath      string
	StartedAt    time.Time
	LastSeenAt   time.Time
}

// Registry wraps the registry database handle.
type Registry struct {
	db *sql.DB
}

// Open opens (creating if absent) the registry database at path and
// applies its schema.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, rqerrors.WrapError(err, "creating registry directory")
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, rqerrors.WrapError(rqerrors.ErrRegistryUnavailable, err.Error())
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, rqerrors.WrapError(rqerrors.ErrRegistryUnavailable, err.Error())
	}

	r := &Registry{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying database handle.
func (r *Registry) Close() error { return r.db.Close() }

func (r *Registry) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS daemons (
			workspace_key TEXT PRIMARY KEY,
			root          TEXT NOT NULL,
			socket_path   TEXT NOT NULL,
			pid_path      TEXT NOT NULL,
			started_at    TEXT NOT NULL,
			last_seen_at  TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating daemons table: %w", err)
	}
	return nil
}

// Upsert records (or refreshes) one daemon's bookkeeping row.
func (r *Registry) Upsert(rec DaemonRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO daemons (workspace_key, root, socket_path, pid_path, started_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_key) DO UPDATE SET
			root = excluded.root,
			socket_path = excluded.socket_path,
			pid_path = excluded.pid_path,
			last_seen_at = excluded.last_seen_at
	`, rec.WorkspaceKey, rec.Root, rec.SocketPath, rec.PIDPath,
		rec.StartedAt.UTC().Format(time.RFC3339), rec.LastSeenAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting daemon record: %w", err)
	}
	return nil
}

// Delete removes a workspace's bookkeeping row, e.g. on clean shutdown.
func (r *Registry) Delete(workspaceKey string) error {
	_, err := r.db.Exec(`DELETE FROM daemons WHERE workspace_key = ?`, workspaceKey)
	if err != nil {
		return fmt.Errorf("deleting daemon record: %w", err)
	}
	return nil
}

// List returns every recorded daemon, most recently seen first.
func (r *Registry) List() ([]DaemonRecord, error) {
	rows, err := r.db.Query(`
		SELECT workspace_key, root, socket_path, pid_path, started_at, last_seen_at
		FROM daemons ORDER BY last_seen_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing daemon records: %w", err)
	}
	defer rows.Close()

	var out []DaemonRecord
	for rows.Next() {
		var rec DaemonRecord
		var started, lastSeen string
		if err := rows.Scan(&rec.WorkspaceKey, &rec.Root, &rec.SocketPath, &rec.PIDPath, &started, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning daemon record: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeen)
		out = append(out, rec)
	}
	return out, rows.Err()
}
