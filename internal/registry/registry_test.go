package registry

import (
	"path/filepath"
	"testing"
	"time"
)

func TestUpsertThenList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	rec := DaemonRecord{
		WorkspaceKey: "abc123",
		Root:         "/work/proj",
		SocketPath:   "/tmp/roslyn-query/roslyn-query-abc123.sock",
		PIDPath:      "/tmp/roslyn-query/roslyn-query-abc123.pid",
		StartedAt:    time.Now(),
		LastSeenAt:   time.Now(),
	}
	if err := r.Upsert(rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	recs, err := r.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].WorkspaceKey != "abc123" {
		t.Fatalf("unexpected list result: %+v", recs)
	}
}

func TestUpsertRefreshesExistingRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	started := time.Now().Add(-time.Hour)
	if err := r.Upsert(DaemonRecord{WorkspaceKey: "k", Root: "/a", SocketPath: "/a.sock", PIDPath: "/a.pid", StartedAt: started, LastSeenAt: started}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	refreshed := time.Now()
	if err := r.Upsert(DaemonRecord{WorkspaceKey: "k", Root: "/a", SocketPath: "/a.sock", PIDPath: "/a.pid", StartedAt: refreshed, LastSeenAt: refreshed}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	recs, err := r.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 row after re-upsert, got %d", len(recs))
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if err := r.Upsert(DaemonRecord{WorkspaceKey: "k", Root: "/a", SocketPath: "/a.sock", PIDPath: "/a.pid", StartedAt: time.Now(), LastSeenAt: time.Now()}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := r.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	recs, err := r.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty list after delete, got %+v", recs)
	}
}
