package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyStability(t *testing.T) {
	p1 := "/home/user/proj/a/../a"
	p2 := "/home/user/proj/a"
	c1, err := Canonicalize(p1)
	if err != nil {
		t.Fatalf("canonicalize p1: %v", err)
	}
	c2, err := Canonicalize(p2)
	if err != nil {
		t.Fatalf("canonicalize p2: %v", err)
	}
	if Key(c1) != Key(c2) {
		t.Fatalf("expected identical keys for aliased paths, got %s vs %s", Key(c1), Key(c2))
	}
}

func TestKeyDistinctForDistinctPaths(t *testing.T) {
	if Key("/a/b") == Key("/a/c") {
		t.Fatal("expected distinct keys for distinct canonical paths")
	}
}

func TestSocketAndPIDPathsDeterministic(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	root, err := Canonicalize(dir)
	if err != nil {
		t.Fatal(err)
	}

	sock1, err := SocketPath(root)
	if err != nil {
		t.Fatal(err)
	}
	sock2, err := SocketPath(root)
	if err != nil {
		t.Fatal(err)
	}
	if sock1 != sock2 {
		t.Fatalf("expected deterministic socket path, got %s vs %s", sock1, sock2)
	}
	if filepath.Dir(sock1) != filepath.Join(dir, runtimeSubdir) {
		t.Fatalf("expected socket under runtime subdir, got %s", sock1)
	}

	info, err := os.Stat(filepath.Dir(sock1))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Fatalf("expected runtime dir mode 0700, got %v", info.Mode().Perm())
	}

	pid, err := PIDPath(root)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(pid) != "roslyn-query-"+Key(root)+".pid" {
		t.Fatalf("unexpected pid file name: %s", pid)
	}
}
