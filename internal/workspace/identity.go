// Package workspace derives the stable filesystem identity of a loaded
// workspace: its hash-based key, and the socket/PID file paths a daemon
// and its clients rendezvous on.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const runtimeSubdir = "roslyn-query"

// Canonicalize resolves path to an absolute, symlink-free form with
// unified separators, case-folded on platforms whose filesystem is
// case-insensitive (Windows, and macOS's default HFS+/APFS configuration).
//
// Two aliases to the same directory that differ only by symlink or case may
// still canonicalize to different strings on case-sensitive filesystems;
// see the open item in DESIGN.md.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	abs = filepath.Clean(abs)
	if caseInsensitiveFS() {
		abs = strings.ToLower(abs)
	}
	return abs, nil
}

func caseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// Key returns the hex-encoded 8-byte truncated SHA-256 of the canonicalized
// workspace path. Callers are expected to pass an already-canonicalized path;
// Key itself does not canonicalize so that tests can probe alias behavior.
func Key(canonicalPath string) string {
	sum := sha256.Sum256([]byte(canonicalPath))
	return hex.EncodeToString(sum[:8])
}

// runtimeDir returns the per-user runtime directory that socket and PID
// files live under, creating it with owner-only permissions if needed.
func runtimeDir() (string, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" || !dirExists(base) {
		base = os.TempDir()
	}
	dir := filepath.Join(base, runtimeSubdir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating runtime directory %s: %w", dir, err)
	}
	return dir, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SocketPath returns the Unix domain socket path for the workspace rooted at
// canonicalPath.
func SocketPath(canonicalPath string) (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("roslyn-query-%s.sock", Key(canonicalPath))), nil
}

// PIDPath returns the PID file path for the workspace rooted at canonicalPath.
func PIDPath(canonicalPath string) (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("roslyn-query-%s.pid", Key(canonicalPath))), nil
}
