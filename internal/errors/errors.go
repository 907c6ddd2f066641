// Package errors collects sentinel errors for roslynq's ambient layers,
// grouped by subsystem. Wire-level and query-level outcomes are not here:
// those ride as error_code strings in dispatcher envelopes or JSON-RPC
// numeric codes on the wire (see internal/wire, internal/dispatcher).
package errors

import (
	"errors"
	"fmt"
)

// Platform errors
var (
	// ErrPlatformUnsupported is returned when the platform is not supported
	ErrPlatformUnsupported = errors.New("unsupported platform: roslynq requires a POSIX-style runtime or temp directory")
)

// Configuration errors
var (
	// ErrConfigNotFound is returned when a config file cannot be found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid is returned when a config file cannot be parsed
	ErrConfigInvalid = errors.New("failed to parse config")

	// ErrConfigReadFailed is returned when a config file cannot be read
	ErrConfigReadFailed = errors.New("failed to read config file")

	// ErrConfigWriteFailed is returned when a config file cannot be written
	ErrConfigWriteFailed = errors.New("failed to write config file")
)

// Workspace errors
var (
	// ErrWorkspaceNotFound is returned when a workspace root does not exist
	// on disk.
	ErrWorkspaceNotFound = errors.New("workspace path not found")

	// ErrWorkspaceLoadFailed is returned when the analyzer cannot parse the
	// workspace rooted at a given path.
	ErrWorkspaceLoadFailed = errors.New("failed to load workspace")
)

// Daemon lifecycle errors
var (
	// ErrDaemonNotRunning is returned when no live daemon answers for a
	// workspace key.
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrDaemonAlreadyRunning is returned when a live daemon already holds
	// a workspace's socket.
	ErrDaemonAlreadyRunning = errors.New("daemon already running")

	// ErrDaemonSpawnFailed is returned when the launcher cannot start the
	// daemon process.
	ErrDaemonSpawnFailed = errors.New("failed to spawn daemon")

	// ErrDaemonConnectFailed is returned when the launcher exhausts its
	// connection backoff without reaching a daemon.
	ErrDaemonConnectFailed = errors.New("failed to connect to daemon")

	// ErrPIDFileStale is returned when a PID file names a process that is
	// no longer alive.
	ErrPIDFileStale = errors.New("stale pid file")
)

// Wire and registry errors
var (
	// ErrSocketBindFailed is returned when the supervisor cannot bind the
	// workspace socket.
	ErrSocketBindFailed = errors.New("failed to bind socket")

	// ErrRegistryUnavailable is returned when the daemon registry database
	// cannot be opened.
	ErrRegistryUnavailable = errors.New("daemon registry unavailable")
)

// WrapError wraps an error with additional context
// This is a convenience function for adding context to errors
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// WrapErrorf wraps an error with formatted additional context
// This is a convenience function for adding formatted context to errors
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
