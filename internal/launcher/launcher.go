// Package launcher implements the client-side half of spec §4.8: locate a
// running daemon for a workspace, spawn one if absent, and connect with
// backoff. It mirrors the corpus's daemon.Start/IsRunning self-locating
// re-exec idiom, generalized to roslynq's separate client/daemon binaries.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	rqerrors "github.com/roslynq/roslynq/internal/errors"
	"github.com/roslynq/roslynq/internal/ipcclient"
	"github.com/roslynq/roslynq/internal/workspace"
)

// DaemonBinaryName is the spawned-process contract's executable name
// (spec §6).
const DaemonBinaryName = "roslynqd"

// connectDeadline bounds a single connection attempt.
const connectDeadline = 500 * time.Millisecond

// Options configures one Ensure call.
type Options struct {
	// WorkspacePath is the path the caller supplied; it need not be
	// canonical yet.
	WorkspacePath string

	// IdleTimeoutMinutes is forwarded to a freshly spawned daemon as
	// --idle-timeout. Zero means "use the daemon's own default".
	IdleTimeoutMinutes int

	// Attempts and Interval control the connect-retry backoff after
	// spawning (spec §4.8: 1-second interval, 30 attempts by default).
	Attempts int
	Interval time.Duration
}

func (o Options) attempts() int {
	if o.Attempts <= 0 {
		return 30
	}
	return o.Attempts
}

func (o Options) interval() time.Duration {
	if o.Interval <= 0 {
		return time.Second
	}
	return o.Interval
}

// Ensure returns a connected client for opts.WorkspacePath, spawning a
// daemon if none is reachable. Canonicalization, stale-file cleanup, and
// the connect backoff all happen here exactly as spec §4.8 describes.
func Ensure(opts Options) (*ipcclient.Client, error) {
	root, err := workspace.Canonicalize(opts.WorkspacePath)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing workspace path: %w", err)
	}
	socketPath, err := workspace.SocketPath(root)
	if err != nil {
		return nil, err
	}
	pidPath, err := workspace.PIDPath(root)
	if err != nil {
		return nil, err
	}

	if pid, ok := liveDaemonPID(pidPath); ok {
		if c, err := ipcclient.Connect(socketPath, connectDeadline); err == nil {
			return c, nil
		}
		// PID file names a live process but the socket didn't answer:
		// treat as stale and fall through to a fresh spawn.
		_ = pid
	}

	cleanupStale(socketPath, pidPath)

	cmd, stderr, err := spawn(root, opts.IdleTimeoutMinutes)
	if err != nil {
		return nil, rqerrors.WrapError(rqerrors.ErrDaemonSpawnFailed, err.Error())
	}

	return connectWithBackoff(cmd, stderr, socketPath, opts.attempts(), opts.interval())
}

// liveDaemonPID reports whether pidPath names a process that is still alive.
func liveDaemonPID(pidPath string) (int, bool) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	return pid, true
}

func cleanupStale(socketPath, pidPath string) {
	_ = os.Remove(socketPath)
	_ = os.Remove(pidPath)
}

// spawn starts the daemon binary detached from the current terminal,
// capturing stderr so a failed launch can surface the daemon's own error
// (spec §4.8/§7: "child process exits before ready").
func spawn(root string, idleTimeoutMinutes int) (*exec.Cmd, *strings.Builder, error) {
	bin, err := locateDaemonBinary()
	if err != nil {
		return nil, nil, err
	}

	args := []string{root}
	if idleTimeoutMinutes > 0 {
		args = append(args, "--idle-timeout", strconv.Itoa(idleTimeoutMinutes))
	}

	cmd := exec.Command(bin, args...) // #nosec G204 -- bin resolved via os.Executable()/$PATH lookup, not user input
	cmd.Stdin = nil
	cmd.Stdout = nil
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting daemon process: %w", err)
	}
	_ = cmd.Process.Release()
	return cmd, &stderr, nil
}

// locateDaemonBinary looks for roslynqd next to the running client binary
// first (the corpus's self-locating re-exec idiom), falling back to $PATH.
func locateDaemonBinary() (string, error) {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), DaemonBinaryName)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	if path, err := exec.LookPath(DaemonBinaryName); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%s not found next to this binary or on PATH", DaemonBinaryName)
}

// connectWithBackoff retries connecting to socketPath at a fixed interval.
// If cmd exits before a connection succeeds, its captured stderr becomes
// the returned error's message (spec §4.8/§7).
func connectWithBackoff(cmd *exec.Cmd, stderr *strings.Builder, socketPath string, attempts int, interval time.Duration) (*ipcclient.Client, error) {
	for i := 0; i < attempts; i++ {
		if c, err := ipcclient.Connect(socketPath, connectDeadline); err == nil {
			return c, nil
		}
		if exited, code := processExited(cmd.Process.Pid); exited {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fmt.Sprintf("daemon exited with code %d before it was ready", code)
			}
			return nil, rqerrors.WrapError(rqerrors.ErrDaemonSpawnFailed, msg)
		}
		time.Sleep(interval)
	}
	return nil, rqerrors.WrapError(rqerrors.ErrDaemonConnectFailed,
		fmt.Sprintf("no daemon answered after %d attempts", attempts))
}

// processExited reports whether pid is no longer alive. It cannot recover
// the real exit code once the process has been Release()d (no longer a
// child we can Wait on); 1 is reported as a generic "not clean" signal.
func processExited(pid int) (bool, int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true, 1
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return true, 1
	}
	return false, 0
}
