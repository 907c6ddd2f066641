// Package supervisor owns one workspace daemon's process lifecycle: the
// strictly-ordered startup and shutdown sequences from spec §4.7, the idle
// watchdog, and PID file bookkeeping. It is the component that wires every
// other subsystem (analyzer, snapshot, watcher, IPC server, registry)
// together into a running process, grounded in the corpus's daemon.go
// lifecycle shape (fork-free here: roslynq's launcher does the detaching,
// Supervisor only runs once already in the child).
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/roslynq/roslynq/internal/analyzer"
	"github.com/roslynq/roslynq/internal/debug"
	"github.com/roslynq/roslynq/internal/dispatcher"
	rqerrors "github.com/roslynq/roslynq/internal/errors"
	"github.com/roslynq/roslynq/internal/ipcserver"
	"github.com/roslynq/roslynq/internal/registry"
	"github.com/roslynq/roslynq/internal/snapshot"
	"github.com/roslynq/roslynq/internal/watch"
	"github.com/roslynq/roslynq/internal/workspace"
)

// ShutdownDrainTimeout bounds how long Shutdown waits for in-flight
// handlers before force-closing connections (spec §4.7).
const ShutdownDrainTimeout = 5 * time.Second

// Options configures one supervised daemon process.
type Options struct {
	// Root is the canonicalized workspace path.
	Root string

	// NewAnalyzer constructs the analyzer implementation. It is called inside
	// its own stack frame before anything else touches analyzer types,
	// per spec §4.7's registration ordering requirement.
	NewAnalyzer func() analyzer.Analyzer

	IdleTimeoutMinutes int
	DebounceMillis     int

	// Registry is optional; when non-nil the supervisor upserts a bookkeeping
	// row on start and deletes it on clean shutdown.
	Registry *registry.Registry
}

// Supervisor runs one workspace's full daemon lifecycle.
type Supervisor struct {
	opts Options

	socketPath string
	pidPath    string

	sm     *snapshot.Manager
	w      *watch.Watcher
	server *ipcserver.Server

	// idleTimeout is the duration of continuous inactivity the watchdog
	// waits for before requesting shutdown. Derived from
	// Options.IdleTimeoutMinutes in New; tests override it directly to
	// exercise the watchdog without waiting on minute-granularity timers.
	idleTimeout time.Duration

	activityMu   sync.Mutex
	lastActivity time.Time

	done     chan struct{}
	doneOnce sync.Once
	exitErr  error
}

// New builds a Supervisor for opts. It does not start anything; call Run.
func New(opts Options) (*Supervisor, error) {
	socketPath, err := workspace.SocketPath(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("deriving socket path: %w", err)
	}
	pidPath, err := workspace.PIDPath(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("deriving pid path: %w", err)
	}
	return &Supervisor{
		opts:        opts,
		socketPath:  socketPath,
		pidPath:     pidPath,
		idleTimeout: time.Duration(opts.IdleTimeoutMinutes) * time.Minute,
		done:        make(chan struct{}),
	}, nil
}

// IdleTimeoutMinutes implements dispatcher.Activity.
func (s *Supervisor) IdleTimeoutMinutes() int { return s.opts.IdleTimeoutMinutes }

// IdleSeconds implements dispatcher.Activity.
func (s *Supervisor) IdleSeconds() int64 {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return int64(time.Since(s.lastActivity).Seconds())
}

func (s *Supervisor) touchActivity() {
	s.activityMu.Lock()
	s.lastActivity = time.Now()
	s.activityMu.Unlock()
}

// Run executes the full startup sequence, blocks until a shutdown trigger
// fires (the shutdown RPC, SIGINT/SIGTERM, or the idle watchdog), runs the
// shutdown sequence, and returns. The returned error is non-nil for a fatal
// startup failure or when the IPC server's shutdown fails; callers translate it to the spawned-process exit
// codes in spec §4.7 (2 for workspace load failure, 1 otherwise).
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.startup(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	watchdog := s.startIdleWatchdog()
	defer watchdog.Stop()

	select {
	case <-sigCh:
		debug.Log("supervisor: received termination signal")
	case <-s.done:
		debug.Log("supervisor: shutdown requested")
	}

	s.shutdown()
	return s.exitErr
}

func (s *Supervisor) startup(ctx context.Context) error {
	// The analyzer constructor runs in its own stack frame, before the
	// snapshot manager or anything else references analyzer types.
	an := func() analyzer.Analyzer {
		return s.opts.NewAnalyzer()
	}()

	s.sm = snapshot.NewManager(an, s.opts.Root)
	if err := s.sm.LoadInitial(ctx); err != nil {
		return rqerrors.WrapError(rqerrors.ErrWorkspaceLoadFailed, err.Error())
	}
	debug.LogReload("initial", 1, "")

	debounce := time.Duration(s.opts.DebounceMillis) * time.Millisecond
	w, err := watch.New(s.opts.Root, debounce)
	if err != nil {
		return fmt.Errorf("constructing watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	s.w = w
	go s.watchLoop(ctx)

	dispatch := dispatcher.New(an, s.sm, s)
	srv := ipcserver.New(s.socketPath, dispatch)
	srv.OnShutdownRequested = s.RequestShutdown
	srv.OnActivity = s.touchActivity
	if err := srv.Start(); err != nil {
		_ = w.Stop()
		return rqerrors.WrapError(rqerrors.ErrSocketBindFailed, err.Error())
	}
	s.server = srv

	if err := s.writePIDFile(); err != nil {
		_ = srv.Shutdown(ShutdownDrainTimeout)
		_ = w.Stop()
		return fmt.Errorf("writing pid file: %w", err)
	}

	if s.opts.Registry != nil {
		now := time.Now()
		rec := registry.DaemonRecord{
			WorkspaceKey: workspace.Key(s.opts.Root),
			Root:         s.opts.Root,
			SocketPath:   s.socketPath,
			PIDPath:      s.pidPath,
			StartedAt:    now,
			LastSeenAt:   now,
		}
		if err := s.opts.Registry.Upsert(rec); err != nil {
			debug.LogError(err, "registry upsert on start")
		}
	}

	s.touchActivity()
	return nil
}

// watchLoop forwards coalesced batches and full-reload signals from the
// filesystem watcher into snapshot updates, and counts every batch as
// activity per spec §4.3.
func (s *Supervisor) watchLoop(ctx context.Context) {
	for {
		select {
		case batch, ok := <-s.w.Batches():
			if !ok {
				return
			}
			s.applyBatch(ctx, batch)
			s.touchActivity()

		case _, ok := <-s.w.FullReloads():
			if !ok {
				return
			}
			if err := s.sm.Reload(ctx); err != nil {
				debug.LogError(err, "full reload")
			} else {
				debug.LogReload("full", s.currentVersion(), "")
			}
			s.touchActivity()

		case err, ok := <-s.w.Errors():
			if !ok {
				return
			}
			debug.LogError(err, "watcher")

		case <-s.done:
			return
		}
	}
}

func (s *Supervisor) applyBatch(ctx context.Context, batch watch.Batch) {
	// A batch with more than one distinct path, or any non-modified kind,
	// cannot be expressed as a single document's text replacement: fall
	// back to a full reload. A single "modified" change can be applied
	// incrementally.
	if len(batch) == 1 && batch[0].Kind == watch.Modified {
		path := batch[0].Path
		text, err := os.ReadFile(path)
		if err != nil {
			debug.LogError(err, "reading changed document")
			return
		}
		if err := s.sm.ApplyEdit(ctx, path, string(text)); err != nil {
			debug.LogError(err, "applying incremental edit")
			return
		}
		debug.LogReload("incremental", s.currentVersion(), path)
		return
	}

	if err := s.sm.Reload(ctx); err != nil {
		debug.LogError(err, "reload after batch")
		return
	}
	debug.LogReload("full", s.currentVersion(), "")
}

func (s *Supervisor) currentVersion() int64 {
	h := s.sm.Current()
	defer h.Release()
	return h.Snapshot().Version
}

func (s *Supervisor) startIdleWatchdog() *time.Ticker {
	timeout := s.idleTimeout
	if timeout <= 0 {
		// Disabled: still return a ticker so the caller can unconditionally
		// defer Stop, but use a long interval that never meaningfully fires
		// before the process would already have exited some other way.
		t := time.NewTicker(time.Hour)
		return t
	}

	interval := timeout
	if interval > 60*time.Second {
		interval = 60 * time.Second
	}

	t := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-t.C:
				s.activityMu.Lock()
				idle := time.Since(s.lastActivity)
				s.activityMu.Unlock()
				if idle >= timeout {
					debug.Log("supervisor: idle watchdog firing after %s", idle)
					s.RequestShutdown()
					return
				}
			case <-s.done:
				return
			}
		}
	}()
	return t
}

// RequestShutdown triggers the shutdown sequence exactly once. Safe to call
// from the shutdown RPC handler, the idle watchdog, or a signal handler.
func (s *Supervisor) RequestShutdown() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Supervisor) shutdown() {
	if s.server != nil {
		if err := s.server.Shutdown(ShutdownDrainTimeout); err != nil {
			debug.LogError(err, "ipc server shutdown")
			s.exitErr = err
		}
	}
	if s.w != nil {
		if err := s.w.Stop(); err != nil {
			debug.LogError(err, "watcher stop")
		}
	}
	if s.opts.Registry != nil {
		if err := s.opts.Registry.Delete(workspace.Key(s.opts.Root)); err != nil {
			debug.LogError(err, "registry delete on shutdown")
		}
	}
	if err := os.Remove(s.pidPath); err != nil && !os.IsNotExist(err) {
		debug.LogError(err, "removing pid file")
	}
}

// writePIDFile writes the current process's PID atomically: write to a
// temp file in the same directory, then rename.
func (s *Supervisor) writePIDFile() error {
	dir := filepath.Dir(s.pidPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".pid-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := fmt.Fprintf(tmp, "%d\n", os.Getpid()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.pidPath)
}

// SocketPath returns the Unix domain socket path this supervisor bound.
func (s *Supervisor) SocketPath() string { return s.socketPath }

// PIDPath returns the PID file path this supervisor wrote.
func (s *Supervisor) PIDPath() string { return s.pidPath }
