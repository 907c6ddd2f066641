// Package snapshot implements the immutable, versioned workspace view at
// the center of roslynq's design (see spec §4.5/§9): a single writer
// publishes replacement snapshots by atomic pointer swap, and readers hold
// reference-counted handles that stay valid for as long as they are held,
// regardless of concurrent reloads.
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roslynq/roslynq/internal/analyzer"
)

// Snapshot is an immutable value: once published, none of its fields are
// ever mutated.
type Snapshot struct {
	Version       int64
	Root          string
	Documents     []string // canonical document paths, sorted
	AnalyzerState analyzer.State
}

// entry pairs a published snapshot with its live reader count and a
// retirement flag so Release can tell when it is the last reader out.
type entry struct {
	snap     *Snapshot
	refCount int64
	retired  int32 // set to 1 once release() has run
}

// Handle is a reference-counted view onto one published Snapshot. Callers
// must call Release when done; failing to do so leaks the snapshot's
// analyzer resources past its natural retirement point.
type Handle struct {
	e *entry
}

// Snapshot returns the immutable value this handle refers to.
func (h Handle) Snapshot() *Snapshot { return h.e.snap }

// Release drops this handle's reference. Once every outstanding handle for
// a retired snapshot has been released, its analyzer resources are freed.
func (h Handle) Release() {
	if atomic.AddInt64(&h.e.refCount, -1) == 0 && atomic.LoadInt32(&h.e.retired) == 1 {
		// Nothing to free explicitly today: analyzer.State is opaque data
		// owned by the analyzer implementation and garbage collected
		// normally once unreferenced. This is the hook a real analyzer's
		// dispose step would run from.
	}
}

// Manager owns the current published snapshot and serializes writers.
type Manager struct {
	an   analyzer.Analyzer
	root string

	current atomic.Pointer[entry]
	writeMu sync.Mutex
}

// NewManager constructs a Manager bound to an analyzer and a canonical
// workspace root. Call LoadInitial before any other method.
func NewManager(an analyzer.Analyzer, root string) *Manager {
	return &Manager{an: an, root: root}
}

// LoadInitial parses the workspace from disk and publishes version 1.
func (m *Manager) LoadInitial(ctx context.Context) error {
	st, docs, err := m.an.Load(ctx, m.root)
	if err != nil {
		return fmt.Errorf("loading workspace at %s: %w", m.root, err)
	}
	m.publish(&Snapshot{Version: 1, Root: m.root, Documents: docs, AnalyzerState: st})
	return nil
}

// Current returns a handle to the currently published snapshot in O(1),
// never blocking on a concurrent writer.
func (m *Manager) Current() Handle {
	for {
		e := m.current.Load()
		n := atomic.AddInt64(&e.refCount, 1)
		if n <= 0 || atomic.LoadInt32(&e.retired) == 1 {
			// Lost the race with a retirement of e (a newer snapshot is
			// already published); retry against whatever is current now.
			atomic.AddInt64(&e.refCount, -1)
			continue
		}
		return Handle{e: e}
	}
}

// Reload builds a fresh workspace from disk, publishes version+1, and
// retires the previous snapshot once its readers release it.
func (m *Manager) Reload(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	prev := m.current.Load()
	st, docs, err := m.an.Reload(ctx, m.root, prev.snap.AnalyzerState)
	if err != nil {
		return fmt.Errorf("reloading workspace at %s: %w", m.root, err)
	}
	next := &Snapshot{Version: prev.snap.Version + 1, Root: m.root, Documents: docs, AnalyzerState: st}
	m.publish(next)
	m.retire(prev)
	return nil
}

// ApplyEdit replaces one document's text in the current snapshot's document
// set and publishes version+1. If path is not a known document, this is a
// no-op (see spec §9: new-file creation is not handled at this layer).
func (m *Manager) ApplyEdit(ctx context.Context, path, text string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	prev := m.current.Load()
	known := false
	for _, d := range prev.snap.Documents {
		if d == path {
			known = true
			break
		}
	}
	if !known {
		return nil
	}

	st, err := m.an.ApplyEdit(ctx, prev.snap.AnalyzerState, path, text)
	if err != nil {
		return fmt.Errorf("applying edit to %s: %w", path, err)
	}
	next := &Snapshot{Version: prev.snap.Version + 1, Root: m.root, Documents: prev.snap.Documents, AnalyzerState: st}
	m.publish(next)
	m.retire(prev)
	return nil
}

func (m *Manager) publish(s *Snapshot) {
	m.current.Store(&entry{snap: s, refCount: 1})
}

// retire marks prev as no longer current. If no reader is holding it, its
// resources are eligible for release immediately; otherwise Release (called
// by the last outstanding reader) does it.
func (m *Manager) retire(prev *entry) {
	atomic.StoreInt32(&prev.retired, 1)
	if atomic.AddInt64(&prev.refCount, -1) == 0 {
		// No readers left; nothing further to do (see Handle.Release doc).
	}
}

// CanonicalDocumentPath resolves a position's file (absolute or
// workspace-root-relative) to the canonical path used as a Documents /
// analyzer key.
func CanonicalDocumentPath(root, file string) string {
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(root, file)
}

// RelativeToRoot renders a canonical path relative to root when it lies
// beneath root, or returns it unchanged otherwise (spec §4.6).
func RelativeToRoot(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
