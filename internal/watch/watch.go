// Package watch implements the debounced filesystem watcher from spec
// §4.4: project/solution manifest changes are reported immediately as full
// reload triggers; everything else is coalesced into a single batch per
// debounce window, last-writer-wins per path. Renames are reported with
// both the old and new path: fsnotify (via inotify) surfaces a rename as
// two back-to-back events, a Rename on the old name followed by a Create
// on the new one, and this package pairs them within a short window.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies one coalesced filesystem change.
type ChangeKind string

const (
	Created  ChangeKind = "created"
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
	Renamed  ChangeKind = "renamed"
)

// Change is one entry in a coalesced batch.
type Change struct {
	Kind    ChangeKind
	Path    string
	OldPath string // only set for Renamed
}

// Batch is a set of coalesced changes emitted together when the debounce
// timer fires.
type Batch []Change

var sourceExts = map[string]bool{".cs": true}
var manifestExts = map[string]bool{".csproj": true, ".sln": true}

func isSource(path string) bool   { return sourceExts[strings.ToLower(filepath.Ext(path))] }
func isManifest(path string) bool { return manifestExts[strings.ToLower(filepath.Ext(path))] }

const rootSkipDir = ".roslynq"

// renamePairWindow bounds how long a Rename event's old path waits for a
// paired Create on the new path before the old path is reported as a plain
// deletion instead.
const renamePairWindow = 50 * time.Millisecond

// Watcher watches a workspace root recursively and emits coalesced change
// batches and full-reload signals.
type Watcher struct {
	root     string
	debounce time.Duration

	fs *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]Change
	timer   *time.Timer

	pendingRenameFrom string
	renameTimer       *time.Timer

	batches     chan Batch
	fullReloads chan struct{}
	errs        chan error
	done        chan struct{}
	stopOnce    sync.Once
}

// New constructs a Watcher rooted at root with the given debounce window.
func New(root string, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		root:        root,
		debounce:    debounce,
		fs:          fs,
		pending:     make(map[string]Change),
		batches:     make(chan Batch, 16),
		fullReloads: make(chan struct{}, 16),
		errs:        make(chan error, 16),
		done:        make(chan struct{}),
	}, nil
}

// Start begins watching. Call once.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("adding watch paths: %w", err)
	}
	go w.loop()
	return nil
}

// Stop terminates the watcher and releases its OS resources.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	return w.fs.Close()
}

// Batches delivers coalesced non-manifest change batches.
func (w *Watcher) Batches() <-chan Batch { return w.batches }

// FullReloads delivers a signal every time a manifest change or a watcher
// overflow requires a full reload, bypassing debounce entirely.
func (w *Watcher) FullReloads() <-chan struct{} { return w.fullReloads }

// Errors delivers non-fatal watcher errors (surfaced for logging; never
// propagated to subscribers as a crash).
func (w *Watcher) Errors() <-chan error { return w.errs }

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if filepath.Base(p) == rootSkipDir {
			return filepath.SkipDir
		}
		return w.fs.Add(p)
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.handleError(err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			if filepath.Base(ev.Name) != rootSkipDir {
				_ = w.fs.Add(ev.Name)
			}
			return
		}
	}

	if isManifest(ev.Name) {
		w.triggerFullReload()
		return
	}

	if ev.Op&fsnotify.Rename != 0 {
		w.beginRename(ev.Name)
		return
	}

	if ev.Op&fsnotify.Create != 0 && isSource(ev.Name) {
		if from, ok := w.takeRenameFrom(); ok {
			w.coalesce(Change{Kind: Renamed, Path: ev.Name, OldPath: from})
			return
		}
	}

	if !isSource(ev.Name) {
		return
	}

	kind := classify(ev.Op)
	w.coalesce(Change{Kind: kind, Path: ev.Name})
}

// beginRename records path as the old name of a rename in progress and
// starts a short timer to report it as a deletion if no Create on a new
// path pairs with it before renamePairWindow elapses.
func (w *Watcher) beginRename(path string) {
	if !isSource(path) {
		return
	}
	w.mu.Lock()
	w.pendingRenameFrom = path
	if w.renameTimer != nil {
		w.renameTimer.Stop()
	}
	w.renameTimer = time.AfterFunc(renamePairWindow, w.flushUnpairedRename)
	w.mu.Unlock()
}

// takeRenameFrom returns and clears the pending rename's old path, if one
// is waiting to be paired.
func (w *Watcher) takeRenameFrom() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pendingRenameFrom == "" {
		return "", false
	}
	from := w.pendingRenameFrom
	w.pendingRenameFrom = ""
	if w.renameTimer != nil {
		w.renameTimer.Stop()
		w.renameTimer = nil
	}
	return from, true
}

func (w *Watcher) flushUnpairedRename() {
	w.mu.Lock()
	from := w.pendingRenameFrom
	w.pendingRenameFrom = ""
	w.renameTimer = nil
	w.mu.Unlock()
	if from == "" {
		return
	}
	w.coalesce(Change{Kind: Deleted, Path: from})
}

// classify maps a non-rename, non-manifest fsnotify op to a ChangeKind.
// Renames are handled separately, by beginRename/takeRenameFrom, since
// reporting one requires correlating two events.
func classify(op fsnotify.Op) ChangeKind {
	switch {
	case op&fsnotify.Remove != 0:
		return Deleted
	case op&fsnotify.Create != 0:
		return Created
	default:
		return Modified
	}
}

// coalesce records c as the pending change for its path (last-writer-wins),
// with the one exception that a create immediately followed by a delete
// collapses to a delete, and (re)starts the debounce timer.
func (w *Watcher) coalesce(c Change) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.pending[c.Path]; ok && prev.Kind == Created && c.Kind == Deleted {
		c = Change{Kind: Deleted, Path: c.Path}
	}
	w.pending[c.Path] = c

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := make(Batch, 0, len(w.pending))
	for _, c := range w.pending {
		batch = append(batch, c)
	}
	w.pending = make(map[string]Change)
	w.timer = nil
	w.mu.Unlock()

	select {
	case w.batches <- batch:
	default:
	}
}

func (w *Watcher) handleError(err error) {
	if strings.Contains(strings.ToLower(err.Error()), "overflow") {
		w.triggerFullReload()
	}
	select {
	case w.errs <- err:
	default:
	}
}

func (w *Watcher) triggerFullReload() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]Change)
	if w.renameTimer != nil {
		w.renameTimer.Stop()
		w.renameTimer = nil
	}
	w.pendingRenameFrom = ""
	w.mu.Unlock()

	select {
	case w.fullReloads <- struct{}{}:
	default:
	}
}
