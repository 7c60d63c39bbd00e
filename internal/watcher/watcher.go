// Package watcher watches the upload inbox and routes files to the session they were dropped for.
//
// The inbox layout is <root>/<session_id>/<file>. Files directly under the root and anything
// nested deeper than one session directory are ignored.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// FileFunc receives the session a file belongs to and its path.
type FileFunc func(sessionID, path string)

// Watcher watches an inbox directory and invokes callbacks on session file changes.
type Watcher struct {
	root        string
	extensions  []string
	onIngest    FileFunc
	onRemove    FileFunc
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for watcher events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a file must stay quiet before it is ingested.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over root. extensions filters which files are reported (empty = all).
func NewWatcher(root string, extensions []string, onIngest, onRemove FileFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:        filepath.Clean(root),
		extensions:  extensions,
		onIngest:    onIngest,
		onRemove:    onRemove,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start creates the root if needed and begins watching it and its session directories.
// It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		w.mu.Unlock()
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fw.Add(w.root); err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		_ = fw.Close()
		w.mu.Unlock()
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := fw.Add(filepath.Join(w.root, e.Name())); err != nil {
				w.logger.Warn("watcher failed to add session directory", zap.String("session_id", e.Name()), zap.Error(err))
			}
		}
	}
	w.watcher = fw
	w.started = true
	w.mu.Unlock()

	w.logger.Debug("watcher starting", zap.String("root", w.root), zap.Strings("extensions", w.extensions))
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if filepath.Dir(path) == w.root {
				w.handleNewSession(path)
			}
			return
		}
		if sessionID, ok := w.sessionOf(path); ok && w.matchExtension(path) {
			w.debounceIngest(sessionID, path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		if sessionID, ok := w.sessionOf(path); ok && w.matchExtension(path) && w.onRemove != nil {
			w.onRemove(sessionID, path)
		}
	}
}

// handleNewSession watches a session directory created after Start and ingests files already in it.
func (w *Watcher) handleNewSession(dir string) {
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}
	if err := fw.Add(dir); err != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
		return
	}
	w.logger.Debug("watcher added session directory", zap.String("path", dir))
	w.syncSession(dir)
}

// sessionOf reports the session id for a file at <root>/<session>/<file>.
func (w *Watcher) sessionOf(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) != 2 || parts[0] == "" || strings.HasPrefix(parts[1], ".") {
		return "", false
	}
	return parts[0], true
}

func (w *Watcher) matchExtension(path string) bool {
	return matchExtension(path, w.extensions)
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceIngest(sessionID, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.logger.Debug("watcher ingesting file (debounced)", zap.String("session_id", sessionID), zap.String("path", path))
		if w.onIngest != nil {
			w.onIngest(sessionID, path)
		}
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) syncSession(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Debug("watcher failed to read session directory", zap.String("path", dir), zap.Error(err))
		return
	}
	sessionID := filepath.Base(dir)
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !w.matchExtension(path) {
			continue
		}
		if w.onIngest != nil {
			w.onIngest(sessionID, path)
		}
	}
}

// SyncExistingFiles ingests files that were already in session directories when the watcher
// started.
func (w *Watcher) SyncExistingFiles() {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		w.logger.Debug("watcher failed to read root", zap.String("root", w.root), zap.Error(err))
		return
	}
	w.logger.Debug("watcher syncing existing files", zap.String("root", w.root))
	for _, e := range entries {
		if e.IsDir() {
			w.syncSession(filepath.Join(w.root, e.Name()))
		}
	}
}

// Root returns the watched inbox directory.
func (w *Watcher) Root() string {
	return w.root
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
