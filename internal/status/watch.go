package status

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when anything under the watched directories changes so
// that r4 status --watch can re-run the listing. Events are coalesced by
// the debounce window.
type Watcher struct {
	debounce time.Duration
	events   chan struct{}
	done     chan struct{}
	fsw      *fsnotify.Watcher
	logf     func(string, ...any)

	mu    sync.Mutex
	paths map[string]struct{}
	roots []string
	last  time.Time
}

// NewWatcher constructs a Watcher. logf may be nil.
func NewWatcher(debounce time.Duration, logf func(string, ...any)) *Watcher {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Watcher{debounce: debounce, logf: logf}
}

// Start begins watching the given directory trees and launches the
// background event loop.
func (w *Watcher) Start(roots []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w.fsw = fsw
	w.events = make(chan struct{}, 1)
	w.done = make(chan struct{})
	w.paths = make(map[string]struct{})
	w.roots = append([]string(nil), roots...)

	for _, root := range w.roots {
		w.addTree(root)
	}

	go w.run()
	return nil
}

// Events returns the channel signalled on working-copy activity.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// ShouldRefresh checks the debounce window for watcher events.
func (w *Watcher) ShouldRefresh(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.last.IsZero() && now.Sub(w.last) < w.debounce {
		return false
	}
	w.last = now
	return true
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	if w.fsw == nil {
		return
	}
	close(w.done)
	_ = w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				w.maybeWatchNewDir(event.Name)
			}
			w.signal()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logf("status watcher error: %v", err)
		}
	}
}

func (w *Watcher) signal() {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.events <- struct{}{}:
	default:
	}
}

func (w *Watcher) maybeWatchNewDir(path string) {
	if !w.underRoot(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	w.addDir(path)
}

func (w *Watcher) underRoot(path string) bool {
	if path == "" {
		return false
	}
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDir(path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.paths[path]; ok {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logf("status watcher add failed for %s: %v", path, err)
		return
	}
	w.paths[path] = struct{}{}
}

func (w *Watcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		w.addDir(path)
		return nil
	})
}
