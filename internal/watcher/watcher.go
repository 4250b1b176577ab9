// Package watcher re-runs analyses when files under a project change.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"

	"codescope/internal/scan"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// Event represents a file system event
type Event struct {
	Type EventType
	// Path is slash-separated and relative to the watched root
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with each debounced batch of changes
type ChangeHandler func(root string, events []Event)

// Config contains watcher configuration
type Config struct {
	DebounceMs int `json:"debounceMs" mapstructure:"debounceMs"`
	// IgnorePatterns are gitignore-style patterns on top of the project's
	// own ignore files.
	IgnorePatterns []string `json:"ignorePatterns" mapstructure:"ignorePatterns"`
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		DebounceMs: 500,
		IgnorePatterns: []string{
			"*.log",
			"*.tmp",
			"*.swp",
			"*~",
			".#*",
			"4913", // vim's write probe
		},
	}
}

// Watcher watches a project tree. fsnotify is not recursive, so every
// directory discovery would descend into is watched, and directories
// created later are added as they appear.
type Watcher struct {
	config  Config
	logger  *slog.Logger
	handler ChangeHandler
	root    string
	ignore  *ignore.GitIgnore
	scanOpt scan.Options

	fs     *fsnotify.Watcher
	batch  *BatchDebouncer
	cancel context.CancelFunc

	mu      sync.RWMutex
	watched map[string]bool
	wg      sync.WaitGroup
}

// New creates a watcher for root; nothing is watched until Start.
func New(root string, config Config, scanOpt scan.Options, logger *slog.Logger, handler ChangeHandler) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		config:  config,
		logger:  logger,
		handler: handler,
		root:    absRoot,
		ignore:  ignore.CompileIgnoreLines(append(append([]string(nil), config.IgnorePatterns...), scanOpt.Ignore...)...),
		scanOpt: scanOpt,
		fs:      fsw,
		watched: make(map[string]bool),
	}
	w.batch = NewBatchDebouncer(time.Duration(config.DebounceMs)*time.Millisecond, func(events []Event) {
		w.logger.Debug("Changes detected", "root", w.root, "eventCount", len(events))
		if w.handler != nil {
			w.handler(w.root, events)
		}
	})
	return w, nil
}

// Start registers the tree and begins delivering events.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(ctx, w.root); err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("Watching project", "root", w.root, "directories", len(w.WatchedDirs()), "debounceMs", w.config.DebounceMs)
	return nil
}

// Stop stops watching; pending events are dropped.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fs.Close()
	w.wg.Wait()
	w.batch.Cancel()
	w.logger.Info("File watcher stopped", "root", w.root)
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if w.IsIgnored(rel) {
		return
	}

	var typ EventType
	switch {
	case ev.Has(fsnotify.Create):
		typ = EventCreate
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Files written before the watch lands are picked up by the next walk
			if err := w.addTree(ctx, ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", rel, "error", err)
			}
		}
	case ev.Has(fsnotify.Write):
		typ = EventModify
	case ev.Has(fsnotify.Remove):
		typ = EventDelete
		w.forget(ev.Name)
	case ev.Has(fsnotify.Rename):
		typ = EventRename
		w.forget(ev.Name)
	default:
		// Chmod alone never changes analysis input
		return
	}

	w.batch.Add(Event{Type: typ, Path: rel, Timestamp: time.Now()})
}

func (w *Watcher) addTree(ctx context.Context, dir string) error {
	dirs, err := scan.Dirs(ctx, dir, w.scanOpt)
	if err != nil {
		return fmt.Errorf("failed to list directories under %s: %w", dir, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range dirs {
		if w.watched[d] {
			continue
		}
		if err := w.fs.Add(d); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d, err)
		}
		w.watched[d] = true
	}
	return nil
}

// forget drops path and everything below it; fsnotify removes the watches
// of deleted directories by itself.
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := path + string(filepath.Separator)
	for d := range w.watched {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(w.watched, d)
		}
	}
}

// IsIgnored checks a slash-separated relative path against the skipped
// directories and the ignore patterns.
func (w *Watcher) IsIgnored(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if scan.SkippedDir(part) {
			return true
		}
	}
	return w.ignore.MatchesPath(rel)
}

// WatchedDirs returns the watched directories, sorted
func (w *Watcher) WatchedDirs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	dirs := make([]string, 0, len(w.watched))
	for d := range w.watched {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}
