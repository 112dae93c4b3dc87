package corpus

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// ChangeFunc receives the corpus-relative files touched since the last call
type ChangeFunc func(ctx context.Context, changed []string)

// WatcherConfig configures a corpus watcher
type WatcherConfig struct {
	Root     string
	Pattern  string        // doublestar glob; other files are ignored
	Debounce time.Duration // Quiet period before OnChange fires
	OnChange ChangeFunc
	Logger   *slog.Logger
}

// Watcher reports changes to canonical files under a root.
// Bursts of events are coalesced into one OnChange call.
type Watcher struct {
	config  WatcherConfig
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
	mu      sync.Mutex
	pending map[string]struct{}
	last    time.Time
}

// NewWatcher creates a watcher; Run starts it
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if config.Pattern == "" {
		config.Pattern = "**/*" + BakedSuffix
	}
	if config.Debounce <= 0 {
		config.Debounce = 500 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		config:  config,
		fsw:     fsw,
		logger:  logger,
		pending: make(map[string]struct{}),
	}, nil
}

// Run watches until ctx is cancelled, then releases the watcher
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	if err := w.addRecursive(w.config.Root); err != nil {
		return err
	}
	w.logger.Info("watching corpus", "root", w.config.Root, "debounce", w.config.Debounce)

	ticker := time.NewTicker(w.config.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("corpus watcher error", "error", err)

		case <-ticker.C:
			if changed := w.drain(time.Now()); len(changed) > 0 {
				w.logger.Info("corpus changed", "files", len(changed))
				if w.config.OnChange != nil {
					w.config.OnChange(ctx, changed)
				}
			}
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}

	// New directories need their own watch
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	rel, err := filepath.Rel(w.config.Root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if ok, _ := doublestar.Match(w.config.Pattern, rel); !ok {
		return
	}

	w.mu.Lock()
	w.pending[rel] = struct{}{}
	w.last = time.Now()
	w.mu.Unlock()
}

// drain returns pending files once no event has arrived for the debounce period
func (w *Watcher) drain(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 || now.Sub(w.last) < w.config.Debounce {
		return nil
	}
	changed := make([]string, 0, len(w.pending))
	for name := range w.pending {
		changed = append(changed, name)
	}
	sort.Strings(changed)
	w.pending = make(map[string]struct{})
	return changed
}
