//go:build !linux && !darwin

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher reports file changes by polling modification times.
type Watcher struct {
	mu       sync.Mutex
	watchMap map[string]time.Time
	debounce *debouncer
	interval time.Duration
	log      *zap.Logger
}

// New creates a Watcher. log may be nil.
func New(opts Options, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		watchMap: make(map[string]time.Time),
		debounce: newDebouncer(opts.Delay, opts.OnChange),
		interval: DefaultDelay,
		log:      log,
	}, nil
}

// AddFile starts watching path.
func (w *Watcher) AddFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	var modTime time.Time
	if info, err := os.Stat(absPath); err == nil {
		modTime = info.ModTime()
	}

	w.mu.Lock()
	w.watchMap[absPath] = modTime
	w.mu.Unlock()

	w.log.Debug("watching", zap.String("path", absPath))
	return nil
}

// Watch polls until ctx is done.
func (w *Watcher) Watch(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkFiles()
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) checkFiles() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.watchMap))
	for path := range w.watchMap {
		paths = append(paths, path)
	}
	w.mu.Unlock()

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		w.mu.Lock()
		lastMod := w.watchMap[path]
		w.watchMap[path] = info.ModTime()
		w.mu.Unlock()

		if info.ModTime().After(lastMod) {
			w.debounce.trigger(path)
		}
	}
}

// Close stops pending callbacks.
func (w *Watcher) Close() error {
	w.debounce.stop()
	return nil
}
