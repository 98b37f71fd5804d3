//go:build darwin

package watch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Watcher reports file changes through kqueue.
type Watcher struct {
	kq       int
	mu       sync.Mutex
	watchMap map[int]string
	debounce *debouncer
	log      *zap.Logger
}

// New creates a Watcher. log may be nil.
func New(opts Options, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, errors.Wrap(err, "kqueue failed")
	}
	return &Watcher{
		kq:       kq,
		watchMap: make(map[int]string),
		debounce: newDebouncer(opts.Delay, opts.OnChange),
		log:      log,
	}, nil
}

// AddFile starts watching path.
func (w *Watcher) AddFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fd, err := unix.Open(absPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", absPath)
	}

	event := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_VNODE,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		Fflags: unix.NOTE_WRITE | unix.NOTE_ATTRIB | unix.NOTE_RENAME | unix.NOTE_DELETE,
	}
	if _, err := unix.Kevent(w.kq, []unix.Kevent_t{event}, nil, nil); err != nil {
		unix.Close(fd)
		return errors.Wrapf(err, "failed to add kevent for %s", absPath)
	}

	w.mu.Lock()
	w.watchMap[fd] = absPath
	w.mu.Unlock()

	w.log.Debug("watching", zap.String("path", absPath))
	return nil
}

// Watch reads events until ctx is done.
func (w *Watcher) Watch(ctx context.Context) error {
	events := make([]unix.Kevent_t, 10)
	timeout := unix.NsecToTimespec(int64(pollInterval))

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := unix.Kevent(w.kq, nil, events, &timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errors.Wrap(err, "reading kevent")
		}

		for i := 0; i < n; i++ {
			w.handle(int(events[i].Ident), events[i].Fflags)
		}
	}
}

func (w *Watcher) handle(fd int, fflags uint32) {
	w.mu.Lock()
	path := w.watchMap[fd]
	w.mu.Unlock()
	if path == "" {
		return
	}

	// A rename or delete detaches the descriptor from the path.
	if fflags&(unix.NOTE_RENAME|unix.NOTE_DELETE) != 0 {
		w.mu.Lock()
		delete(w.watchMap, fd)
		w.mu.Unlock()
		unix.Close(fd)
		if err := reattach(w.AddFile, path); err != nil {
			w.log.Warn("file is gone, no longer watching", zap.String("path", path), zap.Error(err))
			return
		}
	}
	w.debounce.trigger(path)
}

// Close stops pending callbacks and releases every descriptor.
func (w *Watcher) Close() error {
	w.debounce.stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	for fd := range w.watchMap {
		unix.Close(fd)
	}
	return unix.Close(w.kq)
}
