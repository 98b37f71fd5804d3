//go:build linux

package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const watchMask = unix.IN_MODIFY | unix.IN_CLOSE_WRITE | unix.IN_ATTRIB |
	unix.IN_MOVE_SELF | unix.IN_DELETE_SELF

// Watcher reports file changes through inotify.
type Watcher struct {
	fd       int
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
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "inotify_init failed")
	}
	return &Watcher{
		fd:       fd,
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
	wd, err := unix.InotifyAddWatch(w.fd, absPath, watchMask)
	if err != nil {
		return errors.Wrapf(err, "failed to watch %s", absPath)
	}

	w.mu.Lock()
	w.watchMap[wd] = absPath
	w.mu.Unlock()

	w.log.Debug("watching", zap.String("path", absPath))
	return nil
}

// Watch reads events until ctx is done.
func (w *Watcher) Watch(ctx context.Context) error {
	buf := make([]byte, (unix.SizeofInotifyEvent+unix.NAME_MAX+1)*16)

	for {
		n, err := unix.Read(w.fd, buf)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EINTR {
				return errors.Wrap(err, "reading inotify events")
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
			continue
		}

		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			offset += unix.SizeofInotifyEvent + int(event.Len)
			w.handle(int(event.Wd), event.Mask)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (w *Watcher) handle(wd int, mask uint32) {
	w.mu.Lock()
	path := w.watchMap[wd]
	w.mu.Unlock()
	if path == "" {
		return
	}

	// Editors that save by renaming a new file over the old one end the
	// watch on the old inode.
	if mask&(unix.IN_MOVE_SELF|unix.IN_DELETE_SELF|unix.IN_IGNORED) != 0 {
		w.mu.Lock()
		delete(w.watchMap, wd)
		w.mu.Unlock()
		if err := reattach(w.AddFile, path); err != nil {
			w.log.Warn("file is gone, no longer watching", zap.String("path", path), zap.Error(err))
			return
		}
	}
	w.debounce.trigger(path)
}

// Close stops pending callbacks and releases the inotify descriptor.
func (w *Watcher) Close() error {
	w.debounce.stop()
	return unix.Close(w.fd)
}
