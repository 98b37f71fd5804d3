// Package watch reports changes to source files so they can be rebuilt.
//
// Linux uses inotify and Darwin uses kqueue; other platforms poll the
// modification time. Bursts of events for one path are collapsed into a
// single callback after a quiet period.
package watch

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultDelay is the quiet period before a change is reported.
const DefaultDelay = 500 * time.Millisecond

// pollInterval is how often a non-blocking event source is read.
const pollInterval = 100 * time.Millisecond

// reattachTimeout bounds how long a replaced file may stay missing before
// watching it is given up.
const reattachTimeout = 2 * time.Second

// reattach retries add until the path exists again. Editors that save by
// writing a new file and renaming it over the old one leave a short gap.
func reattach(add func(string) error, path string) error {
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(10*time.Millisecond),
		backoff.WithMaxInterval(200*time.Millisecond),
		backoff.WithMaxElapsedTime(reattachTimeout),
	)
	return backoff.Retry(func() error { return add(path) }, bo)
}

// debouncer delays fire until no trigger for the same path arrived for delay.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timers  map[string]*time.Timer
	fire    func(string)
	stopped bool
}

func newDebouncer(delay time.Duration, fire func(string)) *debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &debouncer{
		delay:  delay,
		timers: make(map[string]*time.Timer),
		fire:   fire,
	}
}

func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if timer, exists := d.timers[path]; exists {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.timers[path] == timer
		if current {
			delete(d.timers, path)
		}
		stopped := d.stopped
		d.mu.Unlock()

		if current && !stopped {
			d.fire(path)
		}
	})
	d.timers[path] = timer
}

// pending returns the number of paths waiting to fire.
func (d *debouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// stop cancels every pending callback. Later triggers are ignored.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for path, timer := range d.timers {
		timer.Stop()
		delete(d.timers, path)
	}
}

// Options configures a Watcher.
type Options struct {
	// Delay is the quiet period before OnChange runs. Zero selects
	// DefaultDelay.
	Delay time.Duration
	// OnChange receives the absolute path of a changed file. Calls for
	// different paths may overlap.
	OnChange func(path string)
}
