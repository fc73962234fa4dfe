// Package stopfile turns trigger files dropped into a directory into quit
// requests.
//
// A trigger is any file whose base name matches one of the configured
// doublestar patterns. The watcher deletes the file before requesting the
// quit, so each trigger is consumed exactly once.
package stopfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"tools.zach/dev/ctrlc"
)

// defaultPollInterval is the stat period used when fsnotify is unavailable.
const defaultPollInterval = time.Second

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

// Option configures a [Watcher].
type Option func(*Watcher)

// WithPollInterval sets the scan period used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithLogger sets the watcher's logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// withPolling skips fsnotify entirely.
func withPolling() Option {
	return func(w *Watcher) { w.forcePoll = true }
}

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher monitors a directory for trigger files using fsnotify with a
// polling fallback.
type Watcher struct {
	dir      string
	patterns []string
	// p is owned by the watcher and released by [Watcher.Close].
	p   *ctrlc.Producer
	log *slog.Logger
	// done is closed by [Watcher.Close] to signal goroutines to exit.
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
	// polling is true once the watcher has fallen back to directory scans.
	polling      atomic.Bool
	forcePoll    bool
	pollInterval time.Duration
	fired        atomic.Int64
}

// New starts watching dir, creating it if needed. The watcher takes
// ownership of p, releasing it on error or in [Watcher.Close]. Trigger files
// already present are consumed immediately.
func New(dir string, patterns []string, p *ctrlc.Producer, opts ...Option) (*Watcher, error) {
	if err := checkSetup(dir, patterns); err != nil {
		p.Close()
		return nil, err
	}

	w := &Watcher{
		dir:          dir,
		patterns:     patterns,
		p:            p,
		log:          slog.Default(),
		done:         make(chan struct{}),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.forcePoll {
		w.startPolling()
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.startPolling()
		return w, nil
	}
	if err := fsw.Add(dir); err != nil {
		w.log.Info("cannot watch directory, falling back to polling", "path", dir, "error", err)
		fsw.Close()
		w.startPolling()
		return w, nil
	}

	w.wg.Add(1)
	go w.watch(fsw)
	w.scan()
	return w, nil
}

func checkSetup(dir string, patterns []string) error {
	if len(patterns) == 0 {
		return errors.New("stopfile: no patterns")
	}
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("stopfile: invalid pattern %q", pat)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create trigger dir: %w", err)
	}
	return nil
}

// Matches reports whether name's base matches any trigger pattern.
func (w *Watcher) Matches(name string) bool {
	base := filepath.Base(name)
	for _, pat := range w.patterns {
		if ok, _ := doublestar.Match(pat, base); ok {
			return true
		}
	}
	return false
}

// Polling reports whether the watcher is scanning instead of using fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Fired reports how many trigger files have been consumed.
func (w *Watcher) Fired() int {
	return int(w.fired.Load())
}

// Close stops the watcher and releases its producer. It is idempotent.
func (w *Watcher) Close() error {
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.p.Close()
	})
	return nil
}

// watch forwards create/write events for trigger files. On an fsnotify
// error it closes fsw and continues in polling mode.
func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) && w.Matches(event.Name) {
				w.trigger(event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Info("fsnotify error, switching to polling", "error", err)
			w.startPolling()
			return
		}
	}
}

func (w *Watcher) startPolling() {
	w.polling.Store(true)
	w.wg.Add(1)
	go w.poll()
}

// poll scans the directory every pollInterval.
func (w *Watcher) poll() {
	defer w.wg.Done()
	w.scan()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan consumes every trigger file currently in the directory.
func (w *Watcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Debug("scan trigger dir", "path", w.dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !w.Matches(e.Name()) {
			continue
		}
		w.trigger(filepath.Join(w.dir, e.Name()))
	}
}

// trigger removes path and requests a quit. A file that is already gone was
// consumed by an earlier event for the same write and is ignored.
func (w *Watcher) trigger(path string) {
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.log.Warn("remove trigger file", "path", path, "error", err)
		}
		return
	}
	w.fired.Add(1)
	if err := w.p.RequestQuit(); err != nil {
		w.log.Warn("stop file ignored", "path", path, "error", err)
		return
	}
	w.log.Info("stop file found, quit requested", "path", path)
}
