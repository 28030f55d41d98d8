package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// defaultPollInterval is how often the watcher checks the file. Reloads only
// affect new calls, so a few seconds of lag is irrelevant.
const defaultPollInterval = 5 * time.Second

// Watcher polls a config file and reports edits through a callback. Polling
// over fsnotify keeps the dependency surface small and works on every
// filesystem operators actually mount configs from.
//
// A broken edit must never disturb calls in progress: invalid content is
// logged and skipped, and the last valid config stays active until the file
// parses again.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	logger   *slog.Logger

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	// Change detection: mtime short-circuits unchanged files, the hash
	// catches touch without edit.
	lastMtime time.Time
	lastHash  [sha256.Size]byte

	// lastLoadErr suppresses repeated warnings while an operator fixes a
	// broken edit. Only a new failure mode is logged.
	lastLoadErr string
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger. Defaults to [slog.Default].
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher loads path immediately and starts polling it in a background
// goroutine. onChange runs on the polling goroutine with the previous and
// freshly loaded config.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, hash, mtime, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.lastHash = hash
	w.lastMtime = mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reads the file and, when the content actually changed and parses,
// swaps the current config and invokes the callback.
func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.warnOnce("config watcher: cannot stat file", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	cfg, hash, newMtime, err := w.loadAndHash()
	if err != nil {
		// Keep serving calls on the last valid config.
		w.warnOnce("config watcher: file changed but does not load, keeping previous config", err)
		return
	}

	w.mu.Lock()
	w.lastLoadErr = ""
	if hash == w.lastHash {
		// Touched, not edited.
		w.lastMtime = newMtime
		w.mu.Unlock()
		return
	}

	old := w.current
	w.current = cfg
	w.lastHash = hash
	w.lastMtime = newMtime
	w.mu.Unlock()

	w.logger.Info("config watcher: configuration reloaded", "path", w.path)

	// Outside the lock so the callback can call Current.
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// warnOnce logs err unless the previous poll already failed the same way.
func (w *Watcher) warnOnce(msg string, err error) {
	w.mu.Lock()
	repeat := w.lastLoadErr == err.Error()
	w.lastLoadErr = err.Error()
	w.mu.Unlock()

	if !repeat {
		w.logger.Warn(msg, "path", w.path, "err", err)
	}
}

// loadAndHash reads, hashes, and parses the config file in one pass over the
// bytes. Validation failures surface as errors so the caller keeps the old
// config.
func (w *Watcher) loadAndHash() (*Config, [sha256.Size]byte, time.Time, error) {
	var zeroHash [sha256.Size]byte

	f, err := os.Open(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	return cfg, sha256.Sum256(data), info.ModTime(), nil
}
