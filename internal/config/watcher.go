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

// defaultPollInterval is how often a [Watcher] inspects the file unless
// [WithInterval] overrides it.
const defaultPollInterval = 5 * time.Second

// fingerprint identifies one observed state of the config file.
type fingerprint struct {
	mtime time.Time
	sum   [sha256.Size]byte
}

// Watcher polls a config file and reports edits through a callback. A write
// is reported only when the file content actually changed and still parses
// and validates; invalid edits are logged and the previous config stays
// current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	current *Config
	seen    fingerprint
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval overrides the polling interval. Non-positive values are
// ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it in a background
// goroutine. The initial load must succeed; onChange (optional) runs after
// every accepted reload with the previous and the new config.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, fp, err := w.snapshot()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.seen = cfg, fp

	go w.run()
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) run() {
	tick := time.NewTicker(w.interval)
	defer tick.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-tick.C:
			w.sweep()
		}
	}
}

// sweep is one poll cycle: an mtime probe first, then a full read and hash
// comparison, then the swap and callback when content really changed.
func (w *Watcher) sweep() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: stat failed", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.seen.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, fp, err := w.snapshot()
	if err != nil {
		slog.Warn("config watcher: reload rejected, keeping previous config",
			"path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if fp.sum == w.seen.sum {
		// Touched, but the bytes are the same.
		w.seen.mtime = fp.mtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current, w.seen = cfg, fp
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// Callback runs unlocked so it may call Current().
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// snapshot reads, hashes, parses, and validates the file in one pass.
func (w *Watcher) snapshot() (*Config, fingerprint, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fingerprint{}, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fingerprint{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fingerprint{}, err
	}
	return cfg, fingerprint{mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
