// Package watcher reports changes to the files a grid was loaded from.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/treegrid/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNoPaths        = errors.New("no paths to watch")
)

// sidecars are files SQLite writes next to a database. A commit in WAL
// mode may touch only the -wal file.
var sidecars = []string{"-wal", "-journal"}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked with the watched paths that changed
// during the last debounce window.
func WithOnChange(fn func(paths []string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a set of source files using fsnotify with a polling
// fallback. Events for SQLite sidecar files count as changes to their
// database.
type Watcher struct {
	paths            []string
	owners           map[string]string // event file -> watched path
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func([]string)
	onError          func(error)
	forcePoll        bool

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	states      map[string]fileState

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	pending  map[string]struct{}
	changeCh chan []string
}

// NewWatcher creates a watcher for the given paths.
func NewWatcher(paths []string, opts ...WatcherOption) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	w := &Watcher{
		owners:           make(map[string]string),
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func([]string) {},
		onError:          func(error) {},
		states:           make(map[string]fileState),
		pending:          make(map[string]struct{}),
		changeCh:         make(chan []string, 1),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if slices.Contains(w.paths, abs) {
			continue
		}
		w.paths = append(w.paths, abs)
		w.owners[abs] = abs
		for _, s := range sidecars {
			w.owners[abs+s] = abs
		}
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)

	return w, nil
}

// Start begins watching the files for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.useFallback = w.forcePoll || envBool("TG_FORCE_POLLING") || envBool("TG_FORCE_POLL")

	for _, p := range w.watchedFiles() {
		st, err := stat(p)
		if errors.Is(err, ErrPermission) {
			w.cancel()
			return err
		}
		// A missing file is recorded with a zero state
		w.states[p] = st
	}

	if !w.useFallback {
		if err := w.startFsnotify(); err != nil {
			debug.Log("watcher: fsnotify unavailable, polling: %v", err)
			w.useFallback = true
		}
	}
	if w.useFallback {
		go w.watchPolling(w.ctx)
	}

	w.started = true
	return nil
}

func (w *Watcher) startFsnotify() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directories (more reliable for atomic writes)
	var dirs []string
	for _, p := range w.paths {
		if dir := filepath.Dir(p); !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return err
		}
	}
	w.fsWatcher = fsw
	go w.watchFsnotify(w.ctx, fsw.Events, fsw.Errors)
	return nil
}

// Stop stops watching. The change channel stays open so a goroutine blocked
// on Changed is released only by process exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	w.debouncer.Cancel()
	clear(w.pending)
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives the changed paths of each
// debounced batch. A batch not yet received is merged into the next one.
func (w *Watcher) Changed() <-chan []string {
	return w.changeCh
}

// Paths returns the watched file paths.
func (w *Watcher) Paths() []string {
	return slices.Clone(w.paths)
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// watchedFiles lists the sources and their sidecars.
func (w *Watcher) watchedFiles() []string {
	out := make([]string, 0, len(w.owners))
	for f := range w.owners {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

func (w *Watcher) watchFsnotify(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}

			owner, ok := w.owners[filepath.Clean(event.Name)]
			if !ok {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove != 0:
				// Sidecars come and go with checkpoints
				if owner == filepath.Clean(event.Name) {
					w.onError(ErrFileRemoved)
				}

			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.markChanged(owner)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// watchPolling monitors using periodic stat checks.
func (w *Watcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	files := w.watchedFiles()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			for _, f := range files {
				w.poll(f)
			}
		}
	}
}

func (w *Watcher) poll(file string) {
	owner := w.owners[file]
	st, err := stat(file)

	w.mu.Lock()
	prev := w.states[file]
	w.states[file] = st
	w.mu.Unlock()

	switch {
	case errors.Is(err, os.ErrNotExist):
		// Only report a source that existed before
		if file == owner && !prev.mtime.IsZero() {
			w.onError(ErrFileRemoved)
		}
	case err != nil:
		w.onError(err)
	case st.mtime.After(prev.mtime) || st.size != prev.size:
		w.markChanged(owner)
	}
}

func stat(path string) (fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsPermission(err) {
			return fileState{}, ErrPermission
		}
		return fileState{}, err
	}
	return fileState{mtime: info.ModTime(), size: info.Size()}, nil
}

func (w *Watcher) markChanged(path string) {
	w.mu.Lock()
	w.pending[path] = struct{}{}
	w.mu.Unlock()
	w.debouncer.Trigger(w.notifyChange)
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange() {
	w.mu.Lock()
	started := w.started
	var changed []string
	for p := range w.pending {
		changed = append(changed, p)
	}
	clear(w.pending)
	w.mu.Unlock()

	// Stop may race a firing timer; nothing is reported after it.
	if !started || len(changed) == 0 {
		return
	}
	slices.Sort(changed)

	w.onChange(changed)

	select {
	case w.changeCh <- changed:
	default:
		// Merge with the batch nobody has read yet
		select {
		case old := <-w.changeCh:
			merged := append(old, changed...)
			slices.Sort(merged)
			select {
			case w.changeCh <- slices.Compact(merged):
			default:
			}
		default:
		}
	}
}
