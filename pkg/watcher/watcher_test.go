package watcher

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32

	// Trigger rapidly 10 times
	for i := 0; i < 10; i++ {
		d.Trigger(func() {
			callCount.Add(1)
		})
		time.Sleep(10 * time.Millisecond)
	}

	// Wait for debounce to complete
	time.Sleep(150 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool

	d.Trigger(func() {
		called.Store(true)
	})

	// Cancel before debounce completes
	d.Cancel()

	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func TestNewWatcher_NoPaths(t *testing.T) {
	if _, err := NewWatcher(nil); err != ErrNoPaths {
		t.Errorf("expected ErrNoPaths, got %v", err)
	}
}

func TestWatcher_DetectsFileChange(t *testing.T) {
	tmpFile := writeSource(t, t.TempDir(), "rows.jsonl", "initial")

	var (
		changeMu sync.Mutex
		changed  []string
	)

	w, err := NewWatcher([]string{tmpFile},
		WithDebounceDuration(50*time.Millisecond),
		WithOnChange(func(paths []string) {
			changeMu.Lock()
			changed = paths
			changeMu.Unlock()
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Give watcher time to initialize
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(tmpFile, []byte("modified content"), 0644); err != nil {
		t.Fatal(err)
	}

	// Wait for change detection
	time.Sleep(300 * time.Millisecond)

	changeMu.Lock()
	got := changed
	changeMu.Unlock()

	absPath, _ := filepath.Abs(tmpFile)
	if !reflect.DeepEqual(got, []string{absPath}) {
		t.Errorf("expected change of %s, got %v", absPath, got)
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	tmpFile := writeSource(t, t.TempDir(), "rows.jsonl", "initial")

	var changed atomic.Bool

	w, err := NewWatcher([]string{tmpFile},
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(true),
		WithOnChange(func([]string) { changed.Store(true) }),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(tmpFile, []byte("modified content with different size"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(400 * time.Millisecond)

	if !changed.Load() {
		t.Error("expected change to be detected via polling")
	}
}

func TestWatcher_SQLiteSidecarCountsAsDatabase(t *testing.T) {
	dir := t.TempDir()
	db := writeSource(t, dir, "rows.db", "db")

	w, err := NewWatcher([]string{db},
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(30*time.Millisecond),
		WithForcePoll(true),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(db+"-wal", []byte("frame"), 0644)
	}()

	absPath, _ := filepath.Abs(db)
	select {
	case got := <-w.Changed():
		if !reflect.DeepEqual(got, []string{absPath}) {
			t.Errorf("expected the database to be reported, got %v", got)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for sidecar change")
	}
}

func TestWatcher_MultipleSources(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.jsonl", "a")
	b := writeSource(t, filepath.Join(t.TempDir()), "b.json", "[]")

	w, err := NewWatcher([]string{a, b, a},
		WithDebounceDuration(80*time.Millisecond),
		WithPollInterval(20*time.Millisecond),
		WithForcePoll(true),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Paths()) != 2 {
		t.Fatalf("expected duplicate paths to collapse, got %v", w.Paths())
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	go func() {
		time.Sleep(40 * time.Millisecond)
		os.WriteFile(a, []byte("a changed"), 0644)
		os.WriteFile(b, []byte("[{}]"), 0644)
	}()

	select {
	case got := <-w.Changed():
		if len(got) != 2 {
			t.Errorf("expected both sources in one batch, got %v", got)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for change notification")
	}
}

func TestWatcher_ChangedChannel(t *testing.T) {
	tmpFile := writeSource(t, t.TempDir(), "rows.jsonl", "initial")

	w, err := NewWatcher([]string{tmpFile},
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(100*time.Millisecond),
		WithForcePoll(true),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(tmpFile, []byte("new content"), 0644)
	}()

	select {
	case <-w.Changed():
		// Success
	case <-time.After(time.Second):
		t.Error("timeout waiting for change notification")
	}
}

func TestWatcher_EnvForcePolling(t *testing.T) {
	for _, name := range []string{"TG_FORCE_POLLING", "TG_FORCE_POLL"} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, "1")
			tmpFile := writeSource(t, t.TempDir(), "rows.jsonl", "initial")

			w, err := NewWatcher([]string{tmpFile},
				WithDebounceDuration(10*time.Millisecond),
				WithPollInterval(25*time.Millisecond),
			)
			if err != nil {
				t.Fatal(err)
			}
			if err := w.Start(); err != nil {
				t.Fatal(err)
			}
			defer w.Stop()

			if !w.IsPolling() {
				t.Fatalf("expected watcher to be in polling mode when %s is set", name)
			}
		})
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	tmpFile := writeSource(t, t.TempDir(), "rows.jsonl", "initial")

	var (
		errMu    sync.Mutex
		gotError error
	)

	w, err := NewWatcher([]string{tmpFile},
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(100*time.Millisecond),
		WithForcePoll(true),
		WithOnError(func(err error) {
			errMu.Lock()
			gotError = err
			errMu.Unlock()
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)

	if err := os.Remove(tmpFile); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)

	errMu.Lock()
	receivedError := gotError
	errMu.Unlock()

	if receivedError != ErrFileRemoved {
		t.Errorf("expected ErrFileRemoved, got %v", receivedError)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	tmpFile := writeSource(t, t.TempDir(), "rows.jsonl", "initial")

	w, err := NewWatcher([]string{tmpFile})
	if err != nil {
		t.Fatal(err)
	}

	if w.IsStarted() {
		t.Error("watcher should not be started initially")
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	if !w.IsStarted() {
		t.Error("watcher should be started after Start()")
	}

	// Double start should error
	if err := w.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	w.Stop()

	if w.IsStarted() {
		t.Error("watcher should not be started after Stop()")
	}

	// Double stop should be safe
	w.Stop()
}

func TestWatcher_MissingFileIsAllowed(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "later.jsonl")
	w, err := NewWatcher([]string{missing}, WithForcePoll(true), WithPollInterval(20*time.Millisecond),
		WithDebounceDuration(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("expected a missing file to be watchable, got %v", err)
	}
	defer w.Stop()

	go func() {
		time.Sleep(40 * time.Millisecond)
		os.WriteFile(missing, []byte("{}"), 0644)
	}()
	select {
	case <-w.Changed():
	case <-time.After(time.Second):
		t.Error("expected creation to be reported")
	}
}

func TestWatcher_PollInterval(t *testing.T) {
	tmpFile := writeSource(t, t.TempDir(), "rows.jsonl", "initial")

	customInterval := 500 * time.Millisecond
	w, err := NewWatcher([]string{tmpFile}, WithPollInterval(customInterval))
	if err != nil {
		t.Fatal(err)
	}

	if got := w.PollInterval(); got != customInterval {
		t.Errorf("expected poll interval %v, got %v", customInterval, got)
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"y", true},
		{"on", true},
		{"ON", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"invalid", false},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_BOOL", tc.value)
			if got := envBool("TEST_ENV_BOOL"); got != tc.expected {
				t.Errorf("envBool(%q) = %v, expected %v", tc.value, got, tc.expected)
			}
		})
	}
}
