// Package debug provides conditional debug logging for the tree grid engine.
//
// Debug logging is enabled by setting the TG_DEBUG environment variable:
//
//	TG_DEBUG=1 tg --data rows.json
//
// When enabled, debug messages are written to stderr with timestamps.
// When disabled (default), all debug functions are no-ops.
//
// Usage:
//
//	debug.Log("promoted %d orphan rows to roots", n)
//	defer debug.LogEnterExit("pipeline.Sort")()
package debug

import (
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"
)

var (
	enabled atomic.Bool
	logger  atomic.Pointer[log.Logger]
)

func init() {
	if os.Getenv("TG_DEBUG") != "" {
		SetEnabled(true)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	if e && logger.Load() == nil {
		logger.Store(log.New(os.Stderr, "[TG_DEBUG] ", log.Ltime|log.Lmicroseconds))
	}
	enabled.Store(e)
}

// SetOutput redirects debug output, mostly for tests.
func SetOutput(w io.Writer) {
	logger.Store(log.New(w, "[TG_DEBUG] ", 0))
}

// Log writes a debug message if debug logging is enabled.
func Log(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.Load().Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled.Load() {
		return
	}
	logger.Load().Printf("%s took %v", name, d)
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogEnterExit logs function entry and exit with timing.
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	}
func LogEnterExit(name string) func() {
	if !enabled.Load() {
		return func() {}
	}
	l := logger.Load()
	l.Printf("-> %s", name)
	start := time.Now()
	return func() {
		l.Printf("<- %s (%v)", name, time.Since(start))
	}
}
