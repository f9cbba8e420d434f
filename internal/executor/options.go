package executor

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxOutput = 10000
)

// DefaultTempDir is the shared temporary area for transient source files.
func DefaultTempDir() string {
	return filepath.Join(os.TempDir(), "codetutor")
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the wall-clock limit for one run, compile steps included.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxOutput sets the per-stream output cap in bytes.
func WithMaxOutput(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxOutput = n
		}
	}
}

// WithTempDir sets the directory for transient source and binary files.
func WithTempDir(dir string) Option {
	return func(e *Engine) {
		if dir != "" {
			e.tempDir = dir
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder attaches a telemetry sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// RunOption configures a single Execute call.
type RunOption func(*runConfig)

type runConfig struct {
	onOutput func(Stream, []byte)
	onReport func(Report)
}

// WithOutputHandler streams output chunks as they are captured. Chunks past
// the output cap are not delivered. The handler may be called from several
// goroutines, but never concurrently for the same stream.
func WithOutputHandler(fn func(Stream, []byte)) RunOption {
	return func(c *runConfig) { c.onOutput = fn }
}

// WithReport receives the internal classification of the run once it is
// finalized.
func WithReport(fn func(Report)) RunOption {
	return func(c *runConfig) { c.onReport = fn }
}
