package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/michaelbrown/codetutor/internal/language"
	"github.com/michaelbrown/codetutor/internal/sandbox"
)

// Result is the normalized outcome of one Execute call.
type Result struct {
	Success         bool   `json:"success"`
	Output          string `json:"output"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

// Outcome classifies a run for logging and telemetry. It is not part of
// Result.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeFailed      Outcome = "failed"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeOutputLimit Outcome = "output_limit"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeIOError     Outcome = "io_error"
	OutcomeSpawnError  Outcome = "spawn_error"
)

// Report describes a finished run in more detail than Result.
type Report struct {
	Language string
	Outcome  Outcome
	ExitCode int
	Elapsed  time.Duration
}

// Recorder receives one observation per finished run.
type Recorder interface {
	ObserveExecution(language string, outcome Outcome, elapsed time.Duration)
}

const (
	markerStdoutLimit = "\n[Output truncated - size limit exceeded]"
	markerStderrLimit = "\n[Error output truncated - size limit exceeded]"
)

// run states; the first transition away from stateRunning wins.
const (
	stateRunning int32 = iota
	stateDone
	stateTimeout
	stateStdoutLimit
	stateStderrLimit
)

// Engine runs untrusted snippets with a wall-clock timeout and an output cap.
// It is safe for concurrent use; each Execute call owns its own files and
// processes.
type Engine struct {
	registry  *language.Registry
	sandbox   sandbox.Sandbox
	timeout   time.Duration
	maxOutput int
	tempDir   string
	logger    zerolog.Logger
	recorder  Recorder
}

// New creates an Engine.
func New(registry *language.Registry, sb sandbox.Sandbox, opts ...Option) *Engine {
	e := &Engine{
		registry:  registry,
		sandbox:   sb,
		timeout:   DefaultTimeout,
		maxOutput: DefaultMaxOutput,
		tempDir:   DefaultTempDir(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SupportedLanguages lists the language ids Execute accepts.
func (e *Engine) SupportedLanguages() []string {
	return e.registry.Supported()
}

// Timeout returns the configured wall-clock limit.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Execute runs code with the toolchain registered for lang. It never returns
// an error: every failure is reported through Result. The caller's context
// supplies values only; the run ends at process exit, on timeout, or when the
// output cap is exceeded.
func (e *Engine) Execute(ctx context.Context, code, lang string, opts ...RunOption) Result {
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}

	cfg, err := e.registry.Resolve(lang)
	if err != nil {
		res := Result{
			Error: fmt.Sprintf("unsupported language: %s. Supported languages: %s",
				lang, strings.Join(e.registry.Supported(), ", ")),
		}
		e.finish(rc, Report{Language: lang, Outcome: OutcomeUnsupported, ExitCode: -1})
		return res
	}

	start := time.Now()
	token := newToken()
	source := filepath.Join(e.tempDir, "code_"+token+"."+cfg.Extension)
	binary := ""
	if cfg.Compiled {
		binary = filepath.Join(e.tempDir, "code_"+token+"_bin")
	}
	defer e.cleanup(source, binary)

	log := e.logger.With().Str("language", cfg.ID).Str("run", token).Logger()

	if err := e.writeSource(source, code); err != nil {
		elapsed := time.Since(start)
		e.finish(rc, Report{Language: cfg.ID, Outcome: OutcomeIOError, ExitCode: -1, Elapsed: elapsed})
		log.Error().Err(err).Msg("writing source file")
		return Result{Error: err.Error(), ExecutionTimeMs: elapsed.Milliseconds()}
	}

	log.Debug().Str("source", source).Msg("execution started")

	var state atomic.Int32
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	timer := time.AfterFunc(e.timeout, func() {
		if state.CompareAndSwap(stateRunning, stateTimeout) {
			cancel()
		}
	})
	defer timer.Stop()

	capt := newCapture(e.maxOutput)
	capt.onChunk = rc.onOutput
	capt.onOverflow = func(s Stream) {
		next := stateStdoutLimit
		if s == Stderr {
			next = stateStderrLimit
		}
		if state.CompareAndSwap(stateRunning, next) {
			cancel()
		}
	}

	exitCode, spawnErr := e.runSteps(runCtx, cfg, source, binary, capt)
	state.CompareAndSwap(stateRunning, stateDone)

	stdout, stderr := capt.strings()
	outcome := OutcomeOK

	switch state.Load() {
	case stateTimeout:
		stderr += fmt.Sprintf("\n[Timeout - execution interrupted after %g seconds]", e.timeout.Seconds())
		outcome = OutcomeTimeout
	case stateStdoutLimit:
		stderr += markerStdoutLimit
		outcome = OutcomeOutputLimit
	case stateStderrLimit:
		stderr += markerStderrLimit
		outcome = OutcomeOutputLimit
	default:
		switch {
		case spawnErr != nil:
			stderr += "\n" + spawnErr.Error()
			outcome = OutcomeSpawnError
		case exitCode != 0:
			outcome = OutcomeFailed
		}
	}

	elapsed := time.Since(start)
	res := Result{
		Success:         outcome == OutcomeOK,
		Output:          stdout,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
	if !res.Success {
		res.Error = stderr
		if strings.TrimSpace(res.Error) == "" {
			res.Error = fmt.Sprintf("process exited with code %d", exitCode)
		}
	}

	log.Info().
		Str("outcome", string(outcome)).
		Int("exit_code", exitCode).
		Dur("elapsed", elapsed).
		Msg("execution finished")
	e.finish(rc, Report{Language: cfg.ID, Outcome: outcome, ExitCode: exitCode, Elapsed: elapsed})

	return res
}

// runSteps executes the toolchain steps in order, stopping at the first
// non-zero exit. A spawn failure is returned as an error with exit code 1.
func (e *Engine) runSteps(ctx context.Context, cfg language.Config, source, binary string, capt *capture) (int, error) {
	exitCode := 0
	for _, step := range cfg.Steps(source, binary) {
		res, err := e.sandbox.Exec(ctx, sandbox.ExecOpts{
			Language: cfg.ID,
			Command:  step.Argv(),
			Dir:      e.tempDir,
			Env:      os.Environ(),
			Mounts:   []string{e.tempDir},
			Stdout:   capt.writer(Stdout),
			Stderr:   capt.writer(Stderr),
		})
		if err != nil {
			if ctx.Err() != nil {
				// Deadline or output cap hit between steps.
				return -1, nil
			}
			return 1, err
		}
		exitCode = res.ExitCode
		if exitCode != 0 || res.Killed {
			break
		}
	}
	return exitCode, nil
}

func (e *Engine) writeSource(path, code string) error {
	if err := os.MkdirAll(e.tempDir, 0o755); err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("writing source file: %w", err)
	}
	return nil
}

// cleanup removes the transient files of one run. Failures are logged only.
func (e *Engine) cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn().Err(err).Str("path", p).Msg("removing transient file")
		}
	}
}

func (e *Engine) finish(rc runConfig, r Report) {
	if e.recorder != nil {
		e.recorder.ObserveExecution(r.Language, r.Outcome, r.Elapsed)
	}
	if rc.onReport != nil {
		rc.onReport(r)
	}
}

// newToken combines a time component with a random one so concurrent runs
// never share a path.
func newToken() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), random)
}
