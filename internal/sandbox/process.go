package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

const defaultWaitDelay = 2 * time.Second

// Option configures a ProcessSandbox.
type Option func(*ProcessSandbox)

// WithLogger sets the logger used for kill diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *ProcessSandbox) { p.logger = logger }
}

// WithWaitDelay bounds how long Exec waits for output pipes to drain after
// the process exits or is killed.
func WithWaitDelay(d time.Duration) Option {
	return func(p *ProcessSandbox) { p.waitDelay = d }
}

// ProcessSandbox runs commands directly on the host, each in its own process
// group. It provides no filesystem or network isolation.
type ProcessSandbox struct {
	logger    zerolog.Logger
	waitDelay time.Duration
}

// NewProcessSandbox creates a host sandbox.
func NewProcessSandbox(opts ...Option) *ProcessSandbox {
	p := &ProcessSandbox{
		logger:    zerolog.Nop(),
		waitDelay: defaultWaitDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ProcessSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	return p.exec(ctx, opts, opts.Command, nil)
}

// exec runs argv. onKill, if set, runs before the process group is killed.
func (p *ProcessSandbox) exec(ctx context.Context, opts ExecOpts, argv []string, onKill func()) (*ExecResult, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("empty command")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("not started: %w", err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdout = sink(opts.Stdout)
	cmd.Stderr = sink(opts.Stderr)
	cmd.WaitDelay = p.waitDelay
	setProcessGroup(cmd)

	cmd.Cancel = func() error {
		if onKill != nil {
			onKill()
		}
		p.logger.Debug().Int("pid", cmd.Process.Pid).Str("command", argv[0]).Msg("killing process group")
		return killProcessGroup(cmd.Process)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}

	waitErr := cmd.Wait()

	// Reap anything the leader left behind in its group.
	_ = killProcessGroup(cmd.Process)

	res := &ExecResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
		Killed:   ctx.Err() != nil,
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr), errors.Is(waitErr, exec.ErrWaitDelay), res.Killed:
		default:
			return res, fmt.Errorf("waiting for %s: %w", argv[0], waitErr)
		}
	}

	return res, nil
}

func sink(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
