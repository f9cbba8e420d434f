package sandbox

import (
	"context"
	"io"
	"time"
)

// ExecOpts describes one child-process invocation.
type ExecOpts struct {
	Language string   // selects the container image under docker isolation
	Command  []string // argv; Command[0] is the executable
	Dir      string
	Env      []string
	Mounts   []string  // host directories the command reads or writes
	Stdout   io.Writer // nil discards
	Stderr   io.Writer // nil discards
}

// ExecResult is the outcome of a process that was started.
type ExecResult struct {
	ExitCode int
	Duration time.Duration
	Killed   bool // terminated because ctx was done
}

// Sandbox runs commands. Exec returns an error only when the process could
// not be started; a non-zero exit is reported through ExecResult. When ctx is
// done the whole process tree is terminated.
type Sandbox interface {
	Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error)
}

// New returns the sandbox selected by the policy's isolation mode.
func New(policy Policy, opts ...Option) (Sandbox, error) {
	host := NewProcessSandbox(opts...)
	switch policy.Isolation {
	case "", IsolationHost:
		return host, nil
	case IsolationDocker:
		return newDockerSandbox(policy, host), nil
	default:
		return nil, ErrUnknownIsolation
	}
}
