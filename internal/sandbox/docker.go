package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DockerSandbox runs each command in a throwaway Docker container through the
// docker CLI. Mounted host directories appear at the same path inside the
// container so generated paths stay valid.
type DockerSandbox struct {
	Policy Policy
	host   *ProcessSandbox
}

// NewDockerSandbox creates a sandbox with the given policy.
func NewDockerSandbox(policy Policy, opts ...Option) *DockerSandbox {
	return newDockerSandbox(policy, NewProcessSandbox(opts...))
}

func newDockerSandbox(policy Policy, host *ProcessSandbox) *DockerSandbox {
	return &DockerSandbox{Policy: policy, host: host}
}

func (d *DockerSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	image, ok := d.Policy.ImageFor(opts.Language)
	if !ok {
		return nil, fmt.Errorf("no image for language %q: %w", opts.Language, ErrImageNotAllowed)
	}
	if !d.Policy.IsImageAllowed(image) {
		return nil, fmt.Errorf("image %q: %w", image, ErrImageNotAllowed)
	}

	name := "codetutor-" + uuid.NewString()
	argv := d.Policy.dockerArgs(name, image, opts)

	return d.host.exec(ctx, opts, argv, func() {
		// Killing the CLI client does not stop the container.
		killCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := exec.CommandContext(killCtx, "docker", "kill", name).Run(); err != nil {
			d.host.logger.Warn().Err(err).Str("container", name).Msg("docker kill failed")
		}
	})
}

// dockerArgs builds the docker CLI argv for one command.
func (p Policy) dockerArgs(name, image string, opts ExecOpts) []string {
	args := []string{
		"docker", "run", "--rm",
		"--name", name,
		"--security-opt", "no-new-privileges",
		"--cap-drop", "ALL",
	}

	if p.MaxMemory != "" {
		args = append(args, "--memory", p.MaxMemory, "--memory-swap", p.MaxMemory)
	}
	if p.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(p.PidsLimit))
	}
	if !p.Network {
		args = append(args, "--network=none")
	}

	if uid, gid := os.Getuid(), os.Getgid(); uid >= 0 && gid >= 0 {
		// Files written by the container must stay removable by the host.
		args = append(args, "--user", fmt.Sprintf("%d:%d", uid, gid), "-e", "HOME=/tmp")
	}

	for _, m := range opts.Mounts {
		args = append(args, "-v", m+":"+m)
	}
	if opts.Dir != "" {
		args = append(args, "-w", opts.Dir)
	}

	args = append(args, image)
	return append(args, opts.Command...)
}
