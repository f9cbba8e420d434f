package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestProcessExecCapturesOutput(t *testing.T) {
	requireShell(t)
	sb := NewProcessSandbox()

	var stdout, stderr bytes.Buffer
	res, err := sb.Exec(context.Background(), ExecOpts{
		Command: []string{"sh", "-c", "echo out; echo err >&2; exit 3"},
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if res.Killed {
		t.Error("process should not be marked killed")
	}
	if stdout.String() != "out\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if stderr.String() != "err\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestProcessExecMissingBinary(t *testing.T) {
	sb := NewProcessSandbox()

	_, err := sb.Exec(context.Background(), ExecOpts{
		Command: []string{"/nonexistent/toolchain-binary"},
	})
	if err == nil {
		t.Fatal("expected spawn error")
	}
}

func TestProcessExecEmptyCommand(t *testing.T) {
	if _, err := NewProcessSandbox().Exec(context.Background(), ExecOpts{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestProcessExecKillsProcessGroup(t *testing.T) {
	requireShell(t)
	sb := NewProcessSandbox(WithWaitDelay(500 * time.Millisecond))

	marker := filepath.Join(t.TempDir(), "survived")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The background child would create the marker if it outlived the kill.
	script := "(sleep 1; touch " + marker + ") & sleep 30"
	start := time.Now()
	res, err := sb.Exec(ctx, ExecOpts{Command: []string{"sh", "-c", script}})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !res.Killed {
		t.Error("expected Killed after deadline")
	}
	if res.ExitCode == 0 {
		t.Error("killed process should not report exit code 0")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Exec took %s after kill", elapsed)
	}

	time.Sleep(1500 * time.Millisecond)
	if _, err := os.Stat(marker); err == nil {
		t.Error("grandchild survived the process group kill")
	}
}

func TestProcessExecCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProcessSandbox().Exec(ctx, ExecOpts{Command: []string{"true"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewSelectsIsolation(t *testing.T) {
	sb, err := New(Policy{Isolation: IsolationHost})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sb.(*ProcessSandbox); !ok {
		t.Errorf("host isolation returned %T", sb)
	}

	sb, err = New(DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sb.(*ProcessSandbox); !ok {
		t.Errorf("default policy returned %T", sb)
	}

	p := DefaultPolicy()
	p.Isolation = IsolationDocker
	sb, err = New(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sb.(*DockerSandbox); !ok {
		t.Errorf("docker isolation returned %T", sb)
	}

	if _, err := New(Policy{Isolation: "firecracker"}); !errors.Is(err, ErrUnknownIsolation) {
		t.Errorf("error = %v, want ErrUnknownIsolation", err)
	}
}

func TestDockerArgs(t *testing.T) {
	p := DefaultPolicy()
	args := p.dockerArgs("codetutor-x", "python:3.12-slim", ExecOpts{
		Command: []string{"python3", "/tmp/ct/code_1.py"},
		Dir:     "/tmp/ct",
		Mounts:  []string{"/tmp/ct"},
	})

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"docker run --rm --name codetutor-x",
		"--memory 256m",
		"--pids-limit 64",
		"--network=none",
		"-v /tmp/ct:/tmp/ct",
		"-w /tmp/ct",
		"python:3.12-slim python3 /tmp/ct/code_1.py",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("docker args missing %q: %s", want, joined)
		}
	}

	p.Network = true
	if slices.Contains(p.dockerArgs("n", "img", ExecOpts{}), "--network=none") {
		t.Error("network enabled policy should not pass --network=none")
	}
}

func TestDockerExecRejectsUnknownImage(t *testing.T) {
	p := DefaultPolicy()
	p.Isolation = IsolationDocker
	d := NewDockerSandbox(p)

	_, err := d.Exec(context.Background(), ExecOpts{Language: "cobol", Command: []string{"cobc"}})
	if !errors.Is(err, ErrImageNotAllowed) {
		t.Errorf("error = %v, want ErrImageNotAllowed", err)
	}
}

func TestPolicyImages(t *testing.T) {
	p := DefaultPolicy()

	if !p.IsImageAllowed("gcc:14") {
		t.Error("gcc:14 should be allowed")
	}
	if p.IsImageAllowed("alpine:latest") {
		t.Error("alpine:latest should not be allowed")
	}

	imgs := p.AllowedImages()
	if len(imgs) != 8 { // c and cpp share gcc:14
		t.Errorf("AllowedImages() = %d images, want 8", len(imgs))
	}
	if !slices.IsSorted(imgs) {
		t.Error("AllowedImages() should be sorted")
	}
}
