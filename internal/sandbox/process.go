package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ProcessSandbox runs the command as a local subprocess inside a throwaway
// working directory. Command[0] is resolved on PATH; the remaining arguments
// are relative to the workspace.
type ProcessSandbox struct {
	Policy Policy
	Env    []string // extra environment, appended to os.Environ()
}

// NewProcessSandbox creates a subprocess sandbox with the given policy.
func NewProcessSandbox(policy Policy) *ProcessSandbox {
	return &ProcessSandbox{Policy: policy}
}

func (p *ProcessSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	tmpDir, err := prepareWorkspace("codetutor-exec-*", opts.Files)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	return run(ctx, p.Policy, tmpDir, opts.Command[0], opts.Command[1:], opts.Stdin, p.Env...)
}

// prepareWorkspace creates a temp dir and writes files into it. Names are
// reduced to their base name to prevent path traversal.
func prepareWorkspace(pattern string, files map[string]string) (string, error) {
	tmpDir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	for name, content := range files {
		path := filepath.Join(tmpDir, filepath.Base(name))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			os.RemoveAll(tmpDir)
			return "", fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return tmpDir, nil
}

// waitDelay bounds how long Wait keeps reading output after the process
// was killed.
const waitDelay = 500 * time.Millisecond

func run(ctx context.Context, policy Policy, dir, name string, args []string, stdin string, env ...string) (*ExecResult, error) {
	timeout := policy.timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	configureProcess(cmd)
	cmd.WaitDelay = waitDelay
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	stdout := newCappedBuffer(policy.MaxOutputBytes)
	stderr := newCappedBuffer(policy.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	result := &ExecResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}

	if err == nil {
		return result, nil
	}

	// Deadline takes precedence over the exit status of the killed process.
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return nil, fmt.Errorf("running %s: %w", name, err)
}
