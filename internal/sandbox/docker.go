package sandbox

import (
	"context"
	"fmt"
	"os"
)

// DockerSandbox runs code in Docker containers.
type DockerSandbox struct {
	Policy Policy
}

// NewDockerSandbox creates a sandbox with the given policy.
func NewDockerSandbox(policy Policy) *DockerSandbox {
	return &DockerSandbox{Policy: policy}
}

func (d *DockerSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if !d.Policy.IsImageAllowed(opts.Image) {
		return nil, fmt.Errorf("image %q not in allowlist", opts.Image)
	}

	tmpDir, err := prepareWorkspace("codetutor-docker-*", opts.Files)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	timeout := d.Policy.timeout()

	args := []string{
		"run", "--rm", "-i",
		"--memory", d.Policy.MaxMemory,
		"--stop-timeout", fmt.Sprintf("%d", int(timeout.Seconds())),
		"-v", tmpDir + ":/workspace:ro",
		"-w", "/workspace",
	}

	if !d.Policy.Network {
		args = append(args, "--network=none")
	}

	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return run(ctx, d.Policy, "", "docker", args, opts.Stdin)
}
