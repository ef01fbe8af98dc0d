//go:build !windows

package sandbox

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the command in its own process group so a timeout
// kills every process it started, not just the direct child.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
