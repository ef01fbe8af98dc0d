package sandbox

import "os/exec"

// configureProcess keeps the default kill on cancel. Children that outlive
// it are cut off by WaitDelay closing the pipes.
func configureProcess(cmd *exec.Cmd) {}
