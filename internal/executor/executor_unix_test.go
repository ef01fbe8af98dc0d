//go:build !windows

package executor

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/michaelbrown/codetutor/internal/sandbox"
)

func TestExecuteTimeoutStopsChildProcesses(t *testing.T) {
	bin := DefaultInterpreter()
	if _, err := exec.LookPath(bin); err != nil {
		t.Skipf("%s not found in PATH", bin)
	}
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not found in PATH")
	}
	policy := sandbox.DefaultPolicy()
	policy.MaxTimeout = time.Second
	e := New(sandbox.NewProcessSandbox(policy), Options{Interpreter: bin, MaxOutputChars: 4096})

	start := time.Now()
	res := e.Execute(context.Background(), "import os\nos.system('sleep 8')\n")
	elapsed := time.Since(start)

	if res.Success || !strings.HasPrefix(res.Output, "TimeoutError") {
		t.Errorf("res = %+v", res)
	}
	if elapsed > 4*time.Second {
		t.Errorf("run took %s, the time limit is 1s", elapsed)
	}
}
