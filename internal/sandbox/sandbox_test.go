package sandbox

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
}

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(5)
	n, err := b.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	n, err = b.Write([]byte("defgh"))
	if err != nil || n != 5 {
		t.Fatalf("Write = %d, %v; want full write reported", n, err)
	}
	if got := b.String(); got != "abcde" {
		t.Errorf("String() = %q, want %q", got, "abcde")
	}
	if !b.Truncated() {
		t.Error("expected truncated")
	}
}

func TestCappedBufferUnlimited(t *testing.T) {
	b := newCappedBuffer(0)
	b.Write([]byte(strings.Repeat("x", 4096)))
	if b.Truncated() || len(b.String()) != 4096 {
		t.Errorf("unlimited buffer truncated: len=%d", len(b.String()))
	}
}

func TestPolicyImageAllowlist(t *testing.T) {
	p := DefaultPolicy()
	if !p.IsImageAllowed("python:3.12-slim") {
		t.Error("default image should be allowed")
	}
	if p.IsImageAllowed("alpine:latest") {
		t.Error("alpine should not be allowed")
	}
}

func TestDockerRejectsImage(t *testing.T) {
	d := NewDockerSandbox(DefaultPolicy())
	_, err := d.Exec(context.Background(), ExecOpts{Image: "evil:latest", Command: []string{"true"}})
	if err == nil || !strings.Contains(err.Error(), "allowlist") {
		t.Fatalf("expected allowlist error, got %v", err)
	}
}

func TestProcessWritesFilesAndStdin(t *testing.T) {
	requireShell(t)
	p := NewProcessSandbox(DefaultPolicy())

	res, err := p.Exec(context.Background(), ExecOpts{
		Command: []string{"sh", "script.sh"},
		Files: map[string]string{
			"script.sh":       "cat data.txt; cat -",
			"../../data.txt": "from file|",
		},
		Stdin: "from stdin",
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, stderr=%s", res.ExitCode, res.Stderr)
	}
	if res.Stdout != "from file|from stdin" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "from file|from stdin")
	}
}

func TestProcessExitCode(t *testing.T) {
	requireShell(t)
	p := NewProcessSandbox(DefaultPolicy())

	res, err := p.Exec(context.Background(), ExecOpts{
		Command: []string{"sh", "-c", "echo oops >&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestProcessTimeout(t *testing.T) {
	requireShell(t)
	policy := DefaultPolicy()
	policy.MaxTimeout = 200 * time.Millisecond
	p := NewProcessSandbox(policy)

	start := time.Now()
	res, err := p.Exec(context.Background(), ExecOpts{
		Command: []string{"sh", "-c", "sleep 5"},
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !res.TimedOut {
		t.Error("expected TimedOut")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout not enforced, took %s", elapsed)
	}
}

func TestProcessOutputCap(t *testing.T) {
	requireShell(t)
	policy := DefaultPolicy()
	policy.MaxOutputBytes = 16
	p := NewProcessSandbox(policy)

	res, err := p.Exec(context.Background(), ExecOpts{
		Command: []string{"sh", "-c", "i=0; while [ $i -lt 100 ]; do echo line$i; i=$((i+1)); done"},
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !res.Truncated {
		t.Error("expected Truncated")
	}
	if len(res.Stdout) != 16 {
		t.Errorf("stdout len = %d, want 16", len(res.Stdout))
	}
}

func TestProcessMissingBinary(t *testing.T) {
	p := NewProcessSandbox(DefaultPolicy())
	_, err := p.Exec(context.Background(), ExecOpts{Command: []string{"/nonexistent/interpreter"}})
	if err == nil {
		t.Fatal("expected start error for missing binary")
	}
}
