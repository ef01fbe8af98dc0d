package sandbox

import (
	"context"
	"sync"
)

// ExecOpts describes a code execution request.
type ExecOpts struct {
	Image   string            // Docker image (ignored by the process backend)
	Command []string          // Command relative to the workspace, e.g. {"python", "harness.py"}
	Files   map[string]string // Files written into the workspace before the run
	Stdin   string
}

// ExecResult is the output of a sandboxed execution.
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Truncated bool // stdout or stderr hit Policy.MaxOutputBytes
}

// Sandbox runs code in an isolated environment.
//
// Exec only returns an error when the command could not be started; a
// non-zero exit, a timeout or truncated output are reported in ExecResult.
type Sandbox interface {
	Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error)
}

// cappedBuffer keeps at most limit bytes and silently drops the rest so a
// runaway process cannot exhaust memory through its output pipes.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - len(b.buf)
	if b.limit <= 0 {
		room = len(p)
	}
	if room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf = append(b.buf, p[:room]...)
		}
		// Report a full write so the child never sees EPIPE from us.
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
