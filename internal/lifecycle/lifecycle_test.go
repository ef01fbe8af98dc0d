package lifecycle

import (
	"context"
	"sync"
	"testing"

	"github.com/michaelbrown/codetutor/internal/protocol"
)

type recorder struct {
	mu   sync.Mutex
	msgs []any
}

func (r *recorder) Send(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, v)
	return nil
}

func (r *recorder) notices(status protocol.Status) []protocol.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.Notice
	for _, m := range r.msgs {
		if n, ok := m.(protocol.Notice); ok && n.Status == status {
			out = append(out, n)
		}
	}
	return out
}

func TestTerminateSendsOneShutdown(t *testing.T) {
	rec := &recorder{}
	var codes []int
	c := New(context.Background(), rec, WithExit(func(code int) { codes = append(codes, code) }))

	c.Terminate("SIGTERM")
	c.Terminate("SIGINT")

	got := rec.notices(protocol.StatusShutdown)
	if len(got) != 1 {
		t.Fatalf("got %d shutdown notices, want 1", len(got))
	}
	if got[0].Message != "Received SIGTERM, shutting down" {
		t.Errorf("message = %q", got[0].Message)
	}
	if len(codes) != 1 || codes[0] != 0 {
		t.Errorf("exit codes = %v, want [0]", codes)
	}
	if c.Context().Err() == nil {
		t.Error("context should be cancelled")
	}
}

func TestStopCancelsWithoutExit(t *testing.T) {
	rec := &recorder{}
	exited := false
	c := New(context.Background(), rec, WithExit(func(int) { exited = true }))
	c.Start()
	c.Stop()

	if c.Context().Err() == nil {
		t.Error("context should be cancelled")
	}
	if exited {
		t.Error("Stop must not exit the process")
	}
	if n := len(rec.notices(protocol.StatusShutdown)); n != 0 {
		t.Errorf("got %d shutdown notices after Stop", n)
	}
}
