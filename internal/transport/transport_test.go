package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/michaelbrown/codetutor/internal/metrics"
	"github.com/michaelbrown/codetutor/internal/protocol"
)

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, req protocol.Request) any {
		if req.Command == "fail" {
			return protocol.Failure("nope", req.RequestID)
		}
		return protocol.Success(map[string]any{"command": req.Command, "payload": req.Payload}, req.RequestID)
	})
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("output line is not JSON: %q", line)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestServeProcessesRequestsInOrder(t *testing.T) {
	in := strings.NewReader(
		`{"command":"a","requestId":"r1"}` + "\n" +
			"\n" +
			`{"command":"fail","requestId":"r2"}` + "\n" +
			`{"command":"c","requestId":"r3"}`, // no trailing newline
	)
	var out bytes.Buffer

	srv := NewServer(NewConn(in, &out), nil, echoHandler(), nil)
	if err := srv.Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	msgs := decodeLines(t, out.String())
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4:\n%s", len(msgs), out.String())
	}
	if msgs[0]["status"] != "ready" {
		t.Errorf("first message = %v, want ready", msgs[0])
	}
	for i, want := range []string{"r1", "r2", "r3"} {
		if got := msgs[i+1]["requestId"]; got != want {
			t.Errorf("message %d requestId = %v, want %s", i+1, got, want)
		}
	}
	if msgs[2]["status"] != "error" || msgs[2]["message"] != "nope" {
		t.Errorf("error envelope = %v", msgs[2])
	}
}

func TestServeMalformedLine(t *testing.T) {
	in := strings.NewReader("{not json}\n" + `{"command":"ok","requestId":"r1"}` + "\n")
	var out bytes.Buffer

	srv := NewServer(NewConn(in, &out), nil, echoHandler(), nil)
	if err := srv.Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	msgs := decodeLines(t, out.String())
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	bad := msgs[1]
	if bad["status"] != "error" {
		t.Fatalf("expected error, got %v", bad)
	}
	if _, ok := bad["requestId"]; ok {
		t.Error("decode errors must not carry a requestId")
	}
	msg, _ := bad["message"].(string)
	if !strings.HasPrefix(msg, "Invalid JSON data: ") || !strings.Contains(msg, "{not json}") {
		t.Errorf("message = %q", msg)
	}
	if msgs[2]["status"] != "success" {
		t.Error("loop should continue after a malformed line")
	}
}

func TestServeStreamsLargeResponse(t *testing.T) {
	big := strings.Repeat("x", 100)
	handler := HandlerFunc(func(_ context.Context, req protocol.Request) any {
		return protocol.Success(map[string]any{"output": big}, req.RequestID)
	})
	in := strings.NewReader(`{"command":"run_code","requestId":"r1"}` + "\n")
	var out bytes.Buffer

	enc := &protocol.Encoder{Threshold: 50, ChunkSize: 30}
	srv := NewServer(NewConn(in, &out), enc, handler, nil)
	before := testutil.ToFloat64(metrics.StreamChunksTotal)
	if err := srv.Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	counted := testutil.ToFloat64(metrics.StreamChunksTotal) - before

	msgs := decodeLines(t, out.String())[1:]
	if msgs[0]["status"] != "stream_start" || msgs[len(msgs)-1]["status"] != "stream_end" {
		t.Fatalf("unexpected framing: %v", msgs)
	}
	var body strings.Builder
	chunks := 0
	for _, m := range msgs {
		if m["requestId"] != "r1" {
			t.Errorf("envelope %v missing requestId", m)
		}
		if m["status"] == "stream_chunk" {
			chunks++
			body.WriteString(m["chunk_data"].(string))
		}
	}
	if counted != float64(chunks) {
		t.Errorf("stream chunk counter grew by %v, want %d", counted, chunks)
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(body.String()), &resp); err != nil {
		t.Fatalf("reassembled body is not JSON: %v", err)
	}
	if resp["data"].(map[string]any)["output"] != big {
		t.Error("reassembled body lost data")
	}
}

func TestServeStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := HandlerFunc(func(_ context.Context, req protocol.Request) any {
		calls++
		cancel()
		return protocol.Success(map[string]any{}, req.RequestID)
	})
	in := strings.NewReader(`{"command":"a"}` + "\n" + `{"command":"b"}` + "\n")
	var out bytes.Buffer

	srv := NewServer(NewConn(in, &out), nil, handler, nil)
	if err := srv.Serve(ctx); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}
