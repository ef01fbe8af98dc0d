package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type lineRecorder struct {
	lines []string
	times []time.Time
}

func (r *lineRecorder) WriteLine(line []byte) error {
	r.lines = append(r.lines, string(line))
	r.times = append(r.times, time.Now())
	return nil
}

func TestRequestIDEcho(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"string", `{"command":"x","requestId":"r1"}`, `"r1"`},
		{"number", `{"command":"x","requestId":42}`, `42`},
		{"null", `{"command":"x","requestId":null}`, ``},
		{"absent", `{"command":"x"}`, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeLine(tt.line)
			if err != nil {
				t.Fatalf("DecodeLine: %v", err)
			}
			if string(req.RequestID) != tt.want {
				t.Errorf("RequestID = %s, want %s", req.RequestID, tt.want)
			}

			out, err := Marshal(Failure("boom", req.RequestID))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if tt.want == "" {
				if strings.Contains(string(out), "requestId") {
					t.Errorf("absent id must be omitted: %s", out)
				}
				return
			}
			if !strings.Contains(string(out), `"requestId":`+tt.want) {
				t.Errorf("id not echoed verbatim: %s", out)
			}
		})
	}
}

func TestDecodeLineDefaultsPayload(t *testing.T) {
	req, err := DecodeLine(`{"command":"get_tutorials"}`)
	if err != nil {
		t.Fatalf("DecodeLine: %v", err)
	}
	if req.Payload == nil {
		t.Error("payload should default to an empty map")
	}
}

func TestDecodeLineInvalid(t *testing.T) {
	_, err := DecodeLine(`{"command":`)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	msg := de.Error()
	if !strings.HasPrefix(msg, "Invalid JSON data: ") || !strings.HasSuffix(msg, `| {"command":`) {
		t.Errorf("message = %q", msg)
	}
}

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":"b"}` + "\r\n", `{"a":"b"}`},
		{"doubled escape", `{"a":"\\u4f60\\u597d"}`, `{"a":"\u4f60\u597d"}`},
		{"single escape untouched", `{"a":"\u4f60"}`, `{"a":"\u4f60"}`},
		{"escaped backslash before letter", `{"a":"C:\\users"}`, `{"a":"C:\\users"}`},
		{"quadruple", `\\\\u0041`, `\\u0041`},
		{"not hex", `\\uZZZZ`, `\\uZZZZ`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLine(tt.in); got != tt.want {
				t.Errorf("NormalizeLine(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizedHostLineDecodes(t *testing.T) {
	line := NormalizeLine(`{"command":"run_code","payload":{"code":"print('\\u4f60')"}}`)
	req, err := DecodeLine(line)
	if err != nil {
		t.Fatalf("DecodeLine: %v", err)
	}
	if got := req.Payload["code"]; got != "print('你')" {
		t.Errorf("code = %q", got)
	}
}

func TestEncodeSmallBodyIsOneLine(t *testing.T) {
	enc := NewEncoder()
	frames, err := enc.Encode(Success(map[string]any{"html": "<b>&</b>"}, NewRequestID("r1")), NewRequestID("r1"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	want := `{"status":"success","data":{"html":"<b>&</b>"},"requestId":"r1"}`
	if string(frames[0].Line) != want {
		t.Errorf("line = %s, want %s", frames[0].Line, want)
	}
}

func TestEncodeChunkRoundTrip(t *testing.T) {
	enc := &Encoder{Threshold: 50, ChunkSize: 16}
	id := NewRequestID("r1")
	body := Success(map[string]any{"output": strings.Repeat("你好, world. ", 20)}, id)

	want, err := Marshal(body)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	frames, err := enc.Encode(body, id)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var start StreamStart
	if err := json.Unmarshal(frames[0].Line, &start); err != nil || start.Status != StatusStreamStart {
		t.Fatalf("first frame = %s", frames[0].Line)
	}
	var end StreamEnd
	if err := json.Unmarshal(frames[len(frames)-1].Line, &end); err != nil || end.Status != StatusStreamEnd {
		t.Fatalf("last frame = %s", frames[len(frames)-1].Line)
	}
	if end.RequestID.String() != "r1" || start.RequestID.String() != "r1" {
		t.Error("stream envelopes must carry the request id")
	}

	chunks := frames[1 : len(frames)-1]
	if len(chunks) != start.TotalChunks {
		t.Fatalf("emitted %d chunks, total_chunks = %d", len(chunks), start.TotalChunks)
	}

	var rebuilt strings.Builder
	for i, f := range chunks {
		var c StreamChunk
		if err := json.Unmarshal(f.Line, &c); err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if c.RequestID.String() != "r1" {
			t.Errorf("chunk %d lost request id", i)
		}
		rebuilt.WriteString(c.ChunkData)
	}
	if rebuilt.String() != string(want) {
		t.Errorf("reassembled body differs\n got: %s\nwant: %s", rebuilt.String(), want)
	}
}

func TestEncodeThresholdBoundary(t *testing.T) {
	body := map[string]string{"k": "v"} // {"k":"v"} is 9 characters
	tests := []struct {
		threshold int
		streamed  bool
	}{
		{10, false},
		{9, true},
		{8, true},
	}
	for _, tt := range tests {
		enc := &Encoder{Threshold: tt.threshold, ChunkSize: 4}
		frames, err := enc.Encode(body, nil)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if got := len(frames) > 1; got != tt.streamed {
			t.Errorf("threshold %d: streamed = %v, want %v", tt.threshold, got, tt.streamed)
		}
		if tt.streamed && len(frames) != 3+2 {
			t.Errorf("threshold %d: got %d frames, want 5", tt.threshold, len(frames))
		}
	}
}

func TestSendDelaysBetweenChunks(t *testing.T) {
	enc := &Encoder{Threshold: 1, ChunkSize: 4, Delay: 20 * time.Millisecond}
	rec := &lineRecorder{}

	chunks, err := enc.Send(context.Background(), rec, map[string]string{"k": "value"}, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	// {"k":"value"} is 13 characters: 4 chunks.
	if chunks != 4 {
		t.Errorf("Send reported %d chunks, want 4", chunks)
	}
	if len(rec.lines) != 6 {
		t.Fatalf("wrote %d lines, want 6", len(rec.lines))
	}
	if gap := rec.times[2].Sub(rec.times[1]); gap < 15*time.Millisecond {
		t.Errorf("chunk gap = %s, want >= delay", gap)
	}
}

func TestNoticeEnvelopes(t *testing.T) {
	out, _ := Marshal(Shutdown("SIGTERM"))
	want := `{"status":"shutdown","message":"Received SIGTERM, shutting down"}`
	if string(out) != want {
		t.Errorf("shutdown = %s, want %s", out, want)
	}
	out, _ = Marshal(Ready())
	if !strings.Contains(string(out), `"status":"ready"`) {
		t.Errorf("ready = %s", out)
	}
}
