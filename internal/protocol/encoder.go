package protocol

import (
	"context"
	"fmt"
	"time"
)

// Default chunking parameters.
const (
	DefaultChunkThreshold = 8000
	DefaultChunkSize      = 8000
	DefaultChunkDelay     = 10 * time.Millisecond
)

// LineWriter writes one complete line (the newline is appended by the
// writer) and makes it visible to the peer.
type LineWriter interface {
	WriteLine(line []byte) error
}

// Encoder serializes envelopes into outbound lines. Bodies whose JSON text is
// at least Threshold characters long are sent as a stream_start, N
// stream_chunk and one stream_end envelope.
type Encoder struct {
	Threshold int
	ChunkSize int
	// Delay is slept between successive stream_chunk writes.
	Delay time.Duration
}

// NewEncoder returns an Encoder with the default chunking parameters.
func NewEncoder() *Encoder {
	return &Encoder{
		Threshold: DefaultChunkThreshold,
		ChunkSize: DefaultChunkSize,
		Delay:     DefaultChunkDelay,
	}
}

// Frame is one encoded outbound line.
type Frame struct {
	Line  []byte
	Chunk bool
}

// Encode renders body into frames. id is stamped on every stream envelope.
func (e *Encoder) Encode(body any, id RequestID) ([]Frame, error) {
	text, err := Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}

	runes := []rune(string(text))
	if len(runes) < e.threshold() {
		return []Frame{{Line: text}}, nil
	}

	size := e.chunkSize()
	total := (len(runes) + size - 1) / size

	frames := make([]Frame, 0, total+2)
	start, err := Marshal(StreamStart{Status: StatusStreamStart, TotalChunks: total, RequestID: id})
	if err != nil {
		return nil, err
	}
	frames = append(frames, Frame{Line: start})

	for i := range total {
		lo := i * size
		hi := min(lo+size, len(runes))
		chunk, err := Marshal(StreamChunk{
			Status:     StatusStreamChunk,
			ChunkIndex: i,
			ChunkData:  string(runes[lo:hi]),
			RequestID:  id,
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, Frame{Line: chunk, Chunk: true})
	}

	end, err := Marshal(StreamEnd{Status: StatusStreamEnd, RequestID: id})
	if err != nil {
		return nil, err
	}
	return append(frames, Frame{Line: end}), nil
}

// Send encodes body and writes every frame to w, pausing between chunks.
// The pause is skipped once ctx is done so a shutdown is not held up. It
// reports how many stream_chunk lines were written.
func (e *Encoder) Send(ctx context.Context, w LineWriter, body any, id RequestID) (int, error) {
	frames, err := e.Encode(body, id)
	if err != nil {
		return 0, err
	}

	chunksWritten := 0
	for _, f := range frames {
		if f.Chunk && chunksWritten > 0 && e.Delay > 0 {
			select {
			case <-time.After(e.Delay):
			case <-ctx.Done():
			}
		}
		if err := w.WriteLine(f.Line); err != nil {
			return chunksWritten, fmt.Errorf("writing frame: %w", err)
		}
		if f.Chunk {
			chunksWritten++
		}
	}
	return chunksWritten, nil
}

func (e *Encoder) threshold() int {
	if e.Threshold <= 0 {
		return DefaultChunkThreshold
	}
	return e.Threshold
}

func (e *Encoder) chunkSize() int {
	if e.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return e.ChunkSize
}
