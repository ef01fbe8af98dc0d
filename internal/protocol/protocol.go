// Package protocol defines the envelopes exchanged with the host process and
// the encoder that frames them as newline-delimited JSON, splitting oversized
// payloads into stream chunks.
package protocol

import (
	"bytes"
	"encoding/json"
)

// Status is the discriminator carried by every outbound envelope.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusError       Status = "error"
	StatusStreamStart Status = "stream_start"
	StatusStreamChunk Status = "stream_chunk"
	StatusStreamEnd   Status = "stream_end"
	StatusReady       Status = "ready"
	StatusShutdown    Status = "shutdown"
	StatusWarning     Status = "warning"
)

// RequestID is the caller's correlation token. It is kept as raw JSON so any
// value the host sends (string, number) is echoed back byte for byte.
type RequestID []byte

// NewRequestID returns a string-valued RequestID.
func NewRequestID(s string) RequestID {
	b, _ := json.Marshal(s)
	return RequestID(b)
}

// IsZero reports whether no id was supplied.
func (id RequestID) IsZero() bool {
	return len(id) == 0
}

// String returns the id as text, unquoting string ids.
func (id RequestID) String() string {
	var s string
	if json.Unmarshal(id, &s) == nil {
		return s
	}
	return string(id)
}

func (id RequestID) MarshalJSON() ([]byte, error) {
	if len(id) == 0 {
		return []byte("null"), nil
	}
	return id, nil
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = nil
		return nil
	}
	*id = append((*id)[:0], data...)
	return nil
}

// Request is one inbound command.
type Request struct {
	Command   string         `json:"command"`
	Payload   map[string]any `json:"payload"`
	RequestID RequestID      `json:"requestId,omitempty"`
}

// Response is the success envelope.
type Response struct {
	Status    Status    `json:"status"`
	Data      any       `json:"data"`
	RequestID RequestID `json:"requestId,omitempty"`
}

// Error is the failure envelope.
type Error struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	RequestID RequestID `json:"requestId,omitempty"`
}

// Notice is an out-of-band status message (ready, shutdown, warning).
type Notice struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

type StreamStart struct {
	Status      Status    `json:"status"`
	TotalChunks int       `json:"total_chunks"`
	RequestID   RequestID `json:"requestId,omitempty"`
}

type StreamChunk struct {
	Status     Status    `json:"status"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkData  string    `json:"chunk_data"`
	RequestID  RequestID `json:"requestId,omitempty"`
}

type StreamEnd struct {
	Status    Status    `json:"status"`
	RequestID RequestID `json:"requestId,omitempty"`
}

// Success builds a success envelope.
func Success(data any, id RequestID) Response {
	return Response{Status: StatusSuccess, Data: data, RequestID: id}
}

// Failure builds an error envelope.
func Failure(message string, id RequestID) Error {
	return Error{Status: StatusError, Message: message, RequestID: id}
}

// Ready is sent once when the worker starts listening.
func Ready() Notice {
	return Notice{Status: StatusReady, Message: "IPC server has started"}
}

// Shutdown is sent once when a termination signal arrives.
func Shutdown(signal string) Notice {
	return Notice{Status: StatusShutdown, Message: "Received " + signal + ", shutting down"}
}

// Warning reports a non-fatal startup problem.
func Warning(message string) Notice {
	return Notice{Status: StatusWarning, Message: message}
}

// Marshal renders v as compact JSON without HTML escaping and without a
// trailing newline.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
