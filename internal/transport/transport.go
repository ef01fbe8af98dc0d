// Package transport runs the newline-delimited JSON request loop over a
// duplex byte stream (stdin/stdout of the worker process).
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/michaelbrown/codetutor/internal/metrics"
	"github.com/michaelbrown/codetutor/internal/protocol"
)

// Conn is a line-oriented duplex channel. Writes are serialized and flushed
// line by line so the peer sees each envelope as soon as it is written.
type Conn struct {
	reader *bufio.Reader

	mu     sync.Mutex
	writer *bufio.Writer
}

// NewConn wraps r and w.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
	}
}

// ReadLine returns the next line without its terminator. A final unterminated
// line is returned together with io.EOF.
func (c *Conn) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	return line, err
}

// WriteLine writes line followed by a newline and flushes.
func (c *Conn) WriteLine(line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.writer.Write(line); err != nil {
		return err
	}
	if err := c.writer.WriteByte('\n'); err != nil {
		return err
	}
	return c.writer.Flush()
}

// Send marshals v and writes it as one line.
func (c *Conn) Send(v any) error {
	line, err := protocol.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	return c.WriteLine(line)
}

// Handler answers one request with a protocol.Response or protocol.Error.
type Handler interface {
	Handle(ctx context.Context, req protocol.Request) any
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req protocol.Request) any

func (f HandlerFunc) Handle(ctx context.Context, req protocol.Request) any {
	return f(ctx, req)
}

// Server reads requests from a Conn one at a time and writes their responses
// before reading the next line.
type Server struct {
	conn    *Conn
	encoder *protocol.Encoder
	handler Handler
	logger  *slog.Logger
}

// NewServer creates a Server. A nil encoder uses the default chunking
// parameters and a nil logger uses slog.Default().
func NewServer(conn *Conn, encoder *protocol.Encoder, handler Handler, logger *slog.Logger) *Server {
	if encoder == nil {
		encoder = protocol.NewEncoder()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		conn:    conn,
		encoder: encoder,
		handler: handler,
		logger:  logger.With("component", "transport"),
	}
}

// Serve announces readiness and processes requests until ctx is cancelled or
// the input reaches EOF. The context is checked between requests; an
// in-flight request always runs to completion.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.conn.Send(protocol.Ready()); err != nil {
		return fmt.Errorf("announcing ready: %w", err)
	}
	s.logger.Info("listening for requests")

	for ctx.Err() == nil {
		line, readErr := s.conn.ReadLine()
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading request: %w", readErr)
		}

		if err := s.process(ctx, line); err != nil {
			return err
		}

		if errors.Is(readErr, io.EOF) {
			s.logger.Info("input closed")
			return nil
		}
	}
	return nil
}

func (s *Server) process(ctx context.Context, raw string) error {
	line := protocol.NormalizeLine(raw)
	if line == "" {
		return nil
	}

	req, err := protocol.DecodeLine(line)
	if err != nil {
		s.logger.Warn("malformed request", "error", err)
		return s.conn.Send(protocol.Failure(err.Error(), nil))
	}

	body := s.handler.Handle(ctx, req)
	chunks, err := s.encoder.Send(ctx, s.conn, body, req.RequestID)
	metrics.StreamChunksTotal.Add(float64(chunks))
	if err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
