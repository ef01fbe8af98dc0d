package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/michaelbrown/codetutor/internal/metrics"
	"github.com/michaelbrown/codetutor/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the front end is served from a local origin
	},
}

// handleWebSocket treats each text message as one request line and answers
// with the same envelopes the stdin worker writes, chunked the same way.
// Requests without a requestId are given one so replies can be matched.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := s.conns.Add(r.Context(), conn)
	defer s.conns.Remove(c.ID)
	logger := s.logger.With("conn", c.ID)
	logger.Info("websocket connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		line := protocol.NormalizeLine(string(data))
		if line == "" {
			continue
		}

		var reply any
		req, err := protocol.DecodeLine(line)
		if err != nil {
			logger.Warn("discarding malformed message", "error", err)
			reply = protocol.Failure(err.Error(), nil)
		} else {
			if req.RequestID.IsZero() {
				req.RequestID = protocol.NewRequestID(uuid.NewString())
			}
			reply = s.dispatcher.Handle(c.ctx, req)
		}

		chunks, err := s.encoder.Send(c.ctx, c, reply, req.RequestID)
		metrics.StreamChunksTotal.Add(float64(chunks))
		if err != nil {
			logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}
