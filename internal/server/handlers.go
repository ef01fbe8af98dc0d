package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/michaelbrown/codetutor/internal/protocol"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads an optional JSON object body. An empty body decodes to
// an empty payload.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// dispatch runs cmd through the Dispatcher and writes the reply.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, cmd string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	req := protocol.Request{
		Command:   cmd,
		Payload:   payload,
		RequestID: protocol.NewRequestID(middleware.GetReqID(r.Context())),
	}

	data, err := s.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleListTutorials(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "get_tutorials", nil)
}

func (s *Server) handleGetTutorial(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "get_tutorial", map[string]any{"tutorialKey": chi.URLParam(r, "key")})
}

// handleCommand serves a POST route whose JSON body is the payload of cmd.
func (s *Server) handleCommand(cmd string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		s.dispatch(w, r, cmd, payload)
	}
}
