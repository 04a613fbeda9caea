package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/3bi-io/nexus-core/orchestrator"
)

// sseWriter relays raw stream chunks to the client as server-sent events.
// Headers go out lazily on the first chunk so the agent branch, which never
// streams, can still respond with plain JSON.
type sseWriter struct {
	response http.ResponseWriter
	flusher  http.Flusher
	started  bool
}

func (w *sseWriter) WriteChunk(chunk []byte) error {
	if !w.started {
		w.response.Header().Set("Content-Type", "text/event-stream")
		w.response.Header().Set("Cache-Control", "no-cache")
		w.response.Header().Set("Connection", "keep-alive")
		w.started = true
	}
	if _, err := fmt.Fprintf(w.response, "%s\n\n", chunk); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	var request orchestrator.Request
	if err := json.Unmarshal(bodyBytes, &request); err != nil {
		s.logger.Warnw("Invalid chat request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}
	stream := &sseWriter{response: w, flusher: flusher}

	result, err := s.orchestrator.HandleChat(r.Context(), &request, stream)
	if err != nil {
		s.writeChatError(w, stream, &request, err)
		return
	}

	if result.Streamed {
		// Termination signal for the event stream.
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Errorw("Failed to encode chat response", "error", err)
	}
}

// writeChatError surfaces a failure to the caller. Before any chunk has been
// relayed it is a plain JSON error; after streaming has started the only
// option left is to error the open stream.
func (s *Server) writeChatError(w http.ResponseWriter, stream *sseWriter, request *orchestrator.Request, err error) {
	s.logger.Warnw("Chat request failed", "session_id", request.SessionID, "error", err)

	if stream.started {
		payload := errorPayload{}
		payload.Error.Type = "stream_error"
		payload.Error.Message = "the response stream failed"
		encoded, marshalErr := json.Marshal(payload)
		if marshalErr == nil {
			fmt.Fprintf(w, "data: %s\n\n", encoded)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		stream.flusher.Flush()
		return
	}

	var streamErr orchestrator.UpstreamStreamError
	if errors.As(err, &streamErr) {
		writeError(w, http.StatusBadGateway, "upstream_stream_error", "the model stream failed")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
