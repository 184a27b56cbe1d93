package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amamdouheg90/vrobo-recording/internal/events"
)

// sseSink writes one event per SSE frame. The registry serializes sends
// per connection, but Close can race a late send, hence the mutex.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
}

var errSinkClosed = errors.New("subscriber closed")

func (s *sseSink) Send(ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := &sseSink{w: w, flusher: flusher}
	id, err := s.registry.Subscribe(sink)
	if err != nil {
		log.Printf("httpapi: sse subscribe failed: %v", err)
		return
	}

	<-r.Context().Done()
	sink.close()
	s.registry.Unsubscribe(id)
}

type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(ev events.Event) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(ev)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, err := s.registry.Subscribe(&wsSink{conn: conn})
	if err != nil {
		log.Printf("httpapi: websocket subscribe failed: %v", err)
		return
	}
	defer s.registry.Unsubscribe(id)

	// Drain control and client frames until the peer hangs up.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type publishRequest struct {
	Step     string `json:"step"`
	Error    string `json:"error"`
	ClientID string `json:"clientId"`
}

func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Step == "" {
		respondError(w, http.StatusBadRequest, "step is required")
		return
	}

	s.registry.Publish(req.ClientID, req.Step, req.Error)
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
