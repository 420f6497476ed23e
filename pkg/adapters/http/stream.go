package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/beamline/internal/logging"
	"github.com/aretw0/beamline/pkg/domain"
)

type message struct {
	docType domain.DocType
	payload string
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan message]struct{}
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan message]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a client. The returned function must be called to release it.
func (sm *StreamManager) Subscribe() (<-chan message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan message, 64)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Len reports the number of connected clients.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Broadcast sends a document to every client without blocking the run.
func (sm *StreamManager) Broadcast(docType domain.DocType, payload string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- message{docType: docType, payload: payload}:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping document", "type", docType)
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE).
// The optional types query parameter is a comma separated list of document
// types to forward, e.g. types=event,stop.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var watch map[domain.DocType]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		watch = make(map[domain.DocType]bool)
		for _, t := range strings.Split(raw, ",") {
			watch[domain.DocType(strings.TrimSpace(t))] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()
	s.logger.Info("SSE: Client subscribed", "types", r.URL.Query().Get("types"))

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: Client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if watch != nil && !watch[msg.docType] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.docType, msg.payload)
			flusher.Flush()
		}
	}
}
