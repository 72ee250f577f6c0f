package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/micro-nova/slidered/internal/models"
)

// sseEvents handles the SSE (Server-Sent Events) endpoint.
// Clients receive the open sessions immediately, then document events as
// they happen. ?document=<id> limits the stream to one session.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	// Verify the client supports streaming
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := uuid.New().String()
	ch := h.events.Subscribe(id, r.URL.Query().Get("document"))
	defer h.events.Unsubscribe(id)

	sessions := make([]models.Session, 0, h.docs.Len())
	for _, c := range h.docs.List() {
		if s, err := c.Session(r.Context()); err == nil {
			s.Controls = nil
			sessions = append(sessions, s)
		}
	}
	sendSSE(w, flusher, "sessions", sessions)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, string(ev.Kind), ev)
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
