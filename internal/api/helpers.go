// Package api implements the HTTP API of the slidered editor.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/micro-nova/slidered/internal/controller"
	"github.com/micro-nova/slidered/internal/models"
)

// maxBodyBytes bounds request bodies; documents and messages are small.
const maxBodyBytes = 1 << 20

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	docs     Registry
	events   EventBus
	msgRate  float64
	upgrader websocket.Upgrader
}

// Registry is the set of open editor sessions; *workspace.Registry satisfies it.
type Registry interface {
	Open(ctx context.Context, path, backup string) (*controller.Controller, bool, error)
	Get(id string) (*controller.Controller, bool)
	List() []*controller.Controller
	Len() int
	Close(id string) error
	SaveAsTarget(p string) (string, error)
	BackupTarget(p string) (string, error)
	Pattern() string
	BackupPath(c *controller.Controller) string
}

// EventBus is the interface for subscribing to document events.
type EventBus interface {
	Subscribe(id, document string) <-chan models.Event
	Unsubscribe(id string)
	Dropped() uint64
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON response, mapping document errors to
// their HTTP status.
func writeError(w http.ResponseWriter, err error) {
	appErr := models.ToAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(appErr)
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return models.ErrBadRequest("invalid JSON: " + err.Error())
}

// session looks up the {id} path parameter, writing a 404 when it is unknown.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*controller.Controller, bool) {
	c, ok := h.docs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, models.ErrNotFound("document not found"))
		return nil, false
	}
	return c, true
}

// writeSession responds with the current view of c.
func writeSession(w http.ResponseWriter, r *http.Request, status int, c *controller.Controller) {
	s, err := c.Session(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, s)
}
