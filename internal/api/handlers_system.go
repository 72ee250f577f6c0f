package api

import (
	"net/http"
	"path/filepath"

	"github.com/micro-nova/slidered/internal/identity"
	"github.com/micro-nova/slidered/internal/models"
	"github.com/micro-nova/slidered/internal/render"
)

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Info{
		Hostname: identity.GetHostname(),
		Version:  identity.GetVersion(),
		Pattern:  h.docs.Pattern(),
		Open:     h.docs.Len(),
		Dropped:  h.events.Dropped(),
	})
}

// editPage serves the slider page of a session. The page connects back to
// the session's websocket for live updates.
func (h *Handlers) editPage(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	s, err := c.Session(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = render.Page(w, render.PageData{
		Title:    filepath.Base(s.URI),
		Socket:   "/api/documents/" + s.ID + "/ws",
		Controls: s.Controls,
	})
}
