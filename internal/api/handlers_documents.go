package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/micro-nova/slidered/internal/models"
)

func (h *Handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	out := make([]models.Session, 0, h.docs.Len())
	for _, c := range h.docs.List() {
		s, err := c.Session(r.Context())
		if err != nil {
			// Closed while listing.
			continue
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, out)
}

// openDocument opens a session, or returns the existing one for that path.
func (h *Handlers) openDocument(w http.ResponseWriter, r *http.Request) {
	var req models.OpenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, created, err := h.docs.Open(r.Context(), req.Path, req.Backup)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeSession(w, r, status, c)
}

func (h *Handlers) getDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	writeSession(w, r, http.StatusOK, c)
}

func (h *Handlers) closeDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postMessage applies one surface message sent over plain HTTP.
func (h *Handlers) postMessage(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, models.ErrBadRequest("read body: "+err.Error()))
		return
	}
	msg, err := models.DecodeMessage(data)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := c.HandleMessage(r.Context(), nil, msg); err != nil {
		writeError(w, err)
		return
	}
	writeSession(w, r, http.StatusOK, c)
}

// saveDocument saves to the document's own file. The request context is
// the cancellation token: a client that goes away before the write commits
// cancels the save.
func (h *Handlers) saveDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := c.Save(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeSession(w, r, http.StatusOK, c)
}

func (h *Handlers) saveDocumentAs(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.SaveAsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dest, err := h.docs.SaveAsTarget(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := c.SaveAs(r.Context(), dest); err != nil {
		writeError(w, err)
		return
	}
	writeSession(w, r, http.StatusOK, c)
}

func (h *Handlers) revertDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := c.Revert(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeSession(w, r, http.StatusOK, c)
}

// backupDocument writes a backup. Without a path the backup goes to the
// configured backup directory; an explicit path must lie under it.
func (h *Handlers) backupDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.BackupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dest := h.docs.BackupPath(c)
	if req.Path != "" {
		var err error
		if dest, err = h.docs.BackupTarget(req.Path); err != nil {
			writeError(w, err)
			return
		}
	}
	b, err := c.Backup(r.Context(), dest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b.Info())
}

func (h *Handlers) listBackups(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Backups())
}

func (h *Handlers) deleteBackup(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := c.DeleteBackup(r.Context(), chi.URLParam(r, "bid")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// diffDocument returns a unified-style patch from the file on disk to the
// unsaved content. The body is empty when there is nothing to save.
func (h *Handlers) diffDocument(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	d, err := c.Diff(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/x-diff; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, d); err != nil {
		slog.Debug("api: writing diff", "err", err)
	}
}
