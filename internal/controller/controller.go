// Package controller implements the sync controller: the state machine that
// binds one open document to its live editor surfaces and routes surface
// messages and persistence commands to it.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/micro-nova/slidered/internal/document"
	"github.com/micro-nova/slidered/internal/models"
	"github.com/micro-nova/slidered/internal/render"
	"github.com/micro-nova/slidered/internal/storage"
)

// Surface is a live editor UI attached to a session.
type Surface interface {
	// Send delivers a message to the UI. It must not block for long.
	Send(msg models.Outbound) error
	// Close detaches the UI; called when the session is disposed.
	Close() error
}

// Publisher receives document events; *events.Bus satisfies it.
type Publisher interface {
	Publish(ev models.Event)
}

// Controller is the sync controller of one open document.
// Document state lives in the document's own goroutine; the controller's
// mutex only guards the lifecycle bookkeeping below.
type Controller struct {
	id  string
	doc *document.Document
	bus Publisher

	mu        sync.Mutex
	resolved  bool
	disposed  bool
	saving    int
	reverting int
	surfaces  map[Surface]struct{}
	backups   map[string]string // backup id -> uri
}

// Open opens the document at uri and waits for it to decode. A malformed or
// unreadable document is an open failure: the error is returned and no
// controller is created.
func Open(ctx context.Context, fs storage.FS, id, uri string, bus Publisher, opts ...document.Option) (*Controller, error) {
	doc := document.Open(ctx, fs, uri, opts...)
	if err := doc.Loaded(ctx); err != nil {
		doc.Dispose()
		return nil, err
	}
	slog.Info("controller: document opened", "id", id, "uri", uri)
	return New(id, doc, bus), nil
}

// New creates a controller for an already opened document.
func New(id string, doc *document.Document, bus Publisher) *Controller {
	return &Controller{
		id:       id,
		doc:      doc,
		bus:      bus,
		surfaces: make(map[Surface]struct{}),
		backups:  make(map[string]string),
	}
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// URI returns the file identity of the document.
func (c *Controller) URI() string { return c.doc.URI() }

// State returns the current lifecycle state.
func (c *Controller) State() models.SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() models.SyncState {
	switch {
	case c.disposed:
		return models.StateDisposed
	case c.reverting > 0:
		return models.StateReverting
	case c.saving > 0:
		return models.StateSaving
	case c.resolved:
		return models.StateReady
	}
	return models.StateUninitialized
}

// Session returns the API view of the session with its current controls.
func (c *Controller) Session(ctx context.Context) (models.Session, error) {
	snap, err := c.doc.Snapshot(ctx)
	if err != nil {
		return models.Session{}, err
	}
	return models.Session{
		ID:       c.id,
		URI:      c.doc.URI(),
		State:    c.State(),
		Dirty:    snap.Dirty,
		Controls: render.Controls(snap.Params),
	}, nil
}

// Resolve attaches a surface, sends it the rendered controls and moves the
// controller to Ready.
func (c *Controller) Resolve(ctx context.Context, s Surface) error {
	snap, err := c.doc.Snapshot(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return models.ErrDisposed
	}
	c.resolved = true
	c.surfaces[s] = struct{}{}
	c.mu.Unlock()

	if err := s.Send(renderMessage(snap.Params)); err != nil {
		c.Detach(s)
		return fmt.Errorf("resolve %s: %w", c.id, err)
	}
	slog.Debug("controller: surface attached", "id", c.id, "controls", snap.Params.Len())
	return nil
}

// Detach removes a surface without closing it.
func (c *Controller) Detach(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.surfaces, s)
}

// Dispose detaches every surface and disposes the document. It is terminal
// and idempotent.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	surfaces := c.surfaces
	c.surfaces = make(map[Surface]struct{})
	c.mu.Unlock()

	c.doc.Dispose()
	for s := range surfaces {
		if err := s.Close(); err != nil {
			slog.Debug("controller: closing surface", "id", c.id, "err", err)
		}
	}
	c.publish(models.Event{Kind: models.EventDisposed})
	slog.Info("controller: document closed", "id", c.id, "uri", c.doc.URI())
}

// rerender sends the full control list to every attached surface.
func (c *Controller) rerender(params *models.Params) {
	msg := renderMessage(params)
	c.mu.Lock()
	surfaces := make([]Surface, 0, len(c.surfaces))
	for s := range c.surfaces {
		surfaces = append(surfaces, s)
	}
	c.mu.Unlock()
	for _, s := range surfaces {
		if err := s.Send(msg); err != nil {
			slog.Warn("controller: re-render failed, detaching surface", "id", c.id, "err", err)
			c.Detach(s)
		}
	}
}

func (c *Controller) publish(ev models.Event) {
	if c.bus == nil {
		return
	}
	ev.Document = c.id
	ev.URI = c.doc.URI()
	c.bus.Publish(ev)
}

func renderMessage(params *models.Params) models.Outbound {
	return models.Outbound{Command: "render", Controls: render.Controls(params)}
}
