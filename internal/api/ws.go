package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/micro-nova/slidered/internal/models"
)

const (
	wsWriteWait    = 5 * time.Second
	wsMaxMessage   = 64 * 1024
	wsPingInterval = 30 * time.Second
)

// wsSurface is an editor surface connected over a websocket. Writes are
// serialized; gorilla connections allow one concurrent writer.
type wsSurface struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

func newWSSurface(conn *websocket.Conn) *wsSurface {
	return &wsSurface{conn: conn}
}

// Send writes msg as JSON. Writes after Close are dropped.
func (s *wsSurface) Send(msg models.Outbound) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(msg)
}

func (s *wsSurface) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return nil
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// Close sends a close frame and closes the connection.
func (s *wsSurface) Close() error {
	s.writeMu.Lock()
	if s.closed {
		s.writeMu.Unlock()
		return nil
	}
	s.closed = true
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "document closed"),
		time.Now().Add(wsWriteWait))
	s.writeMu.Unlock()
	return s.conn.Close()
}

// messageLimiter returns the limiter applied to inbound surface messages.
func (h *Handlers) messageLimiter() *rate.Limiter {
	if h.msgRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(h.msgRate), int(math.Max(1, h.msgRate)))
}

// surfaceSocket attaches a websocket surface to a session. The surface gets
// the rendered controls on connect, every re-render, and the session's
// events; it sends valueChanged and ready messages back.
func (h *Handlers) surfaceSocket(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("api: websocket upgrade failed", "id", c.ID(), "err", err)
		return
	}
	s := newWSSurface(conn)
	defer s.Close()
	defer c.Detach(s)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subID := uuid.New().String()
	evs := h.events.Subscribe(subID, c.ID())
	defer h.events.Unsubscribe(subID)

	if err := c.Resolve(ctx, s); err != nil {
		slog.Warn("api: cannot attach surface", "id", c.ID(), "err", err)
		return
	}

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-evs:
				if !ok {
					return
				}
				if err := s.Send(models.Outbound{Command: "event", Event: &ev}); err != nil {
					cancel()
					return
				}
			case <-ticker.C:
				if err := s.ping(); err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	conn.SetReadLimit(wsMaxMessage)
	limiter := h.messageLimiter()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("api: websocket closed", "id", c.ID(), "err", err)
			}
			return
		}
		if !limiter.Allow() {
			slog.Debug("api: dropping surface message over rate limit", "id", c.ID())
			continue
		}
		msg, err := models.DecodeMessage(data)
		if err != nil {
			slog.Debug("api: ignoring surface message", "id", c.ID(), "err", err)
			continue
		}
		if err := c.HandleMessage(ctx, s, msg); err != nil {
			if errors.Is(err, models.ErrDisposed) || ctx.Err() != nil {
				return
			}
			slog.Warn("api: surface message failed", "id", c.ID(), "err", err)
		}
	}
}
