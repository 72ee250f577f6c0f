package controller

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/micro-nova/slidered/internal/models"
)

// HandleMessage applies one surface message. from is the surface that sent
// it and may be nil for messages arriving over plain HTTP.
//
// A value that does not parse as an integer is ignored without error: the
// control only ever emits values within its bounds.
func (c *Controller) HandleMessage(ctx context.Context, from Surface, msg models.Message) error {
	switch m := msg.(type) {
	case models.ValueChanged:
		return c.valueChanged(ctx, m)
	case models.Ready:
		if from == nil {
			return nil
		}
		snap, err := c.doc.Snapshot(ctx)
		if err != nil {
			return err
		}
		return from.Send(renderMessage(snap.Params))
	}
	return models.ErrBadRequest("unsupported message")
}

func (c *Controller) valueChanged(ctx context.Context, m models.ValueChanged) error {
	v, ok := ParseValue(m.Value)
	if !ok {
		slog.Debug("controller: ignoring unparseable value", "id", c.id, "key", m.Key, "value", m.Value)
		return nil
	}
	changed, dirty, err := c.doc.SetValue(ctx, m.Key, float64(v))
	if err != nil {
		return err
	}
	if changed {
		fv := float64(v)
		c.publish(models.Event{Kind: models.EventEdit, Dirty: dirty, Key: m.Key, Value: &fv})
	}
	return nil
}

// ParseValue reads the integer a range control posted. Like the browser's
// integer parse it accepts a leading sign and digit run and ignores what
// follows ("55.7" is 55). The result is clamped to the control's bounds.
func ParseValue(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Out of int range; the sign decides which bound it clamps to.
		if s[0] == '-' {
			return models.ParamMin, true
		}
		return models.ParamMax, true
	}
	return clamp(n), true
}

func clamp(n int) int {
	if n < models.ParamMin {
		return models.ParamMin
	}
	if n > models.ParamMax {
		return models.ParamMax
	}
	return n
}
