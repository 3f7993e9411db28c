package diag

import (
	"context"
	"io"
	"log/slog"
)

// Handler is a slog.Handler that writes human-readable text via an
// underlying TextHandler and also appends a structured Event to a Ring,
// so the same log call feeds both the console and the machine-readable
// boot report.
type Handler struct {
	text  slog.Handler
	ring  *Ring
	attrs []slog.Attr
	group string
}

// NewHandler creates a Handler writing text to w and structured Events to
// ring. ring may be nil to disable structured capture.
func NewHandler(w io.Writer, ring *Ring, opts *slog.HandlerOptions) *Handler {
	return &Handler{
		text: slog.NewTextHandler(w, opts),
		ring: ring,
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.text.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	err := h.text.Handle(ctx, r)
	if h.ring != nil {
		attr := make(map[string]any, r.NumAttrs()+len(h.attrs))
		for _, a := range h.attrs {
			attr[a.Key] = a.Value.Any()
		}
		r.Attrs(func(a slog.Attr) bool {
			attr[a.Key] = a.Value.Any()
			return true
		})
		name := r.Message
		if h.group != "" {
			name = h.group + ":" + name
		}
		h.ring.Push(Event{Time: r.Time, Name: name, Attr: attr})
	}
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &Handler{
		text:  h.text.WithAttrs(attrs),
		ring:  h.ring,
		attrs: newAttrs,
		group: h.group,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &Handler{
		text:  h.text.WithGroup(name),
		ring:  h.ring,
		attrs: h.attrs,
		group: group,
	}
}
