package monitor

import (
	"context"
	"log/slog"
	"time"
)

// Handler is a slog.Handler that copies every record into the monitor's
// log ring and then forwards it to the wrapped handler.
type Handler struct {
	next slog.Handler
	mon  *Monitor
}

// NewHandler wraps next so log output also feeds the monitor.
func NewHandler(next slog.Handler, mon *Monitor) *Handler {
	return &Handler{next: next, mon: mon}
}

// Enabled defers to the wrapped handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle records the line and forwards.
func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	h.mon.AddLog(LogLine{
		Time:    rec.Time.Format(time.TimeOnly),
		Level:   rec.Level.String(),
		Message: rec.Message,
	})
	return h.next.Handle(ctx, rec)
}

// WithAttrs wraps the derived handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs), mon: h.mon}
}

// WithGroup wraps the derived handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), mon: h.mon}
}
