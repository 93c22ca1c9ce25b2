package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// moduleHandler gates records by a per-module level and forwards them to the
// current outputs, replaying WithAttrs/WithGroup calls when the outputs are
// replaced by Initialize.
type moduleHandler struct {
	level slog.Leveler
	ops   []func(slog.Handler) slog.Handler

	derived atomic.Pointer[outputs]
}

func newModuleHandler(level slog.Leveler) *moduleHandler {
	return &moduleHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *moduleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *moduleHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *moduleHandler) target() slog.Handler {
	base := current.Load()
	if d := h.derived.Load(); d != nil && d.gen == base.gen {
		return d.handler
	}

	handler := base.handler
	for _, op := range h.ops {
		handler = op(handler)
	}
	h.derived.Store(&outputs{gen: base.gen, handler: handler})
	return handler
}

func (h *moduleHandler) with(op func(slog.Handler) slog.Handler) *moduleHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &moduleHandler{level: h.level, ops: append(ops, op)}
}

// WithAttrs implements slog.Handler.
func (h *moduleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler.
func (h *moduleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}
