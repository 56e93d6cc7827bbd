package main

import (
	"context"
	"log/slog"
)

// levelHandler drops records below minLevel before they reach the OTel bridge.
type levelHandler struct {
	minLevel slog.Leveler
	next     slog.Handler
}

func newLevelHandler(minLevel slog.Leveler, next slog.Handler) *levelHandler {
	return &levelHandler{minLevel: minLevel, next: next}
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.minLevel.Level() && h.next.Enabled(ctx, l)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error { return h.next.Handle(ctx, r) }

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newLevelHandler(h.minLevel, h.next.WithAttrs(attrs))
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return newLevelHandler(h.minLevel, h.next.WithGroup(name))
}
