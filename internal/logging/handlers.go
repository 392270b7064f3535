package logging

import (
	"context"
	"errors"
	"log/slog"
)

// AttrFunc is sampled once per record, e.g. for the current control tick.
type AttrFunc func() []slog.Attr

// WithDynamicAttrs appends fn's attributes to every record handled by h.
func WithDynamicAttrs(h slog.Handler, fn AttrFunc) slog.Handler {
	if fn == nil {
		return h
	}
	return &dynamicHandler{Handler: h, fn: fn}
}

type dynamicHandler struct {
	slog.Handler
	fn AttrFunc
}

func (h *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.fn()...)
	return h.Handler.Handle(ctx, r)
}

func (h *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dynamicHandler{Handler: h.Handler.WithAttrs(attrs), fn: h.fn}
}

func (h *dynamicHandler) WithGroup(name string) slog.Handler {
	return &dynamicHandler{Handler: h.Handler.WithGroup(name), fn: h.fn}
}

// Tee sends each record to every sink that accepts its level. Nil sinks are
// skipped; a single sink is returned as is.
func Tee(sinks ...slog.Handler) slog.Handler {
	var t tee
	for _, s := range sinks {
		if s != nil {
			t = append(t, s)
		}
	}
	if len(t) == 1 {
		return t[0]
	}
	return t
}

type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range t {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle reports every failing sink but never stops at the first one.
func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range t {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (t tee) WithGroup(name string) slog.Handler {
	if name == "" {
		return t
	}
	return t.each(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (t tee) each(fn func(slog.Handler) slog.Handler) tee {
	out := make(tee, len(t))
	for i, s := range t {
		out[i] = fn(s)
	}
	return out
}
