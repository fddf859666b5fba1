package dblog

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/YelovSK/Damebooru-sub002/internal/models"
)

// Handler returns a slog.Handler feeding this capture pipeline. Records
// below min are ignored. Wrap it with NewTee beside a console handler.
func (c *Capture) Handler(min slog.Level) slog.Handler {
	return &captureHandler{capture: c, min: min}
}

// captureHandler converts records to app_logs rows: the component
// attribute becomes the category, an err/error attribute becomes the
// exception, everything else lands in properties_json.
type captureHandler struct {
	capture *Capture
	min     slog.Level
	attrs   []slog.Attr // keys pre-qualified with their group prefix
	prefix  string
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && !suppressed(ctx)
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	if suppressed(ctx) {
		return nil
	}
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	e := entry{row: models.AppLogEntry{
		Timestamp: ts.UTC(),
		Level:     r.Level.String(),
		Message:   r.Message,
	}}
	for _, a := range h.attrs {
		e.consume(a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		e.consume(a, h.prefix)
		return true
	})
	if len(e.props) > 0 {
		if data, err := json.Marshal(e.props); err == nil {
			s := string(data)
			e.row.PropertiesJSON = &s
		}
	}
	h.capture.enqueue(e.row)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		a.Key = joinKey(h.prefix, a.Key)
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = joinKey(h.prefix, name)
	return &nh
}

type entry struct {
	row   models.AppLogEntry
	props map[string]any
}

// consume routes one attribute into the row, flattening groups with
// dotted keys. component and err/error are special only at the top level.
func (e *entry) consume(a slog.Attr, prefix string) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = joinKey(prefix, a.Key)
		}
		for _, ga := range v.Group() {
			e.consume(ga, p)
		}
		return
	}
	key := joinKey(prefix, a.Key)
	switch key {
	case "component":
		e.row.Category = v.String()
	case "err", "error":
		s := exceptionString(v)
		e.row.Exception = &s
	default:
		if e.props == nil {
			e.props = map[string]any{}
		}
		e.props[key] = v.Any()
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func exceptionString(v slog.Value) string {
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.String()
}

// ──────────────────── Fan-out ────────────────────

type tee struct {
	handlers []slog.Handler
}

// NewTee fans every record out to each handler that accepts it.
func NewTee(handlers ...slog.Handler) slog.Handler {
	return &tee{handlers: handlers}
}

func (t *tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *tee) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithAttrs(slices.Clone(attrs))
	}
	return &tee{handlers: hs}
}

func (t *tee) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &tee{handlers: hs}
}
