// Package runlog keeps every log record of a booking run and renders them
// into a single HTML document that is shared by mail.
package runlog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/slotbooker/internal/artifacts"
)

// LevelSuccess sits between INFO and WARN.
const LevelSuccess = slog.Level(2)

// Success logs msg at LevelSuccess.
func Success(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logger.Log(ctx, LevelSuccess, msg, args...)
}

// LevelName renders LevelSuccess as SUCCESS and the others as slog does.
func LevelName(l slog.Level) string {
	if l == LevelSuccess {
		return "SUCCESS"
	}
	return l.String()
}

// ReplaceLevel is a slog.HandlerOptions.ReplaceAttr hook for LevelSuccess.
func ReplaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if l, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(LevelName(l))
		}
	}
	return a
}

// Entry is one captured record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   []slog.Attr
}

type store struct {
	mu      sync.Mutex
	entries []Entry
}

// Recorder is a slog.Handler that captures records and forwards them to an
// inner handler.
type Recorder struct {
	inner  slog.Handler
	store  *store
	attrs  []slog.Attr
	group  string
	Store  artifacts.Store
	Prefix string
}

// New returns a recorder forwarding to inner (may be nil) and storing
// rendered artifacts in st.
func New(inner slog.Handler, st artifacts.Store) *Recorder {
	return &Recorder{inner: inner, store: &store{}, Store: st, Prefix: "slotbooker"}
}

func (r *Recorder) Enabled(ctx context.Context, l slog.Level) bool {
	// everything is kept for the artifact regardless of the console level
	return true
}

func (r *Recorder) Handle(ctx context.Context, rec slog.Record) error {
	e := Entry{Time: rec.Time, Level: rec.Level, Message: rec.Message}
	e.Attrs = append(e.Attrs, r.attrs...)
	rec.Attrs(func(a slog.Attr) bool {
		if r.group != "" {
			a.Key = r.group + "." + a.Key
		}
		e.Attrs = append(e.Attrs, a)
		return true
	})

	r.store.mu.Lock()
	r.store.entries = append(r.store.entries, e)
	r.store.mu.Unlock()

	if r.inner != nil && r.inner.Enabled(ctx, rec.Level) {
		return r.inner.Handle(ctx, rec)
	}
	return nil
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *r
	c.attrs = append(append([]slog.Attr{}, r.attrs...), prefixed(r.group, attrs)...)
	if r.inner != nil {
		c.inner = r.inner.WithAttrs(attrs)
	}
	return &c
}

func (r *Recorder) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	c := *r
	if r.group != "" {
		c.group = r.group + "." + name
	} else {
		c.group = name
	}
	if r.inner != nil {
		c.inner = r.inner.WithGroup(name)
	}
	return &c
}

func prefixed(group string, attrs []slog.Attr) []slog.Attr {
	if group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		a.Key = group + "." + a.Key
		out[i] = a
	}
	return out
}

// Entries returns a copy of what has been captured so far.
func (r *Recorder) Entries() []Entry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]Entry(nil), r.store.entries...)
}

// Render writes the captured records as one HTML document and stores it.
func (r *Recorder) Render(ctx context.Context) (artifacts.Artifact, error) {
	entries := r.Entries()
	var buf bytes.Buffer
	if err := page.Execute(&buf, pageData{Entries: toRows(entries)}); err != nil {
		return artifacts.Artifact{}, fmt.Errorf("render run log: %w", err)
	}

	name := fmt.Sprintf("%s-%s.html", r.Prefix, time.Now().UTC().Format("20060102T150405Z"))
	a := artifacts.Artifact{Name: name, ContentType: "text/html; charset=utf-8", Content: buf.Bytes()}
	if r.Store == nil {
		return a, nil
	}
	loc, err := r.Store.Put(ctx, a.Name, a.ContentType, a.Content)
	if err != nil {
		return a, fmt.Errorf("store run log: %w", err)
	}
	a.Location = loc
	return a, nil
}
