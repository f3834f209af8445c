package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	2026-01-02 15:04:05 INFO [lifecycle] Episode #7 (downloading) run=1a2b3c4d – message key=value
//
// Debug records put their fields on indented lines below the header.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// header holds the fields promoted out of the key=value tail.
type header struct {
	component string
	episode   string
	stage     string
	run       string
}

func (hd *header) take(f kv) bool {
	var slot *string
	switch f.key {
	case FieldComponent:
		slot = &hd.component
	case FieldEpisodeID:
		slot = &hd.episode
	case FieldStage:
		slot = &hd.stage
	case FieldRunID:
		slot = &hd.run
	default:
		return false
	}
	if *slot == "" {
		*slot = strings.TrimSpace(plainText(f.value))
	}
	return true
}

func (hd header) subject() string {
	switch {
	case hd.episode != "" && hd.stage != "":
		return "Episode #" + hd.episode + " (" + hd.stage + ")"
	case hd.episode != "":
		return "Episode #" + hd.episode
	default:
		return hd.stage
	}
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	fields := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		flattenAttr(&fields, h.groups, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		flattenAttr(&fields, h.groups, a)
		return true
	})

	var hd header
	tail := fields[:0]
	for _, f := range fields {
		if !hd.take(f) {
			tail = append(tail, f)
		}
	}
	tail = lastValueWins(tail)

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(160 + 32*len(tail))
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if hd.component != "" {
		buf.WriteString(" [" + hd.component + "]")
	}
	if s := hd.subject(); s != "" {
		buf.WriteString(" " + s)
	}
	if hd.run != "" {
		buf.WriteString(" run=" + shortRunID(hd.run))
	}
	buf.WriteString(" – ")
	buf.WriteString(msg)
	if src := record.Source(); h.addSource && src != nil {
		buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
	}

	if record.Level < slog.LevelInfo {
		buf.WriteByte('\n')
		for _, f := range tail {
			buf.WriteString("    " + f.key + ": " + formatValue(f.value) + "\n")
		}
	} else {
		for _, f := range tail {
			buf.WriteString(" " + f.key + "=" + formatValue(f.value))
		}
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.derive()
	c.attrs = append(c.attrs, attrs...)
	return c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	c := h.derive()
	c.groups = append(c.groups, name)
	return c
}

func (h *consoleHandler) derive() *consoleHandler {
	return &consoleHandler{
		mu:        h.mu,
		out:       h.out,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

type kv struct {
	key   string
	value slog.Value
}

// lastValueWins collapses repeated keys in place of their first occurrence.
func lastValueWins(fields []kv) []kv {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := make([]kv, 0, len(fields))
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			flattenAttr(dst, next, a)
		}
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".")
		if attr.Key != "" {
			key += "." + attr.Key
		}
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
