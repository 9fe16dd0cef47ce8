package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func levelStyle(l slog.Level) lipgloss.Style {
	switch {
	case l >= slog.LevelError:
		return errorStyle
	case l >= slog.LevelWarn:
		return warnStyle
	case l >= slog.LevelInfo:
		return infoStyle
	}
	return debugStyle
}

// ConsoleHandler is a slog.Handler for terminals: one line per record,
// level colored, attributes as key=value sorted by key. Grouped keys are
// joined with dots.
type ConsoleHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Leveler

	// bound holds attrs from WithAttrs, already keyed by their groups
	bound  map[string]string
	groups []string
}

func NewConsoleHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &ConsoleHandler{w: w, mu: &sync.Mutex{}, level: level}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}

	fields := make(map[string]string, len(h.bound)+r.NumAttrs())
	for k, v := range h.bound {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(fields, h.groups, a)
		return true
	})
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(timeStyle.Render(when.Format("15:04:05.000")))
	sb.WriteByte(' ')
	sb.WriteString(levelStyle(r.Level).Render(fmt.Sprintf("%-5s", r.Level.String())))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)
	for _, k := range keys {
		sb.WriteByte(' ')
		sb.WriteString(keyStyle.Render(k + "="))
		sb.WriteString(fields[k])
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.bound = make(map[string]string, len(h.bound)+len(attrs))
	for k, v := range h.bound {
		clone.bound[k] = v
	}
	for _, a := range attrs {
		collect(clone.bound, h.groups, a)
	}
	return &clone
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func collect(dst map[string]string, groups []string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}
	if v.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range v.Group() {
			collect(dst, sub, ga)
		}
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + a.Key
	}
	s := v.String()
	if v.Kind() == slog.KindTime {
		s = v.Time().Format(time.RFC3339)
	}
	if strings.ContainsAny(s, " \t\"=") {
		s = fmt.Sprintf("%q", s)
	}
	dst[key] = s
}
