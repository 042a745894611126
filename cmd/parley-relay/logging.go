// ABOUTME: Logger setup for the relay server
// ABOUTME: Text format renders component-tagged console lines, json uses slog's handler

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/parleyhq/parley/internal/config"
)

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(newConsoleHandler(os.Stdout, level))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// consoleHandler renders one line per record: timestamp, level, the
// component in brackets, the message, then key=value attrs. Keys added
// under a group are prefixed with the group path.
type consoleHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Level
	attrs []slog.Attr
	group string
}

func newConsoleHandler(out io.Writer, level slog.Level) *consoleHandler {
	return &consoleHandler{
		mu:    &sync.Mutex{},
		out:   out,
		level: level,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	var line strings.Builder
	line.WriteString(color.HiBlackString(r.Time.Format(time.DateTime)))
	line.WriteByte(' ')
	line.WriteString(levelTag(r.Level))
	line.WriteByte(' ')

	// Pull the component attr up front so related lines scan together.
	rest := attrs[:0]
	for _, a := range attrs {
		if a.Key == "component" && h.group == "" {
			line.WriteString(color.BlueString("[" + a.Value.String() + "] "))
			continue
		}
		rest = append(rest, a)
	}

	line.WriteString(r.Message)

	for _, a := range rest {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		line.WriteString(color.HiBlackString(" " + key + "="))
		line.WriteString(a.Value.String())
	}
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

func levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint("ERROR")
	case level >= slog.LevelWarn:
		return color.YellowString(" WARN")
	case level >= slog.LevelInfo:
		return color.GreenString(" INFO")
	default:
		return color.MagentaString("DEBUG")
	}
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	clone.attrs = append(clone.attrs, attrs...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group != "" {
		clone.group = h.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}
