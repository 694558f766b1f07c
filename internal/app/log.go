package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/michal-palko/smart-claimer/internal/claimer"
)

// LogFileName is the log file written inside log_dir.
const LogFileName = "claimer.log"

// claimerHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<component>\t<message>\t<key=value ...>
type claimerHandler struct {
	w         io.Writer
	component string
	minLevel  slog.Level
	attrs     []slog.Attr
}

func (h *claimerHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *claimerHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.component, r.Message)
	if err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *claimerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &claimerHandler{
		w:         h.w,
		component: h.component,
		minLevel:  h.minLevel,
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *claimerHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to both logDir/claimer.log and stderr.
// Debug records only reach the file when verbose is set.
// It returns the slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir, component string, verbose bool) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := &claimerHandler{w: io.MultiWriter(f, os.Stderr), component: component, minLevel: level}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the claimer.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

var _ claimer.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
