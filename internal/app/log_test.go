package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestClaimerHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name      string
		component string
		level     slog.Level
		message   string
		attrs     []slog.Attr
		want      string
	}{
		{
			name:      "basic info message",
			component: "serve",
			level:     slog.LevelInfo,
			message:   "entry created",
			want:      "2024-06-15T14:30:45Z\tINFO\tserve\tentry created\n",
		},
		{
			name:      "warn level",
			component: "import",
			level:     slog.LevelWarn,
			message:   "metaapp unavailable",
			want:      "2024-06-15T14:30:45Z\tWARN\timport\tmetaapp unavailable\n",
		},
		{
			name:      "with record attrs",
			component: "serve",
			level:     slog.LevelInfo,
			message:   "submitted",
			attrs:     []slog.Attr{slog.Int64("id", 7), slog.String("autor", "jnovak")},
			want:      "2024-06-15T14:30:45Z\tINFO\tserve\tsubmitted\tid=7\tautor=jnovak\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &claimerHandler{w: &buf, component: tt.component}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestClaimerHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &claimerHandler{w: &buf, component: "serve", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("request_id", "r-1")}).(*claimerHandler)
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "request", 0)
	r.AddAttrs(slog.Int("status", 200))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{"a=1", "request_id=r-1", "status=200"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %s", got, want)
		}
	}
}

func TestClaimerHandler_Enabled(t *testing.T) {
	h := &claimerHandler{minLevel: slog.LevelInfo}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(DEBUG) = true with INFO minimum")
	}
	for _, level := range []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test", false)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello", "k", "v")
	logger.Debug("hidden")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest\thello\tk=v") {
		t.Errorf("log file = %q", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug record written without verbose")
	}
}
