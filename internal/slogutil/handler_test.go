package slogutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLineHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Receiver done", "receiver", 12, "level", 54.321, "took", 1500*time.Millisecond)

	out := buf.String()
	for _, want := range []string{"[info] Receiver done | ", "receiver=12", "level=54.321", "took=1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("output should end with a newline")
	}
}

func TestLineHandler_BandArrays(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelDebug).Debug("levels", "att", []float64{-40.123, -52, -61.5})

	if want := "att=[-40.12 -52.00 -61.50]"; !strings.Contains(buf.String(), want) {
		t.Errorf("output %q missing %q", buf.String(), want)
	}
}

func TestLineHandler_Levels(t *testing.T) {
	tests := []struct {
		log  func(*slog.Logger)
		want string
	}{
		{func(l *slog.Logger) { l.Debug("x") }, "[debug]"},
		{func(l *slog.Logger) { l.Info("x") }, "[info]"},
		{func(l *slog.Logger) { l.Warn("x") }, "[warn]"},
		{func(l *slog.Logger) { l.Error("x") }, "[error]"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewLogger(&buf, slog.LevelDebug))
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q missing %s", buf.String(), tt.want)
			}
		})
	}
}

func TestLineHandler_Filtering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing")
	}
}

func TestLineHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("run", "abc").WithGroup("range")
	logger.Info("started", "start", 0, "end", 25)

	out := buf.String()
	for _, want := range []string{"run=abc", "range.start=0", "range.end=25"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLineHandler_NoAttrs(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Info("plain")
	if strings.Contains(buf.String(), "|") {
		t.Errorf("output %q should have no attribute separator", buf.String())
	}
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{3, true, LevelSilent},
	}
	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.want {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.want)
		}
	}
}

func TestTeeHandler(t *testing.T) {
	var info, debug bytes.Buffer
	logger := slog.New(NewTeeHandler(
		NewLineHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		NewLineHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	))
	logger.Debug("detail")
	logger.Info("summary")

	if strings.Contains(info.String(), "detail") || !strings.Contains(info.String(), "summary") {
		t.Errorf("info sink = %q", info.String())
	}
	if !strings.Contains(debug.String(), "detail") || !strings.Contains(debug.String(), "summary") {
		t.Errorf("debug sink = %q", debug.String())
	}
}
