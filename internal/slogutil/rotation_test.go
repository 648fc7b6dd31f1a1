package slogutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"noiseprop/internal/config"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"invalid", 0},
		{"-5MB", 0},
		{"100", 100},
		{"100b", 100},
		{"1KB", 1024},
		{"10 mb", 10 << 20},
		{"1.5MB", int64(1.5 * (1 << 20))},
		{"2GB", 2 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseSize(tt.in); got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestRotatingFile_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	rf, err := OpenRotatingFile(path, 50, 2)
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}
	defer rf.Close()

	line := []byte("0123456789012345678901234567890\n") // 32 bytes
	for i := 0; i < 4; i++ {
		if _, err := rf.Write(line); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s missing: %v", filepath.Base(p), err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("only two backups should be kept")
	}
}

func TestRotatingFile_NoLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	rf, err := OpenRotatingFile(path, 0, 3)
	if err != nil {
		t.Fatalf("OpenRotatingFile failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		_, _ = rf.Write([]byte("line\n"))
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "\n"); n != 10 {
		t.Errorf("got %d lines, want 10", n)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("no backup expected without a size limit")
	}
}

func TestSetup(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		var console bytes.Buffer
		logger, closer, err := Setup(config.LoggingConfig{Format: "human", Level: "warn"}, &console, nil)
		if err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
		defer closer.Close()
		logger.Info("hidden")
		logger.Warn("shown")
		if strings.Contains(console.String(), "hidden") || !strings.Contains(console.String(), "[warn] shown") {
			t.Errorf("console = %q", console.String())
		}
	})

	t.Run("override level", func(t *testing.T) {
		var console bytes.Buffer
		debug := slog.LevelDebug
		logger, _, err := Setup(config.LoggingConfig{Format: "human", Level: "error"}, &console, &debug)
		if err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
		logger.Debug("detail")
		if !strings.Contains(console.String(), "detail") {
			t.Errorf("console = %q", console.String())
		}
	})

	t.Run("json with file", func(t *testing.T) {
		var console bytes.Buffer
		file := filepath.Join(t.TempDir(), "run.log")
		logger, closer, err := Setup(config.LoggingConfig{Format: "json", Level: "info", File: file, MaxSize: "1MB"}, &console, nil)
		if err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
		logger.Info("finished", "receivers", 3)
		if err := closer.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		var rec map[string]any
		if err := json.Unmarshal(console.Bytes(), &rec); err != nil {
			t.Fatalf("console output is not JSON: %v", err)
		}
		if rec["msg"] != "finished" {
			t.Errorf("msg = %v, want finished", rec["msg"])
		}
		data, err := os.ReadFile(file)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"receivers":3`) {
			t.Errorf("file = %q", data)
		}
	})
}
