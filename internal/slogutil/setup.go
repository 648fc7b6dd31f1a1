package slogutil

import (
	"io"
	"log/slog"

	"noiseprop/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds the run logger from the logging section. Records go to console
// and, when cfg.File is set, to a rotating file as well. A non-nil override
// takes precedence over cfg.Level. The returned closer releases the file.
func Setup(cfg config.LoggingConfig, console io.Writer, override *slog.Level) (*slog.Logger, io.Closer, error) {
	level := LevelFromString(cfg.Level)
	if override != nil {
		level = *override
	}
	opts := &slog.HandlerOptions{Level: level}
	handler := func(w io.Writer) slog.Handler {
		if cfg.Format == "json" {
			return slog.NewJSONHandler(w, opts)
		}
		return NewLineHandler(w, opts)
	}

	if cfg.File == "" {
		return slog.New(handler(console)), nopCloser{}, nil
	}
	rf, err := OpenRotatingFile(cfg.File, ParseSize(cfg.MaxSize), cfg.MaxBackups)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(NewTeeHandler(handler(console), handler(rf))), rf, nil
}
