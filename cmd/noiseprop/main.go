package main

import (
	"log/slog"
	"os"

	perrors "noiseprop/internal/errors"
	"noiseprop/internal/slogutil"
)

// Exit codes beyond the generic failure.
const (
	exitFailure = 1
	exitInput   = 2
	exitStorage = 3
	exitRange   = 4
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(slogutil.NewLogger(os.Stderr, slog.LevelError), err))
	}
}

// reportError logs err with its code and suggested fixes and returns the
// process exit code.
func reportError(logger *slog.Logger, err error) int {
	code := perrors.CodeOf(err)
	attrs := []any{"error", err.Error(), "code", string(code)}
	for _, fix := range perrors.GetSuggestedFixes(code) {
		if fix.Command != "" {
			attrs = append(attrs, "fix", fix.Command)
		} else {
			attrs = append(attrs, "fix", fix.Description)
		}
	}
	logger.Error("Command execution failed", attrs...)
	return exitCode(err)
}

// exitCode maps the codes in err's chain to an exit code. Input errors win
// over storage errors, which win over failed receiver ranges.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case perrors.IsCode(err, perrors.InvalidConfig),
		perrors.IsCode(err, perrors.InvalidScene),
		perrors.IsCode(err, perrors.UnsupportedGeometry),
		perrors.IsCode(err, perrors.BandMismatch):
		return exitInput
	case perrors.IsCode(err, perrors.StorageFailed):
		return exitStorage
	case perrors.IsCode(err, perrors.RangeFailed):
		return exitRange
	default:
		return exitFailure
	}
}
