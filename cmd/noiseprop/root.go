package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"noiseprop/internal/config"
	perrors "noiseprop/internal/errors"
	"noiseprop/internal/slogutil"
	"noiseprop/internal/version"
)

var (
	// configPath is the --config flag value
	configPath string
	verbosity  int
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "noiseprop",
	Short: "noiseprop - CNOSSOS-EU sound propagation",
	Long: `noiseprop computes the per-band attenuation between noise sources and receivers
following the CNOSSOS-EU propagation model: direct field, ground effect, reflections
on building facades and diffraction over roofs and around vertical edges.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("noiseprop version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Configuration file (json, yaml or toml); defaults apply when omitted")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, perrors.New(perrors.InvalidConfig, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. Verbosity flags, when given, override
// the configured level.
func newLogger(cmd *cobra.Command, cfg *config.Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	var override *slog.Level
	if quiet || cmd.Flags().Changed("verbose") {
		level := slogutil.LevelFromVerbosity(verbosity, quiet)
		override = &level
	}
	logger, closer, err := slogutil.Setup(cfg.Logging, console, override)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, closer, nil
}

// stdout is where command results go; tests swap it.
var stdout io.Writer = os.Stdout
