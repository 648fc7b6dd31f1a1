package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"noiseprop/internal/config"
)

var (
	configFormat string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage noiseprop configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, the --config file and NOISEPROP_*
environment overrides are applied.

Examples:
  noiseprop config show                 # Human-readable, modified values flagged
  noiseprop config show --format json   # JSON, as written by config init
  noiseprop config show --format toml   # TOML`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the default configuration to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigInit,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (human, json, toml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	switch configFormat {
	case "json":
		out, err := formatJSON(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, out)
	case "toml":
		data, err := cfg.MarshalTOML()
		if err != nil {
			return fmt.Errorf("failed to marshal TOML: %w", err)
		}
		fmt.Fprint(stdout, string(data))
	case "human":
		outputConfigHuman(stdout, cfg)
	default:
		return fmt.Errorf("unsupported format: %s", configFormat)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(args[0]); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", args[0])
	}
	if err := config.DefaultConfig().Save(args[0]); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(stdout, "Wrote default configuration to %s\n", args[0])
	return nil
}

func outputConfigHuman(w io.Writer, cfg *config.Config) {
	d := config.DefaultConfig()

	fmt.Fprintln(w, "noiseprop Configuration")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	if configPath == "" {
		fmt.Fprintln(w, "Source: defaults (no --config given)")
	} else {
		fmt.Fprintf(w, "Source: %s\n", configPath)
	}

	fmt.Fprintln(w, "\npropagation:")
	p, dp := cfg.Propagation, d.Propagation
	printConfigSection(w, "  maxSourceDistance", p.MaxSourceDistance, dp.MaxSourceDistance)
	printConfigSection(w, "  maxReflectionDistance", p.MaxReflectionDistance, dp.MaxReflectionDistance)
	printConfigSection(w, "  reflectionOrder", p.ReflectionOrder, dp.ReflectionOrder)
	printConfigSection(w, "  verticalDiffraction", p.VerticalDiffraction, dp.VerticalDiffraction)
	printConfigSection(w, "  horizontalDiffraction", p.HorizontalDiffraction, dp.HorizontalDiffraction)
	printConfigSection(w, "  maximumError", p.MaximumError, dp.MaximumError)
	printConfigSection(w, "  threadCount", p.ThreadCount, dp.ThreadCount)
	printConfigSection(w, "  keepPaths", p.KeepPaths, dp.KeepPaths)
	printConfigSection(w, "  boundMarginDb", p.BoundMarginDb, dp.BoundMarginDb)

	fmt.Fprintln(w, "\ngeometry:")
	printConfigSection(w, "  epsilon", cfg.Geometry.Epsilon, d.Geometry.Epsilon)
	printConfigSection(w, "  maxHullRatio", cfg.Geometry.MaxHullRatio, d.Geometry.MaxHullRatio)

	fmt.Fprintln(w, "\nmeteo:")
	m, dm := cfg.Meteo, d.Meteo
	printConfigSection(w, "  temperature", m.Temperature, dm.Temperature)
	printConfigSection(w, "  humidity", m.Humidity, dm.Humidity)
	printConfigSection(w, "  pressure", m.Pressure, dm.Pressure)
	printConfigSection(w, "  windRose", m.WindRose, dm.WindRose)
	printConfigSection(w, "  groundFactorSource", m.GroundFactorSource, dm.GroundFactorSource)
	printConfigSection(w, "  gDisc", m.GDisc, dm.GDisc)
	printConfigSection(w, "  prime2520", m.Prime2520, dm.Prime2520)

	fmt.Fprintln(w, "\nbands:")
	printConfigSection(w, "  nominal", cfg.Bands.Nominal, d.Bands.Nominal)

	fmt.Fprintln(w, "\nstorage:")
	printConfigSection(w, "  path", cfg.Storage.Path, d.Storage.Path)
	printConfigSection(w, "  storePaths", cfg.Storage.StorePaths, d.Storage.StorePaths)

	fmt.Fprintln(w, "\nlogging:")
	printConfigSection(w, "  format", cfg.Logging.Format, d.Logging.Format)
	printConfigSection(w, "  level", cfg.Logging.Level, d.Logging.Level)
	if cfg.Logging.File != "" {
		fmt.Fprintf(w, "  file: %s\n", cfg.Logging.File)
	}
}

func printConfigSection(w io.Writer, name string, value, defaultValue interface{}) {
	modified := ""
	if fmt.Sprint(value) != fmt.Sprint(defaultValue) {
		modified = fmt.Sprintf(" (default: %v)", defaultValue)
	}
	fmt.Fprintf(w, "%s: %v%s\n", name, value, modified)
}
