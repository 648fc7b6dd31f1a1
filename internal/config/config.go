package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"noiseprop/internal/acoustics"
	"noiseprop/internal/attenuation"
	"noiseprop/internal/path"
	"noiseprop/internal/scheduler"
	"noiseprop/internal/source"
)

// CurrentVersion is the config schema version.
const CurrentVersion = 1

// Config represents the complete run configuration
type Config struct {
	Version int `json:"version" mapstructure:"version" toml:"version"`

	Propagation PropagationConfig `json:"propagation" mapstructure:"propagation" toml:"propagation"`
	Geometry    GeometryConfig    `json:"geometry" mapstructure:"geometry" toml:"geometry"`
	Meteo       MeteoConfig       `json:"meteo" mapstructure:"meteo" toml:"meteo"`
	Bands       BandsConfig       `json:"bands" mapstructure:"bands" toml:"bands"`
	Storage     StorageConfig     `json:"storage" mapstructure:"storage" toml:"storage"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging" toml:"logging"`
}

// PropagationConfig contains path search and scheduling settings
type PropagationConfig struct {
	MaxSourceDistance     float64 `json:"maxSourceDistance" mapstructure:"maxSourceDistance" toml:"maxSourceDistance"`
	MaxReflectionDistance float64 `json:"maxReflectionDistance" mapstructure:"maxReflectionDistance" toml:"maxReflectionDistance"`
	ReflectionOrder       int     `json:"reflectionOrder" mapstructure:"reflectionOrder" toml:"reflectionOrder"`
	VerticalDiffraction   bool    `json:"verticalDiffraction" mapstructure:"verticalDiffraction" toml:"verticalDiffraction"`
	HorizontalDiffraction bool    `json:"horizontalDiffraction" mapstructure:"horizontalDiffraction" toml:"horizontalDiffraction"`
	// MaximumError is the stop rule budget in dB, 0 to evaluate every source.
	MaximumError  float64 `json:"maximumError" mapstructure:"maximumError" toml:"maximumError"`
	ThreadCount   int     `json:"threadCount" mapstructure:"threadCount" toml:"threadCount"`
	KeepPaths     bool    `json:"keepPaths" mapstructure:"keepPaths" toml:"keepPaths"`
	// BoundMarginDb is the gain per path added to the optimistic source bound.
	BoundMarginDb float64 `json:"boundMarginDb" mapstructure:"boundMarginDb" toml:"boundMarginDb"`
}

// GeometryConfig contains numeric tolerances of the path builder
type GeometryConfig struct {
	Epsilon      float64 `json:"epsilon" mapstructure:"epsilon" toml:"epsilon"`
	MaxHullRatio float64 `json:"maxHullRatio" mapstructure:"maxHullRatio" toml:"maxHullRatio"`
}

// MeteoConfig contains atmosphere and ground settings
type MeteoConfig struct {
	Temperature        float64   `json:"temperature" mapstructure:"temperature" toml:"temperature"`
	Humidity           float64   `json:"humidity" mapstructure:"humidity" toml:"humidity"`
	Pressure           float64   `json:"pressure" mapstructure:"pressure" toml:"pressure"`
	WindRose           []float64 `json:"windRose" mapstructure:"windRose" toml:"windRose"`
	GroundFactorSource float64   `json:"groundFactorSource" mapstructure:"groundFactorSource" toml:"groundFactorSource"`
	GDisc              bool      `json:"gDisc" mapstructure:"gDisc" toml:"gDisc"`
	Prime2520          bool      `json:"prime2520" mapstructure:"prime2520" toml:"prime2520"`
}

// BandsConfig lists the frequency bands. Exact frequencies are derived from
// the nominal ones when omitted.
type BandsConfig struct {
	Nominal []float64 `json:"nominal" mapstructure:"nominal" toml:"nominal"`
	Exact   []float64 `json:"exact,omitempty" mapstructure:"exact" toml:"exact,omitempty"`
}

// StorageConfig contains result store settings
type StorageConfig struct {
	Path       string `json:"path" mapstructure:"path" toml:"path"`
	StorePaths bool   `json:"storePaths" mapstructure:"storePaths" toml:"storePaths"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format" toml:"format"`
	Level      string `json:"level" mapstructure:"level" toml:"level"`
	File       string `json:"file,omitempty" mapstructure:"file" toml:"file,omitempty"`
	MaxSize    string `json:"maxSize,omitempty" mapstructure:"maxSize" toml:"maxSize,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty" mapstructure:"maxBackups" toml:"maxBackups,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Propagation: PropagationConfig{
			MaxSourceDistance:     750,
			MaxReflectionDistance: 50,
			ReflectionOrder:       1,
			VerticalDiffraction:   true,
			HorizontalDiffraction: true,
			MaximumError:          0.1,
			ThreadCount:           runtime.NumCPU(),
			BoundMarginDb:         source.DefaultBoundMargin,
		},
		Geometry: GeometryConfig{
			Epsilon:      1e-7,
			MaxHullRatio: 4,
		},
		Meteo: MeteoConfig{
			Temperature: 15,
			Humidity:    70,
			Pressure:    acoustics.ReferencePressure,
			WindRose:    attenuation.DefaultWindRose(),
			GDisc:       true,
		},
		Bands: BandsConfig{
			Nominal: append([]float64(nil), acoustics.OctaveNominal...),
		},
		Storage: StorageConfig{
			Path: "noiseprop.db",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// setDefaults registers every default so that a partial file only overrides
// the keys it names.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("propagation.maxSourceDistance", d.Propagation.MaxSourceDistance)
	v.SetDefault("propagation.maxReflectionDistance", d.Propagation.MaxReflectionDistance)
	v.SetDefault("propagation.reflectionOrder", d.Propagation.ReflectionOrder)
	v.SetDefault("propagation.verticalDiffraction", d.Propagation.VerticalDiffraction)
	v.SetDefault("propagation.horizontalDiffraction", d.Propagation.HorizontalDiffraction)
	v.SetDefault("propagation.maximumError", d.Propagation.MaximumError)
	v.SetDefault("propagation.threadCount", d.Propagation.ThreadCount)
	v.SetDefault("propagation.keepPaths", d.Propagation.KeepPaths)
	v.SetDefault("propagation.boundMarginDb", d.Propagation.BoundMarginDb)

	v.SetDefault("geometry.epsilon", d.Geometry.Epsilon)
	v.SetDefault("geometry.maxHullRatio", d.Geometry.MaxHullRatio)

	v.SetDefault("meteo.temperature", d.Meteo.Temperature)
	v.SetDefault("meteo.humidity", d.Meteo.Humidity)
	v.SetDefault("meteo.pressure", d.Meteo.Pressure)
	v.SetDefault("meteo.windRose", d.Meteo.WindRose)
	v.SetDefault("meteo.groundFactorSource", d.Meteo.GroundFactorSource)
	v.SetDefault("meteo.gDisc", d.Meteo.GDisc)
	v.SetDefault("meteo.prime2520", d.Meteo.Prime2520)

	v.SetDefault("bands.nominal", d.Bands.Nominal)

	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.storePaths", d.Storage.StorePaths)

	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// LoadConfig loads the configuration file at path. The format follows the
// extension (json, yaml or toml). An empty path or a missing file gives the
// defaults. NOISEPROP_* environment variables override file values, e.g.
// NOISEPROP_PROPAGATION_THREADCOUNT.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix("noiseprop")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		} else {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration as indented JSON
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// MarshalTOML renders the configuration as TOML
func (c *Config) MarshalTOML() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	p := c.Propagation
	switch {
	case p.MaxSourceDistance <= 0:
		return &ConfigError{Field: "propagation.maxSourceDistance", Message: "must be positive"}
	case p.MaxReflectionDistance < 0:
		return &ConfigError{Field: "propagation.maxReflectionDistance", Message: "must not be negative"}
	case p.ReflectionOrder < 0:
		return &ConfigError{Field: "propagation.reflectionOrder", Message: "must not be negative"}
	case p.MaximumError < 0:
		return &ConfigError{Field: "propagation.maximumError", Message: "must not be negative"}
	case p.ThreadCount < 0:
		return &ConfigError{Field: "propagation.threadCount", Message: "must not be negative"}
	case p.BoundMarginDb < 0:
		return &ConfigError{Field: "propagation.boundMarginDb", Message: "must not be negative"}
	}

	if c.Geometry.Epsilon <= 0 {
		return &ConfigError{Field: "geometry.epsilon", Message: "must be positive"}
	}
	if c.Geometry.MaxHullRatio <= 1 {
		return &ConfigError{Field: "geometry.maxHullRatio", Message: "must be greater than 1"}
	}

	m := c.Meteo
	if m.Humidity < 0 || m.Humidity > 100 {
		return &ConfigError{Field: "meteo.humidity", Message: "must be a percentage"}
	}
	if m.Pressure <= 0 {
		return &ConfigError{Field: "meteo.pressure", Message: "must be positive"}
	}
	if m.GroundFactorSource < 0 || m.GroundFactorSource > 1 {
		return &ConfigError{Field: "meteo.groundFactorSource", Message: "must be within [0, 1]"}
	}
	if len(m.WindRose) != attenuation.WindRoseSectors {
		return &ConfigError{Field: "meteo.windRose", Message: fmt.Sprintf("must have %d sectors", attenuation.WindRoseSectors)}
	}
	for _, v := range m.WindRose {
		if v < 0 || v > 1 {
			return &ConfigError{Field: "meteo.windRose", Message: "values must be within [0, 1]"}
		}
	}

	if len(c.Bands.Nominal) == 0 {
		return &ConfigError{Field: "bands.nominal", Message: "at least one band is required"}
	}
	for _, f := range c.Bands.Nominal {
		if f <= 0 {
			return &ConfigError{Field: "bands.nominal", Message: "frequencies must be positive"}
		}
	}
	if len(c.Bands.Exact) != 0 && len(c.Bands.Exact) != len(c.Bands.Nominal) {
		return &ConfigError{Field: "bands.exact", Message: "must match the nominal band count"}
	}

	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// PathSettings returns the path builder settings.
func (c *Config) PathSettings() path.Settings {
	return path.Settings{
		Epsilon:               c.Geometry.Epsilon,
		MaxHullRatio:          c.Geometry.MaxHullRatio,
		MaxSourceDistance:     c.Propagation.MaxSourceDistance,
		MaxReflectionDistance: c.Propagation.MaxReflectionDistance,
		ReflectionOrder:       c.Propagation.ReflectionOrder,
		VerticalDiffraction:   c.Propagation.VerticalDiffraction,
		HorizontalDiffraction: c.Propagation.HorizontalDiffraction,
		GroundFactorSource:    c.Meteo.GroundFactorSource,
	}
}

// EvaluatorParams returns the attenuation parameters.
func (c *Config) EvaluatorParams() attenuation.Params {
	return attenuation.Params{
		Bands:       acoustics.NewBands(c.Bands.Nominal, c.Bands.Exact),
		Temperature: c.Meteo.Temperature,
		Humidity:    c.Meteo.Humidity,
		Pressure:    c.Meteo.Pressure,
		WindRose:    c.Meteo.WindRose,
		GDisc:       c.Meteo.GDisc,
		Prime2520:   c.Meteo.Prime2520,
	}
}

// SchedulerConfig returns the worker pool and stop rule settings.
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		ThreadCount:  c.Propagation.ThreadCount,
		MaximumError: c.Propagation.MaximumError,
	}
}

// RetainPaths reports whether evaluated paths must be kept in memory.
func (c *Config) RetainPaths() bool {
	return c.Propagation.KeepPaths || c.Storage.StorePaths
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
