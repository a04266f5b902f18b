package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override, e.g.
// PUBLISHOM_OUTPUT_DIR or PUBLISHOM_ARCHIVER_ENGINE.
const EnvPrefix = "PUBLISHOM"

// Archive engines.
const (
	EngineExternal = "external"
	EngineBuiltin  = "builtin"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type (
	// Config is the effective configuration of one invocation.
	Config struct {
		SourceRoot       string           `mapstructure:"source_root" yaml:"source_root"`
		OutputDir        string           `mapstructure:"output_dir" yaml:"output_dir"`
		CompressionLevel int              `mapstructure:"compression_level" yaml:"compression_level"`
		Archiver         ArchiverConfig   `mapstructure:"archiver" yaml:"archiver"`
		TempDir          string           `mapstructure:"temp_dir" yaml:"temp_dir"`
		Visibility       VisibilityConfig `mapstructure:"visibility" yaml:"visibility"`
		Log              LogConfig        `mapstructure:"log" yaml:"log"`
		TracePath        string           `mapstructure:"trace_path" yaml:"trace_path"`
	}

	// ArchiverConfig selects the archive engine.
	ArchiverConfig struct {
		// Engine is EngineExternal (7z) or EngineBuiltin.
		Engine string `mapstructure:"engine" yaml:"engine"`
		// Path overrides 7z discovery. Ignored by the builtin engine.
		Path string `mapstructure:"path" yaml:"path"`
	}

	// VisibilityConfig bounds the wait for a staged archive to appear on the
	// destination.
	VisibilityConfig struct {
		Attempts int           `mapstructure:"attempts" yaml:"attempts"`
		Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	}

	LogConfig struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	}

	// LoadOptions controls where Load looks for values.
	LoadOptions struct {
		// ConfigFile is an optional YAML file. A named file that does not
		// exist is an error.
		ConfigFile string
		// Flags are bound through FlagKeys; only flags the user set
		// override lower layers.
		Flags *pflag.FlagSet
	}
)

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"source":            "source_root",
	"output":            "output_dir",
	"compression-level": "compression_level",
	"engine":            "archiver.engine",
	"7z-path":           "archiver.path",
	"temp-dir":          "temp_dir",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"trace":             "trace_path",
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		CompressionLevel: 5,
		Archiver:         ArchiverConfig{Engine: EngineExternal},
		Visibility:       VisibilityConfig{Attempts: 20, Interval: 500 * time.Millisecond},
		Log:              LogConfig{Level: "info", Format: FormatText},
	}
}

// Load resolves the layered configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	cfg, err := Resolve(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve resolves the layered configuration without validating it.
func Resolve(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("source_root", defaults.SourceRoot)
	v.SetDefault("output_dir", defaults.OutputDir)
	v.SetDefault("compression_level", defaults.CompressionLevel)
	v.SetDefault("archiver.engine", defaults.Archiver.Engine)
	v.SetDefault("archiver.path", defaults.Archiver.Path)
	v.SetDefault("temp_dir", defaults.TempDir)
	v.SetDefault("visibility.attempts", defaults.Visibility.Attempts)
	v.SetDefault("visibility.interval", defaults.Visibility.Interval)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("trace_path", defaults.TracePath)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalid, opts.ConfigFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &cfg, nil
}

// EnvVar returns the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.SourceRoot) == "":
		return fmt.Errorf("%w: source_root is required", ErrInvalid)
	case strings.TrimSpace(c.OutputDir) == "":
		return fmt.Errorf("%w: output_dir is required", ErrInvalid)
	case c.CompressionLevel < 0 || c.CompressionLevel > 9:
		return fmt.Errorf("%w: compression_level must be between 0 and 9, got %d", ErrInvalid, c.CompressionLevel)
	case c.Archiver.Engine != EngineExternal && c.Archiver.Engine != EngineBuiltin:
		return fmt.Errorf("%w: archiver.engine must be %q or %q, got %q", ErrInvalid, EngineExternal, EngineBuiltin, c.Archiver.Engine)
	case c.Visibility.Attempts < 1:
		return fmt.Errorf("%w: visibility.attempts must be at least 1", ErrInvalid)
	case c.Visibility.Interval < 0:
		return fmt.Errorf("%w: visibility.interval must not be negative", ErrInvalid)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	if _, err := formatter(c.Log.Format); err != nil {
		return fmt.Errorf("%w: log.format: %v", ErrInvalid, err)
	}
	return nil
}

// YAML renders the configuration in the config file format.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
