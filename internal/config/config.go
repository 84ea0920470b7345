// Package config loads the atomgo settings: built-in defaults, then an
// optional YAML file, then a .env file and ATOMGO_* environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "ATOMGO_"

// Config holds all atomgo configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig configures the web UI.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	MaxUploadMB     int    `yaml:"max_upload_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// PipelineConfig holds the experiment settings shared by every run.
type PipelineConfig struct {
	RandomState int64   `yaml:"random_state"`
	TestSize    float64 `yaml:"test_size"`
	NEstimators int     `yaml:"n_estimators"` // 0 keeps each model's default
	NJobs       int     `yaml:"n_jobs"`       // 0 uses every CPU
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8501",
			ReadTimeout:     "30s",
			WriteTimeout:    "5m",
			ShutdownTimeout: "10s",
			MaxUploadMB:     32,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Pipeline: PipelineConfig{
			RandomState: 1,
			TestSize:    0.2,
		},
	}
}

// Load reads path (skipped when empty or missing), applies .env and
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "failed to parse config %s", path)
			}
		case os.IsNotExist(err):
			log.GetLoggerWithName("config").Warn("Config file not found, using defaults", "path", path)
		default:
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	dotenv, err := readDotenv(".env")
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readDotenv parses a .env file without touching the process environment.
// A missing file yields no values.
func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return values, nil
}

// applyEnv applies ATOMGO_* overrides. Variables already set in the process
// environment win over .env entries.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.NewValidationError(EnvPrefix+name, "must be an integer", v)
		}
		*dst = n
		return nil
	}

	str("ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if err := integer("MAX_UPLOAD_MB", &c.Server.MaxUploadMB); err != nil {
		return err
	}
	if err := integer("N_ESTIMATORS", &c.Pipeline.NEstimators); err != nil {
		return err
	}
	if err := integer("N_JOBS", &c.Pipeline.NJobs); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "RANDOM_STATE"); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.NewValidationError(EnvPrefix+"RANDOM_STATE", "must be an integer", v)
		}
		c.Pipeline.RandomState = n
	}
	if v, ok := lookup(EnvPrefix + "TEST_SIZE"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.NewValidationError(EnvPrefix+"TEST_SIZE", "must be a number", v)
		}
		c.Pipeline.TestSize = f
	}
	return nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.NewValidationError("server.addr", "must not be empty", c.Server.Addr)
	}
	for name, d := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if v, err := time.ParseDuration(d); err != nil || v <= 0 {
			return errors.NewValidationError(name, "must be a positive duration", d)
		}
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.NewValidationError("server.max_upload_mb", "must be positive", c.Server.MaxUploadMB)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return errors.NewValidationError("log.format", "must be json or console", c.Log.Format)
	}
	if c.Pipeline.TestSize <= 0 || c.Pipeline.TestSize >= 1 {
		return errors.NewValidationError("pipeline.test_size", "must be in (0, 1)", c.Pipeline.TestSize)
	}
	if c.Pipeline.NEstimators < 0 {
		return errors.NewValidationError("pipeline.n_estimators", "must not be negative", c.Pipeline.NEstimators)
	}
	return nil
}

// ReadTimeout returns the server read timeout.
func (c *Config) ReadTimeout() time.Duration { return mustDuration(c.Server.ReadTimeout) }

// WriteTimeout returns the server write timeout.
func (c *Config) WriteTimeout() time.Duration { return mustDuration(c.Server.WriteTimeout) }

// ShutdownTimeout returns how long a graceful shutdown may take.
func (c *Config) ShutdownTimeout() time.Duration { return mustDuration(c.Server.ShutdownTimeout) }

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.Server.MaxUploadMB) << 20 }

// durations are checked by Validate
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
