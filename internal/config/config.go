// Package config handles loading and validating craneops configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrConfigFileNotFound is returned by Load when the specified config file does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config is the top-level craneops configuration.
type Config struct {
	Listen          string   `yaml:"listen"`
	DataDir         string   `yaml:"data_dir"`
	UploadDir       string   `yaml:"upload_dir"`
	DefaultDatabase string   `yaml:"default_database"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
	MaxUploadBytes  int64    `yaml:"max_upload_bytes"`
	OperationTTL    Duration `yaml:"operation_ttl"`
	IngestWorkers   int      `yaml:"ingest_workers"`
}

// Duration wraps time.Duration with YAML string parsing support.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Load reads configuration from a YAML file. If no path is given, defaults
// plus environment overrides are used. If a path is given and the file does
// not exist, ErrConfigFileNotFound is returned.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload_dir is required")
	}
	if c.DefaultDatabase == "" {
		return fmt.Errorf("default_database is required")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("log_format must be one of: text, json")
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("max_upload_bytes must be >= 1")
	}
	if c.OperationTTL.Duration <= 0 {
		return fmt.Errorf("operation_ttl must be > 0")
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("ingest_workers must be >= 1")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Listen:          ":3900",
		DataDir:         "/data/databases",
		UploadDir:       "/data/uploads",
		DefaultDatabase: "excel_data",
		LogLevel:        "info",
		LogFormat:       "text",
		MaxUploadBytes:  64 << 20, // 64 MiB
		OperationTTL:    Duration{1 * time.Hour},
		IngestWorkers:   4,
	}
}

// expandEnvVars replaces ${VAR_NAME} placeholders in raw YAML with the
// corresponding environment variable values. Unset variables are replaced
// with an empty string, which will then fail validation with a clear error.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		key := string(match[2 : len(match)-1]) // strip ${ and }
		return []byte(os.Getenv(key))
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CRANEOPS_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("CRANEOPS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CRANEOPS_UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("CRANEOPS_DEFAULT_DATABASE"); v != "" {
		cfg.DefaultDatabase = v
	}
	if v := os.Getenv("CRANEOPS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CRANEOPS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("CRANEOPS_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("CRANEOPS_OPERATION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OperationTTL = Duration{d}
		}
	}
	if v := os.Getenv("CRANEOPS_INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IngestWorkers = n
		}
	}
}
