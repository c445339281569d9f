package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/me/hireflow/pkg/model"
)

// ServerConfig holds configuration for the hireflow server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json

	DBDriver    string `yaml:"db_driver"`    // sqlite or postgres
	DBPath      string `yaml:"db_path"`      // SQLite database path (default ~/.hireflow/hireflow.db, ":memory:" for testing)
	DatabaseURL string `yaml:"database_url"` // Postgres connection string

	Threshold int `yaml:"threshold"` // Default pool-size cutoff for new jobs
	TopN      int `yaml:"top_n"`     // Default number of batch invitees for new jobs

	SlotDays            int `yaml:"slot_days"`
	SlotsPerDay         int `yaml:"slots_per_day"`
	DispatchConcurrency int `yaml:"dispatch_concurrency"`

	Mailer    string `yaml:"mailer"` // log or amqp
	AMQPURL   string `yaml:"amqp_url"`
	AMQPQueue string `yaml:"amqp_queue"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:                ":8080",
		LogLevel:            "info",
		LogFormat:           "text",
		DBDriver:            "sqlite",
		Threshold:           model.DefaultThreshold,
		TopN:                model.DefaultTopN,
		SlotDays:            3,
		SlotsPerDay:         2,
		DispatchConcurrency: 4,
		Mailer:              "log",
		AMQPQueue:           "interview_invitations",
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current values.
func LoadFile(path string, cfg *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays HIREFLOW_* environment variables onto cfg.
func ApplyEnv(cfg *ServerConfig) error {
	strs := map[string]*string{
		"HIREFLOW_ADDR":         &cfg.Addr,
		"HIREFLOW_LOG_LEVEL":    &cfg.LogLevel,
		"HIREFLOW_LOG_FORMAT":   &cfg.LogFormat,
		"HIREFLOW_DB_DRIVER":    &cfg.DBDriver,
		"HIREFLOW_DB_PATH":      &cfg.DBPath,
		"HIREFLOW_DATABASE_URL": &cfg.DatabaseURL,
		"HIREFLOW_MAILER":       &cfg.Mailer,
		"HIREFLOW_AMQP_URL":     &cfg.AMQPURL,
		"HIREFLOW_AMQP_QUEUE":   &cfg.AMQPQueue,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"HIREFLOW_THRESHOLD": &cfg.Threshold,
		"HIREFLOW_TOP_N":     &cfg.TopN,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate reports the first invalid setting.
func (c ServerConfig) Validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", c.Threshold)
	}
	if c.TopN < 1 {
		return fmt.Errorf("top_n must be at least 1, got %d", c.TopN)
	}
	if c.SlotDays < 1 || c.SlotsPerDay < 1 {
		return fmt.Errorf("slot_days and slots_per_day must be positive")
	}
	if c.DispatchConcurrency < 1 {
		return fmt.Errorf("dispatch_concurrency must be positive, got %d", c.DispatchConcurrency)
	}
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("db_driver postgres requires database_url")
		}
	default:
		return fmt.Errorf("unknown db_driver %q", c.DBDriver)
	}
	switch c.Mailer {
	case "log":
	case "amqp":
		if c.AMQPURL == "" {
			return fmt.Errorf("mailer amqp requires amqp_url")
		}
	default:
		return fmt.Errorf("unknown mailer %q", c.Mailer)
	}
	return nil
}

// ResolveDBPath returns DBPath, defaulting to ~/.hireflow/hireflow.db and
// creating its directory.
func (c ServerConfig) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".hireflow")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return filepath.Join(dir, "hireflow.db"), nil
}
