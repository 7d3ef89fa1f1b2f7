// Package config provides configuration for the doll commands.
// Settings come from an optional YAML file with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default turret connection settings.
const (
	DefaultTurretPort    = 15555
	DefaultWebPort       = "8088"
	DefaultHistoryPath   = "doll-sessions.db"
	DefaultFrameFeedPath = "/ws/frames"
)

// Config is the top-level configuration for cmd/doll.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Turret  TurretConfig  `yaml:"turret"`
	Feed    FeedConfig    `yaml:"feed"`
	Web     WebConfig     `yaml:"web"`
	History HistoryConfig `yaml:"history"`
}

// TurretConfig addresses the remote servo/laser controller.
type TurretConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	ReplyTimeout   Duration `yaml:"reply_timeout"`
}

// Duration accepts "250ms" style values in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// FeedConfig addresses the capture collaborator's frame websocket.
type FeedConfig struct {
	URL string `yaml:"url"`
}

// WebConfig controls the operator dashboard.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// HistoryConfig controls session-result persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel: "info",
		Turret: TurretConfig{
			Port:           DefaultTurretPort,
			ConnectTimeout: Duration(2 * time.Second),
			ReplyTimeout:   Duration(time.Second),
		},
		Web: WebConfig{
			Enabled: true,
			Port:    DefaultWebPort,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath,
		},
	}
}

// Load reads the YAML file at path on top of Default, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() {
	if host := os.Getenv("TURRET_HOST"); host != "" {
		c.Turret.Host = host
	}
	if url := os.Getenv("FRAME_FEED_URL"); url != "" {
		c.Feed.URL = url
	}
	if port := os.Getenv("DASHBOARD_PORT"); port != "" {
		c.Web.Port = port
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
}

func (c *Config) validate() error {
	if c.Turret.Port <= 0 || c.Turret.Port > 65535 {
		return fmt.Errorf("turret port %d out of range", c.Turret.Port)
	}
	if c.Turret.ConnectTimeout <= 0 {
		c.Turret.ConnectTimeout = Duration(2 * time.Second)
	}
	if c.Turret.ReplyTimeout <= 0 {
		c.Turret.ReplyTimeout = Duration(time.Second)
	}
	return nil
}

// TurretAddr returns the host:port dial address for the turret.
func (c TurretConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TurretHostRequired returns the turret host, falling back to the
// TURRET_HOST environment variable so callers that never loaded a file
// still honor it. Exits with usage help when neither provides one.
func TurretHostRequired(cfg Config) string {
	if cfg.Turret.Host != "" {
		return cfg.Turret.Host
	}
	if host := os.Getenv("TURRET_HOST"); host != "" {
		return host
	}
	fmt.Fprintln(os.Stderr, "Error: turret host is required")
	fmt.Fprintln(os.Stderr, "Usage: TURRET_HOST=192.168.4.1 go run ./cmd/...")
	os.Exit(1)
	return ""
}
