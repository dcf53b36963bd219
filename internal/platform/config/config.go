package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"

	HeartbeatDriverDatabase = "database"
	HeartbeatDriverRedis    = "redis"

	DefaultPlaceholderMediaTitle = "Unknown Media Title"
)

type Config struct {
	Path string `yaml:"-"`

	Timezone                      string   `yaml:"timezone"`
	TickIntervalSeconds           int      `yaml:"tick_interval_seconds"`
	WindowSizeSeconds             int      `yaml:"window_size_seconds"`
	SleepThresholdSeconds         int      `yaml:"sleep_threshold_seconds"`
	SuspiciousHeartbeatGapSeconds int      `yaml:"suspicious_heartbeat_gap_seconds"`
	HeartbeatIntervalSeconds      int      `yaml:"heartbeat_interval_seconds"`
	ShutdownTimeoutSeconds        int      `yaml:"shutdown_timeout_seconds"`
	ProductivePrograms            []string `yaml:"productive_programs"`
	ProductiveDomains             []string `yaml:"productive_domains"`
	PlaceholderMediaTitle         string   `yaml:"placeholder_media_title"`
	MysteryCacheSize              int      `yaml:"mystery_cache_size"`
	ListenAddr                    string   `yaml:"listen_addr"`
	CORSAllowedOrigins            []string `yaml:"cors_allowed_origins"`
	LogLevel                      string   `yaml:"log_level"`
	LogFormat                     string   `yaml:"log_format"`

	Store     StoreConfig     `yaml:"store"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
}

type HeartbeatConfig struct {
	Driver    string `yaml:"driver"`
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`
}

func Defaults() Config {
	return Config{
		Timezone:                      "Local",
		TickIntervalSeconds:           1,
		WindowSizeSeconds:             10,
		SleepThresholdSeconds:         90,
		SuspiciousHeartbeatGapSeconds: 120,
		HeartbeatIntervalSeconds:      10,
		ShutdownTimeoutSeconds:        5,
		ProductivePrograms:            []string{},
		ProductiveDomains:             []string{},
		PlaceholderMediaTitle:         DefaultPlaceholderMediaTitle,
		MysteryCacheSize:              50,
		ListenAddr:                    "127.0.0.1:5600",
		CORSAllowedOrigins:            []string{"*"},
		LogLevel:                      "info",
		LogFormat:                     "json",
		Store: StoreConfig{
			Driver:     StoreDriverSQLite,
			SQLitePath: filepath.Join(DataDir(), "focuslog.db"),
		},
		Heartbeat: HeartbeatConfig{
			Driver:   HeartbeatDriverDatabase,
			RedisKey: "focuslog:heartbeat",
		},
	}
}

// DataDir returns $XDG_DATA_HOME/focuslog, falling back to ~/.local/share/focuslog.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// DefaultPath returns $XDG_CONFIG_HOME/focuslog/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.yaml")
}

func xdgDir(env, fallback string) string {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, "focuslog")
}

// Load reads the YAML file at path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	cfg.Path = path
	if path == "" {
		return cfg, cfg.Validate()
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.TickIntervalSeconds < 1 {
		return fmt.Errorf("tick_interval_seconds must be positive")
	}
	if c.WindowSizeSeconds < 1 {
		return fmt.Errorf("window_size_seconds must be positive")
	}
	if c.SleepThresholdSeconds < 1 {
		return fmt.Errorf("sleep_threshold_seconds must be positive")
	}
	if c.SuspiciousHeartbeatGapSeconds < 1 {
		return fmt.Errorf("suspicious_heartbeat_gap_seconds must be positive")
	}
	if c.HeartbeatIntervalSeconds < 1 {
		return fmt.Errorf("heartbeat_interval_seconds must be positive")
	}
	if c.MysteryCacheSize < 1 {
		return fmt.Errorf("mystery_cache_size must be positive")
	}
	if strings.TrimSpace(c.PlaceholderMediaTitle) == "" {
		return fmt.Errorf("placeholder_media_title is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Store.Driver {
	case StoreDriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return fmt.Errorf("store.sqlite_path is required")
		}
	case StoreDriverPostgres:
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return fmt.Errorf("store.database_url is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	switch c.Heartbeat.Driver {
	case HeartbeatDriverDatabase:
	case HeartbeatDriverRedis:
		if strings.TrimSpace(c.Heartbeat.RedisAddr) == "" {
			return fmt.Errorf("heartbeat.redis_addr is required for redis")
		}
	default:
		return fmt.Errorf("unsupported heartbeat driver %q", c.Heartbeat.Driver)
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

func (c Config) SleepThreshold() time.Duration {
	return time.Duration(c.SleepThresholdSeconds) * time.Second
}

func (c Config) SuspiciousHeartbeatGap() time.Duration {
	return time.Duration(c.SuspiciousHeartbeatGapSeconds) * time.Second
}

func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSeconds < 1 {
		return 5 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
