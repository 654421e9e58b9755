package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime settings. Values come from defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	Address            string        `yaml:"address"`
	HubPath            string        `yaml:"hub_path"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
	Debug              bool          `yaml:"debug"`
	AllowedOriginHosts []string      `yaml:"allowed_origin_hosts"`
	SendBuffer         int           `yaml:"send_buffer"`
	MaxMessageBytes    int64         `yaml:"max_message_bytes"`
	WriteWait          time.Duration `yaml:"write_wait"`
	PongWait           time.Duration `yaml:"pong_wait"`
	MaintenanceFlag    string        `yaml:"maintenance_flag"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

// Default serves the hub at /bridgehub to private-network browsers only.
func Default() Config {
	return Config{
		Address:            ":5000",
		HubPath:            "/bridgehub",
		LogLevel:           "info",
		LogFormat:          "console",
		AllowedOriginHosts: []string{"localhost", "127.0.0.1", "192.", "10.", "172."},
		SendBuffer:         256,
		MaxMessageBytes:    64 << 10,
		WriteWait:          10 * time.Second,
		PongWait:           60 * time.Second,
		MaintenanceFlag:    "maintenance.flag",
		ShutdownTimeout:    10 * time.Second,
	}
}

// Load builds a Config. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		cfg.Address = port
	}
	cfg.HubPath = firstNonEmpty(os.Getenv("HUB_PATH"), cfg.HubPath)
	cfg.LogLevel = firstNonEmpty(os.Getenv("LOG_LEVEL"), cfg.LogLevel)
	cfg.LogFormat = firstNonEmpty(os.Getenv("LOG_FORMAT"), cfg.LogFormat)
	cfg.MaintenanceFlag = firstNonEmpty(os.Getenv("MAINTENANCE_FLAG"), cfg.MaintenanceFlag)

	if raw := os.Getenv("BRIDGE_DEBUG"); raw != "" {
		cfg.Debug = raw == "true"
	}
	if raw := os.Getenv("ALLOWED_ORIGIN_HOSTS"); raw != "" {
		cfg.AllowedOriginHosts = splitList(raw)
	}
	if raw := os.Getenv("SEND_BUFFER"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.SendBuffer = n
		}
	}
	if raw := os.Getenv("MAX_MESSAGE_BYTES"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.MaxMessageBytes = n
		}
	}
	cfg.WriteWait = durationEnv("WRITE_WAIT", cfg.WriteWait)
	cfg.PongWait = durationEnv("PONG_WAIT", cfg.PongWait)
	cfg.ShutdownTimeout = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
}

func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(c.HubPath, "/") {
		return fmt.Errorf("hub path must start with /: %q", c.HubPath)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be at least 1")
	}
	if c.MaxMessageBytes < 1 {
		return fmt.Errorf("max message bytes must be positive")
	}
	if c.WriteWait <= 0 || c.PongWait <= 0 {
		return fmt.Errorf("write and pong waits must be positive")
	}
	return nil
}

// PingPeriod keeps pings comfortably inside the pong deadline.
func (c Config) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
