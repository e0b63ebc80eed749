// Package config loads ConceptCanvas settings.
//
// The loading order (from lowest to highest priority):
//  1. Default values (in code)
//  2. An optional YAML file
//  3. Environment variables (CANVAS_*)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

const devSecret = "conceptcanvas-dev-secret"

type Config struct {
	Environment Environment `yaml:"environment"`
	Server      Server      `yaml:"server"`
	Sync        Sync        `yaml:"sync"`
	Security    Security    `yaml:"security"`
	Logging     Logging     `yaml:"logging"`
	Discovery   Discovery   `yaml:"discovery"`
}

// Server configures the relay.
type Server struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	SendBuffer     int      `yaml:"sendBuffer"`
}

// Sync configures the drawing client.
type Sync struct {
	ServerURL       string `yaml:"serverUrl"`
	UserID          string `yaml:"userId"`
	HistoryCapacity int    `yaml:"historyCapacity"`
	SendBuffer      int    `yaml:"sendBuffer"`
}

type Security struct {
	JWTSecret string        `yaml:"jwtSecret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"tokenTtl"`
}

type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Discovery struct {
	Advertise bool          `yaml:"advertise"`
	Timeout   time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		Environment: Development,
		Server: Server{
			Addr:           ":8888",
			AllowedOrigins: []string{"*"},
			SendBuffer:     256,
		},
		Sync: Sync{
			ServerURL:       "ws://localhost:8888/ws",
			HistoryCapacity: 50,
			SendBuffer:      256,
		},
		Security: Security{
			JWTSecret: devSecret,
			Issuer:    "conceptcanvas",
			TokenTTL:  24 * time.Hour,
		},
		Logging: Logging{
			Level:       "info",
			Development: true,
		},
		Discovery: Discovery{
			Timeout: 3 * time.Second,
		},
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnvironmentVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironmentVariables() {
	if val := os.Getenv("CANVAS_ENV"); val != "" {
		c.Environment = Environment(strings.ToLower(val))
	}

	c.Server.Addr = getEnv("CANVAS_ADDR", c.Server.Addr)
	if val := os.Getenv("CANVAS_ALLOWED_ORIGINS"); val != "" {
		c.Server.AllowedOrigins = splitList(val)
	}
	c.Server.SendBuffer = getEnvInt("CANVAS_SEND_BUFFER", c.Server.SendBuffer)

	c.Sync.ServerURL = getEnv("CANVAS_SERVER", c.Sync.ServerURL)
	c.Sync.UserID = getEnv("CANVAS_USER", c.Sync.UserID)
	c.Sync.HistoryCapacity = getEnvInt("CANVAS_HISTORY_CAPACITY", c.Sync.HistoryCapacity)
	c.Sync.SendBuffer = getEnvInt("CANVAS_CLIENT_SEND_BUFFER", c.Sync.SendBuffer)

	c.Security.JWTSecret = getEnv("CANVAS_JWT_SECRET", c.Security.JWTSecret)
	c.Security.TokenTTL = getEnvDuration("CANVAS_TOKEN_TTL", c.Security.TokenTTL)

	c.Logging.Level = getEnv("CANVAS_LOG_LEVEL", c.Logging.Level)
	c.Logging.Development = getEnvBool("CANVAS_LOG_DEVELOPMENT", c.Logging.Development)

	c.Discovery.Advertise = getEnvBool("CANVAS_ADVERTISE", c.Discovery.Advertise)
	c.Discovery.Timeout = getEnvDuration("CANVAS_DISCOVERY_TIMEOUT", c.Discovery.Timeout)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Environment {
	case Development, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Server.SendBuffer <= 0 || c.Sync.SendBuffer <= 0 {
		errs = append(errs, errors.New("send buffers must be positive"))
	}
	if c.Sync.HistoryCapacity <= 0 {
		errs = append(errs, fmt.Errorf("history capacity must be positive, got %d", c.Sync.HistoryCapacity))
	}
	if c.Security.JWTSecret == "" {
		errs = append(errs, errors.New("JWT secret is required"))
	}
	if c.Environment == Production && c.Security.JWTSecret == devSecret {
		errs = append(errs, errors.New("JWT secret must be set in production"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
