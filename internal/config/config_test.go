package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ConceptCanvas/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.Development, cfg.Environment)
	assert.Equal(t, ":8888", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Sync.HistoryCapacity)
	assert.Equal(t, 24*time.Hour, cfg.Security.TokenTTL)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canvas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  allowedOrigins: ["http://localhost:3000"]
sync:
  historyCapacity: 20
security:
  tokenTtl: 2h
logging:
  level: debug
`), 0o600))

	t.Setenv("CANVAS_HISTORY_CAPACITY", "75")
	t.Setenv("CANVAS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 75, cfg.Sync.HistoryCapacity, "environment wins over the file")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.Security.TokenTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canvas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "valid development config", mutate: func(*config.Config) {}},
		{
			name:    "production requires a real secret",
			mutate:  func(c *config.Config) { c.Environment = config.Production },
			wantErr: "JWT secret must be set in production",
		},
		{
			name:    "zero history capacity",
			mutate:  func(c *config.Config) { c.Sync.HistoryCapacity = 0 },
			wantErr: "history capacity must be positive",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *config.Config) { c.Logging.Level = "chatty" },
			wantErr: "invalid log level",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *config.Config) { c.Environment = "staging" },
			wantErr: "invalid environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
