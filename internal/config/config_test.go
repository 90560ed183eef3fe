package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults when nothing is configured",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "sqlite", cfg.Database.Driver)
				assert.Equal(t, "memory", cfg.Lock.Backend)
				assert.Equal(t, "auto", cfg.Ingestion.HeaderMode)
				assert.Equal(t, int64(20<<20), cfg.Ingestion.MaxUploadBytes)
				assert.Equal(t, 4, cfg.Analytics.RecomputeConcurrency)
				assert.False(t, cfg.Scheduler.Enabled)
				assert.True(t, cfg.Telemetry.MetricsEnabled)
			},
		},
		{
			name: "environment overrides defaults",
			env: map[string]string{
				"BORSA_SERVER_PORT":           "9090",
				"BORSA_SERVER_READ_TIMEOUT":   "5s",
				"BORSA_DATABASE_DRIVER":       "mysql",
				"BORSA_DATABASE_DSN":          "u:p@tcp(db:3306)/borsa?parseTime=true",
				"BORSA_INGESTION_HEADER_MODE": "present",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "mysql", cfg.Database.Driver)
				assert.Equal(t, "present", cfg.Ingestion.HeaderMode)
				assert.Equal(t, 15*time.Second, Default().Server.ReadTimeout)
			},
		},
		{
			name: "file values survive unless env overrides them",
			file: `
server:
  port: 7070
  idle_timeout: 2m
lock:
  backend: redis
  redis_addr: localhost:6379
  ttl: 30s
scheduler:
  enabled: true
  spec: "0 0 19 * * 1-5"
`,
			env: map[string]string{"BORSA_SERVER_PORT": "7171"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7171, cfg.Server.Port)
				assert.Equal(t, 2*time.Minute, cfg.Server.IdleTimeout)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "redis", cfg.Lock.Backend)
				assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
				assert.Equal(t, "0 0 19 * * 1-5", cfg.Scheduler.Spec)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"BORSA_SERVER_PORT": "70000"},
			wantErr: "invalid server port",
		},
		{
			name:    "unsupported driver",
			env:     map[string]string{"BORSA_DATABASE_DRIVER": "postgres"},
			wantErr: "unsupported database driver",
		},
		{
			name:    "redis backend without address",
			env:     map[string]string{"BORSA_LOCK_BACKEND": "redis"},
			wantErr: "requires redis_addr",
		},
		{
			name:    "invalid header mode",
			env:     map[string]string{"BORSA_INGESTION_HEADER_MODE": "sometimes"},
			wantErr: "invalid header mode",
		},
		{
			name: "invalid cron spec when scheduler enabled",
			env: map[string]string{
				"BORSA_SCHEDULER_ENABLED": "true",
				"BORSA_SCHEDULER_SPEC":    "every evening",
			},
			wantErr: "invalid scheduler spec",
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"BORSA_SERVER_PORT": "eighty"},
			wantErr: "failed to load config from env",
		},
		{
			name:    "malformed yaml",
			file:    "server: [unclosed",
			wantErr: "failed to load config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.file != "" {
				t.Setenv("BORSA_CONFIG_FILE", writeConfigFile(t, tt.file))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
}

func TestValidateFillsLogFilePath(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "both"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.validate())
	assert.Equal(t, "logs/app.log", cfg.Logging.FilePath)
}
