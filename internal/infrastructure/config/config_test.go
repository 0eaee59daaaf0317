package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load may read; viper treats empty values as unset
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "TABLEBOT_") {
			t.Setenv(name, "")
		}
	}
	for _, legacy := range legacyEnv {
		t.Setenv(legacy, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "tablebot", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "3000", cfg.App.Port)
		assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodySize)
		assert.Equal(t, "v22.0", cfg.WhatsApp.APIVersion)
		assert.Equal(t, "https://graph.facebook.com", cfg.WhatsApp.BaseURL)
		assert.Equal(t, "https://query-processor-937194857721.europe-west1.run.app", cfg.Analytics.BaseURL)
		assert.Equal(t, "dlabparism6BFF685A", cfg.Analytics.PreferredShop)
		assert.Equal(t, "default_shop", cfg.Analytics.FallbackShop)
		assert.Equal(t, "output", cfg.Render.OutputDir)
		assert.Equal(t, 30*time.Second, cfg.Render.LoadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Render.CaptureTimeout)
		assert.True(t, cfg.Render.UniqueNames)
		assert.True(t, cfg.Render.NoSandbox)
		assert.Equal(t, 24*time.Hour, cfg.Render.Retention)
		assert.False(t, cfg.Render.EscapeValues)
		assert.Equal(t, "local", cfg.Storage.Driver)
		assert.Equal(t, 15*time.Minute, cfg.Storage.S3.PresignExpiry)
		assert.Equal(t, "memory", cfg.Cache.Driver)
		assert.Equal(t, 24*time.Hour, cfg.Cache.IdempotencyTTL)
		assert.Equal(t, "none", cfg.Database.Driver)
		assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowThreshold)
		assert.Equal(t, 4, cfg.Bot.MaxConcurrent)
		assert.Equal(t, 2*time.Minute, cfg.Bot.MessageTimeout)
		assert.Equal(t, "compare CA janvier 2024 et 2025", cfg.Bot.DefaultPrompt)
		assert.Equal(t, "tablebot", cfg.Telemetry.ServiceName)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	})

	t.Run("loads values from environment variables with TABLEBOT prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TABLEBOT_APP_PORT", "9000")
		t.Setenv("TABLEBOT_WHATSAPP_ACCESS_TOKEN", "  EAAG-token  ")
		t.Setenv("TABLEBOT_RENDER_LOAD_TIMEOUT", "5s")
		t.Setenv("TABLEBOT_RENDER_UNIQUE_NAMES", "false")
		t.Setenv("TABLEBOT_RENDER_NO_SANDBOX", "false")
		t.Setenv("TABLEBOT_RENDER_RETENTION", "0s")
		t.Setenv("TABLEBOT_STORAGE_PUBLIC_BASE_URL", "https://bot.example.com/")
		t.Setenv("TABLEBOT_BOT_MAX_CONCURRENT", "8")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "EAAG-token", cfg.WhatsApp.AccessToken)
		assert.Equal(t, 5*time.Second, cfg.Render.LoadTimeout)
		assert.False(t, cfg.Render.UniqueNames)
		assert.False(t, cfg.Render.NoSandbox)
		assert.Zero(t, cfg.Render.Retention)
		assert.Equal(t, "https://bot.example.com", cfg.Storage.PublicBaseURL)
		assert.Equal(t, 8, cfg.Bot.MaxConcurrent)
	})

	t.Run("accepts legacy unprefixed variables", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("WEBHOOK_VERIFY_TOKEN", "verify-me")
		t.Setenv("WHATSAPP_ACCESS_TOKEN", "legacy-token")
		t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "1234567890")
		t.Setenv("PORT", "4000")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "verify-me", cfg.Webhook.VerifyToken)
		assert.Equal(t, "legacy-token", cfg.WhatsApp.AccessToken)
		assert.Equal(t, "1234567890", cfg.WhatsApp.PhoneNumberID)
		assert.Equal(t, "4000", cfg.App.Port)
	})

	t.Run("prefixed variables win over legacy ones", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "4000")
		t.Setenv("TABLEBOT_APP_PORT", "5000")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "5000", cfg.App.Port)
	})
}

func TestFromViper_ConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := `
[app]
env = "staging"

[render]
output_dir = "/srv/tables"
escape_values = true
retention = "72h"

[storage]
driver = "s3"

[storage.s3]
bucket = "tables"
endpoint = "http://minio:9000"
use_path_style = true
`
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Env)
	assert.Equal(t, "/srv/tables", cfg.Render.OutputDir)
	assert.True(t, cfg.Render.EscapeValues)
	assert.Equal(t, 72*time.Hour, cfg.Render.Retention)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "tables", cfg.Storage.S3.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.Storage.S3.Endpoint)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
}

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "unknown storage driver", mutate: func(c *Config) { c.Storage.Driver = "gcs" }, wantErr: "storage.driver"},
		{name: "unknown cache driver", mutate: func(c *Config) { c.Cache.Driver = "memcached" }, wantErr: "cache.driver"},
		{name: "unknown database driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "database.driver"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Driver = "s3" }, wantErr: "storage.s3.bucket"},
		{name: "sampling ratio above one", mutate: func(c *Config) { c.Telemetry.SamplingRatio = 1.5 }, wantErr: "sampling_ratio"},
		{name: "relative public url", mutate: func(c *Config) { c.Storage.PublicBaseURL = "bot.example.com" }, wantErr: "public_base_url"},
		{
			name:    "idle conns exceed open conns",
			mutate:  func(c *Config) { c.Database.MaxIdleConns = 50 },
			wantErr: "max_idle_conns",
		},
		{
			name:    "production requires verify token",
			mutate:  func(c *Config) { c.App.Env = "production" },
			wantErr: "webhook.verify_token",
		},
		{
			name: "production requires public url for local storage",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.Webhook.VerifyToken = "t"
				c.WhatsApp.AccessToken = "a"
				c.WhatsApp.PhoneNumberID = "1"
			},
			wantErr: "storage.public_base_url",
		},
		{
			name: "complete production config",
			mutate: func(c *Config) {
				c.App.Env = "production"
				c.Webhook.VerifyToken = "t"
				c.WhatsApp.AccessToken = "a"
				c.WhatsApp.PhoneNumberID = "1"
				c.Storage.PublicBaseURL = "https://bot.example.com"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "bot",
		Password: "p@ss word",
		DBName:   "tablebot",
		SSLMode:  "require",
	}

	assert.Equal(t, "postgres://bot:p%40ss%20word@db:5432/tablebot?sslmode=require", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "redis", Port: 6380}
	assert.Equal(t, "redis:6380", r.Addr())
}
