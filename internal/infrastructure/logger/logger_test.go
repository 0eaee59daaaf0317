package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.NotEmpty(t, cfg.TimeFormat)
}

func TestProductionConfig(t *testing.T) {
	cfg := ProductionConfig()

	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil config", cfg: nil},
		{name: "default config", cfg: DefaultConfig()},
		{name: "production config", cfg: ProductionConfig()},
		{name: "stderr", cfg: &Config{Level: "debug", Format: "json", Output: "stderr"}},
		{
			name:    "unwritable file",
			cfg:     &Config{Output: filepath.Join(os.DevNull, "nested", "app.log")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewForEnvironment(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		logger, err := NewForEnvironment(env)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("webhook received", zap.String("message_id", "wamid.1"))
	logger.Debug("filtered out")
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "webhook received", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "wamid.1", entry["message_id"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestMultipleOutputs(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	second := filepath.Join(dir, "b.log")

	logger, err := New(&Config{Format: "console", Output: first + ", " + second})
	require.NoError(t, err)

	logger.Warn("table render failed")
	require.NoError(t, logger.Sync())

	for _, path := range []string{first, second} {
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "WARN")
		assert.Contains(t, string(content), "table render failed")
	}
}
