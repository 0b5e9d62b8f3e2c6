package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[app]
env = "test"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, ":8000", cfg.App.HTTPAddr)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "moondream", cfg.Model.Provider)
	assert.Equal(t, "http://localhost:2020", cfg.Model.BaseURL)
	assert.Equal(t, 60, cfg.Model.TimeoutSeconds)
	assert.Equal(t, 2, cfg.Model.MaxRetries)
	assert.Equal(t, 3, cfg.Detect.MaxConcurrency)
	assert.Equal(t, 30, cfg.Detect.TimeoutSeconds)
	assert.False(t, cfg.Detect.ConfirmTextOnly)
	assert.Equal(t, "data/frames", cfg.Storage.Dir)
	assert.Equal(t, "data/vigil.db", cfg.Storage.DBPath)
	assert.Equal(t, 50, cfg.Upload.MaxFileSizeMB)
	assert.Equal(t, []string{".jpg", ".jpeg", ".png", ".bmp"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, 300, cfg.Scheduler.IntervalSeconds)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
[app]
http_addr = ":9090"
log_level = "debug"

[model]
provider = "openai"
base_url = "https://api.example.com/v1"
api_key = "sk-test"
model = "gpt-4o-mini"

[detect]
scenarios = ["smoke_detection", "fire_detection"]
max_concurrency = 5
confirm_text_only = true

[notify.telegram]
enabled = true
bot_token = "token"
chat_id = "123"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Model)
	assert.Equal(t, []string{"smoke_detection", "fire_detection"}, cfg.Detect.Scenarios)
	assert.Equal(t, 5, cfg.Detect.MaxConcurrency)
	assert.True(t, cfg.Detect.ConfirmTextOnly)
	assert.True(t, cfg.Notify.Telegram.Enabled)
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "unknown provider", content: "[model]\nprovider = \"llava\"\n"},
		{name: "openai without model", content: "[model]\nprovider = \"openai\"\n"},
		{name: "extension without dot", content: "[upload]\nallowed_extensions = [\"jpg\"]\n"},
		{name: "telegram without token", content: "[notify.telegram]\nenabled = true\n"},
		{name: "concurrency too high", content: "[detect]\nmax_concurrency = 64\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
