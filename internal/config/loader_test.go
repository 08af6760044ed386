package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file does not exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "missing.json")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, "deepseek", cfg.Client.Variant)
		assert.True(t, cfg.Client.Stream)
		assert.Equal(t, 45677, cfg.Server.Port)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "mcplink.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{
			"client": {"variant": "ollama", "model": "qwen2.5:7b", "stream": false, "use_history": true},
			"server": {"port": 9000}
		}`), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, "ollama", cfg.Client.Variant)
		assert.Equal(t, "qwen2.5:7b", cfg.Client.Model)
		assert.False(t, cfg.Client.Stream)
		assert.True(t, cfg.Client.UseHistory)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "/mcp", cfg.Server.Path, "unset keys keep defaults")
	})

	t.Run("default paths", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "mcplink.json")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)

		assert.Equal(t, dir, cfg.DataDir)
		assert.Equal(t, filepath.Join(dir, "mcplink.log"), cfg.Logging.File)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("MCPLINK_CLIENT_API_KEY", "sk-from-env")
		t.Setenv("MCPLINK_SERVER_PORT", "9100")
		t.Setenv("MCPLINK_CLIENT_USE_HISTORY", "true")

		cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()
		require.NoError(t, err)

		assert.Equal(t, "sk-from-env", cfg.Client.APIKey)
		assert.Equal(t, 9100, cfg.Server.Port)
		assert.True(t, cfg.Client.UseHistory)
	})

	t.Run("invalid json", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "mcplink.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"client":`), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "mcplink.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.Client.Variant = "siliconflow"
	cfg.Client.APIKey = "sk-saved"
	cfg.Client.UseHistory = true
	cfg.Gateway.Enabled = true
	require.NoError(t, loader.Save(cfg))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "siliconflow", loaded.Client.Variant)
	assert.Equal(t, "sk-saved", loaded.Client.APIKey)
	assert.True(t, loaded.Client.UseHistory)
	assert.True(t, loaded.Gateway.Enabled)
	assert.Equal(t, cfg.Server, loaded.Server)
}

func TestLoaderGetConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/mcplink.json", NewLoader("/etc/mcplink.json").GetConfigPath())

	home, err := os.UserHomeDir()
	if err == nil {
		assert.Equal(t, filepath.Join(home, ".mcplink", "mcplink.json"), NewLoader("").GetConfigPath())
	}
}
