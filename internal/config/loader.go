package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. MCPLINK_CLIENT_API_KEY.
	EnvPrefix = "MCPLINK"
	dirName   = ".mcplink"
	fileName  = "mcplink.json"
)

// Loader reads and writes the configuration file
type Loader struct {
	configPath string
}

// NewLoader creates a loader. An empty path means ~/.mcplink/mcplink.json.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the file when it exists, then applies environment overrides.
func (l *Loader) Load() (*Config, error) {
	configPath, err := l.path()
	if err != nil {
		return nil, err
	}

	v := newViper(configPath)
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(configPath)
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "mcplink.log")
	}

	return cfg, nil
}

// Save writes cfg to the config file, creating its directory.
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("client", cfg.Client)
	v.Set("server", cfg.Server)
	v.Set("gateway", cfg.Gateway)
	v.Set("metrics", cfg.Metrics)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	// The file holds an API key.
	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}
	return nil
}

// GetConfigPath returns the resolved config file path
func (l *Loader) GetConfigPath() string {
	configPath, err := l.path()
	if err != nil {
		return ""
	}
	return configPath
}

func (l *Loader) path() (string, error) {
	if l.configPath != "" {
		return l.configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dirName, fileName), nil
}

// newViper registers every key with its default so environment overrides
// apply even without a config file.
func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	defaults := map[string]interface{}{
		"client.variant":          d.Client.Variant,
		"client.base_url":         d.Client.BaseURL,
		"client.api_key":          d.Client.APIKey,
		"client.model":            d.Client.Model,
		"client.stream":           d.Client.Stream,
		"client.mcp_url":          d.Client.MCPURL,
		"client.use_history":      d.Client.UseHistory,
		"client.system_prompt":    d.Client.SystemPrompt,
		"client.poll_interval_ms": d.Client.PollIntervalMs,
		"client.max_turns":        d.Client.MaxTurns,

		"server.name":                 d.Server.Name,
		"server.host":                 d.Server.Host,
		"server.port":                 d.Server.Port,
		"server.path":                 d.Server.Path,
		"server.precision":            d.Server.Precision,
		"server.tool_timeout_seconds": d.Server.ToolTimeoutSeconds,
		"server.stateless":            d.Server.Stateless,
		"server.workspace_root":       d.Server.WorkspaceRoot,

		"gateway.enabled":             d.Gateway.Enabled,
		"gateway.host":                d.Gateway.Host,
		"gateway.port":                d.Gateway.Port,
		"gateway.commands_per_minute": d.Gateway.CommandsPerMinute,

		"metrics.enabled": d.Metrics.Enabled,
		"metrics.addr":    d.Metrics.Addr,

		"logging.level":     d.Logging.Level,
		"logging.file":      d.Logging.File,
		"logging.console":   d.Logging.Console,
		"logging.pretty":    d.Logging.Pretty,
		"logging.max_size":  d.Logging.MaxSize,
		"logging.max_age":   d.Logging.MaxAge,
		"logging.compress":  d.Logging.Compress,
		"logging.redaction": d.Logging.Redaction,

		"data_dir": d.DataDir,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
