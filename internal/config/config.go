package config

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/harun/mcplink/pkg/agent"
	"github.com/harun/mcplink/pkg/toolserver"
)

// Config is the mcplink configuration file
type Config struct {
	Client  ClientConfig  `json:"client" mapstructure:"client"`
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ClientConfig selects the chat variant and overrides its defaults.
// Empty strings keep the variant's own base URL, key and model.
type ClientConfig struct {
	Variant        string `json:"variant" mapstructure:"variant"`
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	APIKey         string `json:"api_key" mapstructure:"api_key"`
	Model          string `json:"model" mapstructure:"model"`
	Stream         bool   `json:"stream" mapstructure:"stream"`
	MCPURL         string `json:"mcp_url" mapstructure:"mcp_url"`
	UseHistory     bool   `json:"use_history" mapstructure:"use_history"`
	SystemPrompt   string `json:"system_prompt" mapstructure:"system_prompt"`
	PollIntervalMs int    `json:"poll_interval_ms" mapstructure:"poll_interval_ms"`
	MaxTurns       int    `json:"max_turns" mapstructure:"max_turns"`
}

// ServerConfig holds tool server settings
type ServerConfig struct {
	Name               string `json:"name" mapstructure:"name"`
	Host               string `json:"host" mapstructure:"host"`
	Port               int    `json:"port" mapstructure:"port"`
	Path               string `json:"path" mapstructure:"path"`
	Precision          int    `json:"precision" mapstructure:"precision"`
	ToolTimeoutSeconds int    `json:"tool_timeout_seconds" mapstructure:"tool_timeout_seconds"`
	Stateless          bool   `json:"stateless" mapstructure:"stateless"`
	WorkspaceRoot      string `json:"workspace_root" mapstructure:"workspace_root"`
}

// GatewayConfig holds WebSocket gateway settings
type GatewayConfig struct {
	Enabled           bool   `json:"enabled" mapstructure:"enabled"`
	Host              string `json:"host" mapstructure:"host"`
	Port              int    `json:"port" mapstructure:"port"`
	CommandsPerMinute int    `json:"commands_per_minute" mapstructure:"commands_per_minute"`
}

// MetricsConfig holds the client-side metrics listener settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Variant:        "deepseek",
			Stream:         true,
			MCPURL:         agent.DefaultMCPURL,
			PollIntervalMs: int(agent.DefaultPollInterval / time.Millisecond),
			MaxTurns:       agent.DefaultMaxTurns,
		},
		Server: ServerConfig{
			Name:               toolserver.DefaultName,
			Host:               toolserver.DefaultHost,
			Port:               toolserver.DefaultPort,
			Path:               toolserver.DefaultPath,
			Precision:          toolserver.DefaultPrecision,
			ToolTimeoutSeconds: int(toolserver.DefaultToolTimeout / time.Second),
		},
		Gateway: GatewayConfig{
			Enabled:           false,
			Host:              "localhost",
			Port:              45678,
			CommandsPerMinute: 60,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "localhost:9464",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks the configuration and joins every problem found.
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}

// AgentConfig layers the client section over a variant's defaults.
func (c ClientConfig) AgentConfig(defaults agent.Config) agent.Config {
	cfg := defaults
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.APIKey != "" {
		cfg.APIKey = c.APIKey
	}
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.MCPURL != "" {
		cfg.MCPURL = c.MCPURL
	}
	if c.SystemPrompt != "" {
		cfg.SystemPrompt = c.SystemPrompt
	}
	if c.PollIntervalMs > 0 {
		cfg.PollInterval = time.Duration(c.PollIntervalMs) * time.Millisecond
	}
	if c.MaxTurns > 0 {
		cfg.MaxTurns = c.MaxTurns
	}
	cfg.Stream = c.Stream
	cfg.UseHistory = c.UseHistory
	return cfg.Normalize()
}

// ToolServerConfig converts the server section.
func (s ServerConfig) ToolServerConfig(version string) toolserver.Config {
	precision := s.Precision
	return toolserver.Config{
		Name:        s.Name,
		Version:     version,
		Host:        s.Host,
		Port:        s.Port,
		Path:        s.Path,
		Precision:   &precision,
		ToolTimeout: time.Duration(s.ToolTimeoutSeconds) * time.Second,
		Stateless:   s.Stateless,
	}
}
