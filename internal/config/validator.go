package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/harun/mcplink/pkg/agent"
)

// Validator validates configuration values
type Validator struct {
	variants []string
}

// NewValidator creates a validator that accepts the built-in variants
func NewValidator() *Validator {
	var ids []string
	for _, v := range agent.DefaultVariants() {
		ids = append(ids, v.ID)
	}
	return NewValidatorWithVariants(ids...)
}

// NewValidatorWithVariants creates a validator for a custom variant set
func NewValidatorWithVariants(variants ...string) *Validator {
	return &Validator{variants: variants}
}

// ValidateVariant checks that id is a registered variant
func (v *Validator) ValidateVariant(id string) error {
	for _, known := range v.variants {
		if id == known {
			return nil
		}
	}
	return fmt.Errorf("unknown variant: %q (must be one of: %s)", id, strings.Join(v.variants, ", "))
}

// ValidateAPIKey warns about keys that cannot be sent as a bearer token
func (v *Validator) ValidateAPIKey(key string) error {
	if strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("api key must not contain whitespace")
	}
	return nil
}

// ValidateURL checks an http(s) URL. Empty is allowed when optional.
func (v *Validator) ValidateURL(field, raw string, optional bool) error {
	if raw == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: host is required", field)
	}
	return nil
}

// ValidatePort checks a TCP port. Zero picks a free port.
func (v *Validator) ValidatePort(field string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s must be between 0 and 65535, got %d", field, port)
	}
	return nil
}

// ValidateAddr checks a host:port listen address
func (v *Validator) ValidateAddr(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig returns every problem found in cfg
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(v.ValidateVariant(cfg.Client.Variant))
	add(v.ValidateAPIKey(cfg.Client.APIKey))
	add(v.ValidateURL("client.base_url", cfg.Client.BaseURL, true))
	add(v.ValidateURL("client.mcp_url", cfg.Client.MCPURL, false))
	if cfg.Client.PollIntervalMs < 0 {
		add(fmt.Errorf("client.poll_interval_ms must be >= 0"))
	}
	if cfg.Client.MaxTurns < 0 {
		add(fmt.Errorf("client.max_turns must be >= 0"))
	}

	add(v.ValidatePort("server.port", cfg.Server.Port))
	if cfg.Server.Path != "" && !strings.HasPrefix(cfg.Server.Path, "/") {
		add(fmt.Errorf("server.path must start with /"))
	}
	if cfg.Server.Precision < 0 {
		add(fmt.Errorf("server.precision must be >= 0"))
	}
	if cfg.Server.ToolTimeoutSeconds < 0 {
		add(fmt.Errorf("server.tool_timeout_seconds must be >= 0"))
	}

	if cfg.Gateway.Enabled {
		add(v.ValidatePort("gateway.port", cfg.Gateway.Port))
	}
	if cfg.Metrics.Enabled {
		add(v.ValidateAddr("metrics.addr", cfg.Metrics.Addr))
	}

	add(v.ValidateLogLevel(cfg.Logging.Level))
	return errs
}
