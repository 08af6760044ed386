package agent

import (
	"strings"
	"time"

	"github.com/harun/mcplink/pkg/conversation"
	"github.com/harun/mcplink/pkg/rpcsession"
	"github.com/harun/mcplink/pkg/toolcall"
)

// Default client settings.
const (
	DefaultMCPURL       = "http://localhost:45677/mcp"
	DefaultPollInterval = 200 * time.Millisecond
	DefaultMaxTurns     = 10
	DefaultBaseURL      = "https://api.deepseek.com"
)

// DefaultSystemPrompt steers the model towards tool use.
const DefaultSystemPrompt = `You are good at analyzing user questions and choosing the appropriate tools to solve user problems.
Think step by step, but keep only a minimum draft for each thinking step, and finally choose the appropriate tool to solve the problem.
Note: Only use the tools you have been provided with.`

// Config holds the settings of one client instance.
type Config struct {
	BaseURL      string        `json:"base_url"`
	APIKey       string        `json:"api_key"`
	Model        string        `json:"model"`
	Stream       bool          `json:"stream"`
	MCPURL       string        `json:"mcp_url"`
	UseHistory   bool          `json:"use_history"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxTurns     int           `json:"max_turns"`
}

// DefaultConfig returns the vendor-neutral defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Stream:       true,
		MCPURL:       DefaultMCPURL,
		SystemPrompt: DefaultSystemPrompt,
		PollInterval: DefaultPollInterval,
		MaxTurns:     DefaultMaxTurns,
	}
}

// Normalize fills zero values with defaults and trims trailing slashes from BaseURL.
func (c Config) Normalize() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.MCPURL == "" {
		c.MCPURL = DefaultMCPURL
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	return c
}

// Info describes a vendor variant.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// ChatRequest is the JSON body posted to the chat endpoint.
type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []conversation.Message `json:"messages"`
	Stream   bool                   `json:"stream"`
	Tools    []ToolSpec             `json:"tools,omitempty"`
}

// ToolSpec advertises one remote tool in OpenAI function format.
type ToolSpec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the function part of a ToolSpec.
type FunctionSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ToolSpecs converts session tool descriptors into chat tool specs.
func ToolSpecs(tools []rpcsession.ToolDescriptor) []ToolSpec {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]ToolSpec, 0, len(tools))
	for _, tool := range tools {
		params := tool.InputSchema
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		specs = append(specs, ToolSpec{
			Type: "function",
			Function: FunctionSpec{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return specs
}

// EventType names a client event.
type EventType string

const (
	EventText           EventType = "text"
	EventToolCall       EventType = "tool_call"
	EventToolResult     EventType = "tool_result"
	EventCommandDone    EventType = "command_done"
	EventCommandSkipped EventType = "command_skipped"
	EventCommandFailed  EventType = "command_failed"
	// EventAll subscribes a handler to every event type.
	EventAll EventType = "*"
)

// Event is emitted by a Client while it processes commands.
type Event struct {
	Type      EventType           `json:"type"`
	Variant   string              `json:"variant"`
	CommandID string              `json:"command_id,omitempty"`
	Text      string              `json:"text,omitempty"`
	ToolCall  *toolcall.Ref       `json:"tool_call,omitempty"`
	Result    *rpcsession.Content `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// EventHandler receives client events on the worker goroutine.
type EventHandler func(event Event)
