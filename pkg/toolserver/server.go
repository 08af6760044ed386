package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/harun/mcplink/internal/observability"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultName        = "MCPServer"
	DefaultHost        = "localhost"
	DefaultPort        = 45677
	DefaultPath        = "/mcp"
	DefaultToolTimeout = 30 * time.Second
)

// Config holds server configuration
type Config struct {
	Name    string
	Version string
	Host    string
	Port    int
	Path    string
	// Precision is the number of decimals kept in results. Nil keeps DefaultPrecision.
	Precision   *int
	ToolTimeout time.Duration
	// Stateless serves each streamable HTTP request without a session id.
	Stateless bool
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Precision == nil || *c.Precision < 0 {
		p := DefaultPrecision
		c.Precision = &p
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	return c
}

type registeredTool struct {
	def    ToolDefinition
	schema *gojsonschema.Schema
}

// Server hosts a tool registry behind an MCP server.
type Server struct {
	cfg    Config
	mcp    *mcp.Server
	logger zerolog.Logger

	mu    sync.RWMutex
	tools map[string]*registeredTool

	httpMu     sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	done       chan error
}

// New creates a server with no tools registered.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	observability.EnsureRegistered()

	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	cfg = cfg.withDefaults()

	s := &Server{
		cfg:    cfg,
		mcp:    mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		logger: logger.With().Str("server", cfg.Name).Logger(),
		tools:  make(map[string]*registeredTool),
	}
	return s, nil
}

// Name returns the server name announced during the handshake.
func (s *Server) Name() string {
	return s.cfg.Name
}

// MCPServer returns the underlying MCP server, e.g. to connect an in-memory transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// RegisterTool registers a tool. Registering a name that already exists is a no-op.
func (s *Server) RegisterTool(def ToolDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	inputSchema := def.InputSchema()
	schema, err := compileSchema(inputSchema)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.tools[def.Name]; exists {
		s.mu.Unlock()
		s.logger.Debug().Str("tool", def.Name).Msg("Tool already registered")
		return nil
	}
	s.tools[def.Name] = &registeredTool{def: def, schema: schema}
	count := len(s.tools)
	s.mu.Unlock()

	s.mcp.AddTool(&mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: inputSchema,
	}, s.toolHandler(def.Name))

	observability.SetToolsRegistered(count)
	observability.RecordRegistryAudit("register", def.Name, s.cfg.Name)
	s.logger.Info().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// RegisterTools registers several tools, stopping at the first invalid one.
func (s *Server) RegisterTools(defs ...ToolDefinition) error {
	for _, def := range defs {
		if err := s.RegisterTool(def); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return nil
}

// UnregisterTool removes a tool. Unknown names are ignored.
func (s *Server) UnregisterTool(name string) {
	s.mu.Lock()
	if _, exists := s.tools[name]; !exists {
		s.mu.Unlock()
		return
	}
	delete(s.tools, name)
	count := len(s.tools)
	s.mu.Unlock()

	s.mcp.RemoveTools(name)

	observability.SetToolsRegistered(count)
	observability.RecordRegistryAudit("unregister", name, s.cfg.Name)
	s.logger.Info().Str("tool", name).Msg("Tool unregistered")
}

// UnregisterTools removes several tools.
func (s *Server) UnregisterTools(names ...string) {
	for _, name := range names {
		s.UnregisterTool(name)
	}
}

// Tools returns the registered tool names in sorted order.
func (s *Server) Tools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke validates params, runs the tool and formats its result as rounded JSON.
func (s *Server) Invoke(ctx context.Context, name string, params map[string]interface{}) (string, error) {
	startTime := time.Now()
	if params == nil {
		params = map[string]interface{}{}
	}

	s.mu.RLock()
	tool := s.tools[name]
	s.mu.RUnlock()

	if tool == nil {
		return "", fmt.Errorf("tool not found: %s", name)
	}

	s.logger.Info().Str("tool", name).Interface("params", params).Msg("Received command")

	if err := validateParameters(tool.schema, params); err != nil {
		s.finishInvoke(name, startTime, err)
		return "", fmt.Errorf("parameter validation failed: %w", err)
	}

	result, err := s.execute(ctx, tool, params)
	if err != nil {
		s.finishInvoke(name, startTime, err)
		return "", err
	}

	formatted, err := RoundingMarshal(result, *s.cfg.Precision)
	if err != nil {
		err = fmt.Errorf("failed to encode result: %w", err)
		s.finishInvoke(name, startTime, err)
		return "", err
	}

	s.finishInvoke(name, startTime, nil)
	s.logger.Info().
		Str("tool", name).
		Str("result", formatted).
		Msg("Selected function executed")
	return formatted, nil
}

func (s *Server) execute(ctx context.Context, tool *registeredTool, params map[string]interface{}) (interface{}, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.cfg.ToolTimeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	resultChan := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		result, err := tool.def.Handler(timeoutCtx, applyDefaults(tool.def, params))
		resultChan <- outcome{result: result, err: err}
	}()

	select {
	case out := <-resultChan:
		return out.result, out.err
	case <-timeoutCtx.Done():
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("tool execution timeout after %v", s.cfg.ToolTimeout)
		}
		return nil, fmt.Errorf("tool execution cancelled: %w", timeoutCtx.Err())
	}
}

func (s *Server) finishInvoke(name string, startTime time.Time, err error) {
	duration := time.Since(startTime)
	observability.RecordToolExecution(name, duration, err == nil)

	status := "success"
	metadata := map[string]interface{}{"durationMs": duration.Milliseconds()}
	if err != nil {
		status = "failure"
		metadata["error"] = err.Error()
		s.logger.Error().Str("tool", name).Dur("duration", duration).Err(err).Msg("Tool execution failed")
	}
	observability.RecordToolAudit(name, s.cfg.Name, status, metadata)
}

func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := map[string]interface{}{}
		if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
				return errorResult(name, fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}

		result, err := s.Invoke(ctx, name, params)
		if err != nil {
			return errorResult(name, err), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result}},
		}, nil
	}
}

func errorResult(name string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error executing tool %s: %v", name, err)}},
	}
}
