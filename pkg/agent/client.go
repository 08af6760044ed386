package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/mcplink/internal/observability"
	"github.com/harun/mcplink/pkg/arguments"
	"github.com/harun/mcplink/pkg/commandqueue"
	"github.com/harun/mcplink/pkg/conversation"
	"github.com/harun/mcplink/pkg/rpcsession"
	"github.com/harun/mcplink/pkg/toolcall"
	"github.com/rs/zerolog"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	Variant    string
	Provider   Provider
	Config     *Config
	HTTPClient *http.Client
	Connector  rpcsession.Connector
	Logger     zerolog.Logger
}

// Client drives the command loop for one vendor variant.
type Client struct {
	variant    string
	provider   Provider
	httpClient *http.Client
	connect    rpcsession.Connector
	logger     zerolog.Logger

	cfgMu sync.RWMutex
	cfg   Config

	channel *commandqueue.Channel
	history *conversation.Store

	session  rpcsession.Session
	toolsMu  sync.RWMutex
	tools    []rpcsession.ToolDescriptor
	running  atomic.Bool
	started  atomic.Bool
	done     chan struct{}
	runErrMu sync.Mutex
	runErr   error

	handlersMu sync.RWMutex
	handlers   map[EventType][]EventHandler

	modelsMu sync.Mutex
	models   []string
}

// NewClient creates a client. Without a Config the provider defaults apply.
func NewClient(opts ClientOptions) (*Client, error) {
	observability.EnsureRegistered()

	if opts.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if opts.Variant == "" {
		opts.Variant = opts.Provider.Info().Name
	}

	cfg := opts.Provider.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}
	connector := opts.Connector
	if connector == nil {
		connector = rpcsession.Connect
	}

	return &Client{
		variant:    opts.Variant,
		provider:   opts.Provider,
		httpClient: httpClient,
		connect:    connector,
		logger:     opts.Logger.With().Str("variant", opts.Variant).Logger(),
		cfg:        cfg.Normalize(),
		channel:    commandqueue.NewNamedChannel(opts.Variant),
		history:    conversation.NewStore(),
		done:       make(chan struct{}),
		handlers:   make(map[EventType][]EventHandler),
	}, nil
}

// Variant returns the variant id this client was created for.
func (c *Client) Variant() string {
	return c.variant
}

// Info returns the provider description.
func (c *Client) Info() Info {
	return c.provider.Info()
}

// Config returns a copy of the current settings.
func (c *Client) Config() Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

// SetConfig replaces the settings. It takes effect at the next chat round;
// MCPURL only matters before Run connects.
func (c *Client) SetConfig(cfg Config) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	c.cfg = cfg.Normalize()
}

// ResetConfig restores the provider's base URL, key and model and turns history off.
func (c *Client) ResetConfig() {
	defaults := c.provider.DefaultConfig()
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()
	c.cfg.BaseURL = strings.TrimRight(defaults.BaseURL, "/")
	c.cfg.APIKey = defaults.APIKey
	c.cfg.Model = defaults.Model
	c.cfg.UseHistory = false
	c.logger.Debug().Msg("Client configuration reset")
}

// Enqueue queues a command for the worker loop.
func (c *Client) Enqueue(text string) (commandqueue.Command, error) {
	if c.channel.ShouldStop() {
		return commandqueue.Command{}, ErrClientStopped
	}
	cmd, err := c.channel.Enqueue(text)
	if errors.Is(err, commandqueue.ErrQueueClosed) {
		return commandqueue.Command{}, ErrClientStopped
	}
	return cmd, err
}

// RequestStop asks the loop to exit and drops the commands still waiting. It is
// cooperative: the loop notices the flag between steps, at the latest one poll
// interval after an idle wait, but a chat request or tool call already in flight
// runs to completion first.
func (c *Client) RequestStop() {
	c.channel.RequestStop()
	if dropped := c.channel.Drain(); dropped > 0 {
		c.logger.Info().Int("dropped", dropped).Msg("Dropped waiting commands on stop")
	}
}

// RequestSkip abandons the current command at the next step boundary.
func (c *Client) RequestSkip() {
	c.channel.RequestSkip()
}

// RequestClear drops the history recorded so far before the next command starts.
func (c *Client) RequestClear() {
	c.history.RequestClear()
}

// ShouldStop reports whether a stop was requested.
func (c *Client) ShouldStop() bool {
	return c.channel.ShouldStop()
}

// Processing reports whether a command is being processed.
func (c *Client) Processing() bool {
	return c.channel.Processing()
}

// IsRunning reports whether the worker loop is active.
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// Pending returns the number of queued commands.
func (c *Client) Pending() int {
	return c.channel.Len()
}

// History returns a copy of the conversation history.
func (c *Client) History() []conversation.Message {
	return c.history.Messages()
}

// Tools returns the tools listed by the session at connect time.
func (c *Client) Tools() []rpcsession.ToolDescriptor {
	c.toolsMu.RLock()
	defer c.toolsMu.RUnlock()
	out := make([]rpcsession.ToolDescriptor, len(c.tools))
	copy(out, c.tools)
	return out
}

// Models returns the endpoint's models, sorted. The list is cached until force is set.
func (c *Client) Models(ctx context.Context, force bool) ([]string, error) {
	c.modelsMu.Lock()
	defer c.modelsMu.Unlock()

	if len(c.models) > 0 && !force {
		return append([]string(nil), c.models...), nil
	}

	c.logger.Info().Msg("Fetching model list")
	models, err := c.provider.ListModels(ctx, c.Config(), c.httpClient)
	if err != nil {
		return nil, err
	}
	c.models = models
	return append([]string(nil), models...), nil
}

// On registers handler for events of type eventType, or all events with EventAll.
func (c *Client) On(eventType EventType, handler EventHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// Off removes all handlers for eventType.
func (c *Client) Off(eventType EventType) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	delete(c.handlers, eventType)
}

func (c *Client) emit(event Event) {
	event.Variant = c.variant
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	c.handlersMu.RLock()
	handlers := append([]EventHandler(nil), c.handlers[event.Type]...)
	handlers = append(handlers, c.handlers[EventAll]...)
	c.handlersMu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Start runs the loop on a new goroutine. Use Done and Err to observe its end.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.running.Store(true)
	go func() {
		c.logRunEnd(ctx, c.run(ctx))
	}()
	return nil
}

// logRunEnd reports how a background run ended. Cancellation by the caller is not an error.
func (c *Client) logRunEnd(ctx context.Context, err error) {
	switch {
	case err == nil:
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		c.logger.Debug().Err(err).Msg("Client run cancelled")
	default:
		c.logger.Error().Err(err).Msg("Client run ended with error")
	}
	c.logger.Info().Msg("Client finished running")
}

// Run connects and processes commands until stopped or ctx is cancelled.
// It returns a *TransportConnectError when the handshake fails.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.running.Store(true)
	return c.run(ctx)
}

// Done is closed when the loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Finished reports whether the loop has exited.
func (c *Client) Finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Err returns the loop's terminal error once Done is closed.
func (c *Client) Err() error {
	c.runErrMu.Lock()
	defer c.runErrMu.Unlock()
	return c.runErr
}

func (c *Client) run(ctx context.Context) (err error) {
	observability.SetClientRunning(c.variant, true)
	defer func() {
		c.cleanup()
		c.runErrMu.Lock()
		c.runErr = err
		c.runErrMu.Unlock()
		c.running.Store(false)
		observability.SetClientRunning(c.variant, false)
		close(c.done)
	}()

	if err := c.connectSession(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Connection failed, check the network connection or server address")
		return err
	}

	c.logger.Info().Msg("Connected to tool server")
	for {
		c.channel.EndCommand()
		if c.history.Update() {
			c.logger.Debug().Msg("Conversation history cleared")
		}
		if c.channel.ShouldStop() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd, ok := c.channel.Poll()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Config().PollInterval):
			}
			continue
		}

		c.processCommand(ctx, cmd)
	}
}

func (c *Client) connectSession(ctx context.Context) error {
	url := c.Config().MCPURL
	c.logger.Info().Str("url", url).Msg("Connecting to tool server")

	session, err := c.connect(ctx, url)
	if err != nil {
		return &TransportConnectError{URL: url, Err: err}
	}

	tools, err := session.ListTools(ctx)
	if err != nil {
		_ = session.Close()
		return &TransportConnectError{URL: url, Err: err}
	}

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	c.logger.Info().Strs("tools", names).Msg("Available tools")

	c.session = session
	c.toolsMu.Lock()
	c.tools = tools
	c.toolsMu.Unlock()
	return nil
}

func (c *Client) cleanup() {
	c.channel.EndCommand()
	_ = c.channel.Close()
	if c.session != nil {
		if err := c.session.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Failed to close session")
		}
		c.session = nil
	}
	c.httpClient.CloseIdleConnections()
}

// processCommand handles one command. Every failure is contained here.
func (c *Client) processCommand(ctx context.Context, cmd commandqueue.Command) {
	startTime := time.Now()
	c.channel.BeginCommand()
	logger := c.logger.With().Str("commandId", cmd.ID).Logger()
	logger.Info().Str("command", cmd.Text).Msg("Processing command")

	err := c.processQuery(ctx, cmd)

	status := "done"
	var httpErr *HTTPStatusError
	switch {
	case errors.As(err, &httpErr):
		status = "error"
		logger.Warn().Err(err).Msg("HTTP error (check api_key, model availability or quota)")
		c.emit(Event{Type: EventCommandFailed, CommandID: cmd.ID, Error: err.Error()})
	case err != nil:
		status = "error"
		logger.Error().Err(err).Msg("Command failed")
		c.emit(Event{Type: EventCommandFailed, CommandID: cmd.ID, Error: err.Error()})
	case c.channel.SkipRequested():
		status = "skipped"
		logger.Info().Str("command", cmd.Text).Msg("Command skipped")
		c.emit(Event{Type: EventCommandSkipped, CommandID: cmd.ID})
	case c.channel.ShouldStop():
		status = "skipped"
		logger.Info().Str("command", cmd.Text).Msg("Command abandoned, client stopping")
		c.emit(Event{Type: EventCommandSkipped, CommandID: cmd.ID})
	default:
		logger.Info().Str("command", cmd.Text).Msg("Command completed")
		c.emit(Event{Type: EventCommandDone, CommandID: cmd.ID})
	}
	observability.RecordCommand(c.variant, status, time.Since(startTime))
}

// processQuery runs chat rounds until the model stops asking for tools.
func (c *Client) processQuery(ctx context.Context, cmd commandqueue.Command) error {
	cfg := c.Config()

	start := 0
	if !cfg.UseHistory {
		start = c.history.Len()
	}
	c.history.Append(conversation.UserMessage(cmd.Text))

	for turn := 0; turn < cfg.MaxTurns; turn++ {
		if c.channel.ShouldSkip() {
			return nil
		}

		messages := append([]conversation.Message{conversation.SystemMessage(cfg.SystemPrompt)}, c.history.Since(start)...)
		result, err := c.chat(ctx, cfg, messages)
		if err != nil {
			return err
		}
		if result.Text != "" {
			c.history.Append(conversation.AssistantMessage(result.Text))
		}
		if result.Skipped || len(result.ToolCalls) == 0 {
			return nil
		}

		for _, call := range result.ToolCalls {
			if c.channel.ShouldSkip() {
				return nil
			}
			c.dispatch(ctx, cmd, call)
		}
		cfg = c.Config()
	}

	c.logger.Warn().Int("maxTurns", cfg.MaxTurns).Str("command", cmd.Text).Msg("Maximum tool turns reached")
	return nil
}

// dispatch invokes one tool call and records the exchange in history.
func (c *Client) dispatch(ctx context.Context, cmd commandqueue.Command, call toolcall.Ref) {
	startTime := time.Now()
	name := call.Function.Name
	raw := strings.TrimSpace(call.Function.Arguments)

	c.logger.Info().Str("tool", name).Str("arguments", raw).Msg("Calling tool")
	callCopy := call
	c.emit(Event{Type: EventToolCall, CommandID: cmd.ID, ToolCall: &callCopy})

	results, failed := c.callTool(ctx, name, raw)
	if len(results) == 0 {
		results = []rpcsession.Content{{Type: rpcsession.ContentText}}
	}

	c.history.Append(conversation.AssistantToolCall(call))
	for i := range results {
		content := fmt.Sprintf("Selected tool: %s\nResult: %s", name, results[i].Payload)
		c.history.Append(conversation.ToolResult(call, content))
		result := results[i]
		c.emit(Event{Type: EventToolResult, CommandID: cmd.ID, ToolCall: &callCopy, Result: &result})
	}

	observability.RecordToolDispatch(name, time.Since(startTime), !failed)
}

// callTool parses arguments and calls the tool. Failures come back as error content.
func (c *Client) callTool(ctx context.Context, name, raw string) ([]rpcsession.Content, bool) {
	args, err := arguments.ParseOrEmpty(raw)
	if err != nil {
		c.logger.Error().Err(err).Str("tool", name).Msg("Argument parsing error")
		return []rpcsession.Content{{Type: rpcsession.ContentError, Payload: "Argument parsing error: " + err.Error()}}, true
	}

	if c.session == nil {
		err := &RemoteToolError{Tool: name, Err: errors.New("session not connected")}
		return []rpcsession.Content{{Type: rpcsession.ContentError, Payload: "Tool call failed: " + err.Error()}}, true
	}

	results, err := c.session.CallTool(ctx, name, args)
	if err != nil {
		toolErr := &RemoteToolError{Tool: name, Err: err}
		c.logger.Error().Err(toolErr).Msg("Tool call failed")
		return []rpcsession.Content{{Type: rpcsession.ContentError, Payload: "Tool call failed: " + err.Error()}}, true
	}

	failed := false
	for i := range results {
		if results[i].Type == rpcsession.ContentText && strings.HasPrefix(results[i].Payload, "Error") {
			results[i].Type = rpcsession.ContentError
		}
		if results[i].Type == rpcsession.ContentError {
			failed = true
			c.logger.Error().Str("tool", name).Str("result", results[i].Payload).Msg("Tool returned an error")
		}
	}
	return results, failed
}
