package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/harun/mcplink/internal/config"
	"github.com/harun/mcplink/internal/observability"
	"github.com/harun/mcplink/pkg/agent"
	"github.com/harun/mcplink/pkg/commandqueue"
	"github.com/harun/mcplink/pkg/gateway"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

type clientOptions struct {
	variant  string
	model    string
	mcpURL   string
	history  bool
	noStream bool
}

var clientFlags clientOptions

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Chat with a model that can call MCP tools",
	Long: `Start the configured variant and read commands from stdin.

Each line is queued as a command. Control lines:
  /skip   abandon the command being processed
  /clear  drop the conversation history
  /stop   stop the client
  exit    stop the client and quit`,
	Args: cobra.NoArgs,
	RunE: runClient,
}

func init() {
	clientCmd.Flags().StringVar(&clientFlags.variant, "variant", "", "variant to start (default from config)")
	clientCmd.Flags().StringVar(&clientFlags.model, "model", "", "model override")
	clientCmd.Flags().StringVar(&clientFlags.mcpURL, "mcp-url", "", "tool server URL override")
	clientCmd.Flags().BoolVar(&clientFlags.history, "history", false, "send earlier turns with each command")
	clientCmd.Flags().BoolVar(&clientFlags.noStream, "no-stream", false, "request complete responses instead of streams")
	rootCmd.AddCommand(clientCmd)
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyClientFlags(&cfg.Client)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logs, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.Component("client")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	printer := newEventPrinter(out)

	var gw *gateway.Server
	registry := agent.NewDefaultRegistry(agent.RegistryConfig{
		Logger: logs.Component("agent"),
		OnCreate: func(c *agent.Client) {
			c.On(agent.EventAll, printer.Handle)
		},
	})

	variant, ok := registry.Variant(cfg.Client.Variant)
	if !ok {
		return fmt.Errorf("unknown variant: %s", cfg.Client.Variant)
	}
	clientCfg := cfg.Client.AgentConfig(variant.Provider.DefaultConfig())

	client, err := registry.TryStart(ctx, variant.ID, &clientCfg)
	if err != nil {
		return err
	}
	defer registry.StopAll()

	if cfg.Gateway.Enabled {
		gw, err = startGateway(cfg.Gateway, client, logs.Component("gateway"))
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := shutdownContext()
			defer cancel()
			_ = gw.Stop(shutdownCtx)
		}()
	}

	if cfg.Metrics.Enabled {
		metricsSrv := startMetrics(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := shutdownContext()
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	if watcher := watchClientConfig(client, variant, logger); watcher != nil {
		defer watcher.Stop()
	}

	info := client.Info()
	fmt.Fprintf(out, "%s (%s) model %s. Type a command, or exit to quit.\n", info.Name, variant.ID, clientCfg.Model)

	runREPL(ctx, cmd.InOrStdin(), out, client)

	client.RequestStop()
	select {
	case <-client.Done():
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("Client did not stop in time")
	}

	var connErr *agent.TransportConnectError
	if errors.As(client.Err(), &connErr) {
		return connErr
	}
	return nil
}

func applyClientFlags(client *config.ClientConfig) {
	if clientFlags.variant != "" {
		client.Variant = clientFlags.variant
	}
	if clientFlags.model != "" {
		client.Model = clientFlags.model
	}
	if clientFlags.mcpURL != "" {
		client.MCPURL = clientFlags.mcpURL
	}
	if clientFlags.history {
		client.UseHistory = true
	}
	if clientFlags.noStream {
		client.Stream = false
	}
}

// watchClientConfig applies edits of the config file to the running client.
// Flag overrides keep precedence. A variant change needs a restart.
func watchClientConfig(client *agent.Client, variant agent.Variant, logger zerolog.Logger) *config.Watcher {
	loader := config.NewLoader(cfgFile)
	if _, err := os.Stat(loader.GetConfigPath()); err != nil {
		return nil
	}

	watcher, err := config.NewWatcher(loader, 0, func(cfg *config.Config) {
		applyClientFlags(&cfg.Client)
		if cfg.Client.Variant != variant.ID {
			logger.Warn().Str("variant", cfg.Client.Variant).Msg("Variant changed in config; restart to apply")
			return
		}
		client.SetConfig(cfg.Client.AgentConfig(variant.Provider.DefaultConfig()))
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Config reload disabled")
		return nil
	}
	if err := watcher.Start(); err != nil {
		logger.Warn().Err(err).Msg("Config reload disabled")
		_ = watcher.Stop()
		return nil
	}
	return watcher
}

func startGateway(cfg config.GatewayConfig, client *agent.Client, logger zerolog.Logger) (*gateway.Server, error) {
	gw, err := gateway.NewServer(gateway.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		CommandsPerMinute: cfg.CommandsPerMinute,
		Intake:            client,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	client.On(agent.EventAll, gw.HandleEvent)
	if err := gw.Start(); err != nil {
		return nil, err
	}
	return gw, nil
}

func startMetrics(addr string, logger zerolog.Logger) *http.Server {
	observability.EnsureRegistered()
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics listener failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}

// commandClient is what the REPL drives.
type commandClient interface {
	Enqueue(text string) (commandqueue.Command, error)
	RequestStop()
	RequestSkip()
	RequestClear()
	Done() <-chan struct{}
}

// runREPL reads lines until exit, /stop, end of input, ctx cancellation or the
// client loop ending on its own.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, client commandClient) {
	lines := make(chan string)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-quit:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			fmt.Fprintln(out, "Client stopped.")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handleLine(strings.TrimSpace(line), out, client) {
				return
			}
		}
	}
}

// handleLine applies one input line. It returns false when the REPL should end.
func handleLine(line string, out io.Writer, client commandClient) bool {
	switch line {
	case "":
		return true
	case "exit", "/stop":
		client.RequestStop()
		return false
	case "/skip":
		client.RequestSkip()
		fmt.Fprintln(out, "Skipping current command.")
		return true
	case "/clear":
		client.RequestClear()
		fmt.Fprintln(out, "History will be cleared before the next command.")
		return true
	}

	if _, err := client.Enqueue(line); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return !errors.Is(err, agent.ErrClientStopped)
	}
	return true
}

// eventPrinter renders client events as terminal text.
type eventPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newEventPrinter(out io.Writer) *eventPrinter {
	return &eventPrinter{out: out}
}

// Handle is an agent.EventHandler.
func (p *eventPrinter) Handle(event agent.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Type {
	case agent.EventText:
		fmt.Fprint(p.out, event.Text)
	case agent.EventToolCall:
		fmt.Fprintf(p.out, "\n[tool] %s %s\n", event.ToolCall.Function.Name, event.ToolCall.Function.Arguments)
	case agent.EventToolResult:
		fmt.Fprintf(p.out, "[%s] %s\n", event.Result.Type, truncate(event.Result.Payload, 500))
	case agent.EventCommandDone:
		fmt.Fprintln(p.out)
	case agent.EventCommandSkipped:
		fmt.Fprintln(p.out, "\n[skipped]")
	case agent.EventCommandFailed:
		fmt.Fprintf(p.out, "\n[error] %s\n", event.Error)
	}
}

// truncate keeps the first max runes of s.
func truncate(s string, max int) string {
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
