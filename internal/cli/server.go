package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/harun/mcplink/internal/config"
	"github.com/harun/mcplink/internal/observability"
	"github.com/harun/mcplink/pkg/coretools"
	"github.com/harun/mcplink/pkg/toolserver"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serverFlags struct {
	host      string
	port      int
	path      string
	workspace string
	stateless bool
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the built-in tools over MCP",
	Long: `Serve get_system_info, get_file_info and list_directory_contents over
MCP streamable HTTP. Metrics are exposed on /metrics of the same listener.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&serverFlags.host, "host", "", "listen host (default from config)")
	serverCmd.Flags().IntVar(&serverFlags.port, "port", -1, "listen port (default from config)")
	serverCmd.Flags().StringVar(&serverFlags.path, "path", "", "MCP endpoint path (default from config)")
	serverCmd.Flags().StringVar(&serverFlags.workspace, "workspace", "", "confine file tools to this directory")
	serverCmd.Flags().BoolVar(&serverFlags.stateless, "stateless", false, "serve without MCP sessions")
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServerFlags(cmd, &cfg.Server)
	if err := config.NewValidator().ValidatePort("server.port", cfg.Server.Port); err != nil {
		return err
	}

	logs, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logs.Close()

	if cfg.DataDir != "" {
		if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
			zl := logs.Zerolog()
			zl.Warn().Err(err).Msg("Audit log disabled")
		}
		defer observability.GetAuditLogger().Close()
	}

	srv, err := newToolServer(cfg.Server, logs.Component("toolserver"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, true)
}

func applyServerFlags(cmd *cobra.Command, server *config.ServerConfig) {
	if serverFlags.host != "" {
		server.Host = serverFlags.host
	}
	if cmd.Flags().Changed("port") {
		server.Port = serverFlags.port
	}
	if serverFlags.path != "" {
		server.Path = serverFlags.path
	}
	if serverFlags.workspace != "" {
		server.WorkspaceRoot = serverFlags.workspace
	}
	if serverFlags.stateless {
		server.Stateless = true
	}
}

// newToolServer builds a tool server with the built-in tools registered.
func newToolServer(server config.ServerConfig, logger zerolog.Logger) (*toolserver.Server, error) {
	srv, err := toolserver.New(server.ToolServerConfig(version), logger)
	if err != nil {
		return nil, err
	}
	if err := coretools.RegisterCommonTools(srv, coretools.Options{WorkspaceRoot: server.WorkspaceRoot}); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return srv, nil
}

// shutdownContext bounds graceful shutdown after the command context ends.
func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}
