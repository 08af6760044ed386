package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/mcplink/internal/observability"
	"github.com/harun/mcplink/pkg/agent"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Server accepts commands over WebSocket and broadcasts client events.
type Server struct {
	host              string
	port              int
	commandsPerMinute int
	intake            Intake
	server            *http.Server
	listener          net.Listener
	upgrader          websocket.Upgrader
	clients           *ClientRegistry
	broadcaster       *EventBroadcaster
	logger            zerolog.Logger
	isShuttingDown    bool
	shutdownMu        sync.RWMutex
}

// Config holds server configuration
type Config struct {
	Host string
	// Port 0 picks a free port.
	Port              int
	CommandsPerMinute int
	Intake            Intake
	Logger            zerolog.Logger
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Intake == nil {
		return nil, fmt.Errorf("intake is required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.CommandsPerMinute == 0 {
		cfg.CommandsPerMinute = DefaultCommandsPerMinute
	}

	clients := NewClientRegistry()
	return &Server{
		host:              cfg.Host,
		port:              cfg.Port,
		commandsPerMinute: cfg.CommandsPerMinute,
		intake:            cfg.Intake,
		clients:           clients,
		broadcaster:       NewEventBroadcaster(clients, cfg.Logger),
		logger:            cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local use only
			},
		},
	}, nil
}

// Handler serves /ws, /metrics and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.shutdownMu.Lock()
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.server
	s.shutdownMu.Unlock()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting gateway server")

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes every connection and shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	server := s.server
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")
	s.broadcaster.Broadcast("server.shutdown", map[string]interface{}{
		"message": "Server is shutting down",
	})

	// Hijacked connections are not closed by Shutdown.
	for _, client := range s.clients.Snapshot() {
		_ = client.Conn.Close()
	}

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// HandleEvent forwards a client event to every connection. Register it with
// agent.Client.On(agent.EventAll, ...).
func (s *Server) HandleEvent(event agent.Event) {
	s.broadcaster.BroadcastClientEvent(event)
}

// Broadcast sends a custom event to every connection
func (s *Server) Broadcast(event string, data interface{}) {
	s.broadcaster.Broadcast(event, data)
}

// GetConnectedClients describes all connected clients
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.clients.Describe(time.Now())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, err := gonanoid.New()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate client id")
		_ = conn.Close()
		return
	}
	now := time.Now()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    r.RemoteAddr,
		RateLimiter:  NewCommandRateLimiter(s.commandsPerMinute),
	}
	s.clients.Add(client)

	s.logger.Info().Str("clientId", clientID).Str("ip", r.RemoteAddr).Msg("Client connected")

	go s.handleClient(client)
}

func (s *Server) handleClient(client *Client) {
	defer func() {
		_ = client.Conn.Close()
		if s.clients.Remove(client.ID) {
			s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
		}
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}

		s.clients.Touch(client.ID, time.Now())
		s.reply(client, s.handleFrame(client, message))
	}
}

// handleFrame maps one inbound frame onto the intake.
func (s *Server) handleFrame(client *Client, message []byte) Reply {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		return Reply{Type: "error", Message: "invalid frame: " + err.Error()}
	}

	logger := s.logger.With().Str("clientId", client.ID).Str("frame", string(frame.Type)).Logger()

	switch frame.Type {
	case FrameCommand:
		text := strings.TrimSpace(frame.Text)
		if text == "" {
			return Reply{Type: "error", Frame: string(frame.Type), Message: "command text is required"}
		}
		if !client.RateLimiter.Allow() {
			logger.Warn().Msg("Command rate limit exceeded")
			return Reply{Type: "error", Frame: string(frame.Type), Message: "rate limit exceeded"}
		}
		cmd, err := s.intake.Enqueue(text)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to enqueue command")
			return Reply{Type: "error", Frame: string(frame.Type), Message: err.Error()}
		}
		logger.Info().Str("commandId", cmd.ID).Msg("Command received")
		return Reply{Type: "ack", Frame: string(frame.Type), CommandID: cmd.ID}
	case FrameStop:
		s.intake.RequestStop()
	case FrameSkip:
		s.intake.RequestSkip()
	case FrameClear:
		s.intake.RequestClear()
	default:
		return Reply{Type: "error", Frame: string(frame.Type), Message: fmt.Sprintf("unknown frame type: %q", frame.Type)}
	}

	logger.Info().Msg("Control frame received")
	return Reply{Type: "ack", Frame: string(frame.Type)}
}

func (s *Server) reply(client *Client, reply Reply) {
	if err := client.WriteJSON(reply); err != nil {
		s.logger.Error().Err(err).Str("clientId", client.ID).Msg("Failed to send reply")
	}
}
