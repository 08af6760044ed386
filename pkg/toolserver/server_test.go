package toolserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/harun/mcplink/pkg/rpcsession"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(Config{Name: "test-tools", Host: "127.0.0.1"}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, srv.RegisterTools(
		ToolDefinition{
			Name:        "divide",
			Description: "Divide a by b",
			Parameters: []ToolParameter{
				{Name: "a", Type: "number", Description: "Dividend", Required: true},
				{Name: "b", Type: "number", Description: "Divisor", Required: true},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				b := params["b"].(float64)
				if b == 0 {
					return nil, errors.New("division by zero")
				}
				return map[string]interface{}{"result": params["a"].(float64) / b}, nil
			},
		},
		ToolDefinition{
			Name:        "greet",
			Description: "Greet someone",
			Parameters: []ToolParameter{
				{Name: "name", Type: "string", Description: "Who to greet", Default: "world"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				return "hello " + params["name"].(string), nil
			},
		},
	))
	return srv
}

func TestToolDefinition_Validate(t *testing.T) {
	noop := func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil }

	tests := []struct {
		name    string
		def     ToolDefinition
		wantErr string
	}{
		{name: "missing name", def: ToolDefinition{Description: "d", Handler: noop}, wantErr: "tool name"},
		{name: "missing description", def: ToolDefinition{Name: "t", Handler: noop}, wantErr: "description"},
		{name: "missing handler", def: ToolDefinition{Name: "t", Description: "d"}, wantErr: "handler"},
		{
			name: "bad type",
			def: ToolDefinition{Name: "t", Description: "d", Handler: noop, Parameters: []ToolParameter{
				{Name: "x", Type: "decimal", Description: "x"},
			}},
			wantErr: "invalid parameter type",
		},
		{
			name: "missing parameter description",
			def: ToolDefinition{Name: "t", Description: "d", Handler: noop, Parameters: []ToolParameter{
				{Name: "x", Type: "string"},
			}},
			wantErr: "parameter description",
		},
		{
			name: "duplicate parameter",
			def: ToolDefinition{Name: "t", Description: "d", Handler: noop, Parameters: []ToolParameter{
				{Name: "x", Type: "string", Description: "x"},
				{Name: "x", Type: "string", Description: "x"},
			}},
			wantErr: "duplicate parameter",
		},
		{name: "valid", def: ToolDefinition{Name: "t", Description: "d", Handler: noop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToolDefinition_InputSchema(t *testing.T) {
	def := ToolDefinition{
		Name:        "t",
		Description: "d",
		Parameters: []ToolParameter{
			{Name: "path", Type: "string", Description: "Where to look", Required: true},
			{Name: "depth", Type: "integer", Description: "How deep", Default: 1},
		},
	}

	schema := def.InputSchema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"path"}, schema["required"])

	props := schema["properties"].(map[string]interface{})
	path := props["path"].(map[string]interface{})
	assert.Equal(t, "Where to look", path["description"])
	depth := props["depth"].(map[string]interface{})
	assert.Equal(t, 1, depth["default"])
}

func TestServer_RegisterIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, []string{"divide", "greet"}, srv.Tools())

	require.NoError(t, srv.RegisterTool(ToolDefinition{
		Name:        "divide",
		Description: "replacement",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "replaced", nil
		},
	}))
	out, err := srv.Invoke(context.Background(), "divide", map[string]interface{}{"a": 1.0, "b": 4.0})
	require.NoError(t, err)
	assert.Equal(t, `{"result":0.25}`, out)
}

func TestServer_Unregister(t *testing.T) {
	srv := newTestServer(t)

	srv.UnregisterTool("greet")
	srv.UnregisterTool("greet")
	srv.UnregisterTools("missing")
	assert.Equal(t, []string{"divide"}, srv.Tools())

	_, err := srv.Invoke(context.Background(), "greet", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool not found")
}

func TestServer_Invoke(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("rounds floats", func(t *testing.T) {
		out, err := srv.Invoke(ctx, "divide", map[string]interface{}{"a": 1.0, "b": 3.0})
		require.NoError(t, err)
		assert.Equal(t, `{"result":0.33}`, out)
	})

	t.Run("applies defaults", func(t *testing.T) {
		out, err := srv.Invoke(ctx, "greet", nil)
		require.NoError(t, err)
		assert.Equal(t, `"hello world"`, out)
	})

	t.Run("handler error", func(t *testing.T) {
		_, err := srv.Invoke(ctx, "divide", map[string]interface{}{"a": 1.0, "b": 0.0})
		require.Error(t, err)
		assert.Equal(t, "division by zero", err.Error())
	})

	t.Run("schema violation", func(t *testing.T) {
		_, err := srv.Invoke(ctx, "divide", map[string]interface{}{"a": "one"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parameter validation failed")
	})

	t.Run("unknown parameter", func(t *testing.T) {
		_, err := srv.Invoke(ctx, "greet", map[string]interface{}{"nickname": "bob"})
		require.Error(t, err)
	})
}

func TestServer_Precision(t *testing.T) {
	third := func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"value": 2.0 / 3.0, "count": 7}, nil
	}
	invoke := func(t *testing.T, precision *int) string {
		t.Helper()
		srv, err := New(Config{Precision: precision}, zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, srv.RegisterTool(ToolDefinition{Name: "third", Description: "Two thirds", Handler: third}))
		out, err := srv.Invoke(context.Background(), "third", nil)
		require.NoError(t, err)
		return out
	}
	intPtr := func(v int) *int { return &v }

	assert.Equal(t, `{"count":7,"value":0.67}`, invoke(t, nil))
	assert.Equal(t, `{"count":7,"value":1}`, invoke(t, intPtr(0)))
	assert.Equal(t, `{"count":7,"value":0.6667}`, invoke(t, intPtr(4)))
	assert.Equal(t, `{"count":7,"value":0.67}`, invoke(t, intPtr(-1)))
}

func TestServer_Timeout(t *testing.T) {
	srv, err := New(Config{ToolTimeout: 20 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, srv.RegisterTool(ToolDefinition{
		Name:        "slow",
		Description: "Never returns in time",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return nil, ctx.Err()
		},
	}))

	_, err = srv.Invoke(context.Background(), "slow", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestServer_OverMCP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	session, err := rpcsession.ConnectTransport(ctx, clientTransport)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	contents, err := session.CallTool(ctx, "divide", map[string]interface{}{"a": 10, "b": 4})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, rpcsession.Content{Type: rpcsession.ContentText, Payload: `{"result":2.5}`}, contents[0])

	contents, err = session.CallTool(ctx, "divide", map[string]interface{}{"a": 1, "b": 0})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, rpcsession.ContentError, contents[0].Type)
	assert.Equal(t, "Error executing tool divide: division by zero", contents[0].Payload)
}

func TestServer_RunNonBlocking(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, srv.Run(ctx, false))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	assert.ErrorIs(t, srv.Run(ctx, false), ErrAlreadyRunning)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	session, err := rpcsession.Connect(ctx, srv.URL())
	require.NoError(t, err)
	defer session.Close()

	contents, err := session.CallTool(ctx, "greet", map[string]interface{}{"name": "mcp"})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, `"hello mcp"`, contents[0].Payload)
}

func TestServer_RunBlockingStopsOnCancel(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, true) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("blocking run did not return after cancel")
	}
	assert.Equal(t, "", srv.Addr())
}
