package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/harun/mcplink/pkg/coretools"
	"github.com/harun/mcplink/pkg/rpcsession"
	"github.com/harun/mcplink/pkg/toolserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type chatRecorder struct {
	mu       sync.Mutex
	requests []ChatRequest
	headers  []http.Header
}

func (r *chatRecorder) add(req ChatRequest, header http.Header) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	r.headers = append(r.headers, header.Clone())
	return len(r.requests)
}

func (r *chatRecorder) all() []ChatRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChatRequest(nil), r.requests...)
}

func (r *chatRecorder) header(i int) http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers[i]
}

// newChatServer serves the chat endpoint. respond gets the 1-based request number.
func newChatServer(t *testing.T, respond func(n int, req ChatRequest, w http.ResponseWriter)) (*httptest.Server, *chatRecorder) {
	t.Helper()
	rec := &chatRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n := rec.add(req, r.Header)
		respond(n, req, w)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func writeSSE(w http.ResponseWriter, chunks ...interface{}) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, chunk := range chunks {
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func textChunk(text string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"delta": map[string]interface{}{"content": text}},
		},
	}
}

func toolChunk(index int, id, name, args string) map[string]interface{} {
	call := map[string]interface{}{
		"index":    index,
		"function": map[string]interface{}{"arguments": args},
	}
	if id != "" {
		call["id"] = id
		call["type"] = "function"
	}
	if name != "" {
		call["function"].(map[string]interface{})["name"] = name
	}
	return map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"delta": map[string]interface{}{"tool_calls": []interface{}{call}}},
		},
	}
}

func newToolServer(t *testing.T) *toolserver.Server {
	t.Helper()
	srv, err := toolserver.New(toolserver.Config{Name: "test-tools"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, coretools.RegisterCommonTools(srv, coretools.Options{}))
	return srv
}

func inMemoryConnector(t *testing.T, server *mcp.Server) rpcsession.Connector {
	return func(ctx context.Context, url string) (rpcsession.Session, error) {
		serverTransport, clientTransport := mcp.NewInMemoryTransports()
		serverSession, err := server.Connect(ctx, serverTransport, nil)
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { _ = serverSession.Close() })
		return rpcsession.ConnectTransport(ctx, clientTransport)
	}
}

func newTestClient(t *testing.T, chatURL string, tools *toolserver.Server, mutate func(*Config)) *Client {
	t.Helper()
	provider := NewOpenAIProvider()
	cfg := provider.DefaultConfig()
	cfg.BaseURL = chatURL
	cfg.APIKey = "sk-test"
	cfg.PollInterval = 20 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := NewClient(ClientOptions{
		Variant:   "test",
		Provider:  provider,
		Config:    &cfg,
		Connector: inMemoryConnector(t, tools.MCPServer()),
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.RequestStop()
		if client.started.Load() {
			select {
			case <-client.Done():
			case <-time.After(5 * time.Second):
				t.Error("client did not stop")
			}
		}
	})
	return client
}

func subscribe(client *Client) <-chan Event {
	events := make(chan Event, 256)
	client.On(EventAll, func(e Event) {
		events <- e
	})
	return events
}

// waitCommand returns the next command completion event, collecting the others.
func waitCommand(t *testing.T, events <-chan Event) (Event, []Event) {
	t.Helper()
	var seen []Event
	for {
		select {
		case e := <-events:
			switch e.Type {
			case EventCommandDone, EventCommandSkipped, EventCommandFailed:
				return e, seen
			}
			seen = append(seen, e)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for command to finish")
			return Event{}, nil
		}
	}
}

func startClient(t *testing.T, client *Client) {
	t.Helper()
	require.NoError(t, client.Start(context.Background()))
	require.Eventually(t, func() bool { return len(client.Tools()) > 0 }, 5*time.Second, 5*time.Millisecond)
}

// newModelsServer serves an OpenAI-style model list and counts the hits.
func newModelsServer(t *testing.T, hits *int) (*httptest.Server, *sync.Mutex) {
	t.Helper()
	mu := &sync.Mutex{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" && r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		*hits++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"id":"beta","object":"model","created":0,"owned_by":"test"},
			{"id":"alpha","object":"model","created":0,"owned_by":"test"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, mu
}
