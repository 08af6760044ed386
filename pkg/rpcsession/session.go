package rpcsession

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ClientName and ClientVersion identify this runtime during the handshake.
const (
	ClientName    = "mcplink"
	ClientVersion = "0.1.0"
)

// ContentType classifies one item of a tool result.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentResource ContentType = "resource"
	ContentError    ContentType = "error"
)

// Content is one flattened item of a tool result.
type Content struct {
	Type    ContentType `json:"type"`
	Payload string      `json:"payload"`
}

// ToolDescriptor describes a remote tool.
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// Session is a connected tool-calling session.
type Session interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) ([]Content, error)
	Close() error
}

// Connector opens a session to url.
type Connector func(ctx context.Context, url string) (Session, error)

type mcpSession struct {
	session *mcp.ClientSession
}

// Connect dials url and performs the MCP handshake.
func Connect(ctx context.Context, rawURL string) (Session, error) {
	transport, err := NewTransport(rawURL)
	if err != nil {
		return nil, err
	}
	return ConnectTransport(ctx, transport)
}

// ConnectTransport performs the MCP handshake over an existing transport.
func ConnectTransport(ctx context.Context, transport mcp.Transport) (Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	client := mcp.NewClient(&mcp.Implementation{Name: ClientName, Version: ClientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp handshake failed: %w", err)
	}
	return &mcpSession{session: session}, nil
}

// NewTransport picks the client transport for url.
func NewTransport(rawURL string) (mcp.Transport, error) {
	endpoint, err := normalizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mcp url: %w", err)
	}
	if IsSSEEndpoint(endpoint) {
		return &mcp.SSEClientTransport{Endpoint: endpoint}, nil
	}
	return &mcp.StreamableClientTransport{Endpoint: endpoint}, nil
}

// IsSSEEndpoint reports whether url targets a legacy SSE endpoint.
func IsSSEEndpoint(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/sse")
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	parsed.Scheme = scheme
	return parsed.String(), nil
}

func (s *mcpSession) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	var tools []ToolDescriptor
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}
		tools = append(tools, toDescriptor(tool))
	}
	return tools, nil
}

func (s *mcpSession) CallTool(ctx context.Context, name string, args map[string]interface{}) ([]Content, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	result, err := s.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return FlattenResult(result), nil
}

func (s *mcpSession) Close() error {
	return s.session.Close()
}

// FlattenResult converts an MCP tool result into content items.
func FlattenResult(result *mcp.CallToolResult) []Content {
	if result == nil {
		return nil
	}
	out := make([]Content, 0, len(result.Content))
	for _, item := range result.Content {
		c := flattenContent(item)
		if result.IsError && c.Type == ContentText {
			c.Type = ContentError
		}
		out = append(out, c)
	}
	return out
}

func flattenContent(item mcp.Content) Content {
	switch c := item.(type) {
	case *mcp.TextContent:
		return Content{Type: ContentText, Payload: c.Text}
	case *mcp.ImageContent:
		return Content{Type: ContentImage, Payload: base64.StdEncoding.EncodeToString(c.Data)}
	case *mcp.EmbeddedResource:
		if c.Resource == nil {
			return Content{Type: ContentResource}
		}
		if c.Resource.Text != "" {
			return Content{Type: ContentResource, Payload: c.Resource.Text}
		}
		return Content{Type: ContentResource, Payload: c.Resource.URI}
	case *mcp.ResourceLink:
		return Content{Type: ContentResource, Payload: c.URI}
	default:
		data, err := json.Marshal(item)
		if err != nil {
			return Content{Type: ContentResource, Payload: fmt.Sprintf("%v", item)}
		}
		return Content{Type: ContentResource, Payload: string(data)}
	}
}

func toDescriptor(tool *mcp.Tool) ToolDescriptor {
	if tool == nil {
		return ToolDescriptor{}
	}
	desc := ToolDescriptor{Name: tool.Name, Description: tool.Description}
	if tool.InputSchema == nil {
		return desc
	}
	data, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return desc
	}
	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err == nil {
		desc.InputSchema = schema
	}
	return desc
}
