// Package rpcsession is the tool-calling session boundary of the client.
//
// It wraps an MCP client session behind a small interface: list the remote tools
// and call one by name with a decoded argument map. Results are flattened into
// typed content items so the caller never touches protocol types.
//
// Invariants:
// - Results flagged IsError by the server come back with ContentError items.
// - URLs whose path ends in /sse use the SSE transport, everything else streamable HTTP.
//
// Usage:
//
//	session, err := rpcsession.Connect(ctx, "http://localhost:45677/mcp")
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//	contents, err := session.CallTool(ctx, "list_directory_contents", map[string]interface{}{"directory_path": "/tmp"})
package rpcsession
