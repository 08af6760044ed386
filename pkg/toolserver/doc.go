// Package toolserver exposes registered Go functions as MCP tools.
//
// Invariants:
// - Every tool carries an explicit parameter list; per-parameter descriptions land in the input schema.
// - Arguments are validated against the generated JSON schema before the handler runs.
// - Successful results are JSON with floats rounded to the configured precision.
// - Handler failures reach the client as IsError results reading "Error executing tool <name>: <message>".
// - Registering a tool twice or removing an unknown tool is a no-op.
//
// Usage:
//
//	srv, _ := toolserver.New(toolserver.Config{Name: "tools", Port: 45677}, logger)
//	_ = srv.RegisterTools(coretools.CommonTools(coretools.Options{})...)
//	_ = srv.Run(ctx, true)
package toolserver
