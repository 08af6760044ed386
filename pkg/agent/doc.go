// Package agent runs the client side of mcplink: a command loop that talks to an
// OpenAI-style chat endpoint and dispatches the model's tool calls over an RPC session.
//
// Invariants:
// - One worker goroutine per Client; commands are processed strictly in FIFO order.
// - Tool calls of one response are dispatched sequentially in index order.
// - Every dispatched call appends one assistant tool-call message followed by its tool result messages.
// - Tool failures become error-content tool messages; only the session handshake is fatal.
// - Stop and skip are cooperative: flags are polled between steps and never interrupt an in-flight call.
// - A Registry holds at most one live Client per variant.
//
// Usage:
//
//	registry := agent.NewRegistry(agent.RegistryConfig{Logger: logger})
//	_ = registry.RegisterAll(agent.DefaultVariants()...)
//	client, _ := registry.TryStart(ctx, "deepseek", &cfg)
//	_ = client.Enqueue("list files in /tmp")
//	registry.Stop("deepseek")
package agent
