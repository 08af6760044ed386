// Package commandqueue bridges external callers and a client's single worker loop.
//
// Invariants:
//   - Commands are delivered in enqueue order to exactly one consumer.
//   - Polling never blocks; the consumer backs off between empty polls.
//   - Stop and skip are level-triggered flags read once per loop iteration and
//     never interrupt work already in flight.
//
// Usage:
//
//	ch := commandqueue.NewChannel()
//	ch.Enqueue("list files in /tmp")
//	if cmd, ok := ch.Poll(); ok {
//		ch.BeginCommand()
//		_ = cmd
//		ch.EndCommand()
//	}
//	ch.RequestStop()
package commandqueue
