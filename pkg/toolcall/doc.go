// Package toolcall accumulates streamed tool-call fragments into complete calls.
//
// Invariants:
// - At most one Ref exists per stream index.
// - A Ref's name is set once, by the first fragment that carries one.
// - Argument chunks are appended in arrival order.
// - Drain returns calls in ascending index order and resets the accumulator.
package toolcall
