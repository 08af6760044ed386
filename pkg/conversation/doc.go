// Package conversation holds the ordered message history of one client.
//
// Invariants:
//   - Stored messages are deep copies; callers cannot mutate history after Append.
//   - A requested clear only takes effect at the next Update, and only removes
//     messages that were present when it was requested.
package conversation
