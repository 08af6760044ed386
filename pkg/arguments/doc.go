// Package arguments decodes tool-call argument text produced by language models.
//
// Invariants:
// - Input must be a single object literal: trimmed text starts with '{' and ends with '}'.
// - Strict JSON objects decode exactly as encoding/json would.
// - Relaxed literals are evaluated against a fixed symbol set (math, random, True/False/None) only.
//
// Usage:
//
//	args, err := arguments.Parse(`{'path': '/tmp', 'recursive': True}`)
//	if errors.Is(err, arguments.ErrMalformedArguments) {
//		// surface as an error-typed tool result
//	}
//	_ = args
package arguments
