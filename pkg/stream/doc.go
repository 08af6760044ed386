// Package stream parses server-sent-event style chat completion streams line by line.
//
// Invariants:
// - Terminators, keep-alives and blank lines are no-ops, never errors.
// - Explicit upstream error markers are reported as *UpstreamStreamError.
// - Undecodable payload lines are reported as *UpstreamParseError and never stop the stream.
//
// Usage:
//
//	err := stream.Scan(ctx, resp.Body, func(res stream.Result) error {
//		if res.Kind == stream.KindPayload {
//			handle(res.Raw)
//		}
//		return nil
//	})
package stream
