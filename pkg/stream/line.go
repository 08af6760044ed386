package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Stream control markers emitted by upstream providers.
const (
	DataPrefix       = "data:"
	DoneMarker       = "[DONE]"
	ProcessingMarker = "PROCESSING"
	ErrorMarker      = "[ERROR]"
)

// Kind classifies a parsed line.
type Kind int

const (
	// KindNoop means the line carries nothing to act on.
	KindNoop Kind = iota
	// KindPayload means the line decoded to a JSON object.
	KindPayload
	// KindError means the upstream signalled an error in-band.
	KindError
	// KindParseError means the line could not be decoded.
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindNoop:
		return "noop"
	case KindPayload:
		return "payload"
	case KindError:
		return "error"
	case KindParseError:
		return "parse_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// UpstreamStreamError reports an explicit error marker in the stream.
type UpstreamStreamError struct {
	Line string
}

func (e *UpstreamStreamError) Error() string {
	return fmt.Sprintf("upstream stream error: %s", e.Line)
}

// UpstreamParseError reports a line that is neither a marker nor valid JSON.
type UpstreamParseError struct {
	Line string
	Err  error
}

func (e *UpstreamParseError) Error() string {
	return fmt.Sprintf("upstream parse error: %v: %q", e.Err, e.Line)
}

// Unwrap returns the JSON decode failure.
func (e *UpstreamParseError) Unwrap() error {
	return e.Err
}

// Result is the outcome of parsing one line.
type Result struct {
	Kind    Kind
	Payload map[string]interface{}
	Raw     []byte
	Err     error
}

// IsNoop reports whether the result can be skipped.
func (r Result) IsNoop() bool {
	return r.Kind == KindNoop
}

// ParseLine turns one raw line of a streamed response into a Result.
func ParseLine(line []byte) Result {
	trimmed := bytes.TrimSpace(line)
	trimmed = bytes.TrimSpace(bytes.TrimPrefix(trimmed, []byte(DataPrefix)))
	if len(trimmed) == 0 {
		return Result{Kind: KindNoop}
	}

	if bytes.HasSuffix(trimmed, []byte(DoneMarker)) || bytes.HasSuffix(trimmed, []byte(ProcessingMarker)) {
		return Result{Kind: KindNoop}
	}

	if bytes.HasPrefix(trimmed, []byte(ErrorMarker)) || bytes.HasSuffix(trimmed, []byte(ErrorMarker)) {
		return Result{Kind: KindError, Err: &UpstreamStreamError{Line: string(trimmed)}}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		if bytes.Contains(trimmed, []byte(ProcessingMarker)) {
			return Result{Kind: KindNoop}
		}
		return Result{Kind: KindParseError, Err: &UpstreamParseError{Line: string(trimmed), Err: err}}
	}

	raw := make([]byte, len(trimmed))
	copy(raw, trimmed)
	return Result{Kind: KindPayload, Payload: payload, Raw: raw}
}
