package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name     string
		input    string
		leaked   string
		redacted bool
	}{
		{"deepseek key", "api key sk-0123456789abcdef", "0123456789abcdef", true},
		{"bearer token", "Authorization: Bearer abc123.def456", "abc123.def456", true},
		{"json api_key field", `{"api_key":"local-secret-value"}`, "local-secret-value", true},
		{"password", `password: hunter2`, "hunter2", true},
		{"normal message", "Selected tool: get_system_info", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Redact(tt.input)
			if !tt.redacted {
				assert.Equal(t, tt.input, result)
				return
			}
			assert.Contains(t, result, "[REDACTED]")
			assert.NotContains(t, result, tt.leaked)
		})
	}
}

func TestAddPattern(t *testing.T) {
	r := NewRedactor()

	require.NoError(t, r.AddPattern(`custom-[0-9]+`))
	assert.Equal(t, "Value: [REDACTED]", r.Redact("Value: custom-12345"))

	assert.Error(t, r.AddPattern(`[invalid`))
}

func TestRedactingWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	writer := NewRedactor().Wrap(buf)

	input := []byte("key sk-0123456789abcdefghijkl\n")
	n, err := writer.Write(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), n, "reports the caller's length")
	assert.Equal(t, "key [REDACTED]\n", buf.String())
}
