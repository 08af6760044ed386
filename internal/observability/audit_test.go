package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToolAudit(t *testing.T) {
	var buf bytes.Buffer
	SetAuditLogger(zerolog.New(&buf), nil)

	RecordToolAudit("get_file_info", "MCPServer", "failure", map[string]interface{}{"error": "file not found"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tool", entry["type"])
	assert.Equal(t, "execute:get_file_info", entry["action"])
	assert.Equal(t, "failure", entry["status"])
	assert.Equal(t, "MCPServer", entry["actor"])
}

func TestRecordRegistryAudit(t *testing.T) {
	var buf bytes.Buffer
	SetAuditLogger(zerolog.New(&buf), nil)

	RecordRegistryAudit("register", "get_system_info", "MCPServer")
	assert.Contains(t, buf.String(), `"action":"register:get_system_info"`)
}

func TestInitAuditLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")
	require.NoError(t, InitAuditLogger(path))

	RecordRegistryAudit("unregister", "get_system_info", "MCPServer")
	require.NoError(t, GetAuditLogger().Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "unregister:get_system_info")
}
