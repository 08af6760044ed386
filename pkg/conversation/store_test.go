package conversation

import (
	"testing"

	"github.com/harun/mcplink/pkg/toolcall"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendStoresCopy(t *testing.T) {
	s := NewStore()
	m := Message{
		Role: RoleAssistant,
		ToolCalls: []toolcall.Ref{{
			ID:       "call_1",
			Function: toolcall.Function{Name: "list_directory_contents", Arguments: `{}`},
		}},
	}
	s.Append(m)

	m.Content = "mutated"
	m.ToolCalls[0].Function.Name = "mutated"

	history := s.Messages()
	require.Len(t, history, 1)
	assert.Equal(t, "", history[0].Content)
	assert.Equal(t, "list_directory_contents", history[0].ToolCalls[0].Function.Name)

	history[0].ToolCalls[0].ID = "changed"
	assert.Equal(t, "call_1", s.Messages()[0].ToolCalls[0].ID, "returned history is a copy too")
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Append(UserMessage("one"))
	s.Append(UserMessage("two"))
	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestStore_RequestClearDeferredToUpdate(t *testing.T) {
	s := NewStore()
	s.Append(UserMessage("m1"))
	s.RequestClear()

	assert.Equal(t, 1, s.Len(), "clear waits for update")

	assert.True(t, s.Update())
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Update(), "nothing pending")
}

func TestStore_RequestClearThenAppendKeepsNewMessage(t *testing.T) {
	s := NewStore()
	s.Append(UserMessage("m1"))
	s.RequestClear()
	s.Append(UserMessage("m2"))

	require.True(t, s.Update())

	history := s.Messages()
	require.Len(t, history, 1)
	assert.Equal(t, "m2", history[0].Content)
}

func TestStore_ClearCancelsPendingRequest(t *testing.T) {
	s := NewStore()
	s.Append(UserMessage("m1"))
	s.RequestClear()
	s.Clear()
	s.Append(UserMessage("m2"))

	assert.False(t, s.Update())
	assert.Equal(t, 1, s.Len())
}

func TestStore_Since(t *testing.T) {
	s := NewStore()
	s.Append(UserMessage("a"))
	s.Append(UserMessage("b"))
	s.Append(UserMessage("c"))

	got := s.Since(1)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Content)
	assert.Empty(t, s.Since(10))
}

func TestMessageBuilders(t *testing.T) {
	call := toolcall.Ref{ID: "call_9", Function: toolcall.Function{Name: "get_file_info"}}

	a := AssistantToolCall(call)
	assert.Equal(t, RoleAssistant, a.Role)
	require.Len(t, a.ToolCalls, 1)

	r := ToolResult(call, "ok")
	assert.Equal(t, RoleTool, r.Role)
	assert.Equal(t, "call_9", r.ToolCallID)
	assert.Equal(t, "get_file_info", r.Name)
}
