package messages

import (
	"testing"

	"evidentia/internal/eventstore"
	"evidentia/internal/llmprovider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBuildMessagesOrphanToolResultIsDowngraded(t *testing.T) {
	events := []eventstore.Event{
		{Kind: "text", Role: "user", Content: "what is 2+2?", VisibleToModel: true},
		{Kind: "tool_result", Role: "tool", Content: `{"value":4}`, ToolCallID: strPtr("orphan-1"), VisibleToModel: true},
	}
	msgs := BuildMessages(events)
	require.Len(t, msgs, 2)
	assert.Equal(t, llmprovider.RoleUser, msgs[0].Role)
	assert.Equal(t, llmprovider.RoleAssistant, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, HistoricalToolOutputSentinel)
	assert.Empty(t, msgs[1].ToolCallID)
}

func TestBuildMessagesOrphanToolCallIsDropped(t *testing.T) {
	mid := "m1"
	events := []eventstore.Event{
		{Kind: "text", Role: "user", Content: "go", VisibleToModel: true},
		{Kind: "tool_call", Role: "assistant", Content: `{"name":"calc","args":{}}`, ToolCallID: strPtr("orphan-call"), MessageID: &mid, VisibleToModel: true},
	}
	msgs := BuildMessages(events)
	require.Len(t, msgs, 1)
	assert.Equal(t, llmprovider.RoleUser, msgs[0].Role)
}

func TestBuildMessagesPairsToolCallAndResult(t *testing.T) {
	mid := "m1"
	events := []eventstore.Event{
		{Kind: "text", Role: "user", Content: "what is (2+3)*4?", VisibleToModel: true},
		{Kind: "tool_call", Role: "assistant", Content: `{"name":"calc","args":{"expression":"(2+3)*4"}}`, ToolCallID: strPtr("call-1"), MessageID: &mid, VisibleToModel: true},
		{Kind: "tool_result", Role: "tool", Content: `{"data":{"value":20}}`, ToolCallID: strPtr("call-1"), VisibleToModel: true},
		{Kind: "text", Role: "assistant", Content: "20", VisibleToModel: true},
	}
	msgs := BuildMessages(events)
	require.Len(t, msgs, 4)
	assert.Equal(t, llmprovider.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, "calc", msgs[1].ToolCalls[0].Name)
	assert.Equal(t, llmprovider.RoleTool, msgs[2].Role)
	assert.Equal(t, "call-1", msgs[2].ToolCallID)
	assert.Equal(t, "20", msgs[3].Content)
}

func TestBuildMessagesGroupsMultipleToolCallsInOneAssistantMessage(t *testing.T) {
	mid := "m1"
	events := []eventstore.Event{
		{Kind: "tool_call", Role: "assistant", Content: `{"name":"calc","args":{"expression":"1+1"}}`, ToolCallID: strPtr("c1"), MessageID: &mid, VisibleToModel: true},
		{Kind: "tool_call", Role: "assistant", Content: `{"name":"calc","args":{"expression":"2+2"}}`, ToolCallID: strPtr("c2"), MessageID: &mid, VisibleToModel: true},
		{Kind: "tool_result", Role: "tool", Content: `{"data":{"value":2}}`, ToolCallID: strPtr("c1"), VisibleToModel: true},
		{Kind: "tool_result", Role: "tool", Content: `{"data":{"value":4}}`, ToolCallID: strPtr("c2"), VisibleToModel: true},
	}
	msgs := BuildMessages(events)
	require.Len(t, msgs, 3)
	require.Len(t, msgs[0].ToolCalls, 2)
}

func TestBuildMessagesSkipsInvisibleAndControlEvents(t *testing.T) {
	events := []eventstore.Event{
		{Kind: "text", Role: "user", Content: "hi", VisibleToModel: true},
		{Kind: "control", Role: "system", Content: "internal bookkeeping", VisibleToModel: true},
		{Kind: "text", Role: "assistant", Content: "hidden", VisibleToModel: false},
	}
	msgs := BuildMessages(events)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestBuildMessagesEmptyEventsReturnsEmptySlice(t *testing.T) {
	msgs := BuildMessages(nil)
	assert.NotNil(t, msgs)
	assert.Len(t, msgs, 0)
}
