package llmprovider

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerMockProviderEmitsCalcOnArithmetic(t *testing.T) {
	p := &TriggerMockProvider{}
	result, err := p.StreamTurn(context.Background(), []Message{
		{Role: RoleUser, Content: "what is (2+3)*4?"},
	}, nil, "", nil, nil)
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "calc", result.ToolCalls[0].Name)
	var args map[string]string
	require.NoError(t, json.Unmarshal(result.ToolCalls[0].Args, &args))
	assert.Contains(t, args["expression"], "2+3")
}

func TestTriggerMockProviderRespondsWithToolResultOnSecondCall(t *testing.T) {
	p := &TriggerMockProvider{}
	_, err := p.StreamTurn(context.Background(), []Message{{Role: RoleUser, Content: "(2+3)*4"}}, nil, "", nil, nil)
	require.NoError(t, err)

	result, err := p.StreamTurn(context.Background(), []Message{
		{Role: RoleUser, Content: "(2+3)*4"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "calc"}}},
		{Role: RoleTool, ToolCallID: "c1", Content: `{"data":{"value":20}}`},
	}, nil, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "20", result.Text)
	assert.Empty(t, result.ToolCalls)
}

func TestTriggerMockProviderCannedReplyWithoutTrigger(t *testing.T) {
	p := &TriggerMockProvider{}
	result, err := p.StreamTurn(context.Background(), []Message{{Role: RoleUser, Content: "hello there"}}, nil, "", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.ToolCalls)
	assert.Contains(t, result.Text, "hello there")
}
