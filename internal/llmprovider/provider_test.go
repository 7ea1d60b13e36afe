package llmprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProviderReturnsScriptedTurnsInOrder(t *testing.T) {
	var thinkingSeen, textSeen []string
	p := &MockProvider{Turns: []StreamResult{
		{Text: "first", Thinking: "thinking-1"},
		{Text: "second"},
	}}

	r1, err := p.StreamTurn(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, "", func(s string) {
		thinkingSeen = append(thinkingSeen, s)
	}, func(s string) {
		textSeen = append(textSeen, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "first", r1.Text)

	r2, err := p.StreamTurn(context.Background(), nil, nil, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", r2.Text)

	assert.Equal(t, []string{"thinking-1"}, thinkingSeen)
	assert.Equal(t, []string{"first"}, textSeen)
	assert.Len(t, p.Recorded, 2)
}

func TestMockProviderPanicsWhenExhausted(t *testing.T) {
	p := &MockProvider{Turns: []StreamResult{{Text: "only"}}}
	_, _ = p.StreamTurn(context.Background(), nil, nil, "", nil, nil)
	assert.Panics(t, func() {
		_, _ = p.StreamTurn(context.Background(), nil, nil, "", nil, nil)
	})
}
