package llmprovider

import "context"

// MockProvider is a deterministic, canned-response stand-in for tests
// (see provider_test.go) that replays scripted turns without a network
// call.
type MockProvider struct {
	// Turns is consumed one StreamResult per call; StreamTurn panics if
	// called more times than len(Turns).
	Turns []StreamResult
	calls int

	// Recorded captures every call's messages for assertions.
	Recorded [][]Message
}

func (m *MockProvider) StreamTurn(
	_ context.Context,
	messages []Message,
	_ []ToolSchema,
	_ string,
	onThinkingToken func(string),
	onTextToken func(string),
) (StreamResult, error) {
	m.Recorded = append(m.Recorded, messages)
	if m.calls >= len(m.Turns) {
		panic("llmprovider: MockProvider ran out of scripted turns")
	}
	result := m.Turns[m.calls]
	m.calls++
	if onThinkingToken != nil && result.Thinking != "" {
		onThinkingToken(result.Thinking)
	}
	if onTextToken != nil && result.Text != "" {
		onTextToken(result.Text)
	}
	return result, nil
}
