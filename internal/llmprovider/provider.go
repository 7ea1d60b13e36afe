// Package llmprovider adapts chat-completion SDKs to the turn engine's
// stream_turn contract: one call per turn, two token-level callbacks, and a
// single StreamResult returned once the provider is done streaming.
// anthropic-sdk-go and openai-go/v2 do the wire work underneath.
package llmprovider

import (
	"context"
	"encoding/json"
)

// Role mirrors the four roles the turn engine ever puts on the wire.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a provider-requested invocation of a registered tool.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Message is one turn of conversation history handed to the provider.
// ToolCallID is set on tool-role messages to say which ToolCall.ID they
// answer; ToolCalls is set on assistant messages that requested tools.
type Message struct {
	Role       Role
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolSchema is the provider-agnostic tool shape the turn engine builds
// from the registry's Specs; adapters translate it to their SDK's
// native tool-definition type.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// StreamResult is what stream_turn returns once the provider finishes one
// turn: the assembled assistant text, any thinking/reasoning trace, the
// tool calls requested (if any), and provider_state metadata (the
// adapters set "model"); the engine does not feed it back to the provider.
type StreamResult struct {
	Text          string
	Thinking      string
	ThinkingTitle string
	ToolCalls     []ToolCall
	ProviderState map[string]any
}

// Provider is the contract every model backend implements: stream_turn
// returns (text, thinking, tool_calls[], provider_state) expressed as two
// token callbacks: onThinkingToken fires for reasoning/thinking deltas,
// onTextToken for assistant-visible text deltas. Either callback may be nil.
type Provider interface {
	StreamTurn(
		ctx context.Context,
		messages []Message,
		tools []ToolSchema,
		systemPrompt string,
		onThinkingToken func(string),
		onTextToken func(string),
	) (StreamResult, error)
}

// Name identifies a configured provider for routing (e.g. the WS front
// door's ?provider= query param).
type Name string

const (
	NameAnthropic Name = "anthropic"
	NameOpenAI    Name = "openai"
)
