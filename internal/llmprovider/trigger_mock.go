package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// TriggerMockProvider is the deterministic stand-in the bootstrap wires
// in when no Anthropic/OpenAI API key is configured. It never calls a
// network API: it inspects the latest user turn for a recognizable
// pattern (arithmetic operators, the word "paper") and may issue a
// single tool call, then on the following call folds the tool result
// back into a closing answer. Text replies are streamed through
// onTextToken; tool-call turns stream no tokens, and onThinkingToken is
// never called.
type TriggerMockProvider struct {
	calls int
}

var arithmeticPattern = regexp.MustCompile(`[-+]?\(?[-+*/0-9.() ]{3,}[0-9)]`)

func (m *TriggerMockProvider) StreamTurn(
	_ context.Context,
	messages []Message,
	_ []ToolSchema,
	_ string,
	onThinkingToken func(string),
	onTextToken func(string),
) (StreamResult, error) {
	defer func() { m.calls++ }()

	if lastToolResult, ok := lastToolMessage(messages); ok {
		text := summarizeToolResult(lastToolResult.Content)
		if onTextToken != nil {
			onTextToken(text)
		}
		return StreamResult{Text: text}, nil
	}

	userContent := lastUserMessage(messages)

	if expr := arithmeticPattern.FindString(userContent); strings.TrimSpace(expr) != "" && containsOperator(expr) {
		args, _ := json.Marshal(map[string]string{"expression": strings.TrimSpace(expr)})
		return StreamResult{ToolCalls: []ToolCall{{ID: "", Name: "calc", Args: args}}}, nil
	}

	if strings.Contains(strings.ToLower(userContent), "paper") {
		args, _ := json.Marshal(map[string]string{"query": userContent})
		return StreamResult{ToolCalls: []ToolCall{{ID: "", Name: "search_pubmed_literature", Args: args}}}, nil
	}

	text := "Mock response: " + userContent
	if onTextToken != nil {
		onTextToken(text)
	}
	return StreamResult{Text: text}, nil
}

func containsOperator(s string) bool {
	return strings.ContainsAny(s, "+-*/")
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func lastToolMessage(messages []Message) (Message, bool) {
	if len(messages) == 0 || messages[len(messages)-1].Role != RoleTool {
		return Message{}, false
	}
	return messages[len(messages)-1], true
}

func summarizeToolResult(raw string) string {
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return "Done."
	}
	// The engine wraps a tool's envelope in {"status":...,"output":{...}};
	// accept both that shape and a bare envelope for test convenience.
	body := generic
	if output, ok := generic["output"].(map[string]any); ok {
		body = output
	}
	if data, ok := body["data"].(map[string]any); ok {
		if v, ok := data["value"]; ok {
			return fmt.Sprintf("%v", v)
		}
	}
	if s, ok := body["summary"].(string); ok && s != "" {
		return s
	}
	return "Done."
}
