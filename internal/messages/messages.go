// Package messages derives the provider-facing message view from a
// thread's canonical conversation_events log, including
// orphan-tool_call/orphan-tool_result reconciliation.
package messages

import (
	"encoding/json"

	"evidentia/internal/eventstore"
	"evidentia/internal/llmprovider"
)

// HistoricalToolOutputSentinel prefixes the downgraded assistant text a
// tool_result with no matching tool_call produces, so the model still
// sees the content without a dangling tool-role correlation.
const HistoricalToolOutputSentinel = "Historical tool output:"

// toolCallEnvelope is the JSON shape a tool_call event's Content field
// carries: the name and argument object the engine dispatched.
type toolCallEnvelope struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// BuildMessages replays a thread's events into the []llmprovider.Message
// a provider adapter needs, applying the reconciliation rules: an
// orphan tool_result (no matching tool_call anywhere in the thread) is
// downgraded to an assistant text message carrying
// HistoricalToolOutputSentinel and loses its tool_call_id correlation;
// an orphan tool_call (no matching tool_result) is dropped outright,
// since providers reject half-pairs. Events with VisibleToModel=false
// are skipped entirely. Consecutive assistant events sharing the same
// MessageID are merged into a single Message (matching how one
// assistant turn may emit a text segment and one or more tool_use
// blocks together).
func BuildMessages(events []eventstore.Event) []llmprovider.Message {
	toolCallIDs := make(map[string]bool)
	toolResultIDs := make(map[string]bool)
	for _, e := range events {
		if e.ToolCallID == nil {
			continue
		}
		switch e.Kind {
		case "tool_call":
			toolCallIDs[*e.ToolCallID] = true
		case "tool_result":
			toolResultIDs[*e.ToolCallID] = true
		}
	}

	var out []llmprovider.Message
	var pending *llmprovider.Message
	var pendingMessageID *string

	flush := func() {
		if pending != nil {
			out = append(out, *pending)
			pending = nil
			pendingMessageID = nil
		}
	}

	sameGroup := func(e eventstore.Event, role llmprovider.Role) bool {
		if pending == nil || pending.Role != role {
			return false
		}
		if pendingMessageID == nil || e.MessageID == nil {
			return false
		}
		return *pendingMessageID == *e.MessageID
	}

	for _, e := range events {
		if !e.VisibleToModel {
			continue
		}
		switch e.Kind {
		case "tool_call":
			if e.ToolCallID == nil || !toolResultIDs[*e.ToolCallID] {
				// Orphan tool_call: providers reject half-pairs.
				continue
			}
			var env toolCallEnvelope
			_ = json.Unmarshal([]byte(e.Content), &env)
			tc := llmprovider.ToolCall{ID: *e.ToolCallID, Name: env.Name, Args: env.Args}
			if sameGroup(e, llmprovider.RoleAssistant) {
				pending.ToolCalls = append(pending.ToolCalls, tc)
				continue
			}
			flush()
			pending = &llmprovider.Message{Role: llmprovider.RoleAssistant, ToolCalls: []llmprovider.ToolCall{tc}}
			pendingMessageID = e.MessageID

		case "tool_result":
			if e.ToolCallID == nil || !toolCallIDs[*e.ToolCallID] {
				// Orphan tool_result: downgrade to assistant text, drop correlation.
				flush()
				out = append(out, llmprovider.Message{
					Role:    llmprovider.RoleAssistant,
					Content: HistoricalToolOutputSentinel + " " + e.Content,
				})
				continue
			}
			flush()
			out = append(out, llmprovider.Message{
				Role:       llmprovider.RoleTool,
				Content:    e.Content,
				ToolCallID: *e.ToolCallID,
			})

		case "text":
			role := llmprovider.Role(e.Role)
			if sameGroup(e, role) {
				pending.Content += e.Content
				continue
			}
			flush()
			pending = &llmprovider.Message{Role: role, Content: e.Content}
			pendingMessageID = e.MessageID

		case "control":
			// Control events are bookkeeping only; never reach the provider.
		}
	}
	flush()

	if out == nil {
		out = []llmprovider.Message{}
	}
	return out
}
