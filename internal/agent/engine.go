// Package agent implements the Agent Turn Engine: the bounded
// provider/tool-dispatch loop that drives one user turn to a terminal
// text answer, emitting a typed outbound event stream as it goes.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"evidentia/internal/eventstore"
	"evidentia/internal/lineage"
	"evidentia/internal/llmprovider"
	"evidentia/internal/messages"
	"evidentia/internal/observability"
	"evidentia/internal/tools"
)

// EventStore is the slice of eventstore.Store the engine depends on.
// Declaring it as an interface lets tests drive the engine against an
// in-memory fake instead of a live Postgres instance.
type EventStore interface {
	AppendEvent(ctx context.Context, e eventstore.Event) (eventstore.Event, error)
	ListEvents(ctx context.Context, threadID string) ([]eventstore.Event, error)
}

// EmittedEvent is one entry in the typed outbound event stream: event
// kinds are main_agent_start, main_agent_thinking_{start,token,end,title},
// main_agent_segment_{start,token,end}, main_agent_tool_start,
// main_agent_tool_result, main_agent_complete, main_agent_error.
type EmittedEvent struct {
	Type     string         `json:"type"`
	ThreadID string         `json:"thread_id"`
	RunID    string         `json:"run_id"`
	Data     map[string]any `json:"data,omitempty"`
}

// Engine is the bounded turn loop. Zero value is not usable; construct
// with NewEngine.
type Engine struct {
	Provider      llmprovider.Provider
	Tools         *tools.Registry
	Store         EventStore
	MaxIterations int
	SystemPrompt  string

	// MaxToolParallelism bounds how many independent tool calls emitted
	// in a single provider step run concurrently. Values <= 1 dispatch
	// sequentially. Results are always appended in provider-declared
	// (tool_use_id)
	// order regardless of completion order, so event positions stay
	// reproducible. Defaults to sequential when left zero; callers
	// wanting the configured default should set it from
	// config.Settings.Agent.MaxToolParallelism.
	MaxToolParallelism int

	// Emit receives every outbound event in strict emission order. May
	// be nil, in which case events are simply not observed.
	Emit func(EmittedEvent)
}

// NewEngine builds an Engine with the given collaborators. maxIterations
// must be >= 1; callers needing the config default should read it from
// config.Settings.Agent.MaxIterations.
func NewEngine(provider llmprovider.Provider, registry *tools.Registry, store EventStore, maxIterations int, systemPrompt string) *Engine {
	return &Engine{Provider: provider, Tools: registry, Store: store, MaxIterations: maxIterations, SystemPrompt: systemPrompt}
}

func (e *Engine) emit(threadID, runID, typ string, data map[string]any) {
	if e.Emit == nil {
		return
	}
	e.Emit(EmittedEvent{Type: typ, ThreadID: threadID, RunID: runID, Data: data})
}

// Run drives one user turn to completion: appends the user message,
// loops provider calls through tool dispatch until a terminal text
// segment or the iteration cap, and returns the final assistant text.
func (e *Engine) Run(ctx context.Context, threadID, userText string) (string, error) {
	runID := uuid.NewString()
	ctx, span := observability.Tracer().Start(ctx, "agent.turn")
	defer span.End()
	span.SetAttributes(observability.SpanAttr("thread_id", threadID), observability.SpanAttr("run_id", runID))

	if _, err := e.Store.AppendEvent(ctx, eventstore.Event{
		ThreadID: threadID, Role: "user", Kind: "text", Content: userText, VisibleToModel: true,
	}); err != nil {
		return "", fmt.Errorf("agent: append user event: %w", err)
	}
	e.emit(threadID, runID, "main_agent_start", map[string]any{"user_text": userText})

	for iter := 1; iter <= e.MaxIterations; iter++ {
		events, err := e.Store.ListEvents(ctx, threadID)
		if err != nil {
			e.emit(threadID, runID, "main_agent_error", map[string]any{"message": err.Error()})
			return "", fmt.Errorf("agent: list events: %w", err)
		}
		msgs := messages.BuildMessages(events)

		var toolSchemas []llmprovider.ToolSchema
		for _, spec := range e.Tools.Specs() {
			toolSchemas = append(toolSchemas, llmprovider.ToolSchema{Name: spec.Name, Description: spec.Description, Parameters: spec.InputSchema})
		}

		segmentStarted := false
		thinkingStarted := false
		onThinking := func(tok string) {
			if !thinkingStarted {
				thinkingStarted = true
				e.emit(threadID, runID, "main_agent_thinking_start", nil)
			}
			e.emit(threadID, runID, "main_agent_thinking_token", map[string]any{"token": tok})
		}
		onText := func(tok string) {
			if !segmentStarted {
				segmentStarted = true
				e.emit(threadID, runID, "main_agent_segment_start", nil)
			}
			e.emit(threadID, runID, "main_agent_segment_token", map[string]any{"token": tok})
		}

		result, err := e.Provider.StreamTurn(ctx, msgs, toolSchemas, e.SystemPrompt, onThinking, onText)
		if thinkingStarted {
			e.emit(threadID, runID, "main_agent_thinking_end", nil)
			if result.ThinkingTitle != "" {
				e.emit(threadID, runID, "main_agent_thinking_title", map[string]any{"title": result.ThinkingTitle})
			}
		}
		if segmentStarted {
			e.emit(threadID, runID, "main_agent_segment_end", nil)
		}
		if err != nil {
			e.emit(threadID, runID, "main_agent_error", map[string]any{"message": err.Error()})
			return "", fmt.Errorf("agent: provider stream_turn: %w", err)
		}

		messageID := uuid.NewString()
		if result.Text != "" && len(result.ToolCalls) == 0 {
			if _, err := e.Store.AppendEvent(ctx, eventstore.Event{
				ThreadID: threadID, MessageID: &messageID, Role: "assistant", Kind: "text",
				Content: result.Text, VisibleToModel: true,
			}); err != nil {
				return "", fmt.Errorf("agent: append final text: %w", err)
			}
			e.emit(threadID, runID, "main_agent_complete", map[string]any{"text": result.Text})
			return result.Text, nil
		}

		if len(result.ToolCalls) == 0 {
			// Provider produced neither text nor tool calls; treat as an
			// empty terminal segment rather than looping forever on nothing.
			e.emit(threadID, runID, "main_agent_complete", map[string]any{"text": result.Text})
			return result.Text, nil
		}

		if err := e.dispatchToolCalls(ctx, threadID, runID, messageID, iter, result.ToolCalls); err != nil {
			e.emit(threadID, runID, "main_agent_error", map[string]any{"message": err.Error()})
			return "", err
		}
	}

	final := fmt.Sprintf("tool-iteration limit (%d) reached", e.MaxIterations)
	if _, err := e.Store.AppendEvent(ctx, eventstore.Event{
		ThreadID: threadID, Role: "assistant", Kind: "text", Content: final, VisibleToModel: true,
	}); err != nil {
		return "", fmt.Errorf("agent: append iteration-limit text: %w", err)
	}
	e.emit(threadID, runID, "main_agent_complete", map[string]any{"text": final})
	return final, nil
}

// dispatchToolCalls appends a tool_call event, dispatches through the
// registry, and appends the tool_result event for each call in the
// provider-declared order, so positions stay reproducible even when
// independent calls are executed concurrently.
func (e *Engine) dispatchToolCalls(ctx context.Context, threadID, runID, messageID string, userMsgIndex int, calls []llmprovider.ToolCall) error {
	n := len(calls)
	toolUseIDs := make([]string, n)

	// Append every tool_call event (and emit its tool_start) in
	// provider-declared order before any dispatch begins, so the
	// canonical log always shows calls preceding results regardless of
	// how dispatch below is scheduled.
	for i, call := range calls {
		toolUseID := call.ID
		if toolUseID == "" {
			toolUseID = uuid.NewString()
		}
		toolUseIDs[i] = toolUseID

		callContent, err := json.Marshal(map[string]any{"name": call.Name, "args": rawOrEmpty(call.Args)})
		if err != nil {
			return fmt.Errorf("agent: marshal tool_call content: %w", err)
		}
		if _, err := e.Store.AppendEvent(ctx, eventstore.Event{
			ThreadID: threadID, MessageID: &messageID, Role: "assistant", Kind: "tool_call",
			Content: string(callContent), ToolCallID: &toolUseID, VisibleToModel: true,
		}); err != nil {
			return fmt.Errorf("agent: append tool_call event: %w", err)
		}
		e.emit(threadID, runID, "main_agent_tool_start", map[string]any{"tool_name": call.Name, "tool_use_id": toolUseID})
	}

	// Dispatch independent calls concurrently, bounded by
	// MaxToolParallelism, then append tool_result events back in the
	// original provider-declared order (not completion order) so event
	// positions stay reproducible.
	parallelism := e.MaxToolParallelism
	if parallelism < 1 {
		parallelism = 1
	}
	outcomes := make([]tools.Outcome, n)
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, call llmprovider.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			args := map[string]any{}
			if len(call.Args) > 0 {
				_ = json.Unmarshal(call.Args, &args)
			}
			tc := lineage.Context{ThreadID: threadID, RunID: runID, ToolUseID: toolUseIDs[i], ToolName: call.Name, UserMsgIndex: userMsgIndex}
			toolCtx, span := observability.Tracer().Start(ctx, "agent.tool")
			defer span.End()
			outcomes[i] = e.Tools.Execute(toolCtx, call.Name, args, tc)
		}(i, call)
	}
	wg.Wait()

	for i, call := range calls {
		toolUseID := toolUseIDs[i]
		outcome := outcomes[i]
		resultContent, err := json.Marshal(outcome)
		if err != nil {
			return fmt.Errorf("agent: marshal tool_result content: %w", err)
		}
		if _, err := e.Store.AppendEvent(ctx, eventstore.Event{
			ThreadID: threadID, Role: "tool", Kind: "tool_result",
			Content: string(resultContent), ToolCallID: &toolUseID, VisibleToModel: true,
		}); err != nil {
			return fmt.Errorf("agent: append tool_result event: %w", err)
		}
		observability.RecordToolCall(ctx, call.Name, outcome.Status)
		e.emit(threadID, runID, "main_agent_tool_result", map[string]any{
			"tool_name": call.Name, "tool_use_id": toolUseID, "status": outcome.Status,
		})
	}
	return nil
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
