package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"evidentia/internal/eventstore"
	"evidentia/internal/llmprovider"
	"evidentia/internal/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-process EventStore fake so engine tests never
// need a live Postgres instance.
type memoryStore struct {
	mu     sync.Mutex
	events map[string][]eventstore.Event
	next   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{events: make(map[string][]eventstore.Event)}
}

func (m *memoryStore) AppendEvent(_ context.Context, e eventstore.Event) (eventstore.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	e.Position = m.next
	m.events[e.ThreadID] = append(m.events[e.ThreadID], e)
	return e, nil
}

func (m *memoryStore) ListEvents(_ context.Context, threadID string) ([]eventstore.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]eventstore.Event, len(m.events[threadID]))
	copy(out, m.events[threadID])
	return out, nil
}

func calcRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	return tools.NewRegistry([]tools.Spec{tools.CalcSpec()}, nil, "")
}

func TestEngineRunSimpleArithmeticTurn(t *testing.T) {
	store := newMemoryStore()
	provider := &llmprovider.TriggerMockProvider{}
	registry := calcRegistry(t)

	var emitted []EmittedEvent
	eng := NewEngine(provider, registry, store, 5, "")
	eng.Emit = func(ev EmittedEvent) { emitted = append(emitted, ev) }

	final, err := eng.Run(context.Background(), "thread-1", "what is (2+3)*4?")
	require.NoError(t, err)
	assert.Equal(t, "20", final)

	events, err := store.ListEvents(context.Background(), "thread-1")
	require.NoError(t, err)
	var kinds []string
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{"text", "tool_call", "tool_result", "text"}, kinds)

	var toolStartIdx, toolResultIdx = -1, -1
	for i, ev := range emitted {
		if ev.Type == "main_agent_tool_start" {
			toolStartIdx = i
		}
		if ev.Type == "main_agent_tool_result" {
			toolResultIdx = i
		}
	}
	require.NotEqual(t, -1, toolStartIdx)
	require.NotEqual(t, -1, toolResultIdx)
	assert.Less(t, toolStartIdx, toolResultIdx)
	assert.Equal(t, "main_agent_start", emitted[0].Type)
	assert.Equal(t, "main_agent_complete", emitted[len(emitted)-1].Type)
}

// loopingProvider always emits a tool call, never a terminal text, so
// the engine must hit its iteration cap.
type loopingProvider struct{}

func (loopingProvider) StreamTurn(_ context.Context, _ []llmprovider.Message, _ []llmprovider.ToolSchema, _ string, _ func(string), _ func(string)) (llmprovider.StreamResult, error) {
	args, _ := json.Marshal(map[string]string{"expression": "1+1"})
	return llmprovider.StreamResult{ToolCalls: []llmprovider.ToolCall{{ID: "", Name: "calc", Args: args}}}, nil
}

func TestEngineRunHitsIterationCap(t *testing.T) {
	store := newMemoryStore()
	registry := calcRegistry(t)

	eng := NewEngine(loopingProvider{}, registry, store, 3, "")
	final, err := eng.Run(context.Background(), "thread-2", "loop forever")
	require.NoError(t, err)
	assert.Equal(t, "tool-iteration limit (3) reached", final)

	events, err := store.ListEvents(context.Background(), "thread-2")
	require.NoError(t, err)
	toolCalls := 0
	for _, e := range events {
		if e.Kind == "tool_call" {
			toolCalls++
		}
	}
	assert.Equal(t, 3, toolCalls)
	assert.Equal(t, "tool-iteration limit (3) reached", events[len(events)-1].Content)
}

func TestEngineRunAssignsSharedMessageIDAcrossParallelToolCalls(t *testing.T) {
	store := newMemoryStore()
	registry := calcRegistry(t)

	calls := 0
	provider := multiToolProviderFunc(func() llmprovider.StreamResult {
		calls++
		if calls == 1 {
			args1, _ := json.Marshal(map[string]string{"expression": "1+1"})
			args2, _ := json.Marshal(map[string]string{"expression": "2+2"})
			return llmprovider.StreamResult{ToolCalls: []llmprovider.ToolCall{
				{ID: "a", Name: "calc", Args: args1},
				{ID: "b", Name: "calc", Args: args2},
			}}
		}
		return llmprovider.StreamResult{Text: "done"}
	})

	eng := NewEngine(provider, registry, store, 5, "")
	final, err := eng.Run(context.Background(), "thread-3", "two calcs")
	require.NoError(t, err)
	assert.Equal(t, "done", final)

	events, err := store.ListEvents(context.Background(), "thread-3")
	require.NoError(t, err)
	var toolCallMessageIDs []string
	for _, e := range events {
		if e.Kind == "tool_call" {
			require.NotNil(t, e.MessageID)
			toolCallMessageIDs = append(toolCallMessageIDs, *e.MessageID)
		}
	}
	require.Len(t, toolCallMessageIDs, 2)
	assert.Equal(t, toolCallMessageIDs[0], toolCallMessageIDs[1])
}

func TestEngineRunAppendsParallelToolResultsInCallOrder(t *testing.T) {
	store := newMemoryStore()
	registry := calcRegistry(t)

	calls := 0
	provider := multiToolProviderFunc(func() llmprovider.StreamResult {
		calls++
		if calls == 1 {
			argsSlow, _ := json.Marshal(map[string]string{"expression": "1+1"})
			argsFast, _ := json.Marshal(map[string]string{"expression": "2+2"})
			return llmprovider.StreamResult{ToolCalls: []llmprovider.ToolCall{
				{ID: "slow", Name: "calc", Args: argsSlow},
				{ID: "fast", Name: "calc", Args: argsFast},
			}}
		}
		return llmprovider.StreamResult{Text: "done"}
	})

	eng := NewEngine(provider, registry, store, 5, "")
	eng.MaxToolParallelism = 4
	final, err := eng.Run(context.Background(), "thread-4", "two calcs in parallel")
	require.NoError(t, err)
	assert.Equal(t, "done", final)

	events, err := store.ListEvents(context.Background(), "thread-4")
	require.NoError(t, err)
	var toolCallOrder, toolResultOrder []string
	for _, e := range events {
		if e.ToolCallID == nil {
			continue
		}
		switch e.Kind {
		case "tool_call":
			toolCallOrder = append(toolCallOrder, *e.ToolCallID)
		case "tool_result":
			toolResultOrder = append(toolResultOrder, *e.ToolCallID)
		}
	}
	assert.Equal(t, []string{"slow", "fast"}, toolCallOrder)
	assert.Equal(t, []string{"slow", "fast"}, toolResultOrder)
}

type multiToolProviderFunc func() llmprovider.StreamResult

func (f multiToolProviderFunc) StreamTurn(_ context.Context, _ []llmprovider.Message, _ []llmprovider.ToolSchema, _ string, _ func(string), _ func(string)) (llmprovider.StreamResult, error) {
	return f(), nil
}
