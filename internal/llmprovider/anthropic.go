package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"evidentia/internal/config"
)

const anthropicDefaultMaxTokens int64 = 4096

// AnthropicProvider adapts the anthropic-sdk-go streaming Messages API to
// the Provider contract, switching over content-block deltas to split
// thinking tokens from assistant-visible text and accumulate tool_use
// blocks.
type AnthropicProvider struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicProvider(cfg config.AnthropicConfig, httpClient *http.Client) *AnthropicProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}
	return &AnthropicProvider{sdk: anthropic.NewClient(opts...), model: model, maxTokens: anthropicDefaultMaxTokens}
}

func (p *AnthropicProvider) StreamTurn(
	ctx context.Context,
	messages []Message,
	tools []ToolSchema,
	systemPrompt string,
	onThinkingToken func(string),
	onTextToken func(string),
) (StreamResult, error) {
	anthTools, err := anthropicAdaptTools(tools)
	if err != nil {
		return StreamResult{}, fmt.Errorf("llmprovider: adapt anthropic tools: %w", err)
	}
	anthMsgs, err := anthropicAdaptMessages(messages)
	if err != nil {
		return StreamResult{}, fmt.Errorf("llmprovider: adapt anthropic messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages:  anthMsgs,
		Tools:     anthTools,
	}
	if strings.TrimSpace(systemPrompt) != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	stream := p.sdk.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var text strings.Builder
	var thinking strings.Builder
	toolBuffers := map[int64]*anthropicToolBuffer{}
	var toolOrder []int64

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			switch block := ev.ContentBlock.AsAny().(type) {
			case anthropic.ToolUseBlock:
				toolBuffers[ev.Index] = &anthropicToolBuffer{id: block.ID, name: block.Name}
				toolOrder = append(toolOrder, ev.Index)
			}
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				text.WriteString(delta.Text)
				if onTextToken != nil {
					onTextToken(delta.Text)
				}
			case anthropic.ThinkingDelta:
				thinking.WriteString(delta.Thinking)
				if onThinkingToken != nil {
					onThinkingToken(delta.Thinking)
				}
			case anthropic.InputJSONDelta:
				if tb, ok := toolBuffers[ev.Index]; ok {
					tb.argsJSON.WriteString(delta.PartialJSON)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return StreamResult{}, fmt.Errorf("llmprovider: anthropic stream: %w", err)
	}

	var toolCalls []ToolCall
	for _, idx := range toolOrder {
		tb := toolBuffers[idx]
		raw := tb.argsJSON.String()
		if strings.TrimSpace(raw) == "" {
			raw = "{}"
		}
		if !json.Valid([]byte(raw)) {
			wrapped, _ := json.Marshal(map[string]string{"raw": raw})
			raw = string(wrapped)
		}
		toolCalls = append(toolCalls, ToolCall{ID: tb.id, Name: tb.name, Args: json.RawMessage(raw)})
	}

	return StreamResult{
		Text:          text.String(),
		Thinking:      thinking.String(),
		ToolCalls:     toolCalls,
		ProviderState: map[string]any{"model": p.model},
	}, nil
}

type anthropicToolBuffer struct {
	id       string
	name     string
	argsJSON strings.Builder
}

func anthropicAdaptTools(tools []ToolSchema) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{Properties: t.Parameters["properties"]}
		if req, ok := t.Parameters["required"].([]string); ok {
			schema.Required = req
		}
		param := anthropic.ToolParam{Name: t.Name, InputSchema: schema}
		if t.Description != "" {
			param.Description = anthropic.String(t.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

func anthropicAdaptMessages(msgs []Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			continue // system prompt is carried separately
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var args any
				_ = json.Unmarshal(tc.Args, &args)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return out, nil
}
