package llmprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"evidentia/internal/config"
)

// OpenAIProvider adapts the Chat Completions streaming API to the Provider
// contract, accumulating tool-call argument deltas by index as they stream
// in.
type OpenAIProvider struct {
	sdk   sdk.Client
	model string
}

func NewOpenAIProvider(cfg config.OpenAIConfig, httpClient *http.Client) *OpenAIProvider {
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
		model = string(sdk.ChatModelGPT4_1)
	}
	return &OpenAIProvider{sdk: sdk.NewClient(opts...), model: model}
}

func (p *OpenAIProvider) StreamTurn(
	ctx context.Context,
	messages []Message,
	tools []ToolSchema,
	systemPrompt string,
	onThinkingToken func(string),
	onTextToken func(string),
) (StreamResult, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(p.model),
		Messages: openaiAdaptMessages(systemPrompt, messages),
	}
	if len(tools) > 0 {
		params.Tools = openaiAdaptTools(tools)
	}
	params.StreamOptions.IncludeUsage = sdk.Bool(true)

	stream := p.sdk.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var text strings.Builder
	toolCalls := map[int64]*ToolCall{}
	var toolOrder []int64

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if onTextToken != nil {
				onTextToken(delta.Content)
			}
		}
		for _, tc := range delta.ToolCalls {
			idx := tc.Index
			existing, ok := toolCalls[idx]
			if !ok {
				existing = &ToolCall{ID: tc.ID}
				toolCalls[idx] = existing
				toolOrder = append(toolOrder, idx)
			}
			if tc.Function.Name != "" {
				existing.Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				existing.Args = json.RawMessage(string(existing.Args) + tc.Function.Arguments)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return StreamResult{}, fmt.Errorf("llmprovider: openai stream: %w", err)
	}

	var out []ToolCall
	for _, idx := range toolOrder {
		tc := toolCalls[idx]
		if tc.Name == "" {
			continue
		}
		if strings.TrimSpace(string(tc.Args)) == "" {
			tc.Args = json.RawMessage("{}")
		}
		out = append(out, *tc)
	}

	// OpenAI's Chat Completions API does not expose a reasoning-token
	// stream for this model family; thinking stays empty and callers must
	// not assume it is always populated.
	_ = onThinkingToken

	return StreamResult{
		Text:          text.String(),
		ToolCalls:     out,
		ProviderState: map[string]any{"model": p.model},
	}, nil
}

func openaiAdaptMessages(systemPrompt string, msgs []Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, sdk.SystemMessage(systemPrompt))
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, sdk.UserMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, sdk.AssistantMessage(m.Content))
				continue
			}
			calls := make([]sdk.ChatCompletionMessageToolCallUnionParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, sdk.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(tc.Args),
						},
					},
				})
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{
				OfAssistant: &sdk.ChatCompletionAssistantMessageParam{
					Content:   sdk.ChatCompletionAssistantMessageParamContentUnion{OfString: sdk.String(m.Content)},
					ToolCalls: calls,
				},
			})
		case RoleTool:
			out = append(out, sdk.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func openaiAdaptTools(tools []ToolSchema) []sdk.ChatCompletionToolUnionParam {
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, sdk.ChatCompletionFunctionTool(sdk.FunctionDefinitionParam{
			Name:        t.Name,
			Description: sdk.String(t.Description),
			Parameters:  sdk.FunctionParameters(t.Parameters),
		}))
	}
	return out
}
