package openrouter

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/freeroute/internal/domain"
)

// toSDKParams converts a domain request into SDK parameters. Fields the typed
// params cannot express for arbitrary aggregator models (tools, tool choice,
// response format, assistant tool calls) are spliced into the body as raw JSON.
func toSDKParams(req *domain.ChatCompletionRequest) (openai.ChatCompletionNewParams, []option.RequestOption, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	hasToolCalls := false
	for i, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleSystem:
			messages[i] = openai.SystemMessage(msg.Content)
		case domain.RoleAssistant:
			messages[i] = openai.AssistantMessage(msg.Content)
			hasToolCalls = hasToolCalls || len(msg.ToolCalls) > 0
		case domain.RoleTool:
			messages[i] = openai.ToolMessage(msg.Content, msg.ToolCallID)
		default:
			messages[i] = openai.UserMessage(msg.Content)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}

	var opts []option.RequestOption

	if hasToolCalls {
		opts = append(opts, option.WithJSONSet("messages", req.Messages))
	}
	if req.ResponseFormat != nil {
		opts = append(opts, option.WithJSONSet("response_format", req.ResponseFormat))
	}
	if len(req.Tools) > 0 {
		opts = append(opts, option.WithJSONSet("tools", req.Tools))
	}
	if len(req.ToolChoice) > 0 {
		var choice interface{}
		if err := json.Unmarshal(req.ToolChoice, &choice); err != nil {
			return params, nil, fmt.Errorf("invalid tool_choice: %w", err)
		}
		opts = append(opts, option.WithJSONSet("tool_choice", choice))
	}

	return params, opts, nil
}

// toDomainResponse converts an SDK completion into the domain shape.
func toDomainResponse(resp *openai.ChatCompletion) *domain.ChatCompletionResponse {
	choices := make([]domain.Choice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		msg := domain.Message{
			Role:    domain.RoleAssistant,
			Content: c.Message.Content,
		}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: domain.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		choices = append(choices, domain.Choice{
			Index:        int(c.Index),
			Message:      msg,
			FinishReason: c.FinishReason,
		})
	}

	return &domain.ChatCompletionResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Created: resp.Created,
		Choices: choices,
		Usage: &domain.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
}
