package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentcp/controlplane/internal/config"
)

// structuredToolName is the synthetic tool the model is forced to call so
// its response conforms to Request.Schema; Anthropic has no native
// "response_format: json_schema" mode, so forcing a single tool call with
// the desired schema is the idiomatic way to get structured output from it.
const structuredToolName = "respond"

// AnthropicModel is the production Model capability backed by
// anthropic-sdk-go.
type AnthropicModel struct {
	client        anthropic.Client
	model         anthropic.Model
	maxTokens     int64
	contextWindow int
}

// NewAnthropicModel creates a Model backed by the Anthropic Messages API.
func NewAnthropicModel(cfg *config.ModelConfig) *AnthropicModel {
	return &AnthropicModel{
		client:        anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:         anthropic.Model(cfg.Model),
		maxTokens:     int64(cfg.MaxOutputTokens),
		contextWindow: cfg.ContextWindow,
	}
}

func (m *AnthropicModel) ContextWindow() int { return m.contextWindow }

// Structured calls the model with its response forced through a single
// tool whose input_schema carries req.Schema's top-level "properties", then
// returns that tool call's input verbatim as Response.Raw. Other top-level
// schema keywords (such as "required") are not sent to the provider.
func (m *AnthropicModel) Structured(ctx context.Context, req Request) (Response, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	var schema map[string]any
	if len(req.Schema) > 0 {
		if err := json.Unmarshal(req.Schema, &schema); err != nil {
			return Response{}, fmt.Errorf("invalid response schema: %w", err)
		}
	}

	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages:  messages,
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        structuredToolName,
					Description: anthropic.String("Produce the final structured response"),
					InputSchema: anthropic.ToolInputSchemaParam{Properties: schema["properties"]},
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: structuredToolName},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("anthropic request failed: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == structuredToolName {
			return Response{
				Raw:          block.Input,
				InputTokens:  int(resp.Usage.InputTokens),
				OutputTokens: int(resp.Usage.OutputTokens),
			}, nil
		}
	}

	return Response{}, fmt.Errorf("model did not return a structured tool call")
}
