package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

// AnthropicOptions configures the Anthropic adapter.
type AnthropicOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

// Anthropic drives the Messages API with tool use.
type Anthropic struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

func NewAnthropic(opts AnthropicOptions) *Anthropic {
	var reqOpts []option.RequestOption
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	reqOpts = append(reqOpts, option.WithMaxRetries(0))

	client := anthropic.NewClient(reqOpts...)
	model := anthropic.Model(opts.Model)
	if model == "" {
		model = anthropic.ModelClaude3_5Sonnet20241022
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Anthropic{client: &client, model: model, maxTokens: opts.MaxTokens}
}

// Complete implements ChatModel.
func (m *Anthropic) Complete(ctx context.Context, req Request) (models.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages:  buildAnthropicMessages(req.Messages, len(req.Tools) > 0),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, t := range req.Tools {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if props, ok := t.Parameters["properties"]; ok {
			schema.Properties = props
		}
		schema.Required = requiredFields(t.Parameters)

		tool := anthropic.ToolUnionParamOfTool(schema, t.Name)
		tool.OfTool.Description = anthropic.String(t.Description)
		params.Tools = append(params.Tools, tool)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return models.Message{}, fmt.Errorf("anthropic: %w", err)
	}

	out := models.Message{Role: models.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			args, err := json.Marshal(tu.Input)
			if err != nil {
				return models.Message{}, fmt.Errorf("anthropic: tool input: %w", err)
			}
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}
	return out, nil
}

// buildAnthropicMessages converts history to Messages API turns. Tool results
// travel as user turns, and consecutive turns with the same role are merged
// because the API requires strict alternation. The API rejects tool blocks in
// a request that declares no tools, so without toolBlocks the exchanges are
// rendered as text.
func buildAnthropicMessages(history []models.Message, toolBlocks bool) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	push := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, msg := range history {
		switch msg.Role {
		case models.RoleUser, models.RoleSystem:
			if msg.Content != "" {
				push(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(msg.Content))
			}
		case models.RoleTool:
			if !toolBlocks {
				push(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(fmt.Sprintf("Result of %s:\n%s", msg.Name, msg.Content)))
				continue
			}
			push(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		case models.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				if !toolBlocks {
					blocks = append(blocks, anthropic.NewTextBlock(fmt.Sprintf("Calling %s with %s", tc.Name, tc.Arguments)))
					continue
				}
				var input any = map[string]any{}
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						input = map[string]any{}
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			push(anthropic.MessageParamRoleAssistant, blocks...)
		}
	}
	return out
}
