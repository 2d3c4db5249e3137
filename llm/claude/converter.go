package claude

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/loopkit/loopkit/chat"
)

// buildParams assembles one Messages API request from the canonical history
// plus per-request options. System messages are lifted out of the history
// into the request's system field.
func (m *model) buildParams(msgs []chat.Message, reqOpts chat.SendOptions) (anthropic.MessageNewParams, error) {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for i, msg := range msgs {
		if msg.Role == chat.SystemRole {
			system = append(system, anthropic.TextBlockParam{Text: msg.Text(), Type: "text"})
			continue
		}
		p, err := messageParam(msg)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("converting message %d: %w", i, err)
		}
		messages = append(messages, p)
	}

	params := anthropic.MessageNewParams{
		Messages:  messages,
		Model:     anthropic.Model(m.modelName),
		MaxTokens: m.maxTokens(),
	}
	if reqOpts.MaxTokens > 0 {
		params.MaxTokens = int64(reqOpts.MaxTokens)
	}

	temperature := m.temperature
	if reqOpts.Temperature != nil {
		temperature = reqOpts.Temperature
	}
	if temperature != nil {
		params.Temperature = anthropic.Float(*temperature)
	}

	if len(m.tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(m.tools))
		for _, t := range m.tools {
			toolParam, err := toolToParam(t)
			if err != nil {
				return anthropic.MessageNewParams{}, fmt.Errorf("converting tool %s: %w", t.Name(), err)
			}
			tools = append(tools, toolParam)
		}
		params.Tools = tools
	}

	// The Messages API has no response_format equivalent; a schema request
	// becomes a system instruction instead.
	if reqOpts.OutputSchema != nil {
		raw, err := json.Marshal(reqOpts.OutputSchema)
		if err != nil {
			return anthropic.MessageNewParams{}, fmt.Errorf("serializing output schema: %w", err)
		}
		system = append(system, anthropic.TextBlockParam{
			Text: fmt.Sprintf("You must respond with valid JSON conforming to this JSON schema, with no surrounding prose:\n%s", raw),
			Type: "text",
		})
	}
	if len(system) > 0 {
		params.System = system
	}
	return params, nil
}

func toolToParam(t chat.Tool) (anthropic.ToolUnionParam, error) {
	var inputSchema anthropic.ToolInputSchemaParam
	if s := t.InputSchema(); s != nil {
		raw, err := json.Marshal(s)
		if err != nil {
			return anthropic.ToolUnionParam{}, err
		}
		if err := json.Unmarshal(raw, &inputSchema); err != nil {
			return anthropic.ToolUnionParam{}, err
		}
	}

	toolParam := anthropic.ToolParam{
		Name:        t.Name(),
		InputSchema: inputSchema,
		Type:        anthropic.ToolTypeCustom,
	}
	if desc := t.Description(); desc != "" {
		toolParam.Description = anthropic.String(desc)
	}
	return anthropic.ToolUnionParam{OfTool: &toolParam}, nil
}

// messageParam converts one canonical message to an Anthropic message param.
//
// IMPORTANT INVARIANTS for the Messages API:
//   - Tool results live in user role messages, never assistant ones
//   - Assistant messages carry text and tool_use blocks only
//   - Every content block must be non-empty
func messageParam(msg chat.Message) (anthropic.MessageParam, error) {
	if msg.IsEmpty() {
		return anthropic.MessageParam{}, fmt.Errorf("message has no parts")
	}

	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range msg.Parts {
		switch {
		case p.ToolCall != nil:
			blocks = append(blocks, anthropic.NewToolUseBlock(p.ToolCall.ID, p.ToolCall.Arguments, p.ToolCall.Name))
		case p.ToolResult != nil:
			result := p.ToolResult.Result
			if result == "" {
				result = "{}"
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(p.ToolResult.ID, result, false))
		case p.Data != nil:
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.Data.MimeType, base64.StdEncoding.EncodeToString(p.Data.Bytes)))
		case p.Link != nil:
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfImage: &anthropic.ImageBlockParam{
					Source: anthropic.ImageBlockParamSourceUnion{
						OfURL: &anthropic.URLImageSourceParam{URL: p.Link.URL},
					},
				},
			})
		case p.Text != "":
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
	}
	if len(blocks) == 0 {
		return anthropic.MessageParam{}, fmt.Errorf("message has no valid content blocks")
	}

	switch msg.Role {
	case chat.ModelRole:
		return anthropic.NewAssistantMessage(blocks...), nil
	default:
		return anthropic.NewUserMessage(blocks...), nil
	}
}
