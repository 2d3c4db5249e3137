package openai

import (
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/loopkit/loopkit/chat"
)

// buildParams assembles one chat completions request from the canonical
// history plus per-request options.
func (m *model) buildParams(msgs []chat.Message, reqOpts chat.SendOptions) (openai.ChatCompletionNewParams, error) {
	messages, err := messagesToParams(msgs)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    m.modelName,
	}

	if len(m.tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(m.tools))
		for _, t := range m.tools {
			toolParam, err := toolToParam(t)
			if err != nil {
				return openai.ChatCompletionNewParams{}, fmt.Errorf("converting tool %s: %w", t.Name(), err)
			}
			tools = append(tools, toolParam)
		}
		params.Tools = tools
	}

	temperature := m.temperature
	if reqOpts.Temperature != nil {
		temperature = reqOpts.Temperature
	}
	if temperature != nil {
		params.Temperature = openai.Float(*temperature)
	}
	if reqOpts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(reqOpts.MaxTokens))
	}

	if reqOpts.OutputSchema != nil {
		schemaMap, err := reqOpts.OutputSchema.AsMap()
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("serializing output schema: %w", err)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "result",
					Schema: schemaMap,
					Strict: param.NewOpt(true),
				},
			},
		}
	}

	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: param.NewOpt(true),
	}
	return params, nil
}

func toolToParam(t chat.Tool) (openai.ChatCompletionToolParam, error) {
	var parameters shared.FunctionParameters
	if s := t.InputSchema(); s != nil {
		schemaMap, err := s.AsMap()
		if err != nil {
			return openai.ChatCompletionToolParam{}, err
		}
		parameters = schemaMap
	}
	return openai.ChatCompletionToolParam{
		Function: shared.FunctionDefinitionParam{
			Name:        t.Name(),
			Description: param.NewOpt(t.Description()),
			Parameters:  parameters,
		},
	}, nil
}

// messageToParams converts one canonical message to OpenAI message params.
//
// IMPORTANT INVARIANTS for OpenAI:
//   - Tool calls must be in assistant role messages
//   - Tool results must each be their own "tool" role message, and they must
//     directly follow the assistant message that requested them
//   - User messages carry text plus optional image content parts
func messageToParams(msg chat.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case chat.SystemRole:
		text := msg.Text()
		if text == "" {
			return nil, fmt.Errorf("system message has no text content")
		}
		return []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(text)}, nil

	case chat.ModelRole:
		assistant := openai.ChatCompletionAssistantMessageParam{}
		if text := msg.Text(); text != "" {
			assistant.Content.OfString = param.NewOpt(text)
		}
		for _, tc := range msg.ToolCalls() {
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		if assistant.Content.OfString.Value == "" && len(assistant.ToolCalls) == 0 {
			return nil, fmt.Errorf("model message has no content")
		}
		return []openai.ChatCompletionMessageParamUnion{{OfAssistant: &assistant}}, nil

	case chat.UserRole:
		var out []openai.ChatCompletionMessageParamUnion
		for _, tr := range msg.ToolResults() {
			result := tr.Result
			if result == "" {
				result = "{}"
			}
			out = append(out, openai.ToolMessage(result, tr.ID))
		}

		var parts []openai.ChatCompletionContentPartUnionParam
		for _, p := range msg.Parts {
			switch {
			case p.ToolResult != nil:
				// Already expanded above.
			case p.Data != nil:
				url := fmt.Sprintf("data:%s;base64,%s", p.Data.MimeType, base64.StdEncoding.EncodeToString(p.Data.Bytes))
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
			case p.Link != nil:
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.Link.URL}))
			case p.IsText() && p.Text != "":
				parts = append(parts, openai.TextContentPart(p.Text))
			}
		}
		switch {
		case len(parts) == 1 && parts[0].OfText != nil:
			out = append(out, openai.UserMessage(parts[0].OfText.Text))
		case len(parts) > 0:
			out = append(out, openai.UserMessage(parts))
		}

		if len(out) == 0 {
			return nil, fmt.Errorf("user message has no content")
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown message role: %s", msg.Role)
	}
}

// messagesToParams converts a canonical history into OpenAI message params.
// One canonical message may expand into several params (tool results).
func messagesToParams(msgs []chat.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var out []openai.ChatCompletionMessageParamUnion
	for i, msg := range msgs {
		converted, err := messageToParams(msg)
		if err != nil {
			return nil, fmt.Errorf("converting message %d: %w", i, err)
		}
		out = append(out, converted...)
	}
	return out, nil
}
