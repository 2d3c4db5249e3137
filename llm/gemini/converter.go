package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/schema"
)

// buildRequest assembles contents and config for one generateContent call.
// System messages are lifted out of the history into the system instruction.
func (m *model) buildRequest(msgs []chat.Message, reqOpts chat.SendOptions) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{}
	if m.baseURL != "" {
		config.HTTPOptions = &genai.HTTPOptions{BaseURL: m.baseURL}
	}

	var systemParts []string
	var contents []*genai.Content
	for i, msg := range msgs {
		if msg.Role == chat.SystemRole {
			systemParts = append(systemParts, msg.Text())
			continue
		}
		converted, err := messageToContents(msg)
		if err != nil {
			return nil, nil, fmt.Errorf("converting message %d: %w", i, err)
		}
		for _, c := range converted {
			if c != nil && len(c.Parts) > 0 {
				contents = append(contents, c)
			}
		}
	}
	if len(systemParts) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}

	temperature := m.temperature
	if reqOpts.Temperature != nil {
		temperature = reqOpts.Temperature
	}
	if temperature != nil {
		temp := float32(*temperature)
		config.Temperature = &temp
	}
	if reqOpts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(reqOpts.MaxTokens)
	}

	if len(m.tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(m.tools))
		for _, t := range m.tools {
			decl, err := toolToDeclaration(t)
			if err != nil {
				return nil, nil, fmt.Errorf("converting tool %s: %w", t.Name(), err)
			}
			decls = append(decls, decl)
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if reqOpts.OutputSchema != nil {
		converted, err := schemaToGenai(reqOpts.OutputSchema)
		if err != nil {
			return nil, nil, err
		}
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = converted
	}
	return contents, config, nil
}

func toolToDeclaration(t chat.Tool) (*genai.FunctionDeclaration, error) {
	decl := &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
	}
	if s := t.InputSchema(); s != nil && !s.Empty() {
		parameters, err := schemaToGenai(s)
		if err != nil {
			return nil, err
		}
		decl.Parameters = parameters
	}
	return decl, nil
}

// schemaToGenai converts a JSON schema into Gemini's schema model. Gemini
// has no union support, so anyOf/oneOf anywhere in the tree is an error.
func schemaToGenai(s *schema.JSON) (*genai.Schema, error) {
	if s.HasUnion() {
		return nil, &chat.SchemaError{
			Provider: "google",
			Detail:   "anyOf/oneOf schemas are not representable",
		}
	}
	return convertSchema(s), nil
}

func convertSchema(s *schema.JSON) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiType(s),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       convertSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop)
		}
	}
	return out
}

func genaiType(s *schema.JSON) genai.Type {
	switch {
	case s.TypeIs(schema.String):
		return genai.TypeString
	case s.TypeIs(schema.Number):
		return genai.TypeNumber
	case s.TypeIs(schema.Integer):
		return genai.TypeInteger
	case s.TypeIs(schema.Boolean):
		return genai.TypeBoolean
	case s.TypeIs(schema.Array):
		return genai.TypeArray
	case s.TypeIs(schema.Object):
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// messageToContents converts one canonical message to Gemini contents.
//
// IMPORTANT INVARIANTS for Gemini:
//   - Tool calls are FunctionCall parts in "model" role content
//   - Tool results are FunctionResponse parts in "function" role content
//   - Function responses must be objects; bare strings are wrapped
//   - Empty content objects are never emitted
func messageToContents(msg chat.Message) ([]*genai.Content, error) {
	if msg.IsEmpty() {
		return nil, fmt.Errorf("message has no parts")
	}

	switch msg.Role {
	case chat.ModelRole:
		var parts []*genai.Part
		for _, p := range msg.Parts {
			switch {
			case p.ToolCall != nil:
				var args map[string]any
				if len(p.ToolCall.Arguments) > 0 {
					if err := json.Unmarshal(p.ToolCall.Arguments, &args); err != nil {
						args = map[string]any{"raw": string(p.ToolCall.Arguments)}
					}
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   p.ToolCall.ID,
						Name: p.ToolCall.Name,
						Args: args,
					},
				})
			case p.IsText() && p.Text != "":
				parts = append(parts, &genai.Part{Text: p.Text})
			}
		}
		if len(parts) == 0 {
			return nil, nil
		}
		return []*genai.Content{{Role: "model", Parts: parts}}, nil

	case chat.UserRole:
		// Tool results and user content need different roles, so one
		// canonical message may expand to two contents.
		var fnParts []*genai.Part
		var userParts []*genai.Part
		for _, p := range msg.Parts {
			switch {
			case p.ToolResult != nil:
				fnParts = append(fnParts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       p.ToolResult.ID,
						Name:     p.ToolResult.Name,
						Response: toolResultResponse(p.ToolResult.Result),
					},
				})
			case p.Data != nil:
				userParts = append(userParts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: p.Data.MimeType, Data: p.Data.Bytes},
				})
			case p.Link != nil:
				userParts = append(userParts, &genai.Part{
					FileData: &genai.FileData{MIMEType: p.Link.MimeType, FileURI: p.Link.URL},
				})
			case p.IsText() && p.Text != "":
				userParts = append(userParts, &genai.Part{Text: p.Text})
			}
		}

		var out []*genai.Content
		if len(fnParts) > 0 {
			out = append(out, &genai.Content{Role: "function", Parts: fnParts})
		}
		if len(userParts) > 0 {
			out = append(out, &genai.Content{Role: "user", Parts: userParts})
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("user message has no content")
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown message role: %s", msg.Role)
	}
}

// toolResultResponse shapes a serialized tool result into the object Gemini
// requires.
func toolResultResponse(result string) map[string]any {
	if result == "" {
		return map[string]any{"result": "success"}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(result), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"result": result}
}
