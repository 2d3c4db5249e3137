package gemini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/schema"
)

func TestMessageToContents_UserText(t *testing.T) {
	t.Parallel()

	out, err := messageToContents(chat.UserMessage("hello"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "user", out[0].Role)
	require.Len(t, out[0].Parts, 1)
	assert.Equal(t, "hello", out[0].Parts[0].Text)
}

func TestMessageToContents_ModelWithFunctionCall(t *testing.T) {
	t.Parallel()

	msg := chat.Message{Role: chat.ModelRole}
	msg.AddText("let me check")
	msg.AddToolCall(chat.ToolCallPart{ID: "get_weather-abc123", Name: "get_weather", Arguments: json.RawMessage(`{"city":"SF"}`)})

	out, err := messageToContents(msg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "model", out[0].Role)
	require.Len(t, out[0].Parts, 2)
	require.NotNil(t, out[0].Parts[1].FunctionCall)
	assert.Equal(t, "get_weather", out[0].Parts[1].FunctionCall.Name)
	assert.Equal(t, map[string]any{"city": "SF"}, out[0].Parts[1].FunctionCall.Args)
}

func TestMessageToContents_ToolResultsSplitFromUserText(t *testing.T) {
	t.Parallel()

	msg := chat.Message{Role: chat.UserRole}
	msg.AddToolResult(chat.ToolResultPart{ID: "call-1", Name: "get_weather", Result: `{"temp":72}`})
	msg.AddText("thanks")

	out, err := messageToContents(msg)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "function", out[0].Role)
	require.NotNil(t, out[0].Parts[0].FunctionResponse)
	assert.Equal(t, map[string]any{"temp": float64(72)}, out[0].Parts[0].FunctionResponse.Response)
	assert.Equal(t, "user", out[1].Role)
}

func TestToolResultResponse_Shapes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]any{"result": "success"}, toolResultResponse(""))
	assert.Equal(t, map[string]any{"result": "plain text"}, toolResultResponse("plain text"))
	assert.Equal(t, map[string]any{"ok": true}, toolResultResponse(`{"ok":true}`))
}

func TestSchemaToGenai(t *testing.T) {
	t.Parallel()

	s := schema.ObjectOf(map[string]*schema.JSON{
		"city":  schema.StringProp("city name"),
		"count": {Type: schema.Integer},
	}, "city")

	out, err := schemaToGenai(s)
	require.NoError(t, err)
	assert.Equal(t, genai.TypeObject, out.Type)
	assert.Equal(t, []string{"city"}, out.Required)
	assert.Equal(t, genai.TypeString, out.Properties["city"].Type)
	assert.Equal(t, genai.TypeInteger, out.Properties["count"].Type)
}

func TestSchemaToGenai_RejectsUnions(t *testing.T) {
	t.Parallel()

	s := &schema.JSON{
		Type: schema.Object,
		Properties: map[string]*schema.JSON{
			"value": {AnyOf: []*schema.JSON{
				{Type: schema.String},
				{Type: schema.Number},
			}},
		},
	}

	_, err := schemaToGenai(s)
	require.Error(t, err)
	var schemaErr *chat.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "google", schemaErr.Provider)
}

func TestFunctionCallToPart_SynthesizesID(t *testing.T) {
	t.Parallel()

	part, err := functionCallToPart(&genai.FunctionCall{
		Name: "get_weather",
		Args: map[string]any{"city": "SF"},
	})
	require.NoError(t, err)
	require.NotNil(t, part.ToolCall)
	assert.Contains(t, part.ToolCall.ID, "get_weather-")
	assert.JSONEq(t, `{"city":"SF"}`, string(part.ToolCall.Arguments))

	keeps, err := functionCallToPart(&genai.FunctionCall{ID: "given", Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "given", keeps.ToolCall.ID)
	assert.JSONEq(t, `{}`, string(keeps.ToolCall.Arguments))
}

func TestMapFinishReason(t *testing.T) {
	t.Parallel()

	assert.Equal(t, chat.FinishStop, mapFinishReason(genai.FinishReasonStop))
	assert.Equal(t, chat.FinishLength, mapFinishReason(genai.FinishReasonMaxTokens))
	assert.Equal(t, chat.FinishContentFilter, mapFinishReason(genai.FinishReasonSafety))
	assert.Equal(t, chat.FinishRecitation, mapFinishReason(genai.FinishReasonRecitation))
	assert.Equal(t, chat.FinishUnspecified, mapFinishReason(""))
}
