package openai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	openaisdk "github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/schema"
)

func TestMessageToParams_System(t *testing.T) {
	t.Parallel()

	out, err := messageToParams(chat.SystemMessage("be helpful"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfSystem)
}

func TestMessageToParams_UserText(t *testing.T) {
	t.Parallel()

	out, err := messageToParams(chat.UserMessage("hello"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfUser)
}

func TestMessageToParams_UserWithImage(t *testing.T) {
	t.Parallel()

	msg := chat.UserMessage("what is this?", chat.Part{
		Data: &chat.DataPart{Bytes: []byte{0x89, 0x50}, MimeType: "image/png"},
	})
	out, err := messageToParams(msg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfUser)

	parts := out[0].OfUser.Content.OfArrayOfContentParts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].OfText)
	assert.Equal(t, "what is this?", parts[0].OfText.Text)
	require.NotNil(t, parts[1].OfImageURL)
	assert.Contains(t, parts[1].OfImageURL.ImageURL.URL, "data:image/png;base64,")
}

func TestMessageToParams_ToolResultsExpand(t *testing.T) {
	t.Parallel()

	msg := chat.Message{Role: chat.UserRole}
	msg.AddToolResult(chat.ToolResultPart{ID: "call_1", Name: "get_weather", Result: `{"temp":72}`})
	msg.AddToolResult(chat.ToolResultPart{ID: "call_2", Name: "get_time", Result: ""})

	out, err := messageToParams(msg)
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.NotNil(t, out[0].OfTool)
	assert.Equal(t, "call_1", out[0].OfTool.ToolCallID)
	require.NotNil(t, out[1].OfTool)
	assert.Equal(t, "call_2", out[1].OfTool.ToolCallID)
	// Empty results are replaced so the API never sees an empty string.
	assert.Equal(t, "{}", out[1].OfTool.Content.OfString.Value)
}

func TestMessageToParams_ModelWithToolCalls(t *testing.T) {
	t.Parallel()

	msg := chat.Message{Role: chat.ModelRole}
	msg.AddText("checking")
	msg.AddToolCall(chat.ToolCallPart{ID: "call_1", Name: "get_weather", Arguments: json.RawMessage(`{"city":"SF"}`)})

	out, err := messageToParams(msg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfAssistant)
	assert.Equal(t, "checking", out[0].OfAssistant.Content.OfString.Value)
	require.Len(t, out[0].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "get_weather", out[0].OfAssistant.ToolCalls[0].Function.Name)
}

func TestMessageToParams_Errors(t *testing.T) {
	t.Parallel()

	_, err := messageToParams(chat.Message{Role: chat.UserRole})
	require.Error(t, err)

	_, err = messageToParams(chat.Message{Role: chat.Role("tool")})
	require.Error(t, err)
}

func TestMessagesToParams_OrderPreserved(t *testing.T) {
	t.Parallel()

	history := []chat.Message{
		chat.SystemMessage("sys"),
		chat.UserMessage("hi"),
		chat.ModelMessage("hello"),
	}
	out, err := messagesToParams(history)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.NotNil(t, out[0].OfSystem)
	assert.NotNil(t, out[1].OfUser)
	assert.NotNil(t, out[2].OfAssistant)
}

func TestMapFinishReason(t *testing.T) {
	t.Parallel()

	assert.Equal(t, chat.FinishStop, mapFinishReason("stop"))
	assert.Equal(t, chat.FinishLength, mapFinishReason("length"))
	assert.Equal(t, chat.FinishContentFilter, mapFinishReason("content_filter"))
	assert.Equal(t, chat.FinishToolCalls, mapFinishReason("tool_calls"))
	assert.Equal(t, chat.FinishUnspecified, mapFinishReason("something_new"))
}

func TestCallTracker_ResolvesFragments(t *testing.T) {
	t.Parallel()

	tracker := newCallTracker()

	first := tracker.resolve(openaisdk.ChatCompletionChunkChoiceDeltaToolCall{
		Index: 0,
		ID:    "call_abc",
		Function: openaisdk.ChatCompletionChunkChoiceDeltaToolCallFunction{
			Name:      "get_weather",
			Arguments: `{"ci`,
		},
	})
	require.NotNil(t, first.ToolCall)
	assert.Equal(t, "call_abc", first.ToolCall.ID)
	assert.Equal(t, "get_weather", first.ToolCall.Name)

	second := tracker.resolve(openaisdk.ChatCompletionChunkChoiceDeltaToolCall{
		Index: 0,
		Function: openaisdk.ChatCompletionChunkChoiceDeltaToolCallFunction{
			Arguments: `ty":"SF"}`,
		},
	})
	require.NotNil(t, second.ToolCall)
	assert.Equal(t, "call_abc", second.ToolCall.ID)
	assert.Equal(t, "get_weather", second.ToolCall.Name)
	assert.Equal(t, `ty":"SF"}`, string(second.ToolCall.Arguments))
}

type fakeTool struct {
	name string
}

func (f fakeTool) Name() string              { return f.name }
func (f fakeTool) Description() string       { return "a fake tool" }
func (f fakeTool) InputSchema() *schema.JSON { return schema.ObjectOf(nil) }
func (f fakeTool) Call(context.Context, json.RawMessage) (any, error) {
	return "ok", nil
}

func TestBuildParams_ToolsAndSchema(t *testing.T) {
	t.Parallel()

	mdl, err := New(OpenAIURL, "test-key",
		WithModel("gpt-4o"),
		WithTools(fakeTool{name: "get_weather"}),
		WithTemperature(0.2),
	)
	require.NoError(t, err)

	m := mdl.(*model)
	params, err := m.buildParams([]chat.Message{chat.UserMessage("hi")}, chat.SendOptions{
		OutputSchema: schema.ObjectOf(map[string]*schema.JSON{"answer": schema.StringProp("the answer")}),
	})
	require.NoError(t, err)

	require.Len(t, params.Tools, 1)
	assert.Equal(t, "get_weather", params.Tools[0].Function.Name)
	require.NotNil(t, params.ResponseFormat.OfJSONSchema)
	assert.Equal(t, "result", params.ResponseFormat.OfJSONSchema.JSONSchema.Name)
	assert.True(t, params.StreamOptions.IncludeUsage.Value)
}

func TestNew_RequiresModel(t *testing.T) {
	t.Parallel()

	_, err := New(OpenAIURL, "test-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WithModel")
}

func TestSendStream_TypedOutputExclusive(t *testing.T) {
	t.Parallel()

	mdl, err := New(OllamaURL, "",
		WithModel("llama3.2"),
		WithProviderName("ollama"),
		WithTypedOutputExclusive(),
		WithTools(fakeTool{name: "get_weather"}),
	)
	require.NoError(t, err)

	err = mdl.SendStream(context.Background(), []chat.Message{chat.UserMessage("hi")},
		func(chat.Result[chat.Message]) error { return nil },
		chat.WithOutputSchema(schema.ObjectOf(nil)))
	require.Error(t, err)

	var unsupported *chat.UnsupportedCombinationError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "ollama", unsupported.Provider)
}
