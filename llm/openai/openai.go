// Package openai maps the canonical chat model onto the OpenAI chat
// completions API. The OpenAI-compatible providers (Mistral, Ollama, Cohere,
// Together, OpenRouter, Lambda) route through this package too, with their
// own base URLs and quirk flags.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/internal/logging"
)

const (
	OpenAIURL     = "https://api.openai.com/v1"
	OllamaURL     = "http://localhost:11434/v1"
	MistralURL    = "https://api.mistral.ai/v1"
	CohereURL     = "https://api.cohere.ai/compatibility/v1"
	TogetherURL   = "https://api.together.xyz/v1"
	OpenRouterURL = "https://openrouter.ai/api/v1"
	LambdaURL     = "https://api.lambda.ai/v1"
)

// Log levels used in this package:
//   - Debug: chunk bookkeeping, tool call fragments, usage
//   - Warn: missing usage information
var logger = logging.Logger().With("provider", "openai")

type model struct {
	client       openai.Client
	modelName    string
	providerName string
	tools        []chat.Tool
	temperature  *float64

	// typedExclusive marks providers whose structured-output mechanism
	// replaces tool definitions in a request (Ollama's format parameter).
	typedExclusive bool

	logger *slog.Logger
}

var _ chat.Model = &model{}

type Option func(*model)

func WithModel(name string) Option {
	return func(m *model) {
		m.modelName = strings.TrimSpace(name)
	}
}

func WithTools(tools ...chat.Tool) Option {
	return func(m *model) {
		m.tools = append(m.tools, tools...)
	}
}

func WithTemperature(t float64) Option {
	return func(m *model) {
		m.temperature = &t
	}
}

// WithProviderName attributes errors and log lines to the compatible
// provider actually being spoken to, rather than "openai".
func WithProviderName(name string) Option {
	return func(m *model) {
		m.providerName = name
		m.logger = logging.Logger().With("provider", name)
	}
}

// WithTypedOutputExclusive marks the provider as unable to combine tools
// with native structured output in one request.
func WithTypedOutputExclusive() Option {
	return func(m *model) {
		m.typedExclusive = true
	}
}

// New returns a chat model speaking the OpenAI chat completions API at the
// given base URL. An empty apiKey is allowed for local servers.
func New(apiBase, apiKey string, opts ...Option) (chat.Model, error) {
	m := &model{
		providerName: "openai",
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.modelName == "" {
		return nil, fmt.Errorf("WithModel is a required option")
	}

	clientOpts := []option.RequestOption{
		option.WithBaseURL(apiBase),
	}
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	m.client = openai.NewClient(clientOpts...)
	return m, nil
}

func (m *model) Name() string { return m.modelName }

func (m *model) Close() error { return nil }

// SendStream issues one streaming completion request. Tool-call argument
// fragments are emitted with their call id resolved, so downstream
// accumulation can correlate by id alone.
func (m *model) SendStream(ctx context.Context, msgs []chat.Message, fn chat.StreamFunc, opts ...chat.SendOption) error {
	reqOpts := chat.ApplySendOptions(opts...)

	if reqOpts.OutputSchema != nil && m.typedExclusive && len(m.tools) > 0 {
		return &chat.UnsupportedCombinationError{
			Provider: m.providerName,
			Reason:   "the structured-output format parameter replaces tool definitions in a request",
		}
	}

	params, err := m.buildParams(msgs, reqOpts)
	if err != nil {
		return err
	}

	m.logger.Debug("starting stream", "model", m.modelName, "messages", len(msgs), "tools", len(m.tools))

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	calls := newCallTracker()
	sawUsage := false

	for stream.Next() {
		chunk := stream.Current()

		res := chat.Result[chat.Message]{
			ID:     chunk.ID,
			Output: chat.Message{Role: chat.ModelRole},
		}

		if chunk.JSON.Usage.Valid() && chunk.Usage.TotalTokens > 0 {
			sawUsage = true
			res.Usage = chat.Usage{
				PromptTokens:   int(chunk.Usage.PromptTokens),
				ResponseTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:    int(chunk.Usage.TotalTokens),
			}
			m.logger.Debug("usage chunk", "prompt", res.Usage.PromptTokens, "response", res.Usage.ResponseTokens)
		}

		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				res.Output.Parts = append(res.Output.Parts, chat.TextPart(choice.Delta.Content))
			}
			// Refusals surface as text so the caller always sees why the
			// response ended.
			if choice.Delta.Refusal != "" {
				res.Output.Parts = append(res.Output.Parts, chat.TextPart(choice.Delta.Refusal))
			}
			for _, tc := range choice.Delta.ToolCalls {
				part := calls.resolve(tc)
				m.logger.Debug("tool call fragment", "id", part.ToolCall.ID, "name", part.ToolCall.Name, "args_len", len(part.ToolCall.Arguments))
				res.Output.Parts = append(res.Output.Parts, part)
			}
			if choice.FinishReason != "" {
				res.FinishReason = mapFinishReason(choice.FinishReason)
			}
		}

		if len(res.Output.Parts) == 0 && res.FinishReason == "" && res.Usage.TotalTokens == 0 {
			continue
		}
		if err := fn(res); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("%s: streaming: %w", m.providerName, err)
	}
	if !sawUsage {
		m.logger.Warn("no token usage information received", "model", m.modelName)
	}
	return nil
}

// callTracker resolves index-correlated tool-call deltas into id-correlated
// fragments. The first delta at an index carries the id and name; later
// deltas carry only argument fragments.
type callTracker struct {
	ids   map[int64]string
	names map[int64]string
}

func newCallTracker() *callTracker {
	return &callTracker{
		ids:   make(map[int64]string),
		names: make(map[int64]string),
	}
}

func (t *callTracker) resolve(tc openai.ChatCompletionChunkChoiceDeltaToolCall) chat.Part {
	if tc.ID != "" {
		t.ids[tc.Index] = tc.ID
	}
	if tc.Function.Name != "" {
		t.names[tc.Index] = tc.Function.Name
	}
	var args []byte
	if tc.Function.Arguments != "" {
		args = []byte(tc.Function.Arguments)
	}
	return chat.ToolCall(t.ids[tc.Index], t.names[tc.Index], args)
}

func mapFinishReason(reason string) chat.FinishReason {
	switch reason {
	case "stop":
		return chat.FinishStop
	case "length":
		return chat.FinishLength
	case "content_filter":
		return chat.FinishContentFilter
	case "tool_calls", "function_call":
		return chat.FinishToolCalls
	default:
		return chat.FinishUnspecified
	}
}

type embeddingsModel struct {
	client    openai.Client
	modelName string
}

var _ chat.EmbeddingsModel = &embeddingsModel{}

// NewEmbeddings returns an embeddings model speaking the OpenAI embeddings
// API at the given base URL.
func NewEmbeddings(apiBase, apiKey, modelName string) (chat.EmbeddingsModel, error) {
	if modelName == "" {
		return nil, fmt.Errorf("embeddings model name is required")
	}
	clientOpts := []option.RequestOption{
		option.WithBaseURL(apiBase),
	}
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	return &embeddingsModel{
		client:    openai.NewClient(clientOpts...),
		modelName: modelName,
	}, nil
}

func (m *embeddingsModel) Name() string { return m.modelName }

func (m *embeddingsModel) Close() error { return nil }

// CreateEmbedding embeds a single text. The document/query distinction is
// not part of the OpenAI API and is ignored here.
func (m *embeddingsModel) CreateEmbedding(ctx context.Context, text string, _ chat.EmbeddingType) ([]float64, error) {
	resp, err := m.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		Model: openai.EmbeddingModel(m.modelName),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

// ListModelIDs returns the ids of every model the endpoint advertises.
func ListModelIDs(ctx context.Context, apiBase, apiKey string) ([]string, error) {
	clientOpts := []option.RequestOption{
		option.WithBaseURL(apiBase),
	}
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(clientOpts...)

	var ids []string
	iter := client.Models.ListAutoPaging(ctx)
	for iter.Next() {
		ids = append(ids, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return ids, nil
}
