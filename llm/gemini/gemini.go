// Package gemini maps the canonical chat model onto Google's Gemini API via
// the genai SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/internal/logging"
)

var logger = logging.Logger().With("provider", "google")

type model struct {
	client      *genai.Client
	modelName   string
	baseURL     string
	tools       []chat.Tool
	temperature *float64
	logger      *slog.Logger
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

func WithBaseURL(baseURL string) Option {
	return func(m *model) {
		m.baseURL = baseURL
	}
}

// New returns a chat model backed by the Gemini API.
func New(apiKey string, opts ...Option) (chat.Model, error) {
	m := &model{logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.modelName == "" {
		return nil, fmt.Errorf("WithModel is a required option")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the Gemini API")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	m.client = client
	return m, nil
}

func (m *model) Name() string { return m.modelName }

func (m *model) Close() error { return nil }

// SendStream issues one streaming generateContent request. Gemini delivers
// each function call whole rather than fragmented, and without ids; ids are
// synthesized so results correlate like every other provider's.
func (m *model) SendStream(ctx context.Context, msgs []chat.Message, fn chat.StreamFunc, opts ...chat.SendOption) error {
	reqOpts := chat.ApplySendOptions(opts...)

	// responseSchema and tools are mutually exclusive in the API.
	if reqOpts.OutputSchema != nil && len(m.tools) > 0 {
		return &chat.UnsupportedCombinationError{
			Provider: "google",
			Reason:   "responseSchema cannot be combined with function declarations",
		}
	}

	contents, config, err := m.buildRequest(msgs, reqOpts)
	if err != nil {
		return err
	}

	m.logger.Debug("starting stream", "model", m.modelName, "messages", len(msgs), "tools", len(m.tools))

	for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.modelName, contents, config) {
		if err != nil {
			return fmt.Errorf("google: streaming: %w", err)
		}

		res := chat.Result[chat.Message]{
			Output: chat.Message{Role: chat.ModelRole},
		}

		for _, candidate := range chunk.Candidates {
			if candidate.Content != nil {
				for _, part := range candidate.Content.Parts {
					switch {
					case part.Text != "":
						res.Output.Parts = append(res.Output.Parts, chat.TextPart(part.Text))
					case part.FunctionCall != nil:
						tc, err := functionCallToPart(part.FunctionCall)
						if err != nil {
							return err
						}
						res.Output.Parts = append(res.Output.Parts, tc)
					}
				}
			}
			if candidate.FinishReason != "" {
				res.FinishReason = mapFinishReason(candidate.FinishReason)
			}
		}

		if chunk.UsageMetadata != nil {
			res.Usage = chat.Usage{
				PromptTokens:   int(chunk.UsageMetadata.PromptTokenCount),
				ResponseTokens: int(chunk.UsageMetadata.CandidatesTokenCount),
				TotalTokens:    int(chunk.UsageMetadata.TotalTokenCount),
			}
		}

		if len(res.Output.Parts) == 0 && res.FinishReason == "" && res.Usage.TotalTokens == 0 {
			continue
		}
		if err := fn(res); err != nil {
			return err
		}
	}
	return nil
}

// functionCallToPart converts one complete Gemini function call into a
// tool-call part with a synthesized id when the API supplies none.
func functionCallToPart(fc *genai.FunctionCall) (chat.Part, error) {
	args := json.RawMessage(`{}`)
	if len(fc.Args) > 0 {
		raw, err := json.Marshal(fc.Args)
		if err != nil {
			return chat.Part{}, fmt.Errorf("serializing arguments for %s: %w", fc.Name, err)
		}
		args = raw
	}
	id := fc.ID
	if id == "" {
		id = fmt.Sprintf("%s-%s", fc.Name, uuid.NewString()[:8])
	}
	return chat.ToolCall(id, fc.Name, args), nil
}

func mapFinishReason(reason genai.FinishReason) chat.FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return chat.FinishStop
	case genai.FinishReasonMaxTokens:
		return chat.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
		return chat.FinishContentFilter
	case genai.FinishReasonRecitation:
		return chat.FinishRecitation
	default:
		return chat.FinishUnspecified
	}
}

type embeddingsModel struct {
	client    *genai.Client
	modelName string
}

var _ chat.EmbeddingsModel = &embeddingsModel{}

// NewEmbeddings returns an embeddings model backed by the Gemini API.
func NewEmbeddings(apiKey, modelName string) (chat.EmbeddingsModel, error) {
	if modelName == "" {
		return nil, fmt.Errorf("embeddings model name is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the Gemini API")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &embeddingsModel{client: client, modelName: modelName}, nil
}

func (m *embeddingsModel) Name() string { return m.modelName }

func (m *embeddingsModel) Close() error { return nil }

func (m *embeddingsModel) CreateEmbedding(ctx context.Context, text string, typ chat.EmbeddingType) ([]float64, error) {
	taskType := "RETRIEVAL_DOCUMENT"
	if typ == chat.EmbeddingQuery {
		taskType = "RETRIEVAL_QUERY"
	}

	contents := []*genai.Content{
		{Parts: []*genai.Part{{Text: text}}},
	}
	resp, err := m.client.Models.EmbedContent(ctx, m.modelName, contents, &genai.EmbedContentConfig{
		TaskType: taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embeddings response contained no data")
	}

	values := resp.Embeddings[0].Values
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out, nil
}

// ListModelIDs returns the ids of every model the API advertises.
func ListModelIDs(ctx context.Context, apiKey string) ([]string, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the Gemini API")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	var ids []string
	for mdl, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("listing models: %w", err)
		}
		ids = append(ids, strings.TrimPrefix(mdl.Name, "models/"))
	}
	return ids, nil
}
