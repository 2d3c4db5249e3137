package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/internal/logging"
	"github.com/loopkit/loopkit/llm"
	"github.com/loopkit/loopkit/schema"
)

// maxIterations caps provider round trips per send; the loop normally
// exits well before this, when the model stops calling tools.
const maxIterations = 64

// Agent binds a provider, a chat model name, and a tool set to a
// conversation. Construct one with New, then drive it with Send, SendFor,
// or SendStream. Concurrent sends on separate agents are independent; an
// Agent holds no cross-call mutable state.
type Agent struct {
	provider   *llm.Provider
	chatModel  string
	embedModel string

	tools       []chat.Tool
	temperature *float64

	// newModel exists so tests can substitute a fake provider model.
	newModel func(tools []chat.Tool) (chat.Model, error)
}

// Option configures an Agent at construction.
type Option func(*Agent)

// WithTools registers the tools available to every send on this agent.
// Tool names must be unique.
func WithTools(tools ...chat.Tool) Option {
	return func(a *Agent) {
		a.tools = append(a.tools, tools...)
	}
}

// WithTemperature sets the sampling temperature for every request.
func WithTemperature(t float64) Option {
	return func(a *Agent) {
		a.temperature = &t
	}
}

// New creates an agent from a model string - "openai", "openai:gpt-4o",
// "anthropic/claude-sonnet-4-5", or "google?chat=gemini-2.0-flash". The
// provider must exist in the registry; credentials are checked later, when
// the first request constructs the provider model.
func New(model string, opts ...Option) (*Agent, error) {
	provider, ref, err := llm.Resolve(model)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		provider:   provider,
		chatModel:  ref.Chat,
		embedModel: ref.Embeddings,
	}
	for _, opt := range opts {
		opt(a)
	}

	seen := make(map[string]bool, len(a.tools))
	for _, t := range a.tools {
		if seen[t.Name()] {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		seen[t.Name()] = true
	}

	a.newModel = func(tools []chat.Tool) (chat.Model, error) {
		return provider.NewChatModel(llm.ChatConfig{
			Model:       a.chatModel,
			Tools:       tools,
			Temperature: a.temperature,
		})
	}
	return a, nil
}

// sendOpts is private so SendOption can only be built by this package.
type sendOpts struct {
	history      []chat.Message
	attachments  []chat.Part
	outputSchema *schema.JSON
}

// SendOption configures a single send.
type SendOption func(*sendOpts)

// WithHistory seeds the conversation with prior messages. The prompt is
// appended after them as a new user message.
func WithHistory(msgs ...chat.Message) SendOption {
	return func(o *sendOpts) {
		o.history = append(o.history, msgs...)
	}
}

// WithAttachments adds data or link parts to the prompt's user message.
func WithAttachments(parts ...chat.Part) SendOption {
	return func(o *sendOpts) {
		o.attachments = append(o.attachments, parts...)
	}
}

// WithOutputSchema constrains the final answer to a JSON schema. Providers
// with native support are used directly; everywhere else the answer is
// extracted through the synthetic return_result tool.
func WithOutputSchema(s *schema.JSON) SendOption {
	return func(o *sendOpts) {
		o.outputSchema = s
	}
}

// SendStream sends a prompt and streams the run through fn: text chunks as
// they arrive, then one result per orchestrator iteration carrying the new
// transcript messages. Concatenating Output across every result yields the
// text a user would see; concatenating Messages yields the new-message
// transcript with no duplicates.
func (a *Agent) SendStream(ctx context.Context, prompt string, fn StreamFunc, opts ...SendOption) error {
	var o sendOpts
	for _, opt := range opts {
		opt(&o)
	}

	tools := slices.Clone(a.tools)
	nativeTyped := false
	if o.outputSchema != nil {
		nativeTyped = a.useNativeTypedOutput(len(tools))
		if !nativeTyped {
			tools = append(tools, returnResultTool{outputSchema: o.outputSchema})
		}
	}

	model, err := a.newModel(tools)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			logging.Logger().Warn("closing model", "err", cerr)
		}
	}()

	history := slices.Clone(o.history)
	history = append(history, chat.UserMessage(prompt, o.attachments...))
	st := newStreamingState(history, tools)

	var orch orchestrator
	if o.outputSchema != nil {
		orch = newTypedOrchestrator(model, st, o.outputSchema, nativeTyped)
	} else {
		orch = newDefaultOrchestrator(model, st)
	}

	for i := 0; i < maxIterations; i++ {
		res, err := orch.processIteration(ctx, fn)
		if err != nil {
			return err
		}
		if err := fn(chat.Result[string]{
			Output:       res.output,
			Messages:     res.messages,
			FinishReason: res.finishReason,
			Metadata:     res.metadata,
			Usage:        res.usage,
		}); err != nil {
			return err
		}
		if !res.shouldContinue {
			return nil
		}
	}
	return fmt.Errorf("exceeded maximum iterations (%d) without the model stopping", maxIterations)
}

// useNativeTypedOutput decides the structured-output strategy: native when
// the provider can combine a schema with tools, or when it supports a
// schema at all and this send carries no user tools.
func (a *Agent) useNativeTypedOutput(userTools int) bool {
	if a.provider == nil {
		return false
	}
	if a.provider.Has(llm.CapTypedOutputWithTools) {
		return true
	}
	return userTools == 0 && a.provider.Has(llm.CapTypedOutput)
}

// Send drains SendStream and returns the aggregate: concatenated text
// output, every transcript message, and the final finish reason and usage.
func (a *Agent) Send(ctx context.Context, prompt string, opts ...SendOption) (chat.Result[string], error) {
	var sb strings.Builder
	agg := chat.Result[string]{}

	err := a.SendStream(ctx, prompt, func(r chat.Result[string]) error {
		sb.WriteString(r.Output)
		agg.Messages = append(agg.Messages, r.Messages...)
		if r.ID != "" {
			agg.ID = r.ID
		}
		if r.FinishReason != "" {
			agg.FinishReason = r.FinishReason
		}
		agg.Metadata = mergeMetadata(agg.Metadata, r.Metadata)
		agg.Usage.Add(r.Usage)
		return nil
	}, opts...)
	if err != nil {
		return chat.Result[string]{}, err
	}

	agg.Output = sb.String()
	return agg, nil
}

// SendFor sends a prompt with an output schema and decodes the final JSON
// answer into T. It is a package function because Go methods cannot carry
// type parameters.
func SendFor[T any](ctx context.Context, a *Agent, prompt string, outputSchema *schema.JSON, opts ...SendOption) (chat.Result[T], error) {
	res, err := a.Send(ctx, prompt, append(slices.Clone(opts), WithOutputSchema(outputSchema))...)
	if err != nil {
		return chat.Result[T]{}, err
	}

	var out T
	if err := json.Unmarshal([]byte(res.Output), &out); err != nil {
		return chat.Result[T]{}, fmt.Errorf("decoding typed output from %q: %w", res.Output, err)
	}
	return chat.Result[T]{
		ID:           res.ID,
		Output:       out,
		Messages:     res.Messages,
		FinishReason: res.FinishReason,
		Metadata:     res.Metadata,
		Usage:        res.Usage,
	}, nil
}

// CreateEmbedding embeds text with the provider's embeddings model.
func (a *Agent) CreateEmbedding(ctx context.Context, text string, typ chat.EmbeddingType) ([]float64, error) {
	model, err := a.provider.NewEmbeddingsModel(llm.EmbeddingsConfig{Model: a.embedModel})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			logging.Logger().Warn("closing embeddings model", "err", cerr)
		}
	}()
	return model.CreateEmbedding(ctx, text, typ)
}
