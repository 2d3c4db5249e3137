package chat

import (
	"context"
	"encoding/json"

	"github.com/loopkit/loopkit/schema"
)

// Tool is a named callable the model may invoke during a conversation.
// Implementations come from anywhere: hand-written, generated from Go
// functions (package tool), or contributed by an external tool server.
type Tool interface {
	// Name returns the tool's name, unique within an agent invocation.
	Name() string
	// Description tells the model when and how to use the tool.
	Description() string
	// InputSchema returns the JSON schema for the tool's arguments. A
	// schema with empty properties means the tool takes no arguments.
	InputSchema() *schema.JSON
	// Call executes the tool. The returned value is serialized for the
	// model: strings pass through unchanged, anything else is
	// JSON-encoded. A returned error becomes structured error data fed
	// back to the model, never a failure of the agent loop.
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// Model is the contract every provider mapper implements: stream one
// completion request over the canonical message model.
//
// SendStream issues a single request for the given history and yields
// incremental results through fn. Each result carries a partial Message in
// Output; text deltas arrive as text parts and fragmented tool-call
// arguments arrive as tool-call parts sharing an ID. The final emission
// carries the FinishReason. Mappers preserve usage and opaque provider
// metadata on the results they yield.
type Model interface {
	// Name returns the provider model name, e.g. "gpt-4o".
	Name() string
	// SendStream issues one completion request and streams the response.
	SendStream(ctx context.Context, msgs []Message, fn StreamFunc, opts ...SendOption) error
	// Close releases the underlying HTTP resources.
	Close() error
}

// EmbeddingType distinguishes embeddings optimized for indexing from those
// optimized for querying.
type EmbeddingType string

const (
	EmbeddingDocument EmbeddingType = "document"
	EmbeddingQuery    EmbeddingType = "query"
)

// EmbeddingsModel is a thin wrapper around a provider's embeddings endpoint.
type EmbeddingsModel interface {
	Name() string
	CreateEmbedding(ctx context.Context, text string, typ EmbeddingType) ([]float64, error)
	Close() error
}

// sendOpts is private so that SendOption can only be built by this package.
type sendOpts struct {
	temperature  *float64
	maxTokens    int
	outputSchema *schema.JSON
}

// SendOptions shouldn't be used directly, but is public so that provider
// mappers can reference it.
type SendOptions struct {
	Temperature  *float64
	MaxTokens    int
	OutputSchema *schema.JSON
}

// SendOption is a tunable parameter for a single model request.
type SendOption func(*sendOpts)

// WithTemperature changes the randomness of the response - closer to 0 for
// analytic responses, closer to 1 for creative ones.
func WithTemperature(t float64) SendOption {
	return func(o *sendOpts) {
		o.temperature = &t
	}
}

// WithMaxTokens caps the number of tokens used to generate the response.
func WithMaxTokens(tokens int) SendOption {
	return func(o *sendOpts) {
		o.maxTokens = tokens
	}
}

// WithOutputSchema asks the provider to constrain the response to the given
// JSON schema using its native structured-output mechanism. Mappers for
// providers that cannot combine a schema with tools return
// UnsupportedCombinationError before the first chunk.
func WithOutputSchema(s *schema.JSON) SendOption {
	return func(o *sendOpts) {
		o.outputSchema = s
	}
}

// ApplySendOptions is for use by provider mappers, not users of the library.
func ApplySendOptions(opts ...SendOption) SendOptions {
	var o sendOpts
	for _, opt := range opts {
		opt(&o)
	}
	return SendOptions{
		Temperature:  o.temperature,
		MaxTokens:    o.maxTokens,
		OutputSchema: o.outputSchema,
	}
}
