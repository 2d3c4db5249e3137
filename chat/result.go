package chat

// FinishReason describes why a model stopped emitting output.
type FinishReason string

const (
	// FinishUnspecified means the provider reported no reason.
	FinishUnspecified FinishReason = "unspecified"
	// FinishStop means the model completed naturally.
	FinishStop FinishReason = "stop"
	// FinishLength means the response hit a token limit.
	FinishLength FinishReason = "length"
	// FinishContentFilter means the provider's safety filter intervened.
	FinishContentFilter FinishReason = "contentFilter"
	// FinishRecitation means the response was flagged as reciting training data.
	FinishRecitation FinishReason = "recitation"
	// FinishToolCalls means the model stopped to request tool invocations.
	FinishToolCalls FinishReason = "toolCalls"
)

// Usage carries token accounting as reported by the provider. The runtime
// passes these through without reconciling differences between providers.
type Usage struct {
	PromptTokens   int `json:"promptTokens,omitzero"`
	ResponseTokens int `json:"responseTokens,omitzero"`
	TotalTokens    int `json:"totalTokens,omitzero"`
}

// Add accumulates usage from another chunk or iteration.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.ResponseTokens += other.ResponseTokens
	u.TotalTokens += other.TotalTokens
}

// Result is one emission from a model or from the agent loop. When streamed
// from a Model, Output is a partial Message; when streamed from an Agent,
// Output is a text chunk.
type Result[T any] struct {
	// ID identifies the provider response this chunk belongs to, when the
	// provider supplies one.
	ID string `json:"id,omitzero"`
	// Output is the payload for this chunk.
	Output T `json:"output"`
	// Messages are new messages committed to the transcript by this chunk.
	// A message appears in exactly one emitted Result.
	Messages []Message `json:"messages,omitzero"`
	// FinishReason is set on the final chunk of a model turn.
	FinishReason FinishReason `json:"finishReason,omitzero"`
	// Metadata carries opaque provider-specific values.
	Metadata map[string]any `json:"metadata,omitzero"`
	// Usage is set when the provider reports token counts.
	Usage Usage `json:"usage,omitzero"`
}

// StreamFunc receives incremental results from a Model. Returning a non-nil
// error stops the stream; the in-flight request is abandoned.
type StreamFunc func(Result[Message]) error
