package agent

import (
	"context"
	"encoding/json"
	"maps"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/internal/logging"
	"github.com/loopkit/loopkit/schema"
)

// ReturnResultToolName is the synthetic tool injected for providers that
// cannot combine tools with native structured output. Its input schema is
// the caller's output schema; calling it ends the run.
const ReturnResultToolName = "return_result"

// SuppressedTextMetadataKey is where the synthetic final message records any
// free-form text the model emitted alongside its return_result call. Callers
// that want that text back read it from here.
const SuppressedTextMetadataKey = "suppressedText"

type returnResultTool struct {
	outputSchema *schema.JSON
}

var _ chat.Tool = returnResultTool{}

func (t returnResultTool) Name() string { return ReturnResultToolName }

func (t returnResultTool) Description() string {
	return "REQUIRED: call this tool with your final answer. The arguments must match the requested result schema exactly; do not answer in plain text."
}

func (t returnResultTool) InputSchema() *schema.JSON { return t.outputSchema }

// Call passes the argument JSON through verbatim: it already is the
// structured answer.
func (t returnResultTool) Call(_ context.Context, args json.RawMessage) (any, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return string(args), nil
}

// typedOrchestrator normalizes structured output across providers. In
// native mode the provider constrains the response itself and text streams
// through as usual (the chunks already are the JSON answer). In synthesized
// mode the model answers through the return_result tool: raw text is
// suppressed and the final answer is surfaced as one synthetic model turn.
type typedOrchestrator struct {
	model        chat.Model
	st           *streamingState
	outputSchema *schema.JSON
	native       bool
}

func newTypedOrchestrator(model chat.Model, st *streamingState, outputSchema *schema.JSON, native bool) *typedOrchestrator {
	return &typedOrchestrator{model: model, st: st, outputSchema: outputSchema, native: native}
}

func (o *typedOrchestrator) processIteration(ctx context.Context, emit StreamFunc) (iterationResult, error) {
	res := iterationResult{}
	o.st.accum.reset()
	if !o.native {
		// Suppression buffers only ever describe the current turn.
		o.st.suppressedText.Reset()
	}

	var opts []chat.SendOption
	if o.native {
		opts = append(opts, chat.WithOutputSchema(o.outputSchema))
	}

	err := o.model.SendStream(ctx, o.st.history, func(r chat.Result[chat.Message]) error {
		noteChunk(&res, r)
		for _, p := range r.Output.Parts {
			if !p.IsText() || p.Text == "" {
				continue
			}
			if o.native {
				if err := emit(chat.Result[string]{ID: r.ID, Output: p.Text}); err != nil {
					return err
				}
			} else {
				// Text arrives only as the final synthetic JSON message;
				// buffer everything the model says on the way there.
				o.st.suppressedText.WriteString(p.Text)
			}
		}
		o.st.accum.add(r.Output)
		return nil
	}, opts...)
	if err != nil {
		return iterationResult{}, err
	}

	msg, err := o.st.accum.consolidate()
	if err != nil {
		return iterationResult{}, err
	}

	calls := msg.ToolCalls()
	if containsReturnResult(calls) {
		return o.finishWithReturnResult(ctx, msg, calls, res)
	}

	// Providers are inconsistent about trailing empty messages after a
	// tool round; discard them rather than committing empty turns.
	if !msg.IsEmpty() {
		o.st.appendTurn(msg)
		res.messages = append(res.messages, msg)
	}

	if len(calls) == 0 {
		// The model never called return_result. Best effort: surface its
		// text so the caller at least observes the final output.
		if !o.native {
			res.output = msg.Text()
		}
		res.shouldContinue = false
		if res.finishReason == "" {
			res.finishReason = chat.FinishStop
		}
		return res, nil
	}

	o.st.recordCalls(calls)
	resultMsg := chat.Message{Role: chat.UserRole, Parts: executeBatch(ctx, calls, o.st.tools)}
	o.st.appendTurn(resultMsg)
	res.messages = append(res.messages, resultMsg)
	o.st.prefixNextText = true

	res.shouldContinue = true
	if res.finishReason == "" {
		res.finishReason = chat.FinishToolCalls
	}
	return res, nil
}

// finishWithReturnResult executes the batch containing the return_result
// call and emits the structured answer as a single synthetic model turn.
// The consolidated message itself is never committed as a normal model
// turn; its text and metadata are preserved on the synthetic message.
func (o *typedOrchestrator) finishWithReturnResult(ctx context.Context, msg chat.Message, calls []chat.ToolCallPart, res iterationResult) (iterationResult, error) {
	o.st.recordCalls(calls)
	results := executeBatch(ctx, calls, o.st.tools)

	var answer string
	var otherResults []chat.Part
	for _, p := range results {
		if p.ToolResult != nil && p.ToolResult.Name == ReturnResultToolName {
			answer = p.ToolResult.Result
		} else {
			otherResults = append(otherResults, p)
		}
	}
	if len(otherResults) > 0 {
		resultMsg := chat.Message{Role: chat.UserRole, Parts: otherResults}
		o.st.appendTurn(resultMsg)
		res.messages = append(res.messages, resultMsg)
	}

	o.st.suppressedMeta = mergeMetadata(o.st.suppressedMeta, msg.Metadata)
	o.st.suppressedMeta = mergeMetadata(o.st.suppressedMeta, res.metadata)
	if suppressed := o.st.suppressedText.String(); suppressed != "" {
		logging.Logger().Debug("suppressing model text alongside return_result", "len", len(suppressed))
		o.st.suppressedMeta = mergeMetadata(o.st.suppressedMeta, map[string]any{
			SuppressedTextMetadataKey: suppressed,
		})
	}

	synthetic := chat.Message{
		Role:     chat.ModelRole,
		Parts:    []chat.Part{chat.TextPart(answer)},
		Metadata: o.st.suppressedMeta,
	}
	o.st.appendTurn(synthetic)
	res.messages = append(res.messages, synthetic)

	res.output = answer
	res.shouldContinue = false
	res.finishReason = chat.FinishStop
	return res, nil
}

func containsReturnResult(calls []chat.ToolCallPart) bool {
	for _, c := range calls {
		if c.Name == ReturnResultToolName {
			return true
		}
	}
	return false
}

func mergeMetadata(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	maps.Copy(dst, src)
	return dst
}
