package agent

import (
	"context"
	"maps"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/internal/logging"
)

// StreamFunc receives incremental results from an agent invocation.
// Returning a non-nil error cancels the run.
type StreamFunc func(chat.Result[string]) error

// iterationResult is what one round trip to the provider produced: text to
// surface, messages committed to the transcript, and whether the loop
// should run again.
type iterationResult struct {
	output         string
	messages       []chat.Message
	shouldContinue bool
	finishReason   chat.FinishReason
	metadata       map[string]any
	usage          chat.Usage
}

// orchestrator performs exactly one provider round trip per call; the
// façade invokes it until shouldContinue is false.
type orchestrator interface {
	processIteration(ctx context.Context, emit StreamFunc) (iterationResult, error)
}

// defaultOrchestrator is the plain agent loop: stream text through as it
// arrives, then execute whatever tools the consolidated message requests.
type defaultOrchestrator struct {
	model chat.Model
	st    *streamingState
}

func newDefaultOrchestrator(model chat.Model, st *streamingState) *defaultOrchestrator {
	return &defaultOrchestrator{model: model, st: st}
}

func (o *defaultOrchestrator) processIteration(ctx context.Context, emit StreamFunc) (iterationResult, error) {
	res := iterationResult{}
	o.st.accum.reset()

	err := o.model.SendStream(ctx, o.st.history, func(r chat.Result[chat.Message]) error {
		noteChunk(&res, r)
		for _, p := range r.Output.Parts {
			if p.IsText() && p.Text != "" {
				out := p.Text
				if o.st.prefixNextText {
					// Text following an earlier tool round starts on a
					// fresh line so the rendered conversation reads
					// coherently.
					out = "\n" + out
					o.st.prefixNextText = false
				}
				if err := emit(chat.Result[string]{ID: r.ID, Output: out}); err != nil {
					return err
				}
			}
		}
		o.st.accum.add(r.Output)
		return nil
	})
	if err != nil {
		return iterationResult{}, err
	}

	msg, err := o.st.accum.consolidate()
	if err != nil {
		return iterationResult{}, err
	}
	if !msg.IsEmpty() {
		o.st.appendTurn(msg)
		res.messages = append(res.messages, msg)
	}

	calls := msg.ToolCalls()
	if len(calls) == 0 {
		res.shouldContinue = false
		if res.finishReason == "" {
			res.finishReason = chat.FinishStop
		}
		return res, nil
	}

	logging.Logger().Debug("dispatching tool calls", "count", len(calls))
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

// noteChunk folds a streamed chunk's bookkeeping (finish reason, usage,
// provider metadata) into the iteration result.
func noteChunk(res *iterationResult, r chat.Result[chat.Message]) {
	if r.FinishReason != "" && r.FinishReason != chat.FinishUnspecified {
		res.finishReason = r.FinishReason
	}
	res.usage.Add(r.Usage)
	if len(r.Metadata) > 0 {
		if res.metadata == nil {
			res.metadata = make(map[string]any, len(r.Metadata))
		}
		maps.Copy(res.metadata, r.Metadata)
	}
}
