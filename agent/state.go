package agent

import (
	"strings"

	"github.com/loopkit/loopkit/chat"
)

// streamingState is the mutable workspace for one SendStream call: the
// growing history, the per-iteration accumulator, and the bookkeeping the
// orchestrators share. It is confined to a single call and needs no locks.
type streamingState struct {
	history []chat.Message
	accum   *accumulator

	// tools indexes the effective tool set (user tools plus, in typed
	// mode, the synthetic return_result tool) by name.
	tools map[string]chat.Tool

	// openCalls records every tool call dispatched this conversation,
	// keyed by call id.
	openCalls map[string]chat.ToolCallPart

	// prefixNextText is set after a tool round so that text the model
	// emits in a later iteration starts on a fresh line.
	prefixNextText bool

	// Buffers for text and metadata suppressed when the model pairs a
	// return_result call with free-form content in the same turn.
	suppressedText strings.Builder
	suppressedMeta map[string]any
}

func newStreamingState(history []chat.Message, tools []chat.Tool) *streamingState {
	toolMap := make(map[string]chat.Tool, len(tools))
	for _, t := range tools {
		toolMap[t.Name()] = t
	}
	return &streamingState{
		history:   history,
		accum:     newAccumulator(),
		tools:     toolMap,
		openCalls: make(map[string]chat.ToolCallPart),
	}
}

// appendTurn commits a message to the history.
func (s *streamingState) appendTurn(msg chat.Message) {
	s.history = append(s.history, msg)
}

// recordCalls registers dispatched calls for correlation.
func (s *streamingState) recordCalls(calls []chat.ToolCallPart) {
	for _, c := range calls {
		s.openCalls[c.ID] = c
	}
}
