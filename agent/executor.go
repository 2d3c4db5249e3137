package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/internal/logging"
)

// executeBatch runs tool calls sequentially, in input order, and returns
// exactly one result part per call. Providers do not reliably correlate
// parallel results, so dispatch is never concurrent.
//
// Failures never escape: an unknown tool or a handler error is serialized
// as {"error": ...} result data so the model can react to it.
func executeBatch(ctx context.Context, calls []chat.ToolCallPart, tools map[string]chat.Tool) []chat.Part {
	results := make([]chat.Part, 0, len(calls))
	for _, call := range calls {
		results = append(results, chat.ToolResult(call.ID, call.Name, executeOne(ctx, call, tools)))
	}
	return results
}

func executeOne(ctx context.Context, call chat.ToolCallPart, tools map[string]chat.Tool) string {
	log := logging.Logger()

	t, ok := tools[call.Name]
	if !ok {
		log.Warn("model requested unregistered tool", "tool", call.Name)
		return errorJSON(fmt.Sprintf("Tool %s not found", call.Name))
	}

	log.Debug("executing tool", "tool", call.Name, "args", string(call.Arguments))
	out, err := t.Call(ctx, call.Arguments)
	if err != nil {
		log.Debug("tool returned error", "tool", call.Name, "err", err)
		return errorJSON(err.Error())
	}
	return serializeResult(call.Name, out)
}

// serializeResult encodes a handler's return value for the model: strings
// pass through unchanged, everything else is JSON-encoded.
func serializeResult(name string, v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logging.Logger().Warn("tool result not serializable", "tool", name, "err", err)
		return errorJSON(fmt.Sprintf("serializing result: %v", err))
	}
	return string(raw)
}

func errorJSON(msg string) string {
	raw, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error": "unserializable error"}`
	}
	return string(raw)
}
