package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/schema"
)

// testTool is a minimal chat.Tool for exercising the executor without the
// reflection machinery in package tool.
type testTool struct {
	name    string
	handler func(ctx context.Context, args json.RawMessage) (any, error)
}

func (t testTool) Name() string              { return t.name }
func (t testTool) Description() string       { return "test tool " + t.name }
func (t testTool) InputSchema() *schema.JSON { return schema.ObjectOf(nil) }
func (t testTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	return t.handler(ctx, args)
}

func toolMap(tools ...chat.Tool) map[string]chat.Tool {
	m := make(map[string]chat.Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return m
}

func TestExecuteBatch_OneResultPerCallInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	tools := toolMap(
		testTool{name: "first", handler: func(context.Context, json.RawMessage) (any, error) {
			order = append(order, "first")
			return "one", nil
		}},
		testTool{name: "second", handler: func(context.Context, json.RawMessage) (any, error) {
			order = append(order, "second")
			return "two", nil
		}},
	)

	calls := []chat.ToolCallPart{
		{ID: "c1", Name: "first", Arguments: json.RawMessage(`{}`)},
		{ID: "c2", Name: "second", Arguments: json.RawMessage(`{}`)},
	}
	results := executeBatch(context.Background(), calls, tools)

	require.Len(t, results, 2)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, "c1", results[0].ToolResult.ID)
	assert.Equal(t, "one", results[0].ToolResult.Result)
	assert.Equal(t, "c2", results[1].ToolResult.ID)
	assert.Equal(t, "two", results[1].ToolResult.Result)
}

func TestExecuteBatch_UnknownToolBecomesErrorResult(t *testing.T) {
	t.Parallel()

	calls := []chat.ToolCallPart{{ID: "c1", Name: "missing", Arguments: json.RawMessage(`{}`)}}
	results := executeBatch(context.Background(), calls, toolMap())

	require.Len(t, results, 1)
	require.NotNil(t, results[0].ToolResult)
	assert.JSONEq(t, `{"error": "Tool missing not found"}`, results[0].ToolResult.Result)
}

func TestExecuteBatch_HandlerErrorBecomesErrorResult(t *testing.T) {
	t.Parallel()

	tools := toolMap(testTool{name: "boom", handler: func(context.Context, json.RawMessage) (any, error) {
		return nil, fmt.Errorf("no such city")
	}})

	calls := []chat.ToolCallPart{{ID: "c1", Name: "boom", Arguments: json.RawMessage(`{}`)}}
	results := executeBatch(context.Background(), calls, tools)

	require.Len(t, results, 1)
	assert.JSONEq(t, `{"error": "no such city"}`, results[0].ToolResult.Result)
}

func TestExecuteBatch_FailureDoesNotStopLaterCalls(t *testing.T) {
	t.Parallel()

	tools := toolMap(
		testTool{name: "boom", handler: func(context.Context, json.RawMessage) (any, error) {
			return nil, fmt.Errorf("kaput")
		}},
		testTool{name: "ok", handler: func(context.Context, json.RawMessage) (any, error) {
			return "fine", nil
		}},
	)

	calls := []chat.ToolCallPart{
		{ID: "c1", Name: "boom"},
		{ID: "c2", Name: "ok"},
	}
	results := executeBatch(context.Background(), calls, tools)

	require.Len(t, results, 2)
	assert.JSONEq(t, `{"error": "kaput"}`, results[0].ToolResult.Result)
	assert.Equal(t, "fine", results[1].ToolResult.Result)
}

func TestSerializeResult(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "already a string", serializeResult("t", "already a string"))
	assert.JSONEq(t, `{"temp":72}`, serializeResult("t", map[string]int{"temp": 72}))
	assert.JSONEq(t, `[1,2,3]`, serializeResult("t", []int{1, 2, 3}))
	assert.Equal(t, "null", serializeResult("t", nil))
	assert.Contains(t, serializeResult("t", func() {}), "error")
}
