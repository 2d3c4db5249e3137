package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/persistence/sqlitestore"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcripts.db")

	store, err := sqlitestore.New(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Append("work",
		chat.UserMessage("weather in SF?"),
		chat.Message{Role: chat.ModelRole, Parts: []chat.Part{
			chat.ToolCall("call_1", "get_weather", json.RawMessage(`{"city":"SF"}`)),
		}},
		chat.Message{Role: chat.UserRole, Parts: []chat.Part{
			chat.ToolResult("call_1", "get_weather", `{"temp":72}`),
		}},
		chat.ModelMessage("It is 72F."),
	))
	require.NoError(t, store.Append("scratch", chat.UserMessage("hi")))
	return path
}

func TestRunList(t *testing.T) {
	t.Parallel()

	path := seedDB(t)

	var out bytes.Buffer
	require.NoError(t, runList([]string{"--db", path}, &out))
	assert.Equal(t, "scratch\nwork\n", out.String())

	require.Error(t, runList(nil, &out))
}

func TestRunShow_Text(t *testing.T) {
	t.Parallel()

	path := seedDB(t)

	var out bytes.Buffer
	require.NoError(t, runShow([]string{"--db", path, "--conversation", "work"}, &out))

	assert.Contains(t, out.String(), "[user]")
	assert.Contains(t, out.String(), "weather in SF?")
	assert.Contains(t, out.String(), `-> tool call get_weather({"city":"SF"}) [call_1]`)
	assert.Contains(t, out.String(), `<- tool result get_weather: {"temp":72} [call_1]`)
	assert.Contains(t, out.String(), "It is 72F.")
}

func TestRunShow_JSONL(t *testing.T) {
	t.Parallel()

	path := seedDB(t)

	var out bytes.Buffer
	require.NoError(t, runShow([]string{"--db", path, "--conversation", "work", "--format", "jsonl"}, &out))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.True(t, json.Valid(line))
	}
}

func TestRunShow_RequiresFlags(t *testing.T) {
	t.Parallel()

	path := seedDB(t)

	var out bytes.Buffer
	require.Error(t, runShow([]string{"--conversation", "work"}, &out))
	require.Error(t, runShow([]string{"--db", path}, &out))
	require.Error(t, runShow([]string{"--db", path, "--conversation", "work", "--format", "yaml"}, &out))
}
