// Package claude maps the canonical chat model onto Anthropic's Messages
// API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/internal/logging"
)

const AnthropicURL = "https://api.anthropic.com/v1"

var logger = logging.Logger().With("provider", "anthropic")

type model struct {
	client      anthropic.Client
	modelName   string
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

// New returns a chat model backed by the Anthropic Messages API.
func New(apiBase, apiKey string, opts ...Option) (chat.Model, error) {
	m := &model{logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.modelName == "" {
		return nil, fmt.Errorf("WithModel is a required option")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the Anthropic API")
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if apiBase != "" && apiBase != AnthropicURL {
		clientOpts = append(clientOpts, option.WithBaseURL(apiBase))
	}
	m.client = anthropic.NewClient(clientOpts...)
	return m, nil
}

func (m *model) Name() string { return m.modelName }

func (m *model) Close() error { return nil }

// maxOutputTokens are per-model caps; the Messages API requires max_tokens
// on every request.
var maxOutputTokens = []struct {
	prefix string
	tokens int64
}{
	{"claude-opus-4", 32000},
	{"claude-sonnet-4", 64000},
	{"claude-3-7-sonnet", 64000},
	{"claude-3-5-haiku", 8192},
	{"claude-3-haiku", 4096},
}

func (m *model) maxTokens() int64 {
	name := strings.ToLower(m.modelName)
	for _, limit := range maxOutputTokens {
		if strings.HasPrefix(name, limit.prefix) {
			return limit.tokens
		}
	}
	m.logger.Warn("unknown model, using conservative output token limit", "model", m.modelName)
	return 4096
}

// SendStream issues one streaming Messages API request. Tool-use blocks
// stream as id-correlated tool-call fragments: the block start carries id
// and name, input_json_delta events carry argument fragments.
func (m *model) SendStream(ctx context.Context, msgs []chat.Message, fn chat.StreamFunc, opts ...chat.SendOption) error {
	reqOpts := chat.ApplySendOptions(opts...)

	params, err := m.buildParams(msgs, reqOpts)
	if err != nil {
		return err
	}

	m.logger.Debug("starting stream", "model", m.modelName, "messages", len(msgs), "tools", len(m.tools))

	stream := m.client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var (
		messageID string
		usage     chat.Usage

		// Current tool-use block, if any. Input sometimes arrives on the
		// start event instead of as deltas; deltas win when both appear.
		blockID      string
		blockName    string
		startInput   json.RawMessage
		sawArgDeltas bool
	)

	emit := func(res chat.Result[chat.Message]) error {
		res.ID = messageID
		return fn(res)
	}
	emitParts := func(parts ...chat.Part) error {
		return emit(chat.Result[chat.Message]{
			Output: chat.Message{Role: chat.ModelRole, Parts: parts},
		})
	}

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			messageID = event.Message.ID
			usage.PromptTokens = int(event.Message.Usage.InputTokens)

		case "content_block_start":
			if event.ContentBlock.Type != "tool_use" {
				continue
			}
			blockID = event.ContentBlock.ID
			blockName = event.ContentBlock.Name
			startInput = nil
			sawArgDeltas = false
			if event.ContentBlock.Input != nil {
				if raw, err := json.Marshal(event.ContentBlock.Input); err == nil {
					startInput = raw
				}
			}
			m.logger.Debug("tool use start", "id", blockID, "name", blockName)
			if err := emitParts(chat.ToolCall(blockID, blockName, nil)); err != nil {
				return err
			}

		case "content_block_delta":
			switch event.Delta.Type {
			case "text_delta":
				if event.Delta.Text != "" {
					if err := emitParts(chat.TextPart(event.Delta.Text)); err != nil {
						return err
					}
				}
			case "input_json_delta":
				if blockID != "" && event.Delta.PartialJSON != "" {
					sawArgDeltas = true
					if err := emitParts(chat.ToolCall(blockID, blockName, json.RawMessage(event.Delta.PartialJSON))); err != nil {
						return err
					}
				}
			default:
				m.logger.Debug("unhandled delta type", "type", event.Delta.Type)
			}

		case "content_block_stop":
			if blockID != "" && !sawArgDeltas && len(startInput) > 0 {
				if err := emitParts(chat.ToolCall(blockID, blockName, startInput)); err != nil {
					return err
				}
			}
			blockID, blockName, startInput = "", "", nil

		case "message_delta":
			usage.ResponseTokens = int(event.Usage.OutputTokens)
			usage.TotalTokens = usage.PromptTokens + usage.ResponseTokens
			res := chat.Result[chat.Message]{
				Output:       chat.Message{Role: chat.ModelRole},
				FinishReason: mapStopReason(string(event.Delta.StopReason)),
				Usage:        usage,
			}
			if err := emit(res); err != nil {
				return err
			}

		case "message_stop":
			m.logger.Debug("stream completed", "model", m.modelName)

		default:
			m.logger.Debug("unhandled stream event", "type", event.Type)
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic: streaming: %w", err)
	}
	return nil
}

func mapStopReason(reason string) chat.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence", "pause_turn":
		return chat.FinishStop
	case "max_tokens":
		return chat.FinishLength
	case "tool_use":
		return chat.FinishToolCalls
	case "refusal":
		return chat.FinishContentFilter
	default:
		return chat.FinishUnspecified
	}
}

// ListModelIDs returns the ids of every model the API advertises.
func ListModelIDs(ctx context.Context, apiBase, apiKey string) ([]string, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the Anthropic API")
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if apiBase != "" && apiBase != AnthropicURL {
		clientOpts = append(clientOpts, option.WithBaseURL(apiBase))
	}
	client := anthropic.NewClient(clientOpts...)

	var ids []string
	iter := client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	for iter.Next() {
		ids = append(ids, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return ids, nil
}
