// Package chat defines the canonical conversation model shared by the
// orchestrator and every provider mapper: messages, parts, tool calls and
// results, streaming results, and the Model contract providers implement.
package chat

import (
	"encoding/json"
	"strings"
)

// Role represents who a message came from.
type Role string

const (
	// SystemRole identifies the system prompt message.
	SystemRole Role = "system"
	// UserRole identifies messages from the user, including tool-result
	// messages fed back to the model.
	UserRole Role = "user"
	// ModelRole identifies messages produced by the LLM.
	ModelRole Role = "model"
)

// ToolCallPart is a request from the model to invoke a tool.
type ToolCallPart struct {
	// ID is a unique identifier correlating this call with its result.
	ID string `json:"id"`
	// Name is the name of the tool to invoke.
	Name string `json:"name"`
	// Arguments contains the JSON-encoded arguments for the tool.
	Arguments json.RawMessage `json:"arguments,omitzero"`
}

// ToolResultPart is the outcome of executing a tool call.
type ToolResultPart struct {
	// ID matches the ID of the corresponding ToolCallPart.
	ID string `json:"id"`
	// Name is the tool name associated with this result.
	Name string `json:"name"`
	// Result is the serialized tool output: strings pass through
	// unchanged, everything else is JSON-encoded.
	Result string `json:"result"`
}

// DataPart is inline binary content, e.g. an image.
type DataPart struct {
	Bytes    []byte `json:"bytes"`
	MimeType string `json:"mimeType"`
	Name     string `json:"name,omitzero"`
}

// LinkPart references an external resource by URL.
type LinkPart struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitzero"`
	Name     string `json:"name,omitzero"`
}

// Part is a single piece of message content. It uses a union-like structure
// where exactly one field is set; boundaries that consume parts must handle
// every variant.
type Part struct {
	// Text content (most common case). A part is a text part iff Text is
	// non-empty and all pointer fields are nil.
	Text string `json:"text,omitzero"`

	Data *DataPart `json:"data,omitzero"`
	Link *LinkPart `json:"link,omitzero"`

	ToolCall   *ToolCallPart   `json:"toolCall,omitzero"`
	ToolResult *ToolResultPart `json:"toolResult,omitzero"`
}

// IsText reports whether this is a text part.
func (p Part) IsText() bool {
	return p.Data == nil && p.Link == nil && p.ToolCall == nil && p.ToolResult == nil
}

// Message represents a message to or from an LLM. Messages are value types:
// "updating" a history means appending new messages, never mutating old ones.
type Message struct {
	Role     Role           `json:"role"`
	Parts    []Part         `json:"parts,omitzero"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// TextPart creates a text content part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ToolCall creates a tool-call part.
func ToolCall(id, name string, args json.RawMessage) Part {
	return Part{ToolCall: &ToolCallPart{ID: id, Name: name, Arguments: args}}
}

// ToolResult creates a tool-result part.
func ToolResult(id, name, result string) Part {
	return Part{ToolResult: &ToolResultPart{ID: id, Name: name, Result: result}}
}

// SystemMessage creates a system message with text content.
func SystemMessage(text string) Message {
	return Message{Role: SystemRole, Parts: []Part{TextPart(text)}}
}

// UserMessage creates a user message from a prompt plus optional attachments.
func UserMessage(text string, attachments ...Part) Message {
	parts := make([]Part, 0, 1+len(attachments))
	if text != "" {
		parts = append(parts, TextPart(text))
	}
	parts = append(parts, attachments...)
	return Message{Role: UserRole, Parts: parts}
}

// ModelMessage creates a model message with text content.
func ModelMessage(text string) Message {
	return Message{Role: ModelRole, Parts: []Part{TextPart(text)}}
}

// AddText appends text content to the message.
func (m *Message) AddText(text string) *Message {
	m.Parts = append(m.Parts, TextPart(text))
	return m
}

// AddToolCall appends a tool call to the message.
func (m *Message) AddToolCall(tc ToolCallPart) *Message {
	m.Parts = append(m.Parts, Part{ToolCall: &tc})
	return m
}

// AddToolResult appends a tool result to the message.
func (m *Message) AddToolResult(tr ToolResultPart) *Message {
	m.Parts = append(m.Parts, Part{ToolResult: &tr})
	return m
}

// Text returns all text content concatenated in part order.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.IsText() {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns all tool calls in the message, in part order.
func (m Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// ToolResults returns all tool results in the message, in part order.
func (m Message) ToolResults() []ToolResultPart {
	var results []ToolResultPart
	for _, p := range m.Parts {
		if p.ToolResult != nil {
			results = append(results, *p.ToolResult)
		}
	}
	return results
}

// IsEmpty returns true if the message has no parts.
func (m Message) IsEmpty() bool {
	return len(m.Parts) == 0
}

// HasText returns true if the message contains any text content.
func (m Message) HasText() bool {
	for _, p := range m.Parts {
		if p.IsText() && p.Text != "" {
			return true
		}
	}
	return false
}

// HasToolCalls returns true if the message contains any tool calls.
func (m Message) HasToolCalls() bool {
	for _, p := range m.Parts {
		if p.ToolCall != nil {
			return true
		}
	}
	return false
}
