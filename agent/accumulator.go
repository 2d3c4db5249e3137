// Package agent drives the multi-turn loop over a chat model and its tool
// set: stream, accumulate, dispatch tools, feed results back, repeat until
// the model stops calling tools.
package agent

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"

	"github.com/loopkit/loopkit/chat"
)

// ToolArgumentParseError is returned when a tool call's accumulated argument
// JSON cannot be parsed into an object. The call cannot be executed without
// arguments, so this is fatal for the iteration.
type ToolArgumentParseError struct {
	Tool string
	Raw  string
	Err  error
}

func (e *ToolArgumentParseError) Error() string {
	return fmt.Sprintf("parsing arguments for tool %s from %q: %v", e.Tool, e.Raw, e.Err)
}

func (e *ToolArgumentParseError) Unwrap() error { return e.Err }

type slotKind int

const (
	slotText slotKind = iota
	slotPart
	slotCall
)

// callBuf reassembles one streamed tool call: the first fragment carries
// id+name, later fragments append argument JSON with no id.
type callBuf struct {
	id   string
	name string
	args strings.Builder
}

type slot struct {
	kind slotKind
	part chat.Part // slotPart only
	call *callBuf  // slotCall only
}

// accumulator merges a sequence of partial model messages into one coherent
// message. Text fragments collapse into a single text part at the position
// of the first fragment; tool-call argument fragments are buffered per call
// and parsed only once the stream is complete.
type accumulator struct {
	slots    []slot
	textSlot int // index into slots, -1 until the first text fragment
	text     strings.Builder
	byID     map[string]*callBuf
	lastCall *callBuf
	metadata map[string]any
}

func newAccumulator() *accumulator {
	a := &accumulator{}
	a.reset()
	return a
}

func (a *accumulator) reset() {
	a.slots = nil
	a.textSlot = -1
	a.text.Reset()
	a.byID = make(map[string]*callBuf)
	a.lastCall = nil
	a.metadata = nil
}

// add merges one streamed delta into the accumulated state.
func (a *accumulator) add(delta chat.Message) {
	if len(delta.Metadata) > 0 {
		if a.metadata == nil {
			a.metadata = make(map[string]any, len(delta.Metadata))
		}
		maps.Copy(a.metadata, delta.Metadata)
	}

	for _, p := range delta.Parts {
		switch {
		case p.ToolCall != nil:
			a.addCall(*p.ToolCall)
		case p.IsText():
			if a.textSlot < 0 {
				a.textSlot = len(a.slots)
				a.slots = append(a.slots, slot{kind: slotText})
			}
			a.text.WriteString(p.Text)
		default:
			// Data, link, and any other complete parts pass through
			// unchanged at their arrival position.
			a.slots = append(a.slots, slot{kind: slotPart, part: p})
		}
	}
}

func (a *accumulator) addCall(tc chat.ToolCallPart) {
	switch {
	case tc.ID != "":
		if buf, ok := a.byID[tc.ID]; ok {
			if buf.name == "" {
				buf.name = tc.Name
			}
			buf.args.Write(tc.Arguments)
			a.lastCall = buf
			return
		}
		buf := &callBuf{id: tc.ID, name: tc.Name}
		buf.args.Write(tc.Arguments)
		a.byID[tc.ID] = buf
		a.lastCall = buf
		a.slots = append(a.slots, slot{kind: slotCall, call: buf})

	case tc.Name != "":
		// A named fragment without an id opens a new call; correlation
		// is positional from here on.
		buf := &callBuf{name: tc.Name}
		buf.args.Write(tc.Arguments)
		a.lastCall = buf
		a.slots = append(a.slots, slot{kind: slotCall, call: buf})

	default:
		// Bare argument fragment: belongs to the most recently opened
		// call. A fragment with no preceding call opens an anonymous one
		// so no input is silently dropped.
		if a.lastCall == nil {
			buf := &callBuf{}
			a.lastCall = buf
			a.slots = append(a.slots, slot{kind: slotCall, call: buf})
		}
		a.lastCall.args.Write(tc.Arguments)
	}
}

// consolidate flushes the accumulated state into a single model message.
// Consolidating the result of a prior consolidation is a no-op.
func (a *accumulator) consolidate() (chat.Message, error) {
	msg := chat.Message{Role: chat.ModelRole, Metadata: a.metadata}

	for i, s := range a.slots {
		switch s.kind {
		case slotText:
			if i == a.textSlot && a.text.Len() > 0 {
				msg.Parts = append(msg.Parts, chat.TextPart(a.text.String()))
			}
		case slotPart:
			msg.Parts = append(msg.Parts, s.part)
		case slotCall:
			part, err := s.call.finish(len(msg.Parts))
			if err != nil {
				return chat.Message{}, err
			}
			msg.Parts = append(msg.Parts, part)
		}
	}
	return msg, nil
}

func (c *callBuf) finish(position int) (chat.Part, error) {
	raw := strings.TrimSpace(c.args.String())
	switch raw {
	case "", "null":
		raw = "{}"
	default:
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return chat.Part{}, &ToolArgumentParseError{Tool: c.name, Raw: raw, Err: err}
		}
		if obj == nil {
			raw = "{}"
		}
	}

	id := c.id
	if id == "" {
		// Providers that stream calls without ids still need stable,
		// conversation-unique correlation ids for the result message.
		id = fmt.Sprintf("%s-%d-%s", c.name, position, uuid.NewString()[:8])
	}
	return chat.ToolCall(id, c.name, json.RawMessage(raw)), nil
}
