// Package tool builds chat.Tool values from Go functions. The typed
// constructor reflects the input schema from the handler's argument type and
// validates incoming arguments against it before dispatch, so handlers only
// ever see well-formed input.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/iancoleman/strcase"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/schema"
)

type rawTool struct {
	name        string
	description string
	inputSchema *schema.JSON
	validator   *jsonschema.Schema
	handler     func(ctx context.Context, args json.RawMessage) (any, error)
}

var _ chat.Tool = &rawTool{}

func (t *rawTool) Name() string              { return t.name }
func (t *rawTool) Description() string       { return t.description }
func (t *rawTool) InputSchema() *schema.JSON { return t.inputSchema }

func (t *rawTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	if t.validator != nil {
		if err := t.validate(args); err != nil {
			return nil, err
		}
	}
	return t.handler(ctx, args)
}

func (t *rawTool) validate(args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	decoded, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", t.name, err)
	}
	if err := t.validator.Validate(decoded); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", t.name, err)
	}
	return nil
}

// New creates a tool from an explicit schema and a raw-JSON handler. The
// tool name is normalized to snake_case. When inputSchema is non-empty,
// arguments are validated against it before the handler runs; a validation
// failure surfaces to the model as error data, not as a loop failure.
func New(name, description string, inputSchema *schema.JSON, handler func(ctx context.Context, args json.RawMessage) (any, error)) (chat.Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("tool definition missing name")
	}
	if handler == nil {
		return nil, fmt.Errorf("tool %s missing handler", name)
	}
	if inputSchema == nil {
		inputSchema = &schema.JSON{Type: schema.Object}
	}

	t := &rawTool{
		name:        strcase.ToSnake(name),
		description: description,
		inputSchema: inputSchema,
		handler:     handler,
	}

	if !inputSchema.Empty() {
		v, err := compile(inputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.name, err)
		}
		t.validator = v
	}
	return t, nil
}

// Func creates a tool whose input schema is reflected from the handler's
// argument type. See schema.For for how struct fields map to properties.
func Func[In any](name, description string, handler func(ctx context.Context, in In) (any, error)) (chat.Tool, error) {
	inputSchema, err := schema.For[In]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: reflecting input schema: %w", name, err)
	}
	return New(name, description, inputSchema, func(ctx context.Context, args json.RawMessage) (any, error) {
		var in In
		if len(args) > 0 {
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decoding arguments for %s: %w", name, err)
			}
		}
		return handler(ctx, in)
	})
}

// MustFunc is Func, panicking on construction failure. Intended for
// package-level tool declarations.
func MustFunc[In any](name, description string, handler func(ctx context.Context, in In) (any, error)) chat.Tool {
	t, err := Func(name, description, handler)
	if err != nil {
		panic(err)
	}
	return t
}

func compile(s *schema.JSON) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("input.json", doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := c.Compile("input.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return compiled, nil
}
