// Package schema describes JSON Schemas the way providers consume them: a
// small declarative struct for hand-written schemas, plus reflection from Go
// types for tools whose inputs are plain structs.
package schema

import "encoding/json"

const URL = "http://json-schema.org/draft-07/schema#"

type Type string

const (
	String  Type = "string"
	Number  Type = "number"
	Integer Type = "integer"
	Boolean Type = "boolean"
	Array   Type = "array"
	Object  Type = "object"
	Null    Type = "null"
)

// JSON is a way to describe a JSON Schema.
type JSON struct {
	Type                 interface{}      `json:"type,omitzero"` // Can be Type or []interface{} for union types like ["string", "null"]
	Description          string           `json:"description,omitzero"`
	Properties           map[string]*JSON `json:"properties,omitzero"`
	Items                *JSON            `json:"items,omitzero"`
	Enum                 []string         `json:"enum,omitzero"`
	Required             []string         `json:"required,omitzero"`
	AdditionalProperties *bool            `json:"additionalProperties,omitzero"`
	Schema               string           `json:"$schema,omitzero"`
	OneOf                []*JSON          `json:"oneOf,omitzero"`
	AnyOf                []*JSON          `json:"anyOf,omitzero"`
	AllOf                []*JSON          `json:"allOf,omitzero"`
}

// ObjectOf builds an object schema from property schemas. Keys listed in
// required must exist in props.
func ObjectOf(props map[string]*JSON, required ...string) *JSON {
	return &JSON{
		Type:       Object,
		Properties: props,
		Required:   required,
	}
}

// StringProp builds a described string schema.
func StringProp(description string) *JSON {
	return &JSON{Type: String, Description: description}
}

// Empty reports whether the schema describes an object with no properties,
// i.e. a tool that takes no arguments.
func (s *JSON) Empty() bool {
	if s == nil {
		return true
	}
	return (s.Type == nil || s.TypeIs(Object)) &&
		len(s.Properties) == 0 && len(s.OneOf) == 0 && len(s.AnyOf) == 0 && len(s.AllOf) == 0
}

// TypeIs reports whether the schema's type matches t. The Type field may
// hold a Type constant or a plain string after JSON decoding.
func (s *JSON) TypeIs(t Type) bool {
	switch v := s.Type.(type) {
	case Type:
		return v == t
	case string:
		return Type(v) == t
	default:
		return false
	}
}

// HasUnion reports whether the schema (at any depth) uses oneOf/anyOf,
// which some providers cannot express.
func (s *JSON) HasUnion() bool {
	if s == nil {
		return false
	}
	if len(s.OneOf) > 0 || len(s.AnyOf) > 0 {
		return true
	}
	for _, p := range s.Properties {
		if p.HasUnion() {
			return true
		}
	}
	if s.Items != nil && s.Items.HasUnion() {
		return true
	}
	for _, sub := range s.AllOf {
		if sub.HasUnion() {
			return true
		}
	}
	return false
}

// AsMap renders the schema as a generic map, the form most provider SDKs
// accept for tool parameters.
func (s *JSON) AsMap() (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
