package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// For reflects a schema from a Go type. Struct fields map to properties via
// their json tags; fields without omitzero/omitempty are required. This is
// the easy path for tool input schemas - hand-write a JSON value only when
// the shape can't be expressed as a Go struct.
func For[T any]() (*JSON, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var v T
	reflected := r.Reflect(&v)

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("marshaling reflected schema: %w", err)
	}
	var s JSON
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("converting reflected schema: %w", err)
	}
	// The reflector pins a 2020-12 dialect; providers are happier with the
	// draft-07 identifier the rest of the library uses.
	s.Schema = ""
	return &s, nil
}

// MustFor is For, panicking on reflection failure. Intended for package-level
// tool declarations where the type is known good.
func MustFor[T any]() *JSON {
	s, err := For[T]()
	if err != nil {
		panic(err)
	}
	return s
}
