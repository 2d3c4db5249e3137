package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectOf(t *testing.T) {
	t.Parallel()

	s := ObjectOf(map[string]*JSON{
		"town":    StringProp("city name"),
		"country": StringProp("country name"),
	}, "town")

	assert.Equal(t, Object, s.Type)
	assert.Len(t, s.Properties, 2)
	assert.Equal(t, []string{"town"}, s.Required)
	assert.False(t, s.Empty())
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	var nilSchema *JSON
	assert.True(t, nilSchema.Empty())
	assert.True(t, (&JSON{Type: Object}).Empty())
	assert.True(t, ObjectOf(nil).Empty())
	assert.False(t, ObjectOf(map[string]*JSON{"x": StringProp("")}).Empty())
}

func TestHasUnion(t *testing.T) {
	t.Parallel()

	plain := ObjectOf(map[string]*JSON{"name": StringProp("")})
	assert.False(t, plain.HasUnion())

	topLevel := &JSON{OneOf: []*JSON{{Type: String}, {Type: Number}}}
	assert.True(t, topLevel.HasUnion())

	nested := ObjectOf(map[string]*JSON{
		"value": {AnyOf: []*JSON{{Type: String}, {Type: Null}}},
	})
	assert.True(t, nested.HasUnion())

	inItems := &JSON{Type: Array, Items: &JSON{OneOf: []*JSON{{Type: String}}}}
	assert.True(t, inItems.HasUnion())
}

func TestAsMap(t *testing.T) {
	t.Parallel()

	s := ObjectOf(map[string]*JSON{"zip": StringProp("US zip code")}, "zip")
	m, err := s.AsMap()
	require.NoError(t, err)

	assert.Equal(t, "object", m["type"])
	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "zip")
}

type weatherReq struct {
	Zip   string `json:"zip" jsonschema:"description=US zip code"`
	Units string `json:"units,omitzero"`
}

func TestFor(t *testing.T) {
	t.Parallel()

	s, err := For[weatherReq]()
	require.NoError(t, err)

	assert.Equal(t, "object", asTypeString(s.Type))
	require.Contains(t, s.Properties, "zip")
	require.Contains(t, s.Properties, "units")
	assert.Equal(t, []string{"zip"}, s.Required)
	assert.Empty(t, s.Schema)
}

func TestForEmptyStruct(t *testing.T) {
	t.Parallel()

	s, err := For[struct{}]()
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func asTypeString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(Type); ok {
		return string(s)
	}
	return ""
}
