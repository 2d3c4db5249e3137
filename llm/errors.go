package llm

import "fmt"

// UnknownProviderError is returned when a model string names a provider the
// registry doesn't know.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Name)
}

// MalformedModelStringError is returned when a model string doesn't match
// the provider[:model], provider[/model], or provider?chat=X&embeddings=Y
// grammar.
type MalformedModelStringError struct {
	Value  string
	Reason string
}

func (e *MalformedModelStringError) Error() string {
	return fmt.Sprintf("malformed model string %q: %s", e.Value, e.Reason)
}
