package chat

import "fmt"

// UnsupportedCombinationError is returned by provider mappers whose
// structured-output mechanism cannot coexist with tools in a single request
// (Gemini's responseSchema and Ollama's format parameter are exclusive).
type UnsupportedCombinationError struct {
	Provider string
	Reason   string
}

func (e *UnsupportedCombinationError) Error() string {
	return fmt.Sprintf("%s: cannot combine tools with native structured output: %s", e.Provider, e.Reason)
}

// SchemaError is returned when a JSON schema cannot be mapped onto a
// provider's schema model, e.g. anyOf/oneOf for providers without union
// support.
type SchemaError struct {
	Provider string
	Detail   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: schema cannot be mapped: %s", e.Provider, e.Detail)
}
