package llm

import (
	"net/url"
	"strings"
)

// ModelRef is a parsed model string.
type ModelRef struct {
	Provider   string
	Chat       string
	Embeddings string
}

// ParseModelString parses the model-string grammar:
//
//	provider                        default chat + embeddings models
//	provider:model                  explicit chat model
//	provider/model                  explicit chat model (name may contain '/')
//	provider?chat=X&embeddings=Y    query form
func ParseModelString(s string) (ModelRef, error) {
	if strings.TrimSpace(s) == "" {
		return ModelRef{}, &MalformedModelStringError{Value: s, Reason: "empty"}
	}

	if provider, query, ok := strings.Cut(s, "?"); ok {
		if provider == "" {
			return ModelRef{}, &MalformedModelStringError{Value: s, Reason: "missing provider before '?'"}
		}
		values, err := url.ParseQuery(query)
		if err != nil {
			return ModelRef{}, &MalformedModelStringError{Value: s, Reason: err.Error()}
		}
		ref := ModelRef{Provider: provider}
		for key := range values {
			switch key {
			case "chat":
				ref.Chat = values.Get(key)
			case "embeddings":
				ref.Embeddings = values.Get(key)
			default:
				return ModelRef{}, &MalformedModelStringError{Value: s, Reason: "unknown query key " + key}
			}
		}
		return ref, nil
	}

	// ':' binds tighter than '/': "openai:gpt-4o" and
	// "together/meta-llama/Llama-3.3-70B-Instruct-Turbo" both parse, the
	// latter keeping '/' inside the model name.
	if provider, model, ok := strings.Cut(s, ":"); ok {
		if provider == "" || model == "" {
			return ModelRef{}, &MalformedModelStringError{Value: s, Reason: "empty provider or model"}
		}
		return ModelRef{Provider: provider, Chat: model}, nil
	}
	if provider, model, ok := strings.Cut(s, "/"); ok {
		if provider == "" || model == "" {
			return ModelRef{}, &MalformedModelStringError{Value: s, Reason: "empty provider or model"}
		}
		return ModelRef{Provider: provider, Chat: model}, nil
	}

	return ModelRef{Provider: s}, nil
}

// Resolve parses a model string and looks the provider up in the registry.
func Resolve(s string) (*Provider, ModelRef, error) {
	ref, err := ParseModelString(s)
	if err != nil {
		return nil, ModelRef{}, err
	}
	p, err := Get(ref.Provider)
	if err != nil {
		return nil, ModelRef{}, err
	}
	return p, ref, nil
}
