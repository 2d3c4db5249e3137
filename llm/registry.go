package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/llm/claude"
	"github.com/loopkit/loopkit/llm/gemini"
	"github.com/loopkit/loopkit/llm/openai"
)

// Get looks a provider up by canonical name or alias, case-insensitively.
func Get(name string) (*Provider, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range registry {
		if p.Name == n {
			return p, nil
		}
		for _, alias := range p.Aliases {
			if alias == n {
				return p, nil
			}
		}
	}
	return nil, &UnknownProviderError{Name: name}
}

// Providers returns every registered provider.
func Providers() []*Provider {
	out := make([]*Provider, len(registry))
	copy(out, registry)
	return out
}

func caps(tags ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(tags))
	for _, t := range tags {
		m[t] = true
	}
	return m
}

var registry = []*Provider{
	openAICompatible(compatSpec{
		name:    "openai",
		aliases: []string{"oai"},
		baseURL: openai.OpenAIURL,
		envKey:  "OPENAI_API_KEY",
		defaults: map[ModelKind]string{
			KindChat:       "gpt-4o",
			KindEmbeddings: "text-embedding-3-small",
		},
		caps: caps(CapChat, CapMultiToolCalls, CapTypedOutput, CapTypedOutputWithTools, CapEmbeddings, CapVision),
	}),
	anthropicProvider(),
	googleProvider(),
	openAICompatible(compatSpec{
		name:    "mistral",
		baseURL: openai.MistralURL,
		envKey:  "MISTRAL_API_KEY",
		defaults: map[ModelKind]string{
			KindChat:       "mistral-large-latest",
			KindEmbeddings: "mistral-embed",
		},
		caps: caps(CapChat, CapMultiToolCalls, CapTypedOutput, CapTypedOutputWithTools, CapEmbeddings),
	}),
	openAICompatible(compatSpec{
		name:             "ollama",
		baseURL:          openai.OllamaURL,
		keyOptional:      true,
		defaults:         map[ModelKind]string{KindChat: "llama3.2"},
		caps:             caps(CapChat, CapMultiToolCalls, CapTypedOutput),
		typedIsExclusive: true,
	}),
	openAICompatible(compatSpec{
		name:    "cohere",
		baseURL: openai.CohereURL,
		envKey:  "COHERE_API_KEY",
		defaults: map[ModelKind]string{
			KindChat:       "command-r-plus",
			KindEmbeddings: "embed-english-v3.0",
		},
		caps: caps(CapChat, CapMultiToolCalls, CapTypedOutput, CapEmbeddings),
	}),
	openAICompatible(compatSpec{
		name:     "together",
		baseURL:  openai.TogetherURL,
		envKey:   "TOGETHER_API_KEY",
		defaults: map[ModelKind]string{KindChat: "meta-llama/Llama-3.3-70B-Instruct-Turbo"},
		caps:     caps(CapChat, CapMultiToolCalls, CapTypedOutput),
	}),
	openAICompatible(compatSpec{
		name:     "openrouter",
		baseURL:  openai.OpenRouterURL,
		envKey:   "OPENROUTER_API_KEY",
		defaults: map[ModelKind]string{KindChat: "openrouter/auto"},
		caps:     caps(CapChat, CapMultiToolCalls, CapTypedOutput, CapTypedOutputWithTools),
	}),
	openAICompatible(compatSpec{
		name:     "lambda",
		baseURL:  openai.LambdaURL,
		envKey:   "LAMBDA_API_KEY",
		defaults: map[ModelKind]string{KindChat: "hermes-3-llama-3.1-405b"},
		caps:     caps(CapChat, CapMultiToolCalls),
	}),
}

// compatSpec describes a provider that speaks the OpenAI chat-completions
// dialect; everything routes through the openai mapper with a different
// base URL, credential key, and quirk flags.
type compatSpec struct {
	name             string
	aliases          []string
	baseURL          string
	envKey           string
	keyOptional      bool
	defaults         map[ModelKind]string
	caps             map[Capability]bool
	typedIsExclusive bool
}

func openAICompatible(spec compatSpec) *Provider {
	apiKey := func() (string, error) {
		if spec.envKey == "" {
			return "", nil
		}
		key := LookupEnv(spec.envKey)
		if key == "" && !spec.keyOptional {
			return "", fmt.Errorf("%s API key required (set %s)", spec.name, spec.envKey)
		}
		return key, nil
	}

	return &Provider{
		Name:              spec.name,
		Aliases:           spec.aliases,
		DefaultModelNames: spec.defaults,
		Caps:              spec.caps,
		NewChat: func(cfg ChatConfig) (chat.Model, error) {
			key, err := apiKey()
			if err != nil {
				return nil, err
			}
			opts := []openai.Option{
				openai.WithModel(cfg.Model),
				openai.WithProviderName(spec.name),
				openai.WithTools(cfg.Tools...),
			}
			if cfg.Temperature != nil {
				opts = append(opts, openai.WithTemperature(*cfg.Temperature))
			}
			if spec.typedIsExclusive {
				opts = append(opts, openai.WithTypedOutputExclusive())
			}
			return openai.New(spec.baseURL, key, opts...)
		},
		NewEmbeddings: func(cfg EmbeddingsConfig) (chat.EmbeddingsModel, error) {
			key, err := apiKey()
			if err != nil {
				return nil, err
			}
			return openai.NewEmbeddings(spec.baseURL, key, cfg.Model)
		},
		ListModels: func(ctx context.Context) ([]ModelInfo, error) {
			key, err := apiKey()
			if err != nil {
				return nil, err
			}
			ids, err := openai.ListModelIDs(ctx, spec.baseURL, key)
			if err != nil {
				return nil, err
			}
			return modelInfos(spec.name, ids), nil
		},
	}
}

func anthropicProvider() *Provider {
	const envKey = "ANTHROPIC_API_KEY"
	apiKey := func() (string, error) {
		key := LookupEnv(envKey)
		if key == "" {
			return "", fmt.Errorf("anthropic API key required (set %s)", envKey)
		}
		return key, nil
	}

	return &Provider{
		Name:              "anthropic",
		Aliases:           []string{"claude"},
		DefaultModelNames: map[ModelKind]string{KindChat: "claude-sonnet-4-5"},
		Caps:              caps(CapChat, CapMultiToolCalls, CapVision),
		NewChat: func(cfg ChatConfig) (chat.Model, error) {
			key, err := apiKey()
			if err != nil {
				return nil, err
			}
			opts := []claude.Option{
				claude.WithModel(cfg.Model),
				claude.WithTools(cfg.Tools...),
			}
			if cfg.Temperature != nil {
				opts = append(opts, claude.WithTemperature(*cfg.Temperature))
			}
			return claude.New(claude.AnthropicURL, key, opts...)
		},
		ListModels: func(ctx context.Context) ([]ModelInfo, error) {
			key, err := apiKey()
			if err != nil {
				return nil, err
			}
			ids, err := claude.ListModelIDs(ctx, claude.AnthropicURL, key)
			if err != nil {
				return nil, err
			}
			return modelInfos("anthropic", ids), nil
		},
	}
}

func googleProvider() *Provider {
	apiKey := func() (string, error) {
		key := LookupEnv("GEMINI_API_KEY")
		if key == "" {
			key = LookupEnv("GOOGLE_API_KEY")
		}
		if key == "" {
			return "", fmt.Errorf("google API key required (set GEMINI_API_KEY or GOOGLE_API_KEY)")
		}
		return key, nil
	}

	return &Provider{
		Name:    "google",
		Aliases: []string{"gemini", "googleai"},
		DefaultModelNames: map[ModelKind]string{
			KindChat:       "gemini-2.0-flash",
			KindEmbeddings: "text-embedding-004",
		},
		Caps: caps(CapChat, CapMultiToolCalls, CapTypedOutput, CapEmbeddings, CapVision),
		NewChat: func(cfg ChatConfig) (chat.Model, error) {
			key, err := apiKey()
			if err != nil {
				return nil, err
			}
			opts := []gemini.Option{
				gemini.WithModel(cfg.Model),
				gemini.WithTools(cfg.Tools...),
			}
			if cfg.Temperature != nil {
				opts = append(opts, gemini.WithTemperature(*cfg.Temperature))
			}
			return gemini.New(key, opts...)
		},
		NewEmbeddings: func(cfg EmbeddingsConfig) (chat.EmbeddingsModel, error) {
			key, err := apiKey()
			if err != nil {
				return nil, err
			}
			return gemini.NewEmbeddings(key, cfg.Model)
		},
		ListModels: func(ctx context.Context) ([]ModelInfo, error) {
			key, err := apiKey()
			if err != nil {
				return nil, err
			}
			ids, err := gemini.ListModelIDs(ctx, key)
			if err != nil {
				return nil, err
			}
			return modelInfos("google", ids), nil
		},
	}
}

func modelInfos(provider string, ids []string) []ModelInfo {
	infos := make([]ModelInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, ModelInfo{ID: id, Provider: provider})
	}
	return infos
}
