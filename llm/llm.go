// Package llm maps provider names onto concrete chat and embeddings models.
// It owns the provider registry, the model-string grammar, capability tags,
// and the environment map providers consult for credentials.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/internal/logging"
)

// Capability is a coarse feature tag used to pick a normalization strategy.
// Tags drive orchestrator decisions only; they never gate API access.
type Capability string

const (
	// CapChat - supports chat completion (universal).
	CapChat Capability = "chat"
	// CapMultiToolCalls - can emit tool calls.
	CapMultiToolCalls Capability = "multiToolCalls"
	// CapTypedOutput - supports structured output in some form.
	CapTypedOutput Capability = "typedOutput"
	// CapTypedOutputWithTools - can combine tools and structured output in
	// one request.
	CapTypedOutputWithTools Capability = "typedOutputWithTools"
	// CapEmbeddings - provides embeddings.
	CapEmbeddings Capability = "embeddings"
	// CapVision - accepts image parts.
	CapVision Capability = "vision"
)

// ModelKind selects which default model name applies.
type ModelKind string

const (
	KindChat       ModelKind = "chat"
	KindEmbeddings ModelKind = "embeddings"
)

// ChatConfig carries everything a provider needs to construct a chat model.
type ChatConfig struct {
	// Model is the provider model name; empty selects the provider default.
	Model string
	// Tools are serialized into every request of the session.
	Tools []chat.Tool
	// Temperature, when non-nil, overrides the provider default.
	Temperature *float64
}

// EmbeddingsConfig carries everything a provider needs to construct an
// embeddings model.
type EmbeddingsConfig struct {
	Model string
}

// ModelInfo describes one model a provider advertises.
type ModelInfo struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	DisplayName string `json:"displayName,omitzero"`
}

// Provider binds a canonical provider name to model constructors and
// capability tags.
type Provider struct {
	Name              string
	Aliases           []string
	DefaultModelNames map[ModelKind]string
	Caps              map[Capability]bool

	NewChat       func(cfg ChatConfig) (chat.Model, error)
	NewEmbeddings func(cfg EmbeddingsConfig) (chat.EmbeddingsModel, error)
	ListModels    func(ctx context.Context) ([]ModelInfo, error)
}

// Has reports whether the provider carries the capability tag.
func (p *Provider) Has(c Capability) bool {
	return p.Caps[c]
}

// NewChatModel constructs a chat model, applying the provider's default
// model name when cfg.Model is empty.
func (p *Provider) NewChatModel(cfg ChatConfig) (chat.Model, error) {
	if cfg.Model == "" {
		cfg.Model = p.DefaultModelNames[KindChat]
	}
	if p.NewChat == nil {
		return nil, fmt.Errorf("provider %s does not support chat", p.Name)
	}
	return p.NewChat(cfg)
}

// NewEmbeddingsModel constructs an embeddings model, applying the provider's
// default model name when cfg.Model is empty.
func (p *Provider) NewEmbeddingsModel(cfg EmbeddingsConfig) (chat.EmbeddingsModel, error) {
	if !p.Has(CapEmbeddings) || p.NewEmbeddings == nil {
		return nil, fmt.Errorf("provider %s does not support embeddings", p.Name)
	}
	if cfg.Model == "" {
		cfg.Model = p.DefaultModelNames[KindEmbeddings]
	}
	return p.NewEmbeddings(cfg)
}

// SetLogLevel sets the log level for the entire library. This affects all
// provider mappers and the agent loop, and is global to the process.
//
//   - slog.LevelError: only errors
//   - slog.LevelWarn: warnings and errors (default)
//   - slog.LevelInfo: high-level operations
//   - slog.LevelDebug: every stream event and tool call - very verbose
//
// The LOOPKIT_DEBUG environment variable (0-3) sets the initial level.
func SetLogLevel(level slog.Level) {
	logging.SetLogLevel(level)
}
