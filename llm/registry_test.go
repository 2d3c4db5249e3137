package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_NamesAndAliases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lookup string
		want   string
	}{
		{"openai", "openai"},
		{"OpenAI", "openai"},
		{"claude", "anthropic"},
		{"anthropic", "anthropic"},
		{"gemini", "google"},
		{"google", "google"},
		{"ollama", "ollama"},
		{"mistral", "mistral"},
		{"cohere", "cohere"},
		{"together", "together"},
		{"openrouter", "openrouter"},
		{"lambda", "lambda"},
	}
	for _, tt := range tests {
		t.Run(tt.lookup, func(t *testing.T) {
			t.Parallel()
			p, err := Get(tt.lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name)
		})
	}

	_, err := Get("watson")
	require.Error(t, err)
}

func TestProviders_Capabilities(t *testing.T) {
	t.Parallel()

	openai, err := Get("openai")
	require.NoError(t, err)
	assert.True(t, openai.Has(CapChat))
	assert.True(t, openai.Has(CapTypedOutputWithTools))
	assert.True(t, openai.Has(CapEmbeddings))

	anthropic, err := Get("anthropic")
	require.NoError(t, err)
	assert.True(t, anthropic.Has(CapMultiToolCalls))
	assert.False(t, anthropic.Has(CapTypedOutput))

	google, err := Get("google")
	require.NoError(t, err)
	assert.True(t, google.Has(CapTypedOutput))
	assert.False(t, google.Has(CapTypedOutputWithTools))

	ollama, err := Get("ollama")
	require.NoError(t, err)
	assert.True(t, ollama.Has(CapTypedOutput))
	assert.False(t, ollama.Has(CapTypedOutputWithTools))
	assert.False(t, ollama.Has(CapEmbeddings))
}

func TestProviders_DefaultModels(t *testing.T) {
	t.Parallel()

	for _, p := range Providers() {
		assert.NotEmpty(t, p.DefaultModelNames[KindChat], "provider %s has no default chat model", p.Name)
		if p.Has(CapEmbeddings) {
			assert.NotEmpty(t, p.DefaultModelNames[KindEmbeddings], "provider %s has no default embeddings model", p.Name)
		}
	}
}

func TestNewChatModel_MissingCredentials(t *testing.T) {
	// Not parallel: depends on the process environment being free of keys.
	t.Setenv("OPENAI_API_KEY", "")

	p, err := Get("openai")
	require.NoError(t, err)

	_, err = p.NewChatModel(ChatConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestNewChatModel_UsesEnvOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	SetEnv("OPENAI_API_KEY", "test-key-from-override")
	defer SetEnv("OPENAI_API_KEY", "")

	p, err := Get("openai")
	require.NoError(t, err)

	m, err := p.NewChatModel(ChatConfig{})
	require.NoError(t, err)
	defer func() { _ = m.Close() }()
	// The default chat model applies when the config leaves Model empty.
	assert.Equal(t, "gpt-4o", m.Name())
}

func TestNewChatModel_OllamaNeedsNoKey(t *testing.T) {
	t.Parallel()

	p, err := Get("ollama")
	require.NoError(t, err)

	m, err := p.NewChatModel(ChatConfig{Model: "llama3.2"})
	require.NoError(t, err)
	defer func() { _ = m.Close() }()
	assert.Equal(t, "llama3.2", m.Name())
}

func TestNewEmbeddingsModel_Unsupported(t *testing.T) {
	t.Parallel()

	p, err := Get("anthropic")
	require.NoError(t, err)

	_, err = p.NewEmbeddingsModel(EmbeddingsConfig{})
	require.Error(t, err)
}
