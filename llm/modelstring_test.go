package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ModelRef
	}{
		{"openai", ModelRef{Provider: "openai"}},
		{"openai:gpt-4o", ModelRef{Provider: "openai", Chat: "gpt-4o"}},
		{"anthropic/claude-sonnet-4-5", ModelRef{Provider: "anthropic", Chat: "claude-sonnet-4-5"}},
		{"together/meta-llama/Llama-3.3-70B-Instruct-Turbo", ModelRef{Provider: "together", Chat: "meta-llama/Llama-3.3-70B-Instruct-Turbo"}},
		{"openai?chat=gpt-4o&embeddings=text-embedding-3-small", ModelRef{Provider: "openai", Chat: "gpt-4o", Embeddings: "text-embedding-3-small"}},
		{"google?embeddings=text-embedding-004", ModelRef{Provider: "google", Embeddings: "text-embedding-004"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseModelString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseModelString_Malformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "  ", ":gpt-4o", "openai:", "/model", "openai?weird=x", "?chat=x"} {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			_, err := ParseModelString(in)
			require.Error(t, err)
			var malformed *MalformedModelStringError
			assert.True(t, errors.As(err, &malformed))
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	p, ref, err := Resolve("claude:claude-sonnet-4-5")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name)
	assert.Equal(t, "claude-sonnet-4-5", ref.Chat)

	_, _, err = Resolve("nonexistent:model")
	require.Error(t, err)
	var unknown *UnknownProviderError
	assert.True(t, errors.As(err, &unknown))
}
