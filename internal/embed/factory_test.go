package embed

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesearch/ragex/internal/config"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderType
	}{
		{"mlx", ProviderMLX},
		{"MLX", ProviderMLX},
		{"ollama", ProviderOllama},
		{"llama", ProviderOllama},
		{"static", ProviderStatic},
		{"", ProviderOllama},
		{"bogus", ProviderOllama},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseProvider(tt.in), "input %q", tt.in)
	}
}

func TestIsValidProvider(t *testing.T) {
	assert.True(t, IsValidProvider("static"))
	assert.True(t, IsValidProvider("Ollama"))
	assert.True(t, IsValidProvider("mlx"))
	assert.False(t, IsValidProvider("chatgpt"))
}

func TestIsOllamaModelName(t *testing.T) {
	assert.True(t, isOllamaModelName("qwen3-embedding:0.6b"))
	assert.False(t, isOllamaModelName("sentence-transformers/all-MiniLM-L6-v2"))
	assert.False(t, isOllamaModelName("nomic-embed-text:latest.gguf"))
}

func TestNewEmbedder_StaticProvider(t *testing.T) {
	embedder, err := NewEmbedder(context.Background(), ProviderStatic, "")
	require.NoError(t, err)
	defer embedder.Close()

	assert.Equal(t, DefaultDimensions, embedder.Dimensions())
	assert.Equal(t, "static-768", embedder.ModelName())
	assert.True(t, embedder.Available(context.Background()))
}

func TestNewEmbedder_CacheWrapByDefault(t *testing.T) {
	embedder, err := NewEmbedder(context.Background(), ProviderStatic, "")
	require.NoError(t, err)
	defer embedder.Close()

	_, ok := embedder.(*CachedEmbedder)
	assert.True(t, ok, "backends are cache-wrapped unless RAGEX_EMBED_CACHE disables it")
}

func TestNewEmbedder_CacheDisabledByEnv(t *testing.T) {
	t.Setenv("RAGEX_EMBED_CACHE", "false")

	embedder, err := NewEmbedder(context.Background(), ProviderStatic, "")
	require.NoError(t, err)
	defer embedder.Close()

	_, ok := embedder.(*CachedEmbedder)
	assert.False(t, ok)
}

func TestNewEmbedder_EnvProviderOverride(t *testing.T) {
	t.Setenv("RAGEX_EMBEDDER", "static")

	// Provider argument says mlx, env wins.
	embedder, err := NewEmbedder(context.Background(), ProviderMLX, "")
	require.NoError(t, err)
	defer embedder.Close()

	info := GetInfo(context.Background(), embedder)
	assert.Equal(t, ProviderStatic, info.Provider)
}

func TestNewEmbedderFromConfig_StaticPreset(t *testing.T) {
	cfg := config.EmbeddingsConfig{Provider: "static", Model: "fast"}
	embedder, err := NewEmbedderFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	// The static provider ignores the preset's model, but construction
	// must succeed and yield a working embedder.
	vec, err := embedder.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimensions)
}

func TestNewEmbedderFromConfig_OllamaHostPropagates(t *testing.T) {
	if _, set := os.LookupEnv("RAGEX_OLLAMA_HOST"); set {
		t.Skip("RAGEX_OLLAMA_HOST already set in environment")
	}
	t.Setenv("RAGEX_OLLAMA_HOST", "")
	_ = os.Unsetenv("RAGEX_OLLAMA_HOST")

	cfg := config.EmbeddingsConfig{Provider: "static", OllamaHost: "http://example.invalid:11434"}
	embedder, err := NewEmbedderFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer embedder.Close()

	assert.Equal(t, "http://example.invalid:11434", os.Getenv("RAGEX_OLLAMA_HOST"))
	_ = os.Unsetenv("RAGEX_OLLAMA_HOST")
}

func TestGetInfo_UnwrapsCache(t *testing.T) {
	inner := NewStaticEmbedder(0)
	wrapped := NewCachedEmbedderWithDefaults(inner)
	defer wrapped.Close()

	info := GetInfo(context.Background(), wrapped)
	assert.Equal(t, ProviderStatic, info.Provider)
	assert.Equal(t, "static-768", info.Model)
	assert.Equal(t, DefaultDimensions, info.Dimensions)
	assert.True(t, info.Available)
}

func TestMustNewEmbedder_PanicsOnFailure(t *testing.T) {
	t.Setenv("RAGEX_EMBEDDER", "mlx")
	t.Setenv("RAGEX_MLX_ENDPOINT", "http://127.0.0.1:1") // nothing listens here

	assert.Panics(t, func() {
		_ = MustNewEmbedder(context.Background(), ProviderMLX, "")
	})
}
