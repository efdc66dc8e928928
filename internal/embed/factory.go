package embed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/codesearch/ragex/internal/config"
)

// ProviderType selects an embedding backend.
type ProviderType string

const (
	// ProviderOllama serves embeddings from a local Ollama instance; the
	// cross-platform default.
	ProviderOllama ProviderType = "ollama"

	// ProviderMLX serves embeddings from a local MLX inference server,
	// opt-in for Apple-Silicon hosts.
	ProviderMLX ProviderType = "mlx"

	// ProviderStatic is the in-process hash embedder; no external
	// dependency, lowest quality.
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder for provider. The RAGEX_EMBEDDER
// environment variable overrides provider; RAGEX_EMBED_CACHE=false
// disables the query cache that otherwise wraps every backend.
//
// A network provider that cannot be reached is an error, not a silent
// fallback: an index built by a different backend would have a different
// dimension, so swapping providers behind the caller's back corrupts the
// project. Callers choose static explicitly when they want it.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	if env := os.Getenv("RAGEX_EMBEDDER"); env != "" {
		provider = ParseProvider(env)
	}

	var embedder Embedder
	var err error
	switch provider {
	case ProviderMLX:
		embedder, err = newMLXEmbedder(ctx)
	case ProviderStatic:
		embedder = NewStaticEmbedder(0)
	default:
		embedder, err = newOllamaEmbedder(ctx, model)
	}
	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}
	return embedder, nil
}

// NewEmbedderFromConfig builds an embedder from a project's
// EmbeddingsConfig, applying the config file's provider/model/host before
// the RAGEX_* environment overrides NewEmbedder already honors. The model
// value may be a named preset (fast, balanced, accurate, multilingual,
// code-small) or a raw model name; presets fix model, dimensions,
// sequence length, and batch size together.
func NewEmbedderFromConfig(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	if cfg.OllamaHost != "" {
		if _, set := os.LookupEnv("RAGEX_OLLAMA_HOST"); !set {
			if err := os.Setenv("RAGEX_OLLAMA_HOST", cfg.OllamaHost); err != nil {
				return nil, fmt.Errorf("embed: applying ollama host from config: %w", err)
			}
		}
	}
	preset := ResolveModel(cfg.Model, cfg.Dimensions)
	return NewEmbedder(ctx, ParseProvider(cfg.Provider), preset.ModelName)
}

func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("RAGEX_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// newMLXEmbedder builds the MLX provider with env overrides applied.
func newMLXEmbedder(ctx context.Context) (Embedder, error) {
	cfg := DefaultMLXConfig()
	if endpoint := os.Getenv("RAGEX_MLX_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if model := os.Getenv("RAGEX_MLX_MODEL"); model != "" {
		cfg.Model = model
	}

	embedder, err := NewMLXEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("mlx unavailable: %w\n\nTo fix:\n  1. Start the MLX server: mlx-embedding-server\n  2. Or use Ollama: RAGEX_EMBEDDER=ollama\n  3. Or use static embeddings: RAGEX_EMBEDDER=static", err)
	}
	return embedder, nil
}

// newOllamaEmbedder builds the Ollama provider with env overrides applied.
// model is only used when it looks like an Ollama model name; preset model
// names from other ecosystems keep the Ollama default.
func newOllamaEmbedder(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if model != "" && isOllamaModelName(model) {
		cfg.Model = model
	}
	if host := os.Getenv("RAGEX_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if modelOverride := os.Getenv("RAGEX_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use static embeddings: RAGEX_EMBEDDER=static", err)
	}
	return embedder, nil
}

// ParseProvider converts a string to a ProviderType; unknown values fall
// back to Ollama, the cross-platform default.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "mlx":
		return ProviderMLX
	case "ollama", "llama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		return ProviderOllama
	}
}

// String returns the provider name.
func (p ProviderType) String() string {
	return string(p)
}

// isOllamaModelName reports whether model looks like an Ollama-installed
// model ("name:tag") rather than a sentence-transformers or GGUF name.
func isOllamaModelName(model string) bool {
	return strings.Contains(model, ":") && !strings.HasSuffix(strings.ToLower(model), ".gguf")
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{
		string(ProviderMLX),
		string(ProviderOllama),
		string(ProviderStatic),
	}
}

// IsValidProvider checks whether s names a provider.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo summarizes a constructed embedder for status displays.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo inspects an embedder, unwrapping the cache layer to find the
// real provider.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *MLXEmbedder:
		info.Provider = ProviderMLX
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}
	return info
}

// MustNewEmbedder creates an embedder and panics on failure; for tests
// and initialization code where failure is fatal.
func MustNewEmbedder(ctx context.Context, provider ProviderType, model string) Embedder {
	embedder, err := NewEmbedder(ctx, provider, model)
	if err != nil {
		panic(fmt.Sprintf("create embedder: %v", err))
	}
	return embedder
}
