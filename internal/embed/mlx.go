package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// MLX provider constants. The MLX backend is an optional local inference
// server for Apple-Silicon hosts, reached over HTTP like Ollama but with
// its own endpoint and model naming.
const (
	DefaultMLXEndpoint = "http://localhost:9659"
	DefaultMLXModel    = "small"

	mlxRequestTimeout = 60 * time.Second
	mlxMaxRetries     = 2
)

// mlxModelDimensions maps the server's model sizes to their output
// widths; the server's /models endpoint overrides these when reachable.
var mlxModelDimensions = map[string]int{
	"small":  1024,
	"medium": 2560,
	"large":  4096,
}

// MLXConfig configures the MLX embedder.
type MLXConfig struct {
	// Endpoint is the MLX server URL.
	Endpoint string

	// Model is the model size: "small", "medium", or "large".
	Model string

	// SkipHealthCheck skips the startup probe (tests).
	SkipHealthCheck bool
}

// DefaultMLXConfig returns default MLX configuration.
func DefaultMLXConfig() MLXConfig {
	return MLXConfig{
		Endpoint: DefaultMLXEndpoint,
		Model:    DefaultMLXModel,
	}
}

// MLXEmbedder generates embeddings through a local MLX inference server.
type MLXEmbedder struct {
	client *http.Client
	config MLXConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*MLXEmbedder)(nil)

// NewMLXEmbedder probes the MLX server and resolves the model dimension.
func NewMLXEmbedder(ctx context.Context, cfg MLXConfig) (*MLXEmbedder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultMLXEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultMLXModel
	}

	e := &MLXEmbedder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}

	e.dims = mlxModelDimensions[cfg.Model]
	if e.dims == 0 {
		e.dims = mlxModelDimensions[DefaultMLXModel]
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := e.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("MLX health check failed: %w", err)
		}
		if dims, err := e.serverDimensions(checkCtx); err == nil {
			e.dims = dims
		}
	}

	return e, nil
}

// healthCheck verifies the server reports itself healthy.
func (e *MLXEmbedder) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to MLX server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("MLX server unhealthy (status %d): %s", resp.StatusCode, string(body))
	}

	var health mlxHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("MLX server status: %s", health.Status)
	}
	return nil
}

// serverDimensions asks the server for the configured model's dimension.
func (e *MLXEmbedder) serverDimensions(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Endpoint+"/models", nil)
	if err != nil {
		return 0, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("list models: status %d", resp.StatusCode)
	}

	var result mlxModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	if model, ok := result.Models[e.config.Model]; ok {
		return model.Dimensions, nil
	}
	return 0, fmt.Errorf("model %s not found", e.config.Model)
}

// Embed generates the embedding for a single text.
func (e *MLXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(mlxEmbedRequest{Text: text, Model: e.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var result mlxEmbedResponse
	if err := e.post(ctx, "/embed", body, &result); err != nil {
		return nil, err
	}

	embedding := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		embedding[i] = float32(v)
	}
	return normalizeVector(embedding), nil
}

// EmbedBatch generates embeddings for texts in one server round trip per
// attempt, retrying transient failures with the shared backoff.
func (e *MLXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(mlxEmbedBatchRequest{Texts: texts, Model: e.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	retryCfg := RetryConfig{
		MaxRetries:   mlxMaxRetries - 1,
		InitialDelay: time.Second,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
	}

	var result mlxEmbedBatchResponse
	err = WithRetry(ctx, retryCfg, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, mlxRequestTimeout)
		defer cancel()
		return e.post(attemptCtx, "/embed_batch", body, &result)
	})
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embedding := make([]float32, len(emb))
		for j, v := range emb {
			embedding[j] = float32(v)
		}
		embeddings[i] = normalizeVector(embedding)
	}
	return embeddings, nil
}

// post sends one JSON request and decodes the JSON response into out.
func (e *MLXEmbedder) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("MLX request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("MLX request failed (status %d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (e *MLXEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

// Dimensions returns the embedding dimension.
func (e *MLXEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *MLXEmbedder) ModelName() string {
	return "mlx-qwen3-embedding-" + e.config.Model
}

// Available reports whether the MLX server answers its health probe.
func (e *MLXEmbedder) Available(ctx context.Context) bool {
	if e.checkOpen() != nil {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return e.healthCheck(checkCtx) == nil
}

// Close releases resources.
func (e *MLXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if transport, ok := e.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// MLX wire types.

type mlxHealthResponse struct {
	Status      string `json:"status"`
	ModelStatus string `json:"model_status"`
	LoadedModel string `json:"loaded_model"`
}

type mlxModelsResponse struct {
	Models map[string]mlxModelInfo `json:"models"`
}

type mlxModelInfo struct {
	Dimensions int `json:"dimensions"`
}

type mlxEmbedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type mlxEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type mlxEmbedBatchRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type mlxEmbedBatchResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}
