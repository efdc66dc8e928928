// Package config loads and merges RAGex configuration: built-in defaults,
// an optional project YAML file, and environment variable overrides, in
// that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codesearch/ragex/internal/ragexerr"
)

// Config is the complete RAGex configuration for one project daemon.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// WorkspacePath is the host-visible absolute path of the project root.
	// Populated from WORKSPACE_PATH; never persisted to YAML.
	WorkspacePath string `yaml:"-" json:"workspace_path"`
	// UserID identifies the owning user for project identity; from
	// DOCKER_USER_ID or the OS user.
	UserID string `yaml:"-" json:"user_id"`

	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	HNSW       HNSWConfig       `yaml:"hnsw" json:"hnsw"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Regex      RegexConfig      `yaml:"regex" json:"regex"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Submodules SubmoduleConfig  `yaml:"submodules" json:"submodules"`
}

// PathsConfig configures extra ignore patterns beyond .mcpignore and the
// built-in default exclusion set.
type PathsConfig struct {
	ExtraExclude     []string `yaml:"extra_exclude" json:"extra_exclude"`
	DisableDefaults  bool     `yaml:"disable_defaults" json:"disable_defaults"`
	PersistDir       string   `yaml:"persist_dir" json:"persist_dir"`       // RAGEX_CHROMA_PERSIST_DIR
	CollectionName   string   `yaml:"collection_name" json:"collection_name"` // RAGEX_CHROMA_COLLECTION
	MaxFileSizeBytes int64    `yaml:"max_file_size_bytes" json:"max_file_size_bytes"`
}

// EmbeddingsConfig configures the embedder preset.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`     // static | ollama | mlx
	Model      string `yaml:"model" json:"model"`           // RAGEX_EMBEDDING_MODEL
	Dimensions int    `yaml:"dimensions" json:"dimensions"` // stamped at index creation
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	MaxSeqLen  int    `yaml:"max_seq_length" json:"max_seq_length"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// HNSWConfig configures the ANN index build/query quality knobs.
type HNSWConfig struct {
	ConstructionEF int `yaml:"construction_ef" json:"construction_ef"` // RAGEX_HNSW_CONSTRUCTION_EF
	SearchEF       int `yaml:"search_ef" json:"search_ef"`             // RAGEX_HNSW_SEARCH_EF
	M              int `yaml:"m" json:"m"`                             // RAGEX_HNSW_M
}

// RerankConfig holds the re-ranker feature weights, kept configurable
// rather than baked in as constants.
type RerankConfig struct {
	ExactNameMatch     float64 `yaml:"exact_name_match" json:"exact_name_match"`
	WholeWordMatch     float64 `yaml:"whole_word_match" json:"whole_word_match"`
	KindMatchesIntent  float64 `yaml:"kind_matches_intent" json:"kind_matches_intent"`
	HasDocstring       float64 `yaml:"has_docstring" json:"has_docstring"`
	PathMatchesIntent  float64 `yaml:"path_matches_intent" json:"path_matches_intent"`
	TestDirPenalty     float64 `yaml:"test_dir_penalty" json:"test_dir_penalty"`
	CommentPenalty     float64 `yaml:"comment_penalty" json:"comment_penalty"`
	UsageVsDefinition  float64 `yaml:"usage_vs_definition" json:"usage_vs_definition"`
}

// RegexConfig configures the literal-match backend.
type RegexConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxResults     int `yaml:"max_results" json:"max_results"`
	MaxPatternLen  int `yaml:"max_pattern_len" json:"max_pattern_len"`
}

// WatchConfig configures the debounced change queue.
type WatchConfig struct {
	DebounceWindowSeconds int `yaml:"debounce_window_seconds" json:"debounce_window_seconds"`
}

// PerformanceConfig configures worker pool sizing.
type PerformanceConfig struct {
	UseParallel bool `yaml:"use_parallel" json:"use_parallel"` // RAGEX_USE_PARALLEL
	MaxWorkers  int  `yaml:"max_workers" json:"max_workers"`   // RAGEX_MAX_WORKERS, bounded [1,16]
}

// ServerConfig configures daemon-level behavior.
type ServerConfig struct {
	LogLevel        string `yaml:"log_level" json:"log_level"` // RAGEX_LOG_LEVEL
	MaxMessageBytes int    `yaml:"max_message_bytes" json:"max_message_bytes"`
}

// SubmoduleConfig configures optional git submodule discovery.
type SubmoduleConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Recursive bool     `yaml:"recursive" json:"recursive"`
	Include   []string `yaml:"include" json:"include"`
	Exclude   []string `yaml:"exclude" json:"exclude"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			CollectionName:   "symbols",
			MaxFileSizeBytes: 5 * 1024 * 1024,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "static-768",
			Dimensions: 768,
			BatchSize:  32,
			MaxSeqLen:  512,
			OllamaHost: "http://localhost:11434",
		},
		HNSW: HNSWConfig{
			ConstructionEF: 200,
			SearchEF:       50,
			M:              16,
		},
		Rerank: RerankConfig{
			ExactNameMatch:    0.30,
			WholeWordMatch:    0.15,
			KindMatchesIntent: 0.10,
			HasDocstring:      0.05,
			PathMatchesIntent: 0.10,
			TestDirPenalty:    -0.10,
			CommentPenalty:    -0.15,
			UsageVsDefinition: 0.05,
		},
		Regex: RegexConfig{
			TimeoutSeconds: 30,
			MaxResults:     200,
			MaxPatternLen:  500,
		},
		Watch: WatchConfig{
			DebounceWindowSeconds: 60,
		},
		Performance: PerformanceConfig{
			UseParallel: true,
			MaxWorkers:  runtime.NumCPU(),
		},
		Server: ServerConfig{
			LogLevel:        "info",
			MaxMessageBytes: 64 * 1024,
		},
		Submodules: SubmoduleConfig{
			Recursive: true,
		},
	}
}

// Load builds the final Config for workspaceDir: defaults, then
// <workspaceDir>/.ragex.yaml if present, then environment overrides, then
// validation. WORKSPACE_PATH is required.
func Load(workspaceDir string) (*Config, error) {
	cfg := New()

	if err := cfg.loadYAMLIfPresent(workspaceDir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadYAMLIfPresent(dir string) error {
	for _, name := range []string{".ragex.yaml", ".ragex.yml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return ragexerr.InvalidInput(fmt.Sprintf("parse config file %s", path), err)
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func (c *Config) mergeWith(o *Config) {
	if len(o.Paths.ExtraExclude) > 0 {
		c.Paths.ExtraExclude = o.Paths.ExtraExclude
	}
	c.Paths.DisableDefaults = c.Paths.DisableDefaults || o.Paths.DisableDefaults
	if o.Paths.PersistDir != "" {
		c.Paths.PersistDir = o.Paths.PersistDir
	}
	if o.Paths.CollectionName != "" {
		c.Paths.CollectionName = o.Paths.CollectionName
	}
	if o.Paths.MaxFileSizeBytes != 0 {
		c.Paths.MaxFileSizeBytes = o.Paths.MaxFileSizeBytes
	}

	if o.Embeddings.Provider != "" {
		c.Embeddings.Provider = o.Embeddings.Provider
	}
	if o.Embeddings.Model != "" {
		c.Embeddings.Model = o.Embeddings.Model
	}
	if o.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = o.Embeddings.Dimensions
	}
	if o.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = o.Embeddings.BatchSize
	}
	if o.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = o.Embeddings.OllamaHost
	}

	if o.HNSW.ConstructionEF != 0 {
		c.HNSW.ConstructionEF = o.HNSW.ConstructionEF
	}
	if o.HNSW.SearchEF != 0 {
		c.HNSW.SearchEF = o.HNSW.SearchEF
	}
	if o.HNSW.M != 0 {
		c.HNSW.M = o.HNSW.M
	}

	mergeWeight := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	mergeWeight(&c.Rerank.ExactNameMatch, o.Rerank.ExactNameMatch)
	mergeWeight(&c.Rerank.WholeWordMatch, o.Rerank.WholeWordMatch)
	mergeWeight(&c.Rerank.KindMatchesIntent, o.Rerank.KindMatchesIntent)
	mergeWeight(&c.Rerank.HasDocstring, o.Rerank.HasDocstring)
	mergeWeight(&c.Rerank.PathMatchesIntent, o.Rerank.PathMatchesIntent)
	mergeWeight(&c.Rerank.TestDirPenalty, o.Rerank.TestDirPenalty)
	mergeWeight(&c.Rerank.CommentPenalty, o.Rerank.CommentPenalty)
	mergeWeight(&c.Rerank.UsageVsDefinition, o.Rerank.UsageVsDefinition)

	if o.Watch.DebounceWindowSeconds != 0 {
		c.Watch.DebounceWindowSeconds = o.Watch.DebounceWindowSeconds
	}

	if o.Performance.MaxWorkers != 0 {
		c.Performance.MaxWorkers = o.Performance.MaxWorkers
	}

	if o.Server.LogLevel != "" {
		c.Server.LogLevel = o.Server.LogLevel
	}

	if o.Submodules.Enabled {
		c.Submodules.Enabled = true
		c.Submodules.Recursive = o.Submodules.Recursive
	}
	if len(o.Submodules.Include) > 0 {
		c.Submodules.Include = o.Submodules.Include
	}
	if len(o.Submodules.Exclude) > 0 {
		c.Submodules.Exclude = o.Submodules.Exclude
	}
}

// applyEnvOverrides applies the RAGEX_*/WORKSPACE_PATH environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WORKSPACE_PATH"); v != "" {
		c.WorkspacePath = v
	}
	if v := os.Getenv("DOCKER_USER_ID"); v != "" {
		c.UserID = v
	}
	if v := os.Getenv("RAGEX_EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RAGEX_CHROMA_PERSIST_DIR"); v != "" {
		c.Paths.PersistDir = v
	}
	if v := os.Getenv("RAGEX_CHROMA_COLLECTION"); v != "" {
		c.Paths.CollectionName = v
	}
	if v := os.Getenv("RAGEX_HNSW_CONSTRUCTION_EF"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.HNSW.ConstructionEF = n
		}
	}
	if v := os.Getenv("RAGEX_HNSW_SEARCH_EF"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.HNSW.SearchEF = n
		}
	}
	if v := os.Getenv("RAGEX_HNSW_M"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.HNSW.M = n
		}
	}
	if v := os.Getenv("RAGEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("RAGEX_USE_PARALLEL"); v != "" {
		c.Performance.UseParallel = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("RAGEX_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Performance.MaxWorkers = n
		}
	}
}

// Validate enforces the fatal configuration_mismatch contract: a
// missing WORKSPACE_PATH must stop the daemon before it reaches Ready.
func (c *Config) Validate() error {
	if c.WorkspacePath == "" {
		return ragexerr.ConfigMismatch("WORKSPACE_PATH is required", nil).
			WithSuggestion("set WORKSPACE_PATH to the host-visible absolute path of the project root")
	}
	if !filepath.IsAbs(c.WorkspacePath) {
		return ragexerr.ConfigMismatch(fmt.Sprintf("WORKSPACE_PATH must be absolute, got %q", c.WorkspacePath), nil)
	}
	if c.HNSW.M <= 0 {
		return ragexerr.InvalidInput("hnsw.m must be positive", nil)
	}
	if c.Performance.MaxWorkers < 1 {
		c.Performance.MaxWorkers = 1
	}
	if c.Performance.MaxWorkers > 16 {
		c.Performance.MaxWorkers = 16
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return ragexerr.InvalidInput(fmt.Sprintf("server.log_level invalid: %s", c.Server.LogLevel), nil)
	}
	return nil
}

// WriteYAML persists the configuration as YAML at path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ragexerr.Internal("marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ragexerr.IOError(fmt.Sprintf("write config file %s", path), err)
	}
	return nil
}
