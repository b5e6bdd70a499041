// Package config provides configuration loading and structs for the kensaku server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Sources   SourcesConfig   `yaml:"sources"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the collection directory.
type StorageConfig struct {
	CollectionPath string `yaml:"collection_path"`
}

// Embedding and reranker backends.
const (
	BackendAuto    = "auto"
	BackendONNX    = "onnx"
	BackendHash    = "hash"
	BackendLexical = "lexical"
)

// EmbeddingConfig holds bi-encoder settings.
// Backend "auto" uses ONNX when the model file exists and the hash embedder otherwise.
type EmbeddingConfig struct {
	Backend    string `yaml:"backend"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BatchSize  int    `yaml:"batch_size"`
}

// RerankerConfig holds cross-encoder settings.
type RerankerConfig struct {
	Backend   string `yaml:"backend"`
	ModelPath string `yaml:"model_path"`
	MaxTokens int    `yaml:"max_tokens"`
}

// ChunkingConfig holds splitter settings, measured in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds the retrieval pipeline constants.
type RetrievalConfig struct {
	KCandidates int `yaml:"k_candidates"`
	KFinal      int `yaml:"k_final"`
	// RelevanceThreshold is a similarity cutoff in [0,1]. Nil means the default; 0 disables filtering.
	RelevanceThreshold *float64      `yaml:"relevance_threshold"`
	QueryTimeout       time.Duration `yaml:"query_timeout"`
}

// Threshold returns the configured relevance threshold or the default.
func (r *RetrievalConfig) Threshold() float64 {
	if r.RelevanceThreshold != nil {
		return *r.RelevanceThreshold
	}
	return DefaultRelevanceThreshold
}

// IngestConfig holds worker pool and per-document limits.
type IngestConfig struct {
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	DocumentTimeout time.Duration `yaml:"document_timeout"`
	SyncOnStart     *bool         `yaml:"sync_on_start"`
}

// SyncOnStartOrDefault returns whether the server ingests existing files at startup; defaults to true.
func (i *IngestConfig) SyncOnStartOrDefault() bool {
	if i.SyncOnStart != nil {
		return *i.SyncOnStart
	}
	return true
}

// SourcesConfig holds the category roots and the watched extensions.
type SourcesConfig struct {
	InternalRoot string        `yaml:"internal_root"`
	ExternalRoot string        `yaml:"external_root"`
	Extensions   []string      `yaml:"extensions"`
	Debounce     time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config with every default applied, for running without a config file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	if wd, err := os.Getwd(); err == nil {
		cfg.expandPaths(wd)
	}
	return &cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.CollectionPath = expandPath(c.Storage.CollectionPath, configDir)
	c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	c.Reranker.ModelPath = expandPath(c.Reranker.ModelPath, configDir)
	c.Sources.InternalRoot = expandPath(c.Sources.InternalRoot, configDir)
	c.Sources.ExternalRoot = expandPath(c.Sources.ExternalRoot, configDir)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Retrieval.KFinal > c.Retrieval.KCandidates {
		return fmt.Errorf("retrieval.k_final (%d) cannot exceed retrieval.k_candidates (%d)", c.Retrieval.KFinal, c.Retrieval.KCandidates)
	}
	if t := c.Retrieval.Threshold(); t < 0 || t > 1 {
		return fmt.Errorf("retrieval.relevance_threshold must be in [0,1], got %v", t)
	}
	if c.Sources.InternalRoot != "" && c.Sources.InternalRoot == c.Sources.ExternalRoot {
		return fmt.Errorf("sources.internal_root and sources.external_root must differ")
	}
	return nil
}

// Roots returns the configured category roots keyed by category name.
func (c *Config) Roots() map[string]string {
	roots := make(map[string]string, 2)
	if c.Sources.InternalRoot != "" {
		roots["internal"] = c.Sources.InternalRoot
	}
	if c.Sources.ExternalRoot != "" {
		roots["external"] = c.Sources.ExternalRoot
	}
	return roots
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
