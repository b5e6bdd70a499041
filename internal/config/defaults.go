package config

import "time"

// Retrieval defaults. They are empirically tuned and exposed as configuration.
const (
	DefaultKCandidates        = 10
	DefaultKFinal             = 5
	DefaultRelevanceThreshold = 0.3
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.CollectionPath == "" {
		cfg.Storage.CollectionPath = "/usr/local/var/kensaku/data/collection"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = BackendAuto
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/kensaku/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Reranker.Backend == "" {
		cfg.Reranker.Backend = BackendAuto
	}
	if cfg.Reranker.ModelPath == "" {
		cfg.Reranker.ModelPath = "/usr/local/var/kensaku/data/models/ms-marco-MiniLM-L-6-v2.onnx"
	}
	if cfg.Reranker.MaxTokens == 0 {
		cfg.Reranker.MaxTokens = 512
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1200
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 250
		if cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
			cfg.Chunking.ChunkOverlap = cfg.Chunking.ChunkSize / 5
		}
	}
	if cfg.Retrieval.KCandidates == 0 {
		cfg.Retrieval.KCandidates = DefaultKCandidates
	}
	if cfg.Retrieval.KFinal == 0 {
		cfg.Retrieval.KFinal = DefaultKFinal
	}
	if cfg.Retrieval.QueryTimeout == 0 {
		cfg.Retrieval.QueryTimeout = 30 * time.Second
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.QueueSize == 0 {
		cfg.Ingest.QueueSize = 1024
	}
	// Soft limit per document, matching the worker's 300s soft time limit.
	if cfg.Ingest.DocumentTimeout == 0 {
		cfg.Ingest.DocumentTimeout = 300 * time.Second
	}
	if cfg.Sources.InternalRoot == "" {
		cfg.Sources.InternalRoot = "/usr/local/var/kensaku/documents/internal"
	}
	if cfg.Sources.ExternalRoot == "" {
		cfg.Sources.ExternalRoot = "/usr/local/var/kensaku/documents/external"
	}
	if cfg.Sources.Extensions == nil {
		cfg.Sources.Extensions = []string{
			".txt", ".md", ".rst", ".csv", ".json", ".html",
			".pdf", ".docx", ".odt", ".xlsx", ".pptx", ".odp", ".ods",
			".png", ".jpg", ".jpeg", ".tiff",
		}
	}
	if cfg.Sources.Debounce == 0 {
		cfg.Sources.Debounce = 400 * time.Millisecond
	}
}
