package config

import (
	"fmt"
	"strconv"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with KENSAKU_* variables. Call after Load (paths must be absolute).
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("KENSAKU_HOST", &cfg.Server.Host)
	str("KENSAKU_COLLECTION_PATH", &cfg.Storage.CollectionPath)
	str("KENSAKU_INTERNAL_ROOT", &cfg.Sources.InternalRoot)
	str("KENSAKU_EXTERNAL_ROOT", &cfg.Sources.ExternalRoot)
	str("KENSAKU_EMBEDDING_BACKEND", &cfg.Embedding.Backend)
	str("KENSAKU_EMBEDDING_MODEL", &cfg.Embedding.ModelPath)
	str("KENSAKU_RERANKER_BACKEND", &cfg.Reranker.Backend)
	str("KENSAKU_RERANKER_MODEL", &cfg.Reranker.ModelPath)

	ints := []struct {
		key string
		dst *int
	}{
		{"KENSAKU_PORT", &cfg.Server.Port},
		{"KENSAKU_K_CANDIDATES", &cfg.Retrieval.KCandidates},
		{"KENSAKU_K_FINAL", &cfg.Retrieval.KFinal},
		{"KENSAKU_WORKERS", &cfg.Ingest.Workers},
	}
	for _, it := range ints {
		v, ok := lookup(it.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", it.key, err)
		}
		*it.dst = n
	}

	if v, ok := lookup("KENSAKU_RELEVANCE_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("KENSAKU_RELEVANCE_THRESHOLD: %w", err)
		}
		cfg.Retrieval.RelevanceThreshold = &f
	}
	if v, ok := lookup("KENSAKU_QUERY_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KENSAKU_QUERY_TIMEOUT: %w", err)
		}
		cfg.Retrieval.QueryTimeout = d
	}
	if v, ok := lookup("KENSAKU_DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("KENSAKU_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	return nil
}
