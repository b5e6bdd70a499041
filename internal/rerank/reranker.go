// Package rerank scores (query, passage) pairs for the second retrieval stage.
package rerank

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// Reranker scores each passage against the query; higher is more relevant.
// The returned slice is parallel to passages.
type Reranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
	Close() error
}

// New builds the reranker selected by cfg.Backend. With "auto" the cross-encoder is used when its
// model file exists and loads, otherwise the lexical reranker.
func New(cfg config.RerankerConfig, logger *zap.Logger) (Reranker, error) {
	logger = utils.OrNop(logger)
	switch cfg.Backend {
	case config.BackendLexical:
		return NewLexicalReranker(), nil
	case config.BackendONNX:
		r, err := NewONNXReranker(cfg.ModelPath, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("load reranker model %s: %w", cfg.ModelPath, err)
		}
		return r, nil
	case config.BackendAuto, "":
		if _, err := os.Stat(cfg.ModelPath); err == nil {
			r, err := NewONNXReranker(cfg.ModelPath, cfg.MaxTokens)
			if err == nil {
				logger.Info("using cross-encoder reranker", zap.String("model", cfg.ModelPath))
				return r, nil
			}
			logger.Warn("cross-encoder unavailable, using lexical reranker", zap.String("model", cfg.ModelPath), zap.Error(err))
		} else {
			logger.Info("reranker model not found, using lexical reranker", zap.String("model", cfg.ModelPath))
		}
		return NewLexicalReranker(), nil
	default:
		return nil, fmt.Errorf("unknown reranker backend %q (supported: auto, onnx, lexical)", cfg.Backend)
	}
}
