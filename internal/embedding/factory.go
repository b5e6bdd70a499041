package embedding

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// Name returns the model identity of e, recorded with the collection so a different model
// cannot silently read vectors written by another.
func Name(e Embedder) string {
	if n, ok := e.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", e)
}

// New builds the embedder selected by cfg.Backend. With "auto" the ONNX model is used when its
// file exists and loads, otherwise the hash embedder.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	switch cfg.Backend {
	case config.BackendHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	case config.BackendONNX:
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("load embedding model %s: %w", cfg.ModelPath, err)
		}
		return e, nil
	case config.BackendAuto, "":
		if _, err := os.Stat(cfg.ModelPath); err == nil {
			e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
			if err == nil {
				logger.Info("using ONNX embedder", zap.String("model", cfg.ModelPath))
				return e, nil
			}
			logger.Warn("ONNX embedder unavailable, using hash embedder", zap.String("model", cfg.ModelPath), zap.Error(err))
		} else {
			logger.Info("embedding model not found, using hash embedder", zap.String("model", cfg.ModelPath))
		}
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q (supported: auto, onnx, hash)", cfg.Backend)
	}
}
