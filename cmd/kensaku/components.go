package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/index"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/lifecycle"
	"github.com/hyperjump/kensaku/internal/rerank"
	"github.com/hyperjump/kensaku/internal/retrieval"
)

// Components holds initialized services.
type Components struct {
	Embedder    embedding.Embedder
	Reranker    rerank.Reranker
	Index       *index.Manager
	Coordinator *indexer.Coordinator
	Pipeline    *retrieval.Pipeline
	Lifecycle   *lifecycle.Controller
}

// Close releases the collection and the models.
func (c *Components) Close() {
	if c.Lifecycle != nil {
		c.Lifecycle.Wait()
	}
	if c.Index != nil {
		_ = index.Shutdown()
	}
	if c.Reranker != nil {
		_ = c.Reranker.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// initializeComponents wires the models, the collection and the pipelines. The collection is
// opened eagerly so a configuration mismatch fails at startup.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	var err error
	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}
	c.Reranker, err = rerank.New(cfg.Reranker, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Index, err = index.Init(index.Config{
		Path:       cfg.Storage.CollectionPath,
		Dimensions: c.Embedder.Dimensions(),
		Model:      embedding.Name(c.Embedder),
	}, index.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, err
	}
	if _, err := c.Index.Collection(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("open collection %s: %w", cfg.Storage.CollectionPath, err)
	}

	c.Coordinator = indexer.NewCoordinator(c.Index, c.Embedder,
		indexer.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		indexer.WithLogger(logger),
		indexer.WithExtractor(extract.NewExtractor()),
		indexer.WithDocumentTimeout(cfg.Ingest.DocumentTimeout),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
	)
	c.Pipeline = retrieval.NewPipeline(c.Index, c.Embedder, c.Reranker,
		retrieval.ConfigFrom(cfg.Retrieval), retrieval.WithLogger(logger))
	c.Lifecycle = lifecycle.NewController(c.Index, c.Coordinator, lifecycle.NewDirLister(cfg),
		lifecycle.WithLogger(logger),
		lifecycle.WithWorkers(cfg.Ingest.Workers),
		lifecycle.WithContext(ctx),
	)
	return c, nil
}
