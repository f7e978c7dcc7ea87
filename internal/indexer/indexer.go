package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/engine"
	"github.com/utafrali/CatalogSyncGo/internal/repository"
)

// DefaultChunkSize is the number of documents per bulk request.
const DefaultChunkSize = 500

// Indexer projects products into search documents and writes them to the
// search engine in bounded bulk chunks. Per-document failures are collected,
// never escalated: indexing problems degrade search freshness, not the
// relational store.
type Indexer struct {
	engine    engine.SearchEngine
	chunkSize int
	logger    *slog.Logger
}

// New creates an indexer. A chunkSize of zero or less falls back to the
// default.
func New(searchEngine engine.SearchEngine, chunkSize int, logger *slog.Logger) *Indexer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Indexer{engine: searchEngine, chunkSize: chunkSize, logger: logger}
}

// EnsureMapping prepares the index. Must succeed before the first bulk write.
func (i *Indexer) EnsureMapping(ctx context.Context) error {
	if err := i.engine.EnsureMapping(ctx); err != nil {
		return fmt.Errorf("ensure index mapping: %w", err)
	}
	return nil
}

// IndexProducts projects and bulk-writes the given products. The returned
// result aggregates every chunk; an error means a whole chunk could not be
// delivered, and the result still covers the chunks before it.
func (i *Indexer) IndexProducts(ctx context.Context, products []domain.Product) (engine.IndexResult, error) {
	var result engine.IndexResult

	docs := make([]domain.SearchDocument, 0, len(products))
	for idx := range products {
		docs = append(docs, domain.ProjectSearchDocument(&products[idx]))
	}

	for start := 0; start < len(docs); start += i.chunkSize {
		end := start + i.chunkSize
		if end > len(docs) {
			end = len(docs)
		}

		chunkResult, err := i.engine.IndexBatch(ctx, docs[start:end])
		result.Merge(chunkResult)
		if err != nil {
			return result, fmt.Errorf("index chunk at offset %d: %w", start, err)
		}
	}

	if len(result.Failed) > 0 {
		i.logger.Warn("some documents failed to index",
			slog.Int("succeeded", result.Succeeded),
			slog.Int("failed", len(result.Failed)))
	}
	return result, nil
}

// Reindex rebuilds the whole index from the relational store, walking it in
// chunk-sized pages. The index document id equals the product id, so a
// rebuild overwrites in place without clearing first.
func (i *Indexer) Reindex(ctx context.Context, repo repository.ProductRepository) (engine.IndexResult, error) {
	var result engine.IndexResult

	if err := i.EnsureMapping(ctx); err != nil {
		return result, err
	}

	offset := 0
	for {
		products, err := repo.ListPage(ctx, offset, i.chunkSize)
		if err != nil {
			return result, fmt.Errorf("load products at offset %d: %w", offset, err)
		}
		if len(products) == 0 {
			break
		}

		pageResult, err := i.IndexProducts(ctx, products)
		result.Merge(pageResult)
		if err != nil {
			return result, err
		}
		offset += len(products)
	}

	i.logger.Info("reindex finished",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", len(result.Failed)))
	return result, nil
}
