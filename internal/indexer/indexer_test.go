package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/engine"
	"github.com/utafrali/CatalogSyncGo/internal/repository"
)

// recordingEngine captures bulk calls and simulates per-document failures.
type recordingEngine struct {
	chunks     [][]domain.SearchDocument
	failIDs    map[int64]string
	chunkErrAt int // 1-based chunk index that fails entirely, 0 = never
	ensured    int
}

func (r *recordingEngine) EnsureMapping(ctx context.Context) error {
	r.ensured++
	return nil
}

func (r *recordingEngine) Ping(ctx context.Context) error { return nil }

func (r *recordingEngine) IndexBatch(ctx context.Context, docs []domain.SearchDocument) (engine.IndexResult, error) {
	r.chunks = append(r.chunks, docs)
	if r.chunkErrAt == len(r.chunks) {
		return engine.IndexResult{}, errors.New("bulk transport failure")
	}

	var result engine.IndexResult
	for _, doc := range docs {
		if reason, ok := r.failIDs[doc.ID]; ok {
			result.Failed = append(result.Failed, engine.DocFailure{ID: doc.ID, Reason: reason})
		} else {
			result.Succeeded++
		}
	}
	return result, nil
}

func (r *recordingEngine) Search(ctx context.Context, q *domain.SearchQuery) (*domain.SearchResult, error) {
	return nil, errors.New("not implemented")
}

type pageRepo struct {
	products []domain.Product
}

func (p *pageRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return nil, errors.New("not implemented")
}

func (p *pageRepo) UpsertBatch(ctx context.Context, products []domain.Product) (repository.UpsertResult, error) {
	return repository.UpsertResult{}, errors.New("not implemented")
}

func (p *pageRepo) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (p *pageRepo) ListPage(ctx context.Context, offset, limit int) ([]domain.Product, error) {
	if offset >= len(p.products) {
		return nil, nil
	}
	end := offset + limit
	if end > len(p.products) {
		end = len(p.products)
	}
	return p.products[offset:end], nil
}

func (p *pageRepo) Ping(ctx context.Context) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func makeProducts(n int) []domain.Product {
	products := make([]domain.Product, n)
	for i := range products {
		products[i] = domain.Product{ID: int64(i + 1), Title: "Product", Price: 10}
	}
	return products
}

func TestIndexProducts_ChunksBulkWrites(t *testing.T) {
	eng := &recordingEngine{}
	idx := New(eng, 500, testLogger())

	result, err := idx.IndexProducts(context.Background(), makeProducts(1150))
	require.NoError(t, err)

	assert.Equal(t, 1150, result.Succeeded)
	require.Len(t, eng.chunks, 3)
	assert.Len(t, eng.chunks[0], 500)
	assert.Len(t, eng.chunks[1], 500)
	assert.Len(t, eng.chunks[2], 150)
}

func TestIndexProducts_CollectsDocFailures(t *testing.T) {
	eng := &recordingEngine{failIDs: map[int64]string{3: "mapper_parsing_exception"}}
	idx := New(eng, 500, testLogger())

	result, err := idx.IndexProducts(context.Background(), makeProducts(10))
	require.NoError(t, err)

	assert.Equal(t, 9, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, int64(3), result.Failed[0].ID)
	assert.Equal(t, "mapper_parsing_exception", result.Failed[0].Reason)
}

func TestIndexProducts_ChunkErrorKeepsPriorResults(t *testing.T) {
	eng := &recordingEngine{chunkErrAt: 2}
	idx := New(eng, 5, testLogger())

	result, err := idx.IndexProducts(context.Background(), makeProducts(12))
	require.Error(t, err)

	// The first chunk landed before the second failed.
	assert.Equal(t, 5, result.Succeeded)
	assert.Len(t, eng.chunks, 2)
}

func TestIndexProducts_ProjectsDocuments(t *testing.T) {
	eng := &recordingEngine{}
	idx := New(eng, 500, testLogger())

	products := []domain.Product{{
		ID: 7, Title: "Essence Mascara", Price: 9.99, DiscountPercentage: 7.17,
		Categories: []domain.Category{{Name: "Beauty", Slug: "beauty"}},
	}}
	_, err := idx.IndexProducts(context.Background(), products)
	require.NoError(t, err)

	require.Len(t, eng.chunks, 1)
	doc := eng.chunks[0][0]
	assert.Equal(t, int64(7), doc.ID)
	assert.InDelta(t, 9.27, doc.FinalPrice, 0.001)
	assert.Equal(t, []string{"beauty"}, doc.CategorySlugs)
}

func TestReindex_WalksStoreInPages(t *testing.T) {
	eng := &recordingEngine{}
	idx := New(eng, 20, testLogger())
	repo := &pageRepo{products: makeProducts(45)}

	result, err := idx.Reindex(context.Background(), repo)
	require.NoError(t, err)

	assert.Equal(t, 1, eng.ensured)
	assert.Equal(t, 45, result.Succeeded)
	require.Len(t, eng.chunks, 3)
	assert.Len(t, eng.chunks[2], 5)
}
