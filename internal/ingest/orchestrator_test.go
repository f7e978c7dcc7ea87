package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/engine"
	"github.com/utafrali/CatalogSyncGo/internal/fetcher"
	"github.com/utafrali/CatalogSyncGo/internal/repository"
	apperrors "github.com/utafrali/CatalogSyncGo/pkg/errors"
)

// fakeSource replays a fixed page sequence, optionally failing at one page.
type fakeSource struct {
	batches []*fetcher.Batch
	errAt   int // 1-based page index that errors, 0 = never
	err     error
	next    int
	onPage  func(page int)
}

func (f *fakeSource) Next(ctx context.Context) (*fetcher.Batch, error) {
	f.next++
	if f.onPage != nil {
		f.onPage(f.next)
	}
	if f.errAt == f.next {
		return nil, f.err
	}
	if f.next > len(f.batches) {
		return nil, nil
	}
	return f.batches[f.next-1], nil
}

// memRepo persists products into a map, failing the IDs it is told to.
type memRepo struct {
	mu      sync.Mutex
	rows    map[int64]domain.Product
	failIDs map[int64]bool
}

func newMemRepo(failIDs ...int64) *memRepo {
	fail := make(map[int64]bool, len(failIDs))
	for _, id := range failIDs {
		fail[id] = true
	}
	return &memRepo{rows: make(map[int64]domain.Product), failIDs: fail}
}

func (m *memRepo) UpsertBatch(ctx context.Context, products []domain.Product) (repository.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result repository.UpsertResult
	for _, p := range products {
		if m.failIDs[p.ID] {
			result.Failed = append(result.Failed, repository.RecordFailure{
				ProductID: p.ID,
				Err:       apperrors.ErrConflict,
				Reason:    "duplicate sku",
			})
			continue
		}
		if _, exists := m.rows[p.ID]; exists {
			result.Updated++
		} else {
			result.Inserted++
		}
		m.rows[p.ID] = p
	}
	return result, nil
}

func (m *memRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return nil, errors.New("not implemented")
}

func (m *memRepo) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (m *memRepo) ListPage(ctx context.Context, offset, limit int) ([]domain.Product, error) {
	return nil, errors.New("not implemented")
}

func (m *memRepo) Ping(ctx context.Context) error { return nil }

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type stubIndexer struct {
	mu         sync.Mutex
	mappingErr error
	indexed    int
	failIDs    map[int64]bool
}

func (s *stubIndexer) EnsureMapping(ctx context.Context) error { return s.mappingErr }

func (s *stubIndexer) IndexProducts(ctx context.Context, products []domain.Product) (engine.IndexResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result engine.IndexResult
	for _, p := range products {
		if s.failIDs[p.ID] {
			result.Failed = append(result.Failed, engine.DocFailure{ID: p.ID, Reason: "rejected"})
			continue
		}
		result.Succeeded++
	}
	s.indexed += result.Succeeded
	return result, nil
}

type capturingPublisher struct {
	mu      sync.Mutex
	reports []*RunReport
}

func (c *capturingPublisher) PublishRunCompleted(ctx context.Context, report *RunReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, report)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func batchOf(skip int, ids ...int64) *fetcher.Batch {
	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		products = append(products, domain.Product{ID: id, Title: "Product", Price: 10})
	}
	return &fetcher.Batch{Products: products, Skip: skip, Limit: len(ids)}
}

func newOrchestrator(source *fakeSource, repo *memRepo, idx *stubIndexer, pub ReportPublisher, workers int) *Orchestrator {
	return New(func() BatchSource { return source }, repo, idx, pub, workers, testLogger())
}

// ─── Run outcomes ───

func TestRun_Completed(t *testing.T) {
	source := &fakeSource{batches: []*fetcher.Batch{
		batchOf(0, 1, 2, 3),
		batchOf(3, 4, 5),
	}}
	repo := newMemRepo()
	idx := &stubIndexer{}
	pub := &capturingPublisher{}
	orch := newOrchestrator(source, repo, idx, pub, 2)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 5, report.TotalFetched)
	assert.Equal(t, 5, report.TotalPersisted)
	assert.Equal(t, 5, report.TotalIndexed)
	assert.Zero(t, report.TotalFailed)
	assert.Equal(t, 5, repo.count())
	assert.Equal(t, StateCompleted, orch.State())
	require.Len(t, pub.reports, 1)
	assert.Equal(t, report.RunID, pub.reports[0].RunID)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	makeSource := func() *fakeSource {
		return &fakeSource{batches: []*fetcher.Batch{batchOf(0, 1, 2, 3)}}
	}
	repo := newMemRepo()
	idx := &stubIndexer{}

	first := newOrchestrator(makeSource(), repo, idx, nil, 1)
	report, err := first.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateCompleted, report.State)
	require.Equal(t, 3, repo.count())

	second := newOrchestrator(makeSource(), repo, idx, nil, 1)
	report, err = second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 3, repo.count(), "re-running identical data must not duplicate rows")
	assert.Equal(t, 3, report.TotalPersisted)
}

func TestRun_PartialFailureIsolated(t *testing.T) {
	ids := make([]int64, 10)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	source := &fakeSource{batches: []*fetcher.Batch{batchOf(0, ids...)}}
	repo := newMemRepo(7)
	orch := newOrchestrator(source, repo, &stubIndexer{}, nil, 1)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatePartiallyFailed, report.State)
	assert.Equal(t, 9, report.TotalPersisted)
	assert.Equal(t, 1, report.TotalFailed)
	assert.Equal(t, 9, repo.count())
	// The failed record is not indexed either.
	assert.Equal(t, 9, report.TotalIndexed)
}

func TestRun_InvalidRecordsMarkPartialFailure(t *testing.T) {
	batch := batchOf(0, 1, 2)
	batch.Invalid = []fetcher.InvalidRecord{{Index: 2, Err: errors.New("missing title")}}
	source := &fakeSource{batches: []*fetcher.Batch{batch}}
	orch := newOrchestrator(source, newMemRepo(), &stubIndexer{}, nil, 1)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatePartiallyFailed, report.State)
	assert.Equal(t, 3, report.TotalFetched)
	assert.Equal(t, 1, report.TotalInvalid)
	assert.Equal(t, 2, report.TotalPersisted)
}

// ─── Aborts ───

func TestRun_FirstPageTerminalAborts(t *testing.T) {
	source := &fakeSource{errAt: 1, err: apperrors.TerminalFetch("source returned status 403")}
	repo := newMemRepo()
	orch := newOrchestrator(source, repo, &stubIndexer{}, nil, 1)

	report, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTerminalFetch))

	assert.Equal(t, StateAborted, report.State)
	assert.Zero(t, repo.count())
}

func TestRun_MidRunTerminalKeepsCommittedBatches(t *testing.T) {
	source := &fakeSource{
		batches: []*fetcher.Batch{batchOf(0, 1, 2)},
		errAt:   2,
		err:     apperrors.TerminalFetch("malformed payload"),
	}
	repo := newMemRepo()
	orch := newOrchestrator(source, repo, &stubIndexer{}, nil, 1)

	report, err := orch.Run(context.Background())
	require.NoError(t, err, "committed batches survive a mid-run abort")

	assert.Equal(t, StateAborted, report.State)
	assert.NotEmpty(t, report.AbortReason)
	assert.Equal(t, 2, repo.count())
}

func TestRun_CancellationBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &fakeSource{
		batches: []*fetcher.Batch{batchOf(0, 1, 2), batchOf(2, 3, 4), batchOf(4, 5, 6)},
	}
	source.onPage = func(page int) {
		if page == 2 {
			cancel()
		}
	}
	repo := newMemRepo()
	orch := newOrchestrator(source, repo, &stubIndexer{}, nil, 1)

	report, err := orch.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateAborted, report.State)
	assert.Equal(t, "run cancelled", report.AbortReason)
	assert.LessOrEqual(t, repo.count(), 4, "no new batches after cancellation")
}

// ─── Indexing failures ───

func TestRun_IndexFailuresDoNotBlockCompletion(t *testing.T) {
	source := &fakeSource{batches: []*fetcher.Batch{batchOf(0, 1, 2, 3)}}
	repo := newMemRepo()
	idx := &stubIndexer{failIDs: map[int64]bool{2: true}}
	orch := newOrchestrator(source, repo, idx, nil, 1)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 3, report.TotalPersisted)
	assert.Equal(t, 2, report.TotalIndexed)
	require.Len(t, report.Batches, 1)
	require.Len(t, report.Batches[0].IndexFailed, 1)
	assert.Equal(t, int64(2), report.Batches[0].IndexFailed[0].ID)
}

func TestRun_MappingFailureSkipsIndexing(t *testing.T) {
	source := &fakeSource{batches: []*fetcher.Batch{batchOf(0, 1, 2)}}
	repo := newMemRepo()
	idx := &stubIndexer{mappingErr: errors.New("cluster unreachable")}
	orch := newOrchestrator(source, repo, idx, nil, 1)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 2, repo.count())
	assert.Zero(t, report.TotalIndexed)
	assert.NotEmpty(t, report.IndexError)
}
