package engine

import (
	"context"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
)

// DocFailure reports a single document that a bulk write rejected.
type DocFailure struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// IndexResult aggregates the outcome of one bulk index call. Per-document
// failures never fail the chunk they were part of.
type IndexResult struct {
	Succeeded int          `json:"succeeded"`
	Failed    []DocFailure `json:"failed,omitempty"`
}

// Merge folds another result into this one.
func (r *IndexResult) Merge(other IndexResult) {
	r.Succeeded += other.Succeeded
	r.Failed = append(r.Failed, other.Failed...)
}

// SearchEngine is the capability interface for the search backend. The
// indexer and query engine depend only on this interface, so the backend can
// be swapped for the in-memory implementation in tests or replaced outright.
type SearchEngine interface {
	// EnsureMapping idempotently creates or verifies the index mapping.
	EnsureMapping(ctx context.Context) error

	// IndexBatch writes a batch of documents with create-or-replace-by-id
	// semantics. Individual document failures are reported in the result,
	// not returned as an error.
	IndexBatch(ctx context.Context, docs []domain.SearchDocument) (IndexResult, error)

	// Search executes a text+filter+facet query in a single round trip.
	Search(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error)

	// Ping checks backend reachability for health checks.
	Ping(ctx context.Context) error
}
