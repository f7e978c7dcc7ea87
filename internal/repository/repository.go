package repository

import (
	"context"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
)

// RecordFailure reports a single record that could not be persisted. Failures
// are isolated: they never abort the batch they belong to.
type RecordFailure struct {
	ProductID int64  `json:"product_id"`
	Err       error  `json:"-"`
	Reason    string `json:"reason"`
}

// UpsertResult aggregates the outcome of one batch upsert.
type UpsertResult struct {
	Inserted int             `json:"inserted"`
	Updated  int             `json:"updated"`
	Failed   []RecordFailure `json:"failed,omitempty"`
}

// ProductFilter defines filter criteria for listing products. It doubles as
// the degraded search filter when the search backend is down.
type ProductFilter struct {
	CategorySlug *string
	Brand        *string
	Search       *string
	MinPrice     *float64
	MaxPrice     *float64
	SortBy       string
	Page         int
	PerPage      int
}

// ProductRepository defines product persistence operations. The relational
// store is the single source of truth; the search index is derived from it.
type ProductRepository interface {
	// UpsertBatch persists a batch of products idempotently. Each product
	// runs in its own transaction: categories are resolved first, then the
	// product row, then its facet sets (full replace). A failure on one
	// record is recorded in the result and does not affect the others.
	UpsertBatch(ctx context.Context, products []domain.Product) (UpsertResult, error)

	// GetByID retrieves a product with all its facets.
	GetByID(ctx context.Context, id int64) (*domain.Product, error)

	// List returns products matching the filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// ListPage walks all products in id order, for bulk re-indexing.
	ListPage(ctx context.Context, offset, limit int) ([]domain.Product, error)

	// Ping verifies store connectivity for health checks.
	Ping(ctx context.Context) error
}

// CategoryRepository defines category read operations. Categories are written
// only through product upserts.
type CategoryRepository interface {
	// List returns all categories ordered by name.
	List(ctx context.Context) ([]domain.Category, error)

	// GetBySlug retrieves a category by its URL-safe slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
}
