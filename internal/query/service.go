package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/engine"
	"github.com/utafrali/CatalogSyncGo/internal/repository"
	apperrors "github.com/utafrali/CatalogSyncGo/pkg/errors"
	"github.com/utafrali/CatalogSyncGo/pkg/pagination"
)

// DefaultTimeout bounds a single search round trip, fallback included.
const DefaultTimeout = 2 * time.Second

// Service answers catalog queries. The search engine is the primary path; a
// circuit breaker shields it, and when it is open or the engine fails the
// service degrades to a relational listing that keeps filters and pagination
// but drops relevance ranking and facets.
type Service struct {
	engine   engine.SearchEngine
	products repository.ProductRepository
	breaker  *gobreaker.CircuitBreaker[*domain.SearchResult]
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a query service with the given timeout. A non-positive timeout
// falls back to the default.
func New(searchEngine engine.SearchEngine, products repository.ProductRepository, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[*domain.SearchResult](gobreaker.Settings{
		Name:        "search-engine",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("search breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Service{
		engine:   searchEngine,
		products: products,
		breaker:  breaker,
		timeout:  timeout,
		logger:   logger,
	}
}

// Search runs the query against the engine and falls back to the relational
// store when the engine is unavailable. Degraded results carry no facets and
// are marked so callers can tell.
func (s *Service) Search(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error) {
	start := time.Now()
	defer func() { searchDuration.Observe(time.Since(start).Seconds()) }()

	// Work on a copy so clamping never leaks back into the caller's query.
	q := *query
	params := pagination.Clamp(pagination.Params{Page: q.Page, PerPage: q.PerPage})
	q.Page = params.Page
	q.PerPage = params.PerPage
	if q.SortBy != "" && !domain.IsValidSort(q.SortBy) {
		q.SortBy = domain.SortRelevance
	}

	engineCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.breaker.Execute(func() (*domain.SearchResult, error) {
		return s.engine.Search(engineCtx, &q)
	})
	if err == nil {
		searchesTotal.WithLabelValues("engine").Inc()
		return result, nil
	}

	s.logger.Warn("search engine unavailable, serving degraded result",
		slog.String("error", err.Error()))

	// The engine may have consumed its whole deadline; the fallback gets a
	// fresh one off the request context.
	fbCtx, fbCancel := context.WithTimeout(ctx, s.timeout)
	defer fbCancel()

	fallback, fbErr := s.fallbackSearch(fbCtx, &q)
	if fbErr != nil {
		searchesTotal.WithLabelValues("failed").Inc()
		return nil, apperrors.SearchUnavailable(err)
	}

	searchesTotal.WithLabelValues("fallback").Inc()
	return fallback, nil
}

// fallbackSearch approximates the query with a relational listing. Text
// becomes a substring match, relevance sorting degrades to rating order, and
// no facets are computed.
func (s *Service) fallbackSearch(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error) {
	start := time.Now()

	filter := repository.ProductFilter{
		CategorySlug: query.Category,
		Brand:        query.Brand,
		MinPrice:     query.MinPrice,
		MaxPrice:     query.MaxPrice,
		SortBy:       query.SortBy,
		Page:         query.Page,
		PerPage:      query.PerPage,
	}
	if query.Text != "" {
		filter.Search = &query.Text
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]domain.SearchDocument, 0, len(products))
	for i := range products {
		items = append(items, domain.ProjectSearchDocument(&products[i]))
	}

	return &domain.SearchResult{
		Items:    items,
		Total:    total,
		Page:     query.Page,
		PerPage:  query.PerPage,
		Degraded: true,
		TookMs:   time.Since(start).Milliseconds(),
	}, nil
}
