package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/engine"
	"github.com/utafrali/CatalogSyncGo/pkg/pagination"
)

// Field weights for relevance scoring.
const (
	weightTitle       = 3.0
	weightCategory    = 2.0
	weightBrand       = 2.0
	weightDescription = 1.0
)

// Engine is an in-process engine.SearchEngine backed by a map. It implements
// the same ranking and facet semantics as the Elasticsearch engine with
// simple token scoring, which makes it useful for local development and as a
// deterministic backend in tests.
type Engine struct {
	mu   sync.RWMutex
	docs map[int64]domain.SearchDocument
}

// New creates an empty in-memory engine.
func New() *Engine {
	return &Engine{docs: make(map[int64]domain.SearchDocument)}
}

// EnsureMapping is a no-op: the in-memory engine has no schema.
func (e *Engine) EnsureMapping(ctx context.Context) error {
	return nil
}

// Ping always succeeds.
func (e *Engine) Ping(ctx context.Context) error {
	return nil
}

// IndexBatch stores documents keyed by product id, replacing existing ones.
func (e *Engine) IndexBatch(ctx context.Context, docs []domain.SearchDocument) (engine.IndexResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, doc := range docs {
		e.docs[doc.ID] = doc
	}
	return engine.IndexResult{Succeeded: len(docs)}, nil
}

// Len returns the number of indexed documents.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

type scoredDoc struct {
	doc   domain.SearchDocument
	score float64
}

// Search filters, scores, sorts and paginates over the stored documents.
// Facets are computed over the full filtered set, not the returned page.
func (e *Engine) Search(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error) {
	start := time.Now()
	params := pagination.Clamp(pagination.Params{Page: query.Page, PerPage: query.PerPage})
	tokens := tokenize(query.Text)

	e.mu.RLock()
	matched := make([]scoredDoc, 0, len(e.docs))
	for _, doc := range e.docs {
		if !matchesFilters(doc, query) {
			continue
		}
		score := scoreDocument(doc, tokens, query.UseWildcard)
		if len(tokens) > 0 && score == 0 {
			continue
		}
		matched = append(matched, scoredDoc{doc: doc, score: score})
	}
	e.mu.RUnlock()

	sortDocs(matched, query.SortBy)
	facets := computeFacets(matched)

	total := len(matched)
	items := []domain.SearchDocument{}
	if params.Offset < total {
		end := params.Offset + params.PerPage
		if end > total {
			end = total
		}
		for _, sd := range matched[params.Offset:end] {
			items = append(items, sd.doc)
		}
	}

	return &domain.SearchResult{
		Items:   items,
		Total:   total,
		Page:    params.Page,
		PerPage: params.PerPage,
		Facets:  facets,
		TookMs:  time.Since(start).Milliseconds(),
	}, nil
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(strings.TrimSpace(text)))
}

// scoreDocument sums weighted token matches across the searchable fields.
// With wildcard enabled, substring matches count at half weight.
func scoreDocument(doc domain.SearchDocument, tokens []string, wildcard bool) float64 {
	if len(tokens) == 0 {
		return 0
	}

	title := strings.ToLower(doc.Title)
	description := strings.ToLower(doc.Description)
	brand := strings.ToLower(doc.Brand)
	categories := strings.ToLower(strings.Join(doc.CategoryNames, " "))

	var score float64
	for _, token := range tokens {
		score += fieldScore(title, token, weightTitle, wildcard)
		score += fieldScore(categories, token, weightCategory, wildcard)
		score += fieldScore(brand, token, weightBrand, wildcard)
		score += fieldScore(description, token, weightDescription, wildcard)
	}
	return score
}

func fieldScore(field, token string, weight float64, wildcard bool) float64 {
	for _, word := range strings.Fields(field) {
		if word == token {
			return weight
		}
	}
	if wildcard && strings.Contains(field, token) {
		return weight / 2
	}
	return 0
}

func matchesFilters(doc domain.SearchDocument, query *domain.SearchQuery) bool {
	if query.Category != nil && *query.Category != "" {
		found := false
		for _, slug := range doc.CategorySlugs {
			if slug == *query.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if query.Brand != nil && *query.Brand != "" && doc.Brand != *query.Brand {
		return false
	}
	if query.MinPrice != nil && doc.FinalPrice < *query.MinPrice {
		return false
	}
	if query.MaxPrice != nil && doc.FinalPrice > *query.MaxPrice {
		return false
	}
	return true
}

// sortDocs orders results. Ties always break on id ascending so pagination
// is stable.
func sortDocs(docs []scoredDoc, sortBy string) {
	less := func(a, b scoredDoc) bool {
		if a.score != b.score {
			return a.score > b.score
		}
		if a.doc.Rating != b.doc.Rating {
			return a.doc.Rating > b.doc.Rating
		}
		return a.doc.ID < b.doc.ID
	}

	switch sortBy {
	case domain.SortPriceAsc:
		less = func(a, b scoredDoc) bool {
			if a.doc.FinalPrice != b.doc.FinalPrice {
				return a.doc.FinalPrice < b.doc.FinalPrice
			}
			return a.doc.ID < b.doc.ID
		}
	case domain.SortPriceDesc:
		less = func(a, b scoredDoc) bool {
			if a.doc.FinalPrice != b.doc.FinalPrice {
				return a.doc.FinalPrice > b.doc.FinalPrice
			}
			return a.doc.ID < b.doc.ID
		}
	case domain.SortRating:
		less = func(a, b scoredDoc) bool {
			if a.doc.Rating != b.doc.Rating {
				return a.doc.Rating > b.doc.Rating
			}
			return a.doc.ID < b.doc.ID
		}
	case domain.SortNewest:
		less = func(a, b scoredDoc) bool {
			if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
				return a.doc.CreatedAt.After(b.doc.CreatedAt)
			}
			return a.doc.ID < b.doc.ID
		}
	}

	sort.SliceStable(docs, func(i, j int) bool { return less(docs[i], docs[j]) })
}

func computeFacets(docs []scoredDoc) *domain.Facets {
	categoryCounts := map[string]int{}
	brandCounts := map[string]int{}
	priceCounts := map[string]int{
		domain.PriceBucketLow:  0,
		domain.PriceBucketMid:  0,
		domain.PriceBucketHigh: 0,
	}

	for _, sd := range docs {
		for _, name := range sd.doc.CategoryNames {
			categoryCounts[name]++
		}
		if sd.doc.Brand != "" {
			brandCounts[sd.doc.Brand]++
		}
		switch {
		case sd.doc.FinalPrice < 50:
			priceCounts[domain.PriceBucketLow]++
		case sd.doc.FinalPrice <= 200:
			priceCounts[domain.PriceBucketMid]++
		default:
			priceCounts[domain.PriceBucketHigh]++
		}
	}

	return &domain.Facets{
		Categories: bucketsFromCounts(categoryCounts),
		Brands:     bucketsFromCounts(brandCounts),
		PriceBuckets: []domain.FacetBucket{
			{Key: domain.PriceBucketLow, Count: priceCounts[domain.PriceBucketLow]},
			{Key: domain.PriceBucketMid, Count: priceCounts[domain.PriceBucketMid]},
			{Key: domain.PriceBucketHigh, Count: priceCounts[domain.PriceBucketHigh]},
		},
	}
}

// bucketsFromCounts orders buckets by count descending, then key ascending,
// matching the terms aggregation order of the Elasticsearch engine.
func bucketsFromCounts(counts map[string]int) []domain.FacetBucket {
	buckets := make([]domain.FacetBucket, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, domain.FacetBucket{Key: key, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}
