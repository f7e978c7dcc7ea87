package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/engine"
	"github.com/utafrali/CatalogSyncGo/pkg/pagination"
)

// Engine implements engine.SearchEngine on Elasticsearch. Text relevance,
// filters and facet aggregations are computed server-side in a single query.
type Engine struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

// esSearchResponse mirrors the parts of the search response we consume.
type esSearchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]esAggregation `json:"aggregations"`
}

type esAggregation struct {
	Buckets []struct {
		Key      string `json:"key"`
		DocCount int    `json:"doc_count"`
	} `json:"buckets"`
}

// esBulkResponse mirrors the parts of the bulk response we consume.
type esBulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// New creates an Elasticsearch-backed engine. The index is not touched here;
// call EnsureMapping before the first write.
func New(client *elasticsearch.Client, index string, logger *slog.Logger) *Engine {
	if index == "" {
		index = DefaultIndexName
	}
	return &Engine{client: client, index: index, logger: logger}
}

// NewClient builds an Elasticsearch client for the given addresses.
func NewClient(addresses []string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// Ping checks cluster reachability.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping returned %s", res.Status())
	}
	return nil
}

// EnsureMapping creates the index with its mapping if it does not exist yet.
// Calling it against an existing index is a no-op.
func (e *Engine) EnsureMapping(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.index},
		e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("check index existence returned %s", res.Status())
	}

	createRes, err := e.client.Indices.Create(e.index,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(bytes.NewReader([]byte(buildIndexMapping()))))
	if err != nil {
		return fmt.Errorf("create index %s: %w", e.index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		body, _ := io.ReadAll(createRes.Body)
		return fmt.Errorf("create index %s: %s: %s", e.index, createRes.Status(), body)
	}

	e.logger.Info("search index created", slog.String("index", e.index))
	return nil
}

// IndexBatch writes documents through the bulk API. The document id equals
// the product id, so re-indexing replaces instead of duplicating. Rejected
// documents are collected into the result; only transport-level problems
// return an error.
func (e *Engine) IndexBatch(ctx context.Context, docs []domain.SearchDocument) (engine.IndexResult, error) {
	var result engine.IndexResult
	if len(docs) == 0 {
		return result, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": e.index,
				"_id":    strconv.FormatInt(doc.ID, 10),
			},
		}
		if err := enc.Encode(action); err != nil {
			return result, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return result, fmt.Errorf("encode bulk document: %w", err)
		}
	}

	res, err := e.client.Bulk(bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithContext(ctx),
		e.client.Bulk.WithRefresh("true"))
	if err != nil {
		return result, fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return result, fmt.Errorf("bulk index returned %s: %s", res.Status(), body)
	}

	var bulkRes esBulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return result, fmt.Errorf("decode bulk response: %w", err)
	}

	for _, item := range bulkRes.Items {
		for _, detail := range item {
			if detail.Error != nil {
				id, _ := strconv.ParseInt(detail.ID, 10, 64)
				result.Failed = append(result.Failed, engine.DocFailure{
					ID:     id,
					Reason: fmt.Sprintf("%s: %s", detail.Error.Type, detail.Error.Reason),
				})
			} else {
				result.Succeeded++
			}
		}
	}

	if len(result.Failed) > 0 {
		e.logger.Warn("bulk index rejected documents",
			slog.Int("failed", len(result.Failed)),
			slog.Int("succeeded", result.Succeeded))
	}
	return result, nil
}

// Search executes the query and decodes hits, total and facet aggregations
// from a single round trip.
func (e *Engine) Search(ctx context.Context, query *domain.SearchQuery) (*domain.SearchResult, error) {
	params := pagination.Clamp(pagination.Params{Page: query.Page, PerPage: query.PerPage})

	body := e.buildSearchBody(query, params)
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithTrackTotalHits(true))
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		respBody, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search returned %s: %s", res.Status(), respBody)
	}

	var esRes esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esRes); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]domain.SearchDocument, 0, len(esRes.Hits.Hits))
	for _, hit := range esRes.Hits.Hits {
		var doc domain.SearchDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("decode search hit: %w", err)
		}
		items = append(items, doc)
	}

	return &domain.SearchResult{
		Items:   items,
		Total:   esRes.Hits.Total.Value,
		Page:    params.Page,
		PerPage: params.PerPage,
		Facets:  decodeFacets(esRes.Aggregations),
		TookMs:  esRes.Took,
	}, nil
}

// buildSearchBody assembles the full request: query, sort, pagination and
// facet aggregations.
func (e *Engine) buildSearchBody(query *domain.SearchQuery, params pagination.Params) map[string]interface{} {
	return map[string]interface{}{
		"query": buildQueryClause(query),
		"sort":  buildSort(query.SortBy),
		"from":  params.Offset,
		"size":  params.PerPage,
		"aggs": map[string]interface{}{
			"categories": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "category_names.keyword",
					"size":  20,
				},
			},
			"brands": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "brand.keyword",
					"size":  20,
				},
			},
			"price_buckets": map[string]interface{}{
				"range": map[string]interface{}{
					"field": "final_price",
					"ranges": []map[string]interface{}{
						{"key": domain.PriceBucketLow, "to": 50},
						{"key": domain.PriceBucketMid, "from": 50, "to": 200},
						{"key": domain.PriceBucketHigh, "from": 200},
					},
				},
			},
		},
	}
}

func buildQueryClause(query *domain.SearchQuery) map[string]interface{} {
	boolQuery := map[string]interface{}{}

	if query.Text != "" {
		match := map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query.Text,
				"fields": []string{"title^3", "category_names^2", "brand^2", "description"},
			},
		}
		if query.UseWildcard {
			boolQuery["should"] = []map[string]interface{}{
				match,
				{
					"wildcard": map[string]interface{}{
						"title.keyword": map[string]interface{}{
							"value":            "*" + query.Text + "*",
							"case_insensitive": true,
							"boost":            0.5,
						},
					},
				},
			}
			boolQuery["minimum_should_match"] = 1
		} else {
			boolQuery["must"] = []map[string]interface{}{match}
		}
	} else {
		boolQuery["must"] = []map[string]interface{}{{"match_all": map[string]interface{}{}}}
	}

	if filters := buildFilters(query); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]interface{}{"bool": boolQuery}
}

func buildFilters(query *domain.SearchQuery) []map[string]interface{} {
	var filters []map[string]interface{}

	if query.Category != nil && *query.Category != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"category_slugs": *query.Category},
		})
	}
	if query.Brand != nil && *query.Brand != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"brand.keyword": *query.Brand},
		})
	}
	if query.MinPrice != nil || query.MaxPrice != nil {
		priceRange := map[string]interface{}{}
		if query.MinPrice != nil {
			priceRange["gte"] = *query.MinPrice
		}
		if query.MaxPrice != nil {
			priceRange["lte"] = *query.MaxPrice
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"final_price": priceRange},
		})
	}

	return filters
}

// buildSort maps a sort option to an Elasticsearch sort clause. Every clause
// ends with "id asc" so pagination is stable across identical scores.
func buildSort(sortBy string) []map[string]interface{} {
	switch sortBy {
	case domain.SortPriceAsc:
		return []map[string]interface{}{
			{"final_price": map[string]interface{}{"order": "asc"}},
			{"id": map[string]interface{}{"order": "asc"}},
		}
	case domain.SortPriceDesc:
		return []map[string]interface{}{
			{"final_price": map[string]interface{}{"order": "desc"}},
			{"id": map[string]interface{}{"order": "asc"}},
		}
	case domain.SortRating:
		return []map[string]interface{}{
			{"rating": map[string]interface{}{"order": "desc"}},
			{"id": map[string]interface{}{"order": "asc"}},
		}
	case domain.SortNewest:
		return []map[string]interface{}{
			{"created_at": map[string]interface{}{"order": "desc"}},
			{"id": map[string]interface{}{"order": "asc"}},
		}
	default:
		return []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"rating": map[string]interface{}{"order": "desc"}},
			{"id": map[string]interface{}{"order": "asc"}},
		}
	}
}

func decodeFacets(aggs map[string]esAggregation) *domain.Facets {
	facets := &domain.Facets{
		Categories:   []domain.FacetBucket{},
		Brands:       []domain.FacetBucket{},
		PriceBuckets: []domain.FacetBucket{},
	}
	for _, b := range aggs["categories"].Buckets {
		facets.Categories = append(facets.Categories, domain.FacetBucket{Key: b.Key, Count: b.DocCount})
	}
	for _, b := range aggs["brands"].Buckets {
		facets.Brands = append(facets.Brands, domain.FacetBucket{Key: b.Key, Count: b.DocCount})
	}
	for _, b := range aggs["price_buckets"].Buckets {
		facets.PriceBuckets = append(facets.PriceBuckets, domain.FacetBucket{Key: b.Key, Count: b.DocCount})
	}
	return facets
}

// DeleteIndex drops the index. Used by reindex-from-scratch; a missing index
// is not an error.
func (e *Engine) DeleteIndex(ctx context.Context) error {
	res, err := e.client.Indices.Delete([]string{e.index},
		e.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete index %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete index %s returned %s", e.index, res.Status())
	}
	return nil
}
