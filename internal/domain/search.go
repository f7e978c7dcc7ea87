package domain

import "time"

// Price facet bucket keys. Boundaries are fixed at 50 and 200 on the
// discounted final price.
const (
	PriceBucketLow  = "<50"
	PriceBucketMid  = "50-200"
	PriceBucketHigh = ">200"
)

// Sort options for search results.
const (
	SortRelevance = "relevance"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortRating    = "rating"
	SortNewest    = "newest"
)

// ValidSortOptions returns the list of valid sort options.
func ValidSortOptions() []string {
	return []string{SortRelevance, SortPriceAsc, SortPriceDesc, SortRating, SortNewest}
}

// IsValidSort checks whether the given sort string is a valid sort option.
func IsValidSort(sort string) bool {
	for _, s := range ValidSortOptions() {
		if s == sort {
			return true
		}
	}
	return false
}

// SearchDocument is the denormalized projection of a Product for the index.
// It is derived state: rebuildable at any time from the relational store and
// never read back into it. Its ID equals the product ID so re-indexing
// overwrites rather than duplicates.
type SearchDocument struct {
	ID                   int64     `json:"id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Price                float64   `json:"price"`
	DiscountPercentage   float64   `json:"discount_percentage"`
	FinalPrice           float64   `json:"final_price"`
	Rating               float64   `json:"rating"`
	Stock                int       `json:"stock"`
	Brand                string    `json:"brand,omitempty"`
	SKU                  string    `json:"sku,omitempty"`
	AvailabilityStatus   string    `json:"availability_status"`
	Thumbnail            string    `json:"thumbnail,omitempty"`
	Weight               float64   `json:"weight,omitempty"`
	Barcode              string    `json:"barcode,omitempty"`
	MinimumOrderQuantity int       `json:"minimum_order_quantity,omitempty"`
	CategoryNames        []string  `json:"category_names"`
	CategorySlugs        []string  `json:"category_slugs"`
	Tags                 []string  `json:"tags,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// SearchQuery holds all parameters for a search request. Nil pointer filters
// are absent; an empty Text degrades the query to a pure filter+sort listing.
type SearchQuery struct {
	Text        string   `json:"text"`
	Category    *string  `json:"category,omitempty"`
	Brand       *string  `json:"brand,omitempty"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
	UseWildcard bool     `json:"use_wildcard"`
	SortBy      string   `json:"sort_by"`
	Page        int      `json:"page"`
	PerPage     int      `json:"per_page"`
}

// FacetBucket is one bucket of a facet aggregation.
type FacetBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Facets holds the aggregations computed alongside a search query.
// Price buckets are fixed: <50, 50–200, >200 on the final price.
type Facets struct {
	Categories   []FacetBucket `json:"categories"`
	Brands       []FacetBucket `json:"brands"`
	PriceBuckets []FacetBucket `json:"price_buckets"`
}

// SearchResult holds the paginated search response. Degraded marks a result
// served by the relational fallback; degraded results never carry facets.
type SearchResult struct {
	Items    []SearchDocument `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PerPage  int              `json:"per_page"`
	Facets   *Facets          `json:"facets,omitempty"`
	Degraded bool             `json:"degraded"`
	TookMs   int64            `json:"took_ms"`
}

// ProjectSearchDocument builds the index document for a product.
func ProjectSearchDocument(p *Product) SearchDocument {
	names := make([]string, 0, len(p.Categories))
	slugs := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		names = append(names, c.Name)
		slugs = append(slugs, c.Slug)
	}

	return SearchDocument{
		ID:                   p.ID,
		Title:                p.Title,
		Description:          p.Description,
		Price:                p.Price,
		DiscountPercentage:   p.DiscountPercentage,
		FinalPrice:           p.FinalPrice(),
		Rating:               p.Rating,
		Stock:                p.Stock,
		Brand:                p.Brand,
		SKU:                  p.SKU,
		AvailabilityStatus:   p.AvailabilityStatus,
		Thumbnail:            p.Thumbnail,
		Weight:               p.Weight,
		Barcode:              p.Barcode,
		MinimumOrderQuantity: p.MinimumOrderQuantity,
		CategoryNames:        names,
		CategorySlugs:        slugs,
		Tags:                 p.Tags,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}
