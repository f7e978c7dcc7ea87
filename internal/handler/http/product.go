package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/repository"
	"github.com/utafrali/CatalogSyncGo/pkg/httputil"
	"github.com/utafrali/CatalogSyncGo/pkg/pagination"
)

// ProductHandler handles HTTP requests for products and categories.
type ProductHandler struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	logger     *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(products repository.ProductRepository, categories repository.CategoryRepository, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		products:   products,
		categories: categories,
		logger:     logger,
	}
}

// GetByID handles GET /api/v1/products/{id}
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := productFilterFromQuery(w, r)
	if !ok {
		return
	}

	products, total, err := h.products.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK,
		httputil.NewPaginatedResponse(products, total, filter.Page, filter.PerPage))
}

// ListCategories handles GET /api/v1/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: categories})
}

// ListByCategory handles GET /api/v1/categories/{slug}/products
func (h *ProductHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	category, err := h.categories.GetBySlug(r.Context(), slug)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	filter, ok := productFilterFromQuery(w, r)
	if !ok {
		return
	}
	filter.CategorySlug = &category.Slug

	products, total, err := h.products.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK,
		httputil.NewPaginatedResponse(products, total, filter.Page, filter.PerPage))
}

// productFilterFromQuery parses the shared listing parameters. It writes a
// 400 response and returns ok=false on invalid input.
func productFilterFromQuery(w http.ResponseWriter, r *http.Request) (repository.ProductFilter, bool) {
	params := pagination.FromRequest(r)
	filter := repository.ProductFilter{Page: params.Page, PerPage: params.PerPage}

	if v := r.URL.Query().Get("category"); v != "" {
		filter.CategorySlug = &v
	}
	if v := r.URL.Query().Get("brand"); v != "" {
		filter.Brand = &v
	}
	if v := r.URL.Query().Get("search"); v != "" {
		filter.Search = &v
	}

	if sortBy := r.URL.Query().Get("sort"); sortBy != "" {
		if !domain.IsValidSort(sortBy) {
			writeInvalidParam(w, "sort must be one of: relevance, price_asc, price_desc, rating, newest")
			return filter, false
		}
		filter.SortBy = sortBy
	}

	var ok bool
	if filter.MinPrice, ok = priceParam(w, r, "min_price"); !ok {
		return filter, false
	}
	if filter.MaxPrice, ok = priceParam(w, r, "max_price"); !ok {
		return filter, false
	}
	return filter, true
}

// priceParam parses an optional non-negative float query parameter.
func priceParam(w http.ResponseWriter, r *http.Request, name string) (*float64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}

	price, err := strconv.ParseFloat(v, 64)
	if err != nil {
		writeInvalidParam(w, name+" must be a valid number")
		return nil, false
	}
	if price < 0 {
		writeInvalidParam(w, name+" must not be negative")
		return nil, false
	}
	return &price, true
}

func writeInvalidParam(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: message},
	})
}
