package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/query"
	"github.com/utafrali/CatalogSyncGo/pkg/httputil"
	"github.com/utafrali/CatalogSyncGo/pkg/pagination"
)

// SearchHandler handles HTTP requests for catalog search.
type SearchHandler struct {
	service *query.Service
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *query.Service, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{service: svc, logger: logger}
}

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	sortBy := r.URL.Query().Get("sort")
	if sortBy != "" && !domain.IsValidSort(sortBy) {
		writeInvalidParam(w, "sort must be one of: relevance, price_asc, price_desc, rating, newest")
		return
	}

	searchQuery := &domain.SearchQuery{
		Text:        strings.TrimSpace(r.URL.Query().Get("q")),
		UseWildcard: r.URL.Query().Get("wildcard") == "true",
		SortBy:      sortBy,
		Page:        params.Page,
		PerPage:     params.PerPage,
	}

	if v := r.URL.Query().Get("category"); v != "" {
		searchQuery.Category = &v
	}
	if v := r.URL.Query().Get("brand"); v != "" {
		searchQuery.Brand = &v
	}

	var ok bool
	if searchQuery.MinPrice, ok = priceParam(w, r, "min_price"); !ok {
		return
	}
	if searchQuery.MaxPrice, ok = priceParam(w, r, "max_price"); !ok {
		return
	}

	result, err := h.service.Search(r.Context(), searchQuery)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
