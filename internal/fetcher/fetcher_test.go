package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/CatalogSyncGo/internal/cache"
	apperrors "github.com/utafrali/CatalogSyncGo/pkg/errors"
	"github.com/utafrali/CatalogSyncGo/pkg/httpclient"
	"github.com/utafrali/CatalogSyncGo/pkg/logger"
)

func sourceProduct(id int) map[string]any {
	return map[string]any{
		"id":                   id,
		"title":                fmt.Sprintf("Product %d", id),
		"description":          "A fine product",
		"category":             "beauty",
		"price":                9.99,
		"discountPercentage":   7.17,
		"rating":               4.5,
		"stock":                5,
		"brand":                "Essence",
		"sku":                  fmt.Sprintf("SKU-%d", id),
		"tags":                 []string{"beauty", "mascara"},
		"images":               []string{"https://cdn.example.com/1.png"},
		"thumbnail":            "https://cdn.example.com/thumb.png",
		"weight":               2,
		"warrantyInformation":  "1 month warranty",
		"shippingInformation":  "Ships in 1 month",
		"returnPolicy":         "30 days return policy",
		"minimumOrderQuantity": 24,
		"dimensions":           map[string]any{"width": 15.14, "height": 13.08, "depth": 22.99},
		"reviews": []map[string]any{
			{"rating": 5, "comment": "Great!", "reviewerName": "Kim", "reviewerEmail": "kim@example.com", "date": "2025-04-30T09:41:02.053Z"},
		},
		"meta": map[string]any{"createdAt": "2025-04-30T09:41:02Z", "updatedAt": "2025-04-30T09:41:02Z", "barcode": "9164035109868", "qrCode": "https://cdn.example.com/qr.png"},
	}
}

// sourceHandler serves DummyJSON-style pagination over the given records.
func sourceHandler(t *testing.T, records []map[string]any, calls *atomic.Int32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 30
		}

		end := skip + limit
		if end > len(records) {
			end = len(records)
		}
		page := []map[string]any{}
		if skip < len(records) {
			page = records[skip:end]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"products": page,
			"total":    len(records),
			"skip":     skip,
			"limit":    limit,
		})
	}
}

func newTestFetcher(t *testing.T, baseURL string) *Fetcher {
	t.Helper()
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)

	clientCfg := httpclient.DefaultConfig()
	clientCfg.RetryWaitMin = time.Millisecond
	clientCfg.RetryWaitMax = 5 * time.Millisecond

	return New(httpclient.New(clientCfg), c, baseURL, logger.NewWithWriter("test", "error", io.Discard))
}

func TestFetchPage_NormalizesRecords(t *testing.T) {
	srv := httptest.NewServer(sourceHandler(t, []map[string]any{sourceProduct(1)}, nil))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	batch, err := f.FetchPage(context.Background(), 0, 30)
	require.NoError(t, err)

	require.Len(t, batch.Products, 1)
	p := batch.Products[0]
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "Product 1", p.Title)
	assert.InDelta(t, 7.17, p.DiscountPercentage, 0.001)
	assert.Equal(t, "low_stock", p.AvailabilityStatus)
	require.Len(t, p.Categories, 1)
	assert.Equal(t, "beauty", p.Categories[0].Slug)
	require.Len(t, p.Reviews, 1)
	assert.Equal(t, "Kim", p.Reviews[0].ReviewerName)
	require.NotNil(t, p.Dimensions)
	assert.InDelta(t, 15.14, p.Dimensions.Width, 0.001)
	assert.InDelta(t, 2, p.Weight, 0.001)
	assert.Equal(t, "1 month warranty", p.WarrantyInformation)
	assert.Equal(t, "Ships in 1 month", p.ShippingInformation)
	assert.Equal(t, "30 days return policy", p.ReturnPolicy)
	assert.Equal(t, 24, p.MinimumOrderQuantity)
	assert.Equal(t, "9164035109868", p.Barcode)
	assert.Equal(t, "https://cdn.example.com/qr.png", p.QRCode)
	assert.Equal(t, 1, batch.Total)
	assert.False(t, batch.FromCache)
}

func TestFetchPage_SnakeCaseFields(t *testing.T) {
	rec := sourceProduct(2)
	delete(rec, "discountPercentage")
	rec["discount_percentage"] = 12.5

	srv := httptest.NewServer(sourceHandler(t, []map[string]any{rec}, nil))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	batch, err := f.FetchPage(context.Background(), 0, 30)
	require.NoError(t, err)

	require.Len(t, batch.Products, 1)
	assert.InDelta(t, 12.5, batch.Products[0].DiscountPercentage, 0.001)
}

func TestFetchPage_CacheDeterminism(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(sourceHandler(t, []map[string]any{sourceProduct(1)}, &calls))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)

	first, err := f.FetchPage(context.Background(), 0, 30)
	require.NoError(t, err)
	second, err := f.FetchPage(context.Background(), 0, 30)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "identical pages should hit the network once")
	assert.False(t, first.FromCache)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Products, second.Products)
}

func TestFetchPage_InvalidRecordIsolated(t *testing.T) {
	bad := sourceProduct(3)
	bad["title"] = ""

	srv := httptest.NewServer(sourceHandler(t, []map[string]any{sourceProduct(1), bad, sourceProduct(2)}, nil))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	batch, err := f.FetchPage(context.Background(), 0, 30)
	require.NoError(t, err)

	assert.Len(t, batch.Products, 2)
	require.Len(t, batch.Invalid, 1)
	assert.Equal(t, 1, batch.Invalid[0].Index)
}

func TestFetchPage_4xxIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	_, err := f.FetchPage(context.Background(), 0, 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTerminalFetch)
}

func TestFetchPage_5xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	_, err := f.FetchPage(context.Background(), 0, 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransientFetch)
}

func TestFetchPage_MalformedPayloadIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"unexpected": true}`)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	_, err := f.FetchPage(context.Background(), 0, 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTerminalFetch)
}

func TestPager_WalksAllPages(t *testing.T) {
	records := make([]map[string]any, 7)
	for i := range records {
		records[i] = sourceProduct(i + 1)
	}
	srv := httptest.NewServer(sourceHandler(t, records, nil))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	pager := f.NewPager(0, 3)

	var got []int64
	for {
		batch, err := pager.Next(context.Background())
		require.NoError(t, err)
		if batch == nil {
			break
		}
		for _, p := range batch.Products {
			got = append(got, p.ID)
		}
	}

	assert.Len(t, got, 7)
	assert.Equal(t, int64(1), got[0])
	assert.Equal(t, int64(7), got[6])
}

func TestPager_RestartsFromOffset(t *testing.T) {
	records := make([]map[string]any, 6)
	for i := range records {
		records[i] = sourceProduct(i + 1)
	}
	srv := httptest.NewServer(sourceHandler(t, records, nil))
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)

	// Consume the first page, then resume from the recorded offset as a
	// recovering run would.
	pager := f.NewPager(0, 3)
	_, err := pager.Next(context.Background())
	require.NoError(t, err)
	offset := pager.Offset()
	assert.Equal(t, 3, offset)

	resumed := f.NewPager(offset, 3)
	batch, err := resumed.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, int64(4), batch.Products[0].ID)
}
