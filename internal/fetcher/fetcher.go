package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/utafrali/CatalogSyncGo/internal/cache"
	"github.com/utafrali/CatalogSyncGo/internal/domain"
	apperrors "github.com/utafrali/CatalogSyncGo/pkg/errors"
	"github.com/utafrali/CatalogSyncGo/pkg/httpclient"
	"github.com/utafrali/CatalogSyncGo/pkg/logger"
)

// Batch is one normalized page of source records. Invalid records are kept
// aside rather than dropped so the run report can account for every record
// the source returned.
type Batch struct {
	Products  []domain.Product
	Invalid   []InvalidRecord
	Total     int
	Skip      int
	Limit     int
	FromCache bool
}

// InvalidRecord is a source record that failed normalization or validation.
type InvalidRecord struct {
	Index int
	Err   error
}

// sourceEnvelope is the paginated response shape of the catalog source.
type sourceEnvelope struct {
	Products []json.RawMessage `json:"products"`
	Total    int               `json:"total"`
	Skip     int               `json:"skip"`
	Limit    int               `json:"limit"`
}

// Fetcher retrieves paginated product data from the external catalog source,
// consulting the response cache before touching the network. Retry of
// transient failures is delegated to the HTTP client; the fetcher only
// classifies the outcome.
type Fetcher struct {
	client  *httpclient.Client
	cache   *cache.ResponseCache
	baseURL string
	logger  *slog.Logger
}

// New creates a Fetcher bound to the given source base URL.
func New(client *httpclient.Client, responseCache *cache.ResponseCache, baseURL string, l *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		cache:   responseCache,
		baseURL: baseURL,
		logger:  l,
	}
}

// FetchPage retrieves one page of products starting at the given offset. On a
// cache hit no network call is made. On a miss the raw payload is stored in
// the cache before the page is returned, so a retried run replays from disk.
func (f *Fetcher) FetchPage(ctx context.Context, skip, limit int) (*Batch, error) {
	endpoint := f.baseURL + "/products"
	params := url.Values{
		"skip":  {strconv.Itoa(skip)},
		"limit": {strconv.Itoa(limit)},
	}
	key := cache.Key(endpoint, params)

	if entry, ok := f.cache.Get(key); ok {
		batch, err := f.decode(entry.Payload, skip, limit)
		if err == nil {
			batch.FromCache = true
			logger.WithContext(ctx, f.logger).DebugContext(ctx, "source page served from cache",
				slog.Int("skip", skip),
				slog.Int("limit", limit),
			)
			return batch, nil
		}
		// A corrupt cached payload falls through to a fresh fetch.
		logger.WithContext(ctx, f.logger).WarnContext(ctx, "discarding corrupt cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	payload, err := f.fetch(ctx, endpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	batch, err := f.decode(payload, skip, limit)
	if err != nil {
		return nil, apperrors.TerminalFetch(fmt.Sprintf("malformed source payload: %v", err))
	}

	if err := f.cache.Put(key, payload); err != nil {
		// Cache writes are best effort; the fetched page is still good.
		logger.WithContext(ctx, f.logger).WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	return batch, nil
}

// fetch issues the network call and classifies the outcome: network errors
// and exhausted 5xx retries are transient, 4xx responses are terminal.
func (f *Fetcher) fetch(ctx context.Context, fullURL string) ([]byte, error) {
	resp, err := f.client.Get(ctx, fullURL)
	if err != nil {
		return nil, apperrors.TransientFetch(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, apperrors.TerminalFetch(fmt.Sprintf("source returned %d for %s", resp.StatusCode, fullURL))
	default:
		return nil, apperrors.TransientFetch(fmt.Errorf("source returned %d for %s", resp.StatusCode, fullURL))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.TransientFetch(fmt.Errorf("read source response: %w", err))
	}
	return payload, nil
}

// decode parses the source envelope and normalizes each record. Individual
// record failures do not fail the page; they are reported in Batch.Invalid.
func (f *Fetcher) decode(payload []byte, skip, limit int) (*Batch, error) {
	var env sourceEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Products == nil {
		return nil, fmt.Errorf("envelope missing products field")
	}

	batch := &Batch{
		Total: env.Total,
		Skip:  skip,
		Limit: limit,
	}

	for i, raw := range env.Products {
		p, err := normalizeRecord(raw)
		if err != nil {
			batch.Invalid = append(batch.Invalid, InvalidRecord{Index: skip + i, Err: err})
			continue
		}
		batch.Products = append(batch.Products, p)
	}

	return batch, nil
}

// Pager walks the source's pages lazily from a given offset. It is
// restartable: constructing a new Pager at the offset of the last completed
// page resumes a run without re-fetching finished pages.
type Pager struct {
	fetcher *Fetcher
	skip    int
	limit   int
	total   int
	started bool
}

// NewPager creates a Pager starting at the given offset with the given page size.
func (f *Fetcher) NewPager(startOffset, pageSize int) *Pager {
	return &Pager{fetcher: f, skip: startOffset, limit: pageSize}
}

// Next fetches the next page, or returns (nil, nil) when the source is
// exhausted. The total reported by the first page bounds the walk.
func (p *Pager) Next(ctx context.Context) (*Batch, error) {
	if p.started && p.skip >= p.total {
		return nil, nil
	}

	batch, err := p.fetcher.FetchPage(ctx, p.skip, p.limit)
	if err != nil {
		return nil, err
	}

	p.total = batch.Total
	p.started = true

	fetched := len(batch.Products) + len(batch.Invalid)
	if fetched == 0 {
		return nil, nil
	}
	p.skip += fetched

	return batch, nil
}

// Offset returns the offset of the next page, for resuming a partial run.
func (p *Pager) Offset() int {
	return p.skip
}
