package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/CatalogSyncGo/internal/domain"
	"github.com/utafrali/CatalogSyncGo/internal/engine"
	"github.com/utafrali/CatalogSyncGo/internal/fetcher"
	"github.com/utafrali/CatalogSyncGo/internal/repository"
	apperrors "github.com/utafrali/CatalogSyncGo/pkg/errors"
	"github.com/utafrali/CatalogSyncGo/pkg/logger"
)

// State is the lifecycle state of an ingestion run.
type State string

const (
	StateIdle            State = "idle"
	StateFetching        State = "fetching"
	StatePersisting      State = "persisting"
	StateIndexing        State = "indexing"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
	StateAborted         State = "aborted"
)

// DefaultWorkers is the number of concurrent persist+index workers.
const DefaultWorkers = 4

// BatchSource yields source batches one page at a time. Next returns
// (nil, nil) when the sequence is exhausted.
type BatchSource interface {
	Next(ctx context.Context) (*fetcher.Batch, error)
}

// DocumentIndexer is the slice of the indexer the orchestrator needs.
type DocumentIndexer interface {
	EnsureMapping(ctx context.Context) error
	IndexProducts(ctx context.Context, products []domain.Product) (engine.IndexResult, error)
}

// ReportPublisher emits the run report to interested consumers. Publishing
// is best effort and never affects the run outcome.
type ReportPublisher interface {
	PublishRunCompleted(ctx context.Context, report *RunReport) error
}

// BatchReport records the outcome of one source batch.
type BatchReport struct {
	Offset      int                        `json:"offset"`
	Fetched     int                        `json:"fetched"`
	FromCache   bool                       `json:"from_cache"`
	Invalid     []fetcher.InvalidRecord    `json:"invalid,omitempty"`
	Persisted   int                        `json:"persisted"`
	Failed      []repository.RecordFailure `json:"failed,omitempty"`
	Indexed     int                        `json:"indexed"`
	IndexFailed []engine.DocFailure        `json:"index_failed,omitempty"`
}

// RunReport aggregates every batch outcome of one ingestion run. Each batch
// commits independently, so the report is meaningful even for aborted runs.
type RunReport struct {
	RunID      string        `json:"run_id"`
	State      State         `json:"state"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Batches    []BatchReport `json:"batches"`

	TotalFetched   int `json:"total_fetched"`
	TotalInvalid   int `json:"total_invalid"`
	TotalPersisted int `json:"total_persisted"`
	TotalFailed    int `json:"total_failed"`
	TotalIndexed   int `json:"total_indexed"`

	// AbortReason is set when the run ended in StateAborted.
	AbortReason string `json:"abort_reason,omitempty"`
	// IndexError is set when the index mapping could not be prepared and
	// indexing was skipped for the whole run.
	IndexError string `json:"index_error,omitempty"`
}

func (r *RunReport) addBatch(b BatchReport) {
	r.Batches = append(r.Batches, b)
	r.TotalFetched += b.Fetched + len(b.Invalid)
	r.TotalInvalid += len(b.Invalid)
	r.TotalPersisted += b.Persisted
	r.TotalFailed += len(b.Failed)
	r.TotalIndexed += b.Indexed
}

// fullyPersisted reports whether every fetched record of every batch landed
// in the store.
func (r *RunReport) fullyPersisted() bool {
	return r.TotalInvalid == 0 && r.TotalFailed == 0
}

// Orchestrator drives one ingestion run: fetch pages from the source,
// persist each batch in its own commit units, then project the persisted
// records into the search index. Batches are independent; workers process
// them concurrently while pages are still being fetched.
type Orchestrator struct {
	newSource func() BatchSource
	products  repository.ProductRepository
	indexer   DocumentIndexer
	publisher ReportPublisher
	workers   int
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	lastRun *RunReport
}

// New creates an orchestrator. newSource is called once per run so every run
// gets a fresh page sequence. publisher may be nil.
func New(newSource func() BatchSource, products repository.ProductRepository, docIndexer DocumentIndexer, publisher ReportPublisher, workers int, log *slog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		newSource: newSource,
		products:  products,
		indexer:   docIndexer,
		publisher: publisher,
		workers:   workers,
		logger:    log,
		state:     StateIdle,
	}
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastRun returns the report of the most recent run, or nil.
func (o *Orchestrator) LastRun() *RunReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastRun
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes one ingestion run. Only one run may be active at a time; a
// second concurrent call returns a conflict. The returned report is also
// retained for LastRun.
//
// A terminal fetch error on the very first page aborts with an error since
// nothing was ingested. A terminal error later stops fetching but keeps
// every batch already committed, and the run ends in StateAborted without an
// error. Cancellation is honored between batches, never mid-commit.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	o.mu.Lock()
	if o.state != StateIdle && o.state != StateCompleted && o.state != StatePartiallyFailed && o.state != StateAborted {
		o.mu.Unlock()
		return nil, apperrors.Conflict("ingestion run", "state", string(o.state))
	}
	o.state = StateFetching
	o.mu.Unlock()

	runID := uuid.New().String()
	ctx = logger.WithRunID(ctx, runID)
	log := o.logger.With(slog.String("run_id", runID))

	report := &RunReport{RunID: runID, State: StateFetching, StartedAt: time.Now().UTC()}
	log.Info("ingestion run started", slog.Int("workers", o.workers))

	indexReady := true
	if err := o.indexer.EnsureMapping(ctx); err != nil {
		// Persist regardless; a corrective re-index can follow.
		indexReady = false
		report.IndexError = err.Error()
		log.Warn("index mapping unavailable, skipping indexing for this run",
			slog.String("error", err.Error()))
	}

	var (
		reportMu sync.Mutex
		wg       sync.WaitGroup
		batches  = make(chan *fetcher.Batch)
	)

	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				if ctx.Err() != nil {
					continue
				}
				result := o.processBatch(ctx, log, batch, indexReady)
				reportMu.Lock()
				report.addBatch(result)
				reportMu.Unlock()
			}
		}()
	}

	runErr := o.fetchLoop(ctx, log, report, batches)
	close(batches)
	wg.Wait()

	report.FinishedAt = time.Now().UTC()
	report.State = o.finalState(ctx, report, runErr)
	o.finish(ctx, log, report)

	if runErr != nil && len(report.Batches) == 0 {
		return report, runErr
	}
	return report, nil
}

// fetchLoop pulls pages until exhaustion, cancellation or a terminal error.
// The returned error is non-nil only when the run must abort.
func (o *Orchestrator) fetchLoop(ctx context.Context, log *slog.Logger, report *RunReport, batches chan<- *fetcher.Batch) error {
	source := o.newSource()
	firstPage := true

	for {
		if err := ctx.Err(); err != nil {
			report.AbortReason = "run cancelled"
			return nil
		}

		batch, err := source.Next(ctx)
		if err != nil {
			if firstPage {
				report.AbortReason = err.Error()
				return fmt.Errorf("fetch first page: %w", err)
			}
			report.AbortReason = err.Error()
			if errors.Is(err, apperrors.ErrTerminalFetch) {
				log.Error("terminal fetch error mid-run, stopping",
					slog.String("error", err.Error()))
			} else {
				log.Error("fetch failed mid-run, stopping",
					slog.String("error", err.Error()))
			}
			return nil
		}
		if batch == nil {
			return nil
		}

		firstPage = false
		select {
		case batches <- batch:
		case <-ctx.Done():
			report.AbortReason = "run cancelled"
			return nil
		}
	}
}

// processBatch persists one batch and indexes the records that landed.
func (o *Orchestrator) processBatch(ctx context.Context, log *slog.Logger, batch *fetcher.Batch, indexReady bool) BatchReport {
	result := BatchReport{
		Offset:    batch.Skip,
		Fetched:   len(batch.Products),
		FromCache: batch.FromCache,
		Invalid:   batch.Invalid,
	}

	if len(batch.Products) == 0 {
		return result
	}

	o.setState(StatePersisting)
	upsert, err := o.products.UpsertBatch(ctx, batch.Products)
	result.Persisted = upsert.Inserted + upsert.Updated
	result.Failed = upsert.Failed
	if err != nil {
		log.Error("batch persistence failed",
			slog.Int("offset", batch.Skip),
			slog.String("error", err.Error()))
		for _, p := range batch.Products {
			result.Failed = append(result.Failed, repository.RecordFailure{
				ProductID: p.ID,
				Err:       err,
				Reason:    "batch write failed",
			})
		}
		result.Persisted = 0
		return result
	}

	recordsPersistedTotal.Add(float64(result.Persisted))
	recordsFailedTotal.WithLabelValues("validate").Add(float64(len(batch.Invalid)))
	recordsFailedTotal.WithLabelValues("persist").Add(float64(len(upsert.Failed)))

	if !indexReady {
		return result
	}

	o.setState(StateIndexing)
	persisted := persistedProducts(batch.Products, upsert.Failed)
	indexResult, err := o.indexer.IndexProducts(ctx, persisted)
	result.Indexed = indexResult.Succeeded
	result.IndexFailed = indexResult.Failed
	if err != nil {
		// Index write failures never block the run.
		log.Warn("batch indexing failed",
			slog.Int("offset", batch.Skip),
			slog.String("error", err.Error()))
	}
	documentsIndexedTotal.Add(float64(indexResult.Succeeded))
	recordsFailedTotal.WithLabelValues("index").Add(float64(len(indexResult.Failed)))

	return result
}

func persistedProducts(products []domain.Product, failed []repository.RecordFailure) []domain.Product {
	if len(failed) == 0 {
		return products
	}
	failedIDs := make(map[int64]struct{}, len(failed))
	for _, f := range failed {
		failedIDs[f.ProductID] = struct{}{}
	}
	persisted := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if _, ok := failedIDs[p.ID]; !ok {
			persisted = append(persisted, p)
		}
	}
	return persisted
}

func (o *Orchestrator) finalState(ctx context.Context, report *RunReport, runErr error) State {
	switch {
	case runErr != nil, report.AbortReason != "":
		return StateAborted
	case ctx.Err() != nil:
		return StateAborted
	case !report.fullyPersisted():
		return StatePartiallyFailed
	default:
		return StateCompleted
	}
}

func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, report *RunReport) {
	o.mu.Lock()
	o.state = report.State
	o.lastRun = report
	o.mu.Unlock()

	runsTotal.WithLabelValues(string(report.State)).Inc()
	runDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	log.Info("ingestion run finished",
		slog.String("state", string(report.State)),
		slog.Int("fetched", report.TotalFetched),
		slog.Int("invalid", report.TotalInvalid),
		slog.Int("persisted", report.TotalPersisted),
		slog.Int("failed", report.TotalFailed),
		slog.Int("indexed", report.TotalIndexed),
		slog.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))

	if o.publisher != nil {
		if err := o.publisher.PublishRunCompleted(context.WithoutCancel(ctx), report); err != nil {
			log.Warn("failed to publish run report", slog.String("error", err.Error()))
		}
	}
}
