package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingest_runs_total",
		Help: "Total number of ingestion runs by final state.",
	}, []string{"state"})

	recordsPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_ingest_records_persisted_total",
		Help: "Total number of product records persisted by ingestion runs.",
	})

	recordsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingest_records_failed_total",
		Help: "Total number of product records that failed during ingestion.",
	}, []string{"stage"})

	documentsIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_ingest_documents_indexed_total",
		Help: "Total number of search documents written by ingestion runs.",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_ingest_run_duration_seconds",
		Help:    "Ingestion run duration in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
)
