package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/CatalogSyncGo/internal/ingest"
	"github.com/utafrali/CatalogSyncGo/pkg/httputil"
)

// Reindexer rebuilds the search index from the relational store.
type Reindexer interface {
	Reindex(ctx context.Context) error
}

// IngestHandler exposes ingestion run control.
type IngestHandler struct {
	orchestrator *ingest.Orchestrator
	reindexer    Reindexer
	logger       *slog.Logger
}

// NewIngestHandler creates a new ingestion HTTP handler.
func NewIngestHandler(orchestrator *ingest.Orchestrator, reindexer Reindexer, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{orchestrator: orchestrator, reindexer: reindexer, logger: logger}
}

// runResponse is returned by the run-control endpoints.
type runResponse struct {
	State   ingest.State      `json:"state"`
	LastRun *ingest.RunReport `json:"last_run,omitempty"`
}

// Run handles POST /api/v1/ingest/run. The run executes in the background;
// progress is available from Status.
func (h *IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator.State() == ingest.StateFetching ||
		h.orchestrator.State() == ingest.StatePersisting ||
		h.orchestrator.State() == ingest.StateIndexing {
		httputil.WriteJSON(w, http.StatusConflict, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "RUN_IN_PROGRESS",
				Message: "an ingestion run is already active",
			},
		})
		return
	}

	// Detach from the request lifetime but keep correlation values.
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.orchestrator.Run(runCtx); err != nil {
			h.logger.Error("ingestion run failed", slog.String("error", err.Error()))
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{
		Data: runResponse{State: ingest.StateFetching},
	})
}

// Status handles GET /api/v1/ingest/status
func (h *IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: runResponse{
			State:   h.orchestrator.State(),
			LastRun: h.orchestrator.LastRun(),
		},
	})
}

// Reindex handles POST /api/v1/ingest/reindex. Rebuilds the search index
// from the relational store in the background.
func (h *IngestHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.reindexer.Reindex(runCtx); err != nil {
			h.logger.Error("reindex failed", slog.String("error", err.Error()))
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{
		Data: map[string]string{"status": "reindex started"},
	})
}
