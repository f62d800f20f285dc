// Package api provides the HTTP surface of craneops.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/portside-dev/craneops/internal/config"
	"github.com/portside-dev/craneops/internal/formula"
	"github.com/portside-dev/craneops/internal/ingest"
	"github.com/portside-dev/craneops/internal/relation"
	"github.com/portside-dev/craneops/internal/store"
	"github.com/portside-dev/craneops/internal/tasks"

	_ "github.com/portside-dev/craneops/docs/swagger"
)

// Server is the craneops HTTP server.
type Server struct {
	store     *store.Store
	processor *ingest.Processor
	formulas  *formula.Service
	relations *relation.Service
	tasks     *tasks.Registry
	uploadDir string
	maxUpload int64
	mux       *http.ServeMux
	server    *http.Server
}

// NewServer wires the services behind the HTTP surface.
func NewServer(cfg *config.Config, st *store.Store, reg *tasks.Registry) *Server {
	logger := slog.Default()
	srv := &Server{
		store:     st,
		processor: ingest.NewProcessor(st, logger, cfg.IngestWorkers),
		formulas:  formula.NewService(st, logger),
		relations: relation.NewService(st, logger),
		tasks:     reg,
		uploadDir: cfg.UploadDir,
		maxUpload: cfg.MaxUploadBytes,
		mux:       http.NewServeMux(),
	}

	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:         cfg.Listen,
		Handler:      SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(srv.mux))),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("HTTP server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	// Databases
	s.mux.HandleFunc("GET /api/v1/databases", s.handleListDatabases)
	s.mux.HandleFunc("POST /api/v1/databases", s.handleCreateDatabase)
	s.mux.HandleFunc("DELETE /api/v1/databases/{db}", s.handleDeleteDatabase)

	// Tables
	s.mux.HandleFunc("GET /api/v1/databases/{db}/tables", s.handleListTables)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/tables/{table}/columns", s.handleTableColumns)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/tables/{table}/rename", s.handleRenameTable)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/tables/{table}/duplicate", s.handleDuplicateTable)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/tables/{table}/repair", s.handleRepairMetadata)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/tables/{table}/move", s.handleMoveTable)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/tables/{table}/export", s.handleExportTable)
	s.mux.HandleFunc("DELETE /api/v1/databases/{db}/tables/{table}", s.handleDeleteTable)

	// Records
	s.mux.HandleFunc("GET /api/v1/databases/{db}/tables/{table}/records", s.handleGetPage)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/tables/{table}/records/{id}", s.handleGetRecord)
	s.mux.HandleFunc("PUT /api/v1/databases/{db}/tables/{table}/records/{id}", s.handleUpdateRecord)
	s.mux.HandleFunc("DELETE /api/v1/databases/{db}/tables/{table}/records/{id}", s.handleDeleteRecord)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/tables/{table}/columns/{column}/stats", s.handleColumnStats)

	// Uploads
	s.mux.HandleFunc("POST /api/v1/databases/{db}/uploads/analyze", s.handleAnalyzeUpload)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/uploads", s.handleCommitUpload)

	// Ad-hoc queries
	s.mux.HandleFunc("POST /api/v1/databases/{db}/query", s.handleQuery)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/query/table", s.handleQueryToTable)

	// Relationship designer
	s.mux.HandleFunc("GET /api/v1/databases/{db}/relationships/suggest", s.handleSuggestJoins)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/relationships/validate", s.handleValidateRelationship)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/relationships/preview", s.handlePreviewRelationship)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/relationships/materialize", s.handleMaterializeRelationship)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/relationships/export", s.handleExportRelationship)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/relationships/configs", s.handleListRelationshipConfigs)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/relationships/configs", s.handleSaveRelationshipConfig)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/relationships/configs/{name}", s.handleGetRelationshipConfig)
	s.mux.HandleFunc("DELETE /api/v1/databases/{db}/relationships/configs/{name}", s.handleDeleteRelationshipConfig)

	// Calculated fields
	s.mux.HandleFunc("POST /api/v1/databases/{db}/tables/{table}/fields/validate", s.handleValidateFormula)
	s.mux.HandleFunc("POST /api/v1/databases/{db}/tables/{table}/fields", s.handleApplyFormula)
	s.mux.HandleFunc("GET /api/v1/fields/functions", s.handleFormulaFunctions)

	// Fault analysis
	s.mux.HandleFunc("POST /api/v1/analysis/causes", s.handleFaultCauses)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/analysis/equipment", s.handleEquipmentList)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/analysis/equipment/{id}/faults", s.handleEquipmentFaults)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/analysis/equipment/{id}/patterns", s.handleFaultPatterns)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/analysis/equipment/{id}/insights", s.handleInsights)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/analysis/comprehensive", s.handleComprehensiveAnalysis)

	// Dashboards
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/workorders/stats", s.handleWorkOrderStats)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/workorders/categories", s.handleWorkOrderCategories)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/workorders/trend", s.handleWorkOrderTrend)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/workorders/kpis", s.handleWorkOrderKPIs)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/workorders/maintenance", s.handleMaintenanceTrends)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/workorders/performance", s.handleEquipmentPerformance)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/stock/summary", s.handleStockSummary)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/stock/alerts", s.handleStockAlerts)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/stock/search", s.handleStockSearch)
	s.mux.HandleFunc("GET /api/v1/databases/{db}/dashboards/stock/alerts/export", s.handleStockAlertsExport)

	// Background operations
	s.mux.HandleFunc("GET /api/v1/operations", s.handleListOperations)
	s.mux.HandleFunc("GET /api/v1/operations/{id}", s.handleGetOperation)

	// Health check
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Swagger UI
	s.mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

// writeJSON marshals v to JSON into a buffer first, then writes it to the
// response. This ensures marshalling errors can be returned as a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

// writeJSONStatus is writeJSON with an explicit status code. Headers must
// be set before the status line goes out.
func writeJSONStatus(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service errors onto HTTP status codes and emits a JSON
// error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	}
	data, merr := json.Marshal(errorResponse{Error: err.Error()})
	if merr != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrDatabaseNotFound),
		errors.Is(err, store.ErrTableNotFound),
		errors.Is(err, store.ErrRecordNotFound),
		errors.Is(err, store.ErrColumnNotFound),
		errors.Is(err, store.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDatabaseExists),
		errors.Is(err, store.ErrTableExists):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidName),
		errors.Is(err, store.ErrNotConfirmed),
		errors.Is(err, store.ErrQueryNotAllowed),
		errors.Is(err, relation.ErrInvalidConfig),
		errors.Is(err, ingest.ErrUnsupportedFile),
		errors.Is(err, formula.ErrInvalidFormula),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a request body into v, rejecting unknown fields so typos
// in client payloads fail loudly.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, err)
	}
	return nil
}

// errBadRequest forces a 400 for malformed payloads without a dedicated
// sentinel in the service layers.
var errBadRequest = errors.New("bad request")

// @Summary Health check
// @Description Returns service health and the list of reachable databases
// @Produce json
// @Success 200 {object} map[string]interface{} "Health status"
// @Router /healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	dbs, err := s.store.ListDatabases()
	status := "ok"
	if err != nil {
		status = "degraded"
	}
	writeJSON(w, r, map[string]any{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"databases": len(dbs),
	})
}
