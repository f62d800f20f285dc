package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/portside-dev/craneops/internal/analysis"
	"github.com/portside-dev/craneops/internal/dashboard"
)

func daysBackParam(r *http.Request) int {
	days, err := strconv.Atoi(r.URL.Query().Get("days_back"))
	if err != nil || days < 1 {
		return 365
	}
	return days
}

// @Summary Equipment list
// @Description Returns cranes and spreaders with recurring faults, most faults first
// @Produce json
// @Param db path string true "Database name"
// @Success 200 {array} model.Equipment
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/analysis/equipment [get]
func (s *Server) handleEquipmentList(w http.ResponseWriter, r *http.Request) {
	a := analysis.NewAnalyzer(s.store, r.PathValue("db"))
	list, err := a.EquipmentList()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, list)
}

// @Summary Equipment fault history
// @Description Returns the work orders of one crane or spreader, oldest first
// @Produce json
// @Param db path string true "Database name"
// @Param id path string true "Equipment ID"
// @Param days_back query int false "History window in days" default(365)
// @Success 200 {array} model.WorkOrder
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/analysis/equipment/{id}/faults [get]
func (s *Server) handleEquipmentFaults(w http.ResponseWriter, r *http.Request) {
	a := analysis.NewAnalyzer(s.store, r.PathValue("db"))
	faults, err := a.GetEquipmentFaults(r.PathValue("id"), daysBackParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, faults)
}

// @Summary Equipment fault patterns
// @Description Groups faults by category and scores frequency, trend and criticality
// @Produce json
// @Param db path string true "Database name"
// @Param id path string true "Equipment ID"
// @Param days_back query int false "History window in days" default(365)
// @Success 200 {array} model.FaultPattern
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/analysis/equipment/{id}/patterns [get]
func (s *Server) handleFaultPatterns(w http.ResponseWriter, r *http.Request) {
	a := analysis.NewAnalyzer(s.store, r.PathValue("db"))
	patterns, err := a.AnalyzeFaultPatterns(r.PathValue("id"), daysBackParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, patterns)
}

// @Summary Equipment insights
// @Description Derives maintenance insights from the equipment's fault patterns
// @Produce json
// @Param db path string true "Database name"
// @Param id path string true "Equipment ID"
// @Param days_back query int false "History window in days" default(365)
// @Success 200 {array} model.Insight
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/analysis/equipment/{id}/insights [get]
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	a := analysis.NewAnalyzer(s.store, r.PathValue("db"))
	id := r.PathValue("id")
	patterns, err := a.AnalyzeFaultPatterns(id, daysBackParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, a.GenerateInsights(id, patterns))
}

// @Summary Fleet-wide analysis
// @Description Summarizes fault counts, critical systems and recommendations across the fleet
// @Produce json
// @Param db path string true "Database name"
// @Param days_back query int false "History window in days" default(365)
// @Success 200 {object} analysis.FleetSummary
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/analysis/comprehensive [get]
func (s *Server) handleComprehensiveAnalysis(w http.ResponseWriter, r *http.Request) {
	a := analysis.NewAnalyzer(s.store, r.PathValue("db"))
	summary, err := a.ComprehensiveAnalysis(daysBackParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, summary)
}

type faultCausesRequest struct {
	ShortDescription string `json:"short_description"`
	Machine          string `json:"machine"`
	BDN              string `json:"bdn"`
}

// @Summary Classify one work order
// @Description Runs the cause cascade and equipment classifiers on a single work order description
// @Accept json
// @Produce json
// @Param body body faultCausesRequest true "Work order fields"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Router /api/v1/analysis/causes [post]
func (s *Server) handleFaultCauses(w http.ResponseWriter, r *http.Request) {
	var req faultCausesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	// The cause cascade works on the derived equipment type, not the raw
	// machine code.
	eqType := analysis.EquipmentType(req.Machine)
	writeJSON(w, r, map[string]any{
		"category":           analysis.CategorizeFault(req.ShortDescription),
		"cause":              analysis.AnalyzeFaultCauses(req.ShortDescription, eqType, req.BDN),
		"spreader_cause":     analysis.AnalyzeSpreaderFault(req.ShortDescription, eqType, req.BDN),
		"equipment_type":     eqType,
		"equipment_category": analysis.ClassifyEquipment(req.Machine),
		"crane_id":           analysis.ExtractCraneID(req.Machine),
		"spreader_number":    analysis.ExtractSpreaderNumber(req.ShortDescription, req.Machine),
	})
}

func (s *Server) workOrders(r *http.Request) *dashboard.WorkOrders {
	return dashboard.NewWorkOrders(s.store, slog.Default(), r.PathValue("db"))
}

func (s *Server) stock(r *http.Request) *dashboard.Stock {
	return dashboard.NewStock(s.store, slog.Default(), r.PathValue("db"))
}

// @Summary Work order statistics
// @Description Totals, date range and completion rate of the work order table
// @Produce json
// @Param db path string true "Database name"
// @Success 200 {object} dashboard.BasicStats
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/workorders/stats [get]
func (s *Server) handleWorkOrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.workOrders(r).BasicStatistics()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, stats)
}

// @Summary Work order category breakdowns
// @Description Distribution of work orders by job type, status, priority, position, cost purpose, supplier and location
// @Produce json
// @Param db path string true "Database name"
// @Success 200 {object} map[string][]dashboard.Bucket
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/workorders/categories [get]
func (s *Server) handleWorkOrderCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.workOrders(r).CategoryAnalysis()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, categories)
}

// @Summary Work order monthly trend
// @Produce json
// @Param db path string true "Database name"
// @Success 200 {array} dashboard.MonthCount
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/workorders/trend [get]
func (s *Server) handleWorkOrderTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := s.workOrders(r).MonthlyTrend()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, trend)
}

// @Summary Work order KPIs
// @Description Corrective/preventive ratio, stop time aggregates, urgent share and top downtime equipment
// @Produce json
// @Param db path string true "Database name"
// @Success 200 {object} dashboard.KPIs
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/workorders/kpis [get]
func (s *Server) handleWorkOrderKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.workOrders(r).PerformanceMetrics()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, kpis)
}

// @Summary Maintenance trends
// @Description Corrective vs preventive work-order volume per month over the trailing period
// @Produce json
// @Param db path string true "Database name"
// @Param period_days query int false "Trailing period in days (default 365)"
// @Success 200 {array} dashboard.TrendPoint
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/workorders/maintenance [get]
func (s *Server) handleMaintenanceTrends(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("period_days"))
	trend, err := s.workOrders(r).MaintenanceTrends(days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, trend)
}

// @Summary Equipment performance
// @Description Per-equipment completion rate, downtime and performance score
// @Produce json
// @Param db path string true "Database name"
// @Param equipment query string false "Restrict to one equipment unit"
// @Success 200 {array} dashboard.EquipmentPerformance
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/workorders/performance [get]
func (s *Server) handleEquipmentPerformance(w http.ResponseWriter, r *http.Request) {
	perf, err := s.workOrders(r).PerformanceByEquipment(r.URL.Query().Get("equipment"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, perf)
}

// @Summary Stock summary
// @Description Totals, status distribution, category values and critical items
// @Produce json
// @Param db path string true "Database name"
// @Success 200 {object} dashboard.Summary
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/stock/summary [get]
func (s *Server) handleStockSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.stock(r).Summarize()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, summary)
}

// @Summary Stock alerts
// @Description Out-of-stock, reorder and excess alerts, most severe first
// @Produce json
// @Param db path string true "Database name"
// @Success 200 {array} dashboard.Alert
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/stock/alerts [get]
func (s *Server) handleStockAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.stock(r).Alerts()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, alerts)
}

// @Summary Search stock items
// @Produce json
// @Param db path string true "Database name"
// @Param q query string false "Reference or designation substring"
// @Param limit query int false "Row limit (max 1000)" default(100)
// @Success 200 {array} dashboard.StockItem
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/stock/search [get]
func (s *Server) handleStockSearch(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.stock(r).Search(r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, items)
}

// @Summary Export stock alerts as Excel
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param db path string true "Database name"
// @Success 200 {file} binary
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/dashboards/stock/alerts/export [get]
func (s *Server) handleStockAlertsExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.stock(r).ExportAlertsXLSX(&buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="stock_alerts.xlsx"`)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("writing stock alerts export", "path", r.URL.Path, "error", err)
	}
}

// @Summary List background operations
// @Produce json
// @Success 200 {array} model.Operation
// @Router /api/v1/operations [get]
func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.tasks.Snapshot())
}

// @Summary Get background operation
// @Produce json
// @Param id path string true "Operation ID"
// @Success 200 {object} model.Operation
// @Failure 404 {object} errorResponse
// @Router /api/v1/operations/{id} [get]
func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	op, ok := s.tasks.Get(r.PathValue("id"))
	if !ok {
		writeJSONStatus(w, r, http.StatusNotFound, errorResponse{Error: "operation not found"})
		return
	}
	writeJSON(w, r, op)
}
