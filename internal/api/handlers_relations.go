package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/portside-dev/craneops/internal/formula"
	"github.com/portside-dev/craneops/internal/relation"
)

// @Summary Suggest join columns
// @Description Scores column pairs of two tables by name similarity and key-likeness
// @Produce json
// @Param db path string true "Database name"
// @Param left query string true "Left table"
// @Param right query string true "Right table"
// @Success 200 {array} relation.Suggestion
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/relationships/suggest [get]
func (s *Server) handleSuggestJoins(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	left, right := q.Get("left"), q.Get("right")
	if left == "" || right == "" {
		writeError(w, r, fmt.Errorf("%w: left and right tables are required", errBadRequest))
		return
	}
	suggestions, err := s.relations.SuggestJoins(r.PathValue("db"), left, right)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, suggestions)
}

// @Summary Validate relationship config
// @Description Checks join connectivity, operators and live table schemas
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param body body relation.Config true "Relationship configuration"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} errorResponse
// @Router /api/v1/databases/{db}/relationships/validate [post]
func (s *Server) handleValidateRelationship(w http.ResponseWriter, r *http.Request) {
	var cfg relation.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.relations.Validate(r.PathValue("db"), &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]bool{"valid": true})
}

// @Summary Preview relationship
// @Description Runs the join and returns sample rows plus per-column summaries
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param limit query int false "Preview row limit (max 500)" default(100)
// @Param body body relation.Config true "Relationship configuration"
// @Success 200 {object} relation.Preview
// @Failure 400 {object} errorResponse
// @Router /api/v1/databases/{db}/relationships/preview [post]
func (s *Server) handlePreviewRelationship(w http.ResponseWriter, r *http.Request) {
	var cfg relation.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	preview, err := s.relations.PreviewJoin(r.PathValue("db"), &cfg, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, preview)
}

type materializeRequest struct {
	Config    relation.Config `json:"config"`
	TableName string          `json:"table_name"`
}

// @Summary Materialize relationship
// @Description Stores the joined result as a new table
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param body body materializeRequest true "Configuration and target table"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/databases/{db}/relationships/materialize [post]
func (s *Server) handleMaterializeRelationship(w http.ResponseWriter, r *http.Request) {
	var req materializeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.relations.Materialize(r.PathValue("db"), &req.Config, req.TableName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, r, http.StatusCreated, map[string]any{"table_name": req.TableName, "row_count": n})
}

// @Summary Export relationship as Excel
// @Description Streams the joined result as an .xlsx download
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param db path string true "Database name"
// @Param body body relation.Config true "Relationship configuration"
// @Success 200 {file} binary
// @Failure 400 {object} errorResponse
// @Router /api/v1/databases/{db}/relationships/export [post]
func (s *Server) handleExportRelationship(w http.ResponseWriter, r *http.Request) {
	var cfg relation.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.relations.Validate(r.PathValue("db"), &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := s.relations.ExportXLSX(r.PathValue("db"), &cfg, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="relationship_export.xlsx"`)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("writing relationship export", "path", r.URL.Path, "error", err)
	}
}

// @Summary Export table as Excel
// @Description Streams one table's full contents as an .xlsx download
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Success 200 {file} binary
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/export [get]
func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	var buf bytes.Buffer
	if err := s.relations.ExportTableXLSX(r.PathValue("db"), table, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table+".xlsx"))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("writing table export", "path", r.URL.Path, "error", err)
	}
}

// @Summary List saved relationship configs
// @Produce json
// @Param db path string true "Database name"
// @Success 200 {array} store.SavedConfig
// @Router /api/v1/databases/{db}/relationships/configs [get]
func (s *Server) handleListRelationshipConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListRelationshipConfigs(r.PathValue("db"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, configs)
}

// @Summary Save relationship config
// @Description Stores or replaces a named configuration after validating it
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param body body relation.Config true "Named relationship configuration"
// @Success 201 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Router /api/v1/databases/{db}/relationships/configs [post]
func (s *Server) handleSaveRelationshipConfig(w http.ResponseWriter, r *http.Request) {
	var cfg relation.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.relations.Validate(r.PathValue("db"), &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.relations.SaveConfig(r.PathValue("db"), &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, r, http.StatusCreated, map[string]string{"name": cfg.Name})
}

// @Summary Get saved relationship config
// @Produce json
// @Param db path string true "Database name"
// @Param name path string true "Config name"
// @Success 200 {object} relation.Config
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/relationships/configs/{name} [get]
func (s *Server) handleGetRelationshipConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.relations.LoadConfig(r.PathValue("db"), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, cfg)
}

// @Summary Delete saved relationship config
// @Produce json
// @Param db path string true "Database name"
// @Param name path string true "Config name"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/relationships/configs/{name} [delete]
func (s *Server) handleDeleteRelationshipConfig(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.store.DeleteRelationshipConfig(r.PathValue("db"), name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]string{"deleted": name})
}

type validateFormulaRequest struct {
	Formula string `json:"formula"`
}

// @Summary Validate formula
// @Description Parses the formula, checks referenced columns and previews results on sample rows
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Param body body validateFormulaRequest true "Formula text"
// @Success 200 {object} formula.ValidationResult
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/fields/validate [post]
func (s *Server) handleValidateFormula(w http.ResponseWriter, r *http.Request) {
	var req validateFormulaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.formulas.Validate(r.PathValue("db"), r.PathValue("table"), req.Formula)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, res)
}

type applyFormulaRequest struct {
	FieldName string `json:"field_name"`
	Formula   string `json:"formula"`
}

// @Summary Add calculated field
// @Description Adds a new column and fills it by evaluating the formula for every row
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Param body body applyFormulaRequest true "Field name and formula"
// @Success 201 {object} formula.ApplyResult
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/fields [post]
func (s *Server) handleApplyFormula(w http.ResponseWriter, r *http.Request) {
	var req applyFormulaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.formulas.Apply(r.PathValue("db"), r.PathValue("table"), req.FieldName, req.Formula)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, r, http.StatusCreated, res)
}

// @Summary Formula function catalog
// @Description Lists the built-in functions available in calculated-field formulas
// @Produce json
// @Success 200 {array} formula.FunctionDoc
// @Router /api/v1/fields/functions [get]
func (s *Server) handleFormulaFunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, formula.Functions())
}
