package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/portside-dev/craneops/internal/store"
)

// @Summary List databases
// @Description Returns every dataset with its size and table count
// @Produce json
// @Success 200 {array} model.DatabaseInfo
// @Router /api/v1/databases [get]
func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListDatabases()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, infos)
}

type createDatabaseRequest struct {
	Name string `json:"name"`
}

// @Summary Create database
// @Description Creates a new empty dataset file
// @Accept json
// @Produce json
// @Param body body createDatabaseRequest true "Database name"
// @Success 201 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/databases [post]
func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req createDatabaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.CreateDatabase(req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, r, http.StatusCreated, map[string]string{"name": req.Name})
}

// @Summary Delete database
// @Description Removes a dataset file; requires confirm=true
// @Produce json
// @Param db path string true "Database name"
// @Param confirm query bool true "Must be true"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db} [delete]
func (s *Server) handleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	db := r.PathValue("db")
	confirm := r.URL.Query().Get("confirm") == "true"
	if err := s.store.DeleteDatabase(db, confirm); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]string{"deleted": db})
}

// @Summary List tables
// @Description Returns every user table with metadata; orphaned tables are flagged
// @Produce json
// @Param db path string true "Database name"
// @Success 200 {array} model.TableInfo
// @Router /api/v1/databases/{db}/tables [get]
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListTables(r.PathValue("db"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, infos)
}

// @Summary Table columns
// @Description Returns declared and inferred column types with sample values
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Success 200 {array} model.Column
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/columns [get]
func (s *Server) handleTableColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.store.TableColumns(r.PathValue("db"), r.PathValue("table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, cols)
}

type renameTableRequest struct {
	NewName string `json:"new_name"`
}

// @Summary Rename table
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Param body body renameTableRequest true "New table name"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/rename [post]
func (s *Server) handleRenameTable(w http.ResponseWriter, r *http.Request) {
	var req renameTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	table := r.PathValue("table")
	if err := s.store.RenameTable(r.PathValue("db"), table, req.NewName); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]string{"old_name": table, "new_name": req.NewName})
}

type duplicateTableRequest struct {
	TargetName string `json:"target_name"`
	CopyData   bool   `json:"copy_data"`
}

// @Summary Duplicate table
// @Description Copies a table's schema and, optionally, its data
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Source table"
// @Param body body duplicateTableRequest true "Target name and copy mode"
// @Success 201 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/duplicate [post]
func (s *Server) handleDuplicateTable(w http.ResponseWriter, r *http.Request) {
	var req duplicateTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DuplicateTable(r.PathValue("db"), r.PathValue("table"), req.TargetName, req.CopyData); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, r, http.StatusCreated, map[string]string{"table_name": req.TargetName})
}

// @Summary Repair table metadata
// @Description Backfills the bookkeeping row of an orphaned table from live counts
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Success 200 {object} model.TableMetadata
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/repair [post]
func (s *Server) handleRepairMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.store.RepairMetadata(r.PathValue("db"), r.PathValue("table"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, meta)
}

type moveTableRequest struct {
	TargetDatabase string `json:"target_database"`
	KeepSource     bool   `json:"keep_source"`
}

// @Summary Move table to another database
// @Description Starts a background copy; poll the returned operation for progress
// @Accept json
// @Produce json
// @Param db path string true "Source database"
// @Param table path string true "Table name"
// @Param body body moveTableRequest true "Target database"
// @Success 202 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/move [post]
func (s *Server) handleMoveTable(w http.ResponseWriter, r *http.Request) {
	var req moveTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	srcDB, table := r.PathValue("db"), r.PathValue("table")

	id := s.tasks.Go("move_table", func(progress func(stage string, percent int, message string)) error {
		return s.store.MoveTable(context.Background(), srcDB, req.TargetDatabase, table, req.KeepSource,
			store.ProgressFunc(progress))
	})

	writeJSONStatus(w, r, http.StatusAccepted, map[string]string{"operation_id": id})
}

// @Summary Delete table
// @Description Drops a table and its metadata; requires confirm=true
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Param confirm query bool true "Must be true"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table} [delete]
func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	confirm := r.URL.Query().Get("confirm") == "true"
	if err := s.store.DeleteTable(r.PathValue("db"), table, confirm); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]string{"deleted": table})
}

// @Summary Browse table rows
// @Description Returns one page of rows with optional search and sorting
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Rows per page (max 500)" default(50)
// @Param sort_by query string false "Column to sort by"
// @Param sort_dir query string false "asc or desc"
// @Param search query string false "Substring match across all columns"
// @Success 200 {object} model.Page
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/records [get]
func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := store.PageRequest{
		SortBy:  q.Get("sort_by"),
		SortDir: q.Get("sort_dir"),
		Search:  q.Get("search"),
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	page, err := s.store.GetPage(r.PathValue("db"), r.PathValue("table"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, page)
}

func rowIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errBadRequest
	}
	return id, nil
}

// @Summary Get one record
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Param id path int true "Row ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/records/{id} [get]
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := rowIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.store.GetRecord(r.PathValue("db"), r.PathValue("table"), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, rec)
}

// @Summary Update one record
// @Description Sets the given columns of one row; unknown columns are rejected
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Param id path int true "Row ID"
// @Param body body map[string]interface{} true "Column values"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/records/{id} [put]
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := rowIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var values map[string]any
	if err := decodeJSON(r, &values); err != nil {
		writeError(w, r, err)
		return
	}
	db, table := r.PathValue("db"), r.PathValue("table")
	if err := s.store.UpdateRecord(db, table, id, values); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.store.GetRecord(db, table, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, rec)
}

// @Summary Delete one record
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Param id path int true "Row ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/records/{id} [delete]
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := rowIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteRecord(r.PathValue("db"), r.PathValue("table"), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]any{"deleted": id})
}

// @Summary Column statistics
// @Description Count, nulls, distinct values and numeric aggregates for one column
// @Produce json
// @Param db path string true "Database name"
// @Param table path string true "Table name"
// @Param column path string true "Column name"
// @Success 200 {object} model.ColumnStats
// @Failure 404 {object} errorResponse
// @Router /api/v1/databases/{db}/tables/{table}/columns/{column}/stats [get]
func (s *Server) handleColumnStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.ColumnStats(r.PathValue("db"), r.PathValue("table"), r.PathValue("column"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, stats)
}

type queryRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit,omitempty"`
}

// @Summary Run read-only query
// @Description Executes a single SELECT statement; writes and schema changes are rejected
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param body body queryRequest true "SQL and optional row limit"
// @Success 200 {object} store.QueryResult
// @Failure 400 {object} errorResponse
// @Router /api/v1/databases/{db}/query [post]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.store.ExecuteQuery(r.PathValue("db"), req.SQL, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, res)
}

type queryToTableRequest struct {
	SQL       string `json:"sql"`
	TableName string `json:"table_name"`
}

// @Summary Save query result as table
// @Description Materializes a read-only SELECT into a new table with metadata
// @Accept json
// @Produce json
// @Param db path string true "Database name"
// @Param body body queryToTableRequest true "SQL and target table name"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/v1/databases/{db}/query/table [post]
func (s *Server) handleQueryToTable(w http.ResponseWriter, r *http.Request) {
	var req queryToTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.store.MaterializeQuery(r.PathValue("db"), req.SQL, req.TableName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, r, http.StatusCreated, map[string]any{"table_name": req.TableName, "row_count": n})
}
