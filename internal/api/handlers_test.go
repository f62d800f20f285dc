package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/portside-dev/craneops/internal/config"
	"github.com/portside-dev/craneops/internal/store"
	"github.com/portside-dev/craneops/internal/tasks"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir(), "Workorder")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Listen:          ":0",
		DataDir:         t.TempDir(),
		UploadDir:       t.TempDir(),
		DefaultDatabase: "Workorder",
		LogLevel:        "error",
		LogFormat:       "text",
		MaxUploadBytes:  8 << 20,
		OperationTTL:    config.Duration{Duration: time.Hour},
		IngestWorkers:   2,
	}
	srv := NewServer(cfg, st, tasks.NewRegistry(time.Hour))
	return srv, st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func seedParts(t *testing.T, st *store.Store) {
	t.Helper()
	require.NoError(t, st.CreateTable("", "parts", []store.ColumnDef{
		{Name: "item", Type: "TEXT"},
		{Name: "qty", Type: "INTEGER"},
	}))
	_, err := st.InsertRows("", "parts", []string{"item", "qty"}, [][]any{
		{"bolt", 10},
		{"nut", 25},
	})
	require.NoError(t, err)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestDatabaseLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/databases", map[string]string{"name": "Stock"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Duplicate name conflicts.
	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases", map[string]string{"name": "Stock"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases", nil)
	require.Equal(t, http.StatusOK, w.Code)
	dbs := decodeBody[[]map[string]any](t, w)
	assert.Len(t, dbs, 2)

	// Deleting without confirm is rejected.
	w = doJSON(t, srv, http.MethodDelete, "/api/v1/databases/Stock", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/databases/Stock?confirm=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/databases/Stock?confirm=true", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateDatabaseBadPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/databases", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTableEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	seedParts(t, st)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tables := decodeBody[[]map[string]any](t, w)
	require.Len(t, tables, 1)
	assert.Equal(t, "parts", tables[0]["table_name"])

	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables/parts/columns", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cols := decodeBody[[]map[string]any](t, w)
	assert.Len(t, cols, 2)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/tables/parts/rename",
		map[string]string{"new_name": "components"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/tables/components/duplicate",
		map[string]any{"target_name": "components_copy", "copy_data": true})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/databases/Workorder/tables/components_copy?confirm=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables/ghost/columns", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	seedParts(t, st)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables/parts/records?per_page=1&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 2, page["total_rows"])
	assert.EqualValues(t, 2, page["total_pages"])

	w = doJSON(t, srv, http.MethodPut, "/api/v1/databases/Workorder/tables/parts/records/1",
		map[string]any{"qty": 99})
	require.Equal(t, http.StatusOK, w.Code)
	rec := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 99, rec["qty"])

	// Unknown column is a 404.
	w = doJSON(t, srv, http.MethodPut, "/api/v1/databases/Workorder/tables/parts/records/1",
		map[string]any{"ghost": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables/parts/columns/qty/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 2, stats["count"])

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/databases/Workorder/tables/parts/records/2", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables/parts/records/2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Non-numeric row id.
	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables/parts/records/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	seedParts(t, st)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/query",
		map[string]any{"sql": "SELECT item FROM parts ORDER BY item"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 2, res["row_count"])

	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/query",
		map[string]any{"sql": "DROP TABLE parts"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/query/table",
		map[string]any{"sql": "SELECT * FROM parts WHERE qty > 15", "table_name": "big_parts"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables/big_parts/records", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 1, page["total_rows"])
}

func TestFormulaEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	seedParts(t, st)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/tables/parts/fields/validate",
		map[string]string{"formula": "[qty] * 2"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeBody[map[string]any](t, w)
	assert.Equal(t, true, res["valid"])

	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/tables/parts/fields",
		map[string]string{"field_name": "double_qty", "formula": "[qty] * 2"})
	require.Equal(t, http.StatusCreated, w.Code)
	applied := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 2, applied["rows_updated"])

	// Duplicate field name is rejected.
	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/tables/parts/fields",
		map[string]string{"field_name": "double_qty", "formula": "[qty] * 3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unparsable formula fails validation but not the request.
	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/tables/parts/fields/validate",
		map[string]string{"formula": "[qty] +"})
	require.Equal(t, http.StatusOK, w.Code)
	res = decodeBody[map[string]any](t, w)
	assert.Equal(t, false, res["valid"])
}

func TestRelationshipEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	seedParts(t, st)
	require.NoError(t, st.CreateTable("", "suppliers", []store.ColumnDef{
		{Name: "item", Type: "TEXT"},
		{Name: "vendor", Type: "TEXT"},
	}))
	_, err := st.InsertRows("", "suppliers", []string{"item", "vendor"}, [][]any{
		{"bolt", "Acme"},
	})
	require.NoError(t, err)

	cfg := map[string]any{
		"name":       "parts_suppliers",
		"base_table": "parts",
		"relationships": []map[string]any{{
			"left_table": "parts", "left_column": "item",
			"right_table": "suppliers", "right_column": "item",
			"join_type": "INNER",
		}},
	}

	w := doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/relationships/validate", cfg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/relationships/preview", cfg)
	require.Equal(t, http.StatusOK, w.Code)
	preview := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 1, preview["estimated_rows"])

	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/relationships/suggest?left=parts&right=suppliers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	suggestions := decodeBody[[]map[string]any](t, w)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "item", suggestions[0]["left_column"])

	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/relationships/configs", cfg)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/relationships/configs/parts_suppliers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/relationships/materialize",
		map[string]any{"config": cfg, "table_name": "joined"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/databases/Workorder/relationships/configs/parts_suppliers", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Bad join type is a 400.
	bad := map[string]any{
		"name":       "bad",
		"base_table": "parts",
		"relationships": []map[string]any{{
			"left_table": "parts", "left_column": "item",
			"right_table": "suppliers", "right_column": "item",
			"join_type": "CROSS",
		}},
	}
	w = doJSON(t, srv, http.MethodPost, "/api/v1/databases/Workorder/relationships/validate", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func uploadRequest(t *testing.T, path string, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func testWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Orders"))
	require.NoError(t, f.SetSheetRow("Orders", "A1", &[]any{"Item", "Qty"}))
	require.NoError(t, f.SetSheetRow("Orders", "A2", &[]any{"bolt", 10}))
	require.NoError(t, f.SetSheetRow("Orders", "A3", &[]any{"nut", 25}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestUploadAnalyze(t *testing.T) {
	srv, _ := newTestServer(t)

	req := uploadRequest(t, "/api/v1/databases/Workorder/uploads/analyze", "orders.xlsx", testWorkbook(t), nil)
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	analysis := decodeBody[map[string]any](t, w)
	sheets := analysis["sheets"].([]any)
	require.Len(t, sheets, 1)
}

func TestUploadCommit(t *testing.T) {
	srv, st := newTestServer(t)

	req := uploadRequest(t, "/api/v1/databases/Workorder/uploads", "orders.xlsx", testWorkbook(t), nil)
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := decodeBody[map[string]string](t, w)
	opID := resp["operation_id"]
	require.NotEmpty(t, opID)

	require.Eventually(t, func() bool {
		ow := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/operations/%s", opID), nil)
		if ow.Code != http.StatusOK {
			return false
		}
		op := decodeBody[map[string]any](t, ow)
		return op["status"] == "done"
	}, 5*time.Second, 20*time.Millisecond)

	infos, err := st.ListTables("")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "orders_orders", infos[0].TableName)
	assert.Equal(t, 2, infos[0].RowCount)
}

func TestUploadUnsupportedType(t *testing.T) {
	srv, _ := newTestServer(t)

	req := uploadRequest(t, "/api/v1/databases/Workorder/uploads/analyze", "notes.docx", []byte("hello"), nil)
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadCommitBadColumnTypes(t *testing.T) {
	srv, _ := newTestServer(t)

	req := uploadRequest(t, "/api/v1/databases/Workorder/uploads", "orders.xlsx", testWorkbook(t),
		map[string]string{"column_types": `{"qty": "BLOB"}`})
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportTable(t *testing.T) {
	srv, st := newTestServer(t)
	seedParts(t, st)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables/parts/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "parts.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"item", "qty"}, rows[0])

	w = doJSON(t, srv, http.MethodGet, "/api/v1/databases/Workorder/tables/ghost/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFormulaFunctionCatalog(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/fields/functions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	docs := decodeBody[[]map[string]string](t, w)
	require.NotEmpty(t, docs)

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d["name"])
	}
	assert.Contains(t, names, "IF")
	assert.Contains(t, names, "ROUND")
}

func TestFaultCauses(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/analysis/causes", map[string]string{
		"short_description": "HOIST BRAKE FAULT",
		"machine":           "STS04MNH HOIST",
		"bdn":               "CMU",
	})
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeBody[map[string]any](t, w)
	assert.Equal(t, "Braking System", res["category"])
	assert.Equal(t, "STS04", res["crane_id"])
	assert.Equal(t, "HOIST", res["equipment_type"])
	assert.NotEmpty(t, res["cause"])

	cat, ok := res["equipment_category"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "STS_Crane", cat["type"])
	assert.Equal(t, "STS04", cat["unit"])
}

func TestOperationsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/operations", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/operations/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(store.ErrTableNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(store.ErrTableExists))
	assert.Equal(t, http.StatusBadRequest, statusFor(store.ErrNotConfirmed))
	assert.Equal(t, http.StatusBadRequest, statusFor(store.ErrQueryNotAllowed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
