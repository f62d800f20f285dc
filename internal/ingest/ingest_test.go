package ingest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/portside-dev/craneops/internal/store"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Work Orders 2024", "work_orders_2024"},
		{"all CM", "all_cm"},
		{"Comptage Stock (v2)", "comptage_stock_v2"},
		{"2024 report", "t_2024_report"},
		{"___", "t_unnamed"},
		{"", "t_unnamed"},
		{"déjà-vu", "d_j_vu"},
		{"already_clean", "already_clean"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestUniqueColumns(t *testing.T) {
	got := uniqueColumns([]string{"Name", "name", "", "Qty (pcs)"})
	assert.Equal(t, []string{"name", "name_2", "column_3", "qty_pcs"}, got)
}

func TestInferColumnType(t *testing.T) {
	assert.Equal(t, "INTEGER", InferColumnType([]string{"1", "2", "30", ""}))
	assert.Equal(t, "REAL", InferColumnType([]string{"1.5", "2", "3.25"}))
	assert.Equal(t, "TEXT", InferColumnType([]string{"1", "two", "three", "four", "five"}))
	assert.Equal(t, "TEXT", InferColumnType(nil))
	assert.Equal(t, "TEXT", InferColumnType([]string{"", "  "}))
	// One outlier in ten stays numeric.
	assert.Equal(t, "INTEGER", InferColumnType([]string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "x"}))
	// Day-first dates in any of the common separators.
	assert.Equal(t, "DATE", InferColumnType([]string{"25/12/2023", "01-02-2023", "31.01.23", ""}))
	assert.Equal(t, "TEXT", InferColumnType([]string{"25/12/2023", "soon", "later", "never", "eventually"}))
}

func TestConvertValue(t *testing.T) {
	assert.Equal(t, int64(42), convertValue("42", "INTEGER"))
	assert.Equal(t, 2.5, convertValue("2.5", "REAL"))
	assert.Equal(t, "abc", convertValue("abc", "INTEGER")) // unparseable keeps text
	assert.Nil(t, convertValue("", "TEXT"))
	assert.Nil(t, convertValue("   ", "REAL"))
	assert.Equal(t, "hello", convertValue("hello", "TEXT"))
	// Dates normalize to ISO; unparseable cells keep their text.
	assert.Equal(t, "2023-12-25", convertValue("25/12/2023", "DATE"))
	assert.Equal(t, "2023-02-01", convertValue("01.02.23", "DATE"))
	assert.Equal(t, "pending", convertValue("pending", "DATE"))
}

func workbookBytes(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Orders"))
	for i, row := range [][]any{
		{"Item", "Qty", "Unit Price"},
		{"rope", 2, 10.5},
		{"shackle", 5, 3.0},
	} {
		require.NoError(t, f.SetSheetRow("Orders", cell(t, 1, i+1), &row))
	}

	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	for i, row := range [][]any{
		{"Text"},
		{"check brakes"},
	} {
		require.NoError(t, f.SetSheetRow("Notes", cell(t, 1, i+1), &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func cell(t *testing.T, col, row int) string {
	t.Helper()
	name, err := excelize.CoordinatesToCellName(col, row)
	require.NoError(t, err)
	return name
}

func TestAnalyzeExcel(t *testing.T) {
	p := NewProcessor(nil, nil, 2)

	analysis, err := p.Analyze(workbookBytes(t), "Maintenance Data.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "excel", analysis.FileType)
	require.Len(t, analysis.Sheets, 2)

	orders := analysis.Sheets[0]
	assert.Equal(t, "Orders", orders.SheetName)
	assert.Equal(t, "maintenance_data_orders", orders.ProposedTable)
	assert.Equal(t, 2, orders.RowCount)
	require.Len(t, orders.Columns, 3)
	assert.Equal(t, ColumnPlan{Name: "item", SourceHeader: "Item", Type: "TEXT"}, orders.Columns[0])
	assert.Equal(t, "INTEGER", orders.Columns[1].Type)
	assert.Equal(t, "REAL", orders.Columns[2].Type)

	assert.Equal(t, "maintenance_data_notes", analysis.Sheets[1].ProposedTable)
}

func TestProcessExcel(t *testing.T) {
	st, err := store.Open(t.TempDir(), "excel_data")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	p := NewProcessor(st, nil, 2)

	var stages []string
	results, err := p.Process(context.Background(), "", workbookBytes(t), "Maintenance Data.xlsx", nil,
		func(stage string, pct int, msg string) { stages = append(stages, stage) })
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, stages, "done")

	// Results keep sheet order.
	assert.Equal(t, "maintenance_data_orders", results[0].TableName)
	assert.Equal(t, 2, results[0].Rows)
	assert.Equal(t, 3, results[0].Columns)

	infos, err := st.ListTables("")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	for _, info := range infos {
		assert.False(t, info.Orphaned)
		assert.Equal(t, "Maintenance Data.xlsx", info.OriginalFilename)
	}

	db, err := st.DB("")
	require.NoError(t, err)
	var qty int64
	require.NoError(t, db.QueryRow(
		`SELECT qty FROM maintenance_data_orders WHERE item = 'rope'`).Scan(&qty))
	assert.Equal(t, int64(2), qty)
}

func TestProcessReuploadCreatesNewTables(t *testing.T) {
	st, err := store.Open(t.TempDir(), "excel_data")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	p := NewProcessor(st, nil, 2)

	_, err = p.Process(context.Background(), "", workbookBytes(t), "Maintenance Data.xlsx", nil, nil)
	require.NoError(t, err)
	results, err := p.Process(context.Background(), "", workbookBytes(t), "Maintenance Data.xlsx", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "maintenance_data_orders_2", results[0].TableName)
	assert.Equal(t, "maintenance_data_notes_2", results[1].TableName)

	infos, err := st.ListTables("")
	require.NoError(t, err)
	assert.Len(t, infos, 4)
}

func TestProcessColumnTypeOverride(t *testing.T) {
	st, err := store.Open(t.TempDir(), "excel_data")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	p := NewProcessor(st, nil, 2)

	// Qty would infer INTEGER; the override pins it to TEXT.
	_, err = p.Process(context.Background(), "", workbookBytes(t), "Maintenance Data.xlsx",
		map[string]string{"qty": "text"}, nil)
	require.NoError(t, err)

	cols, err := st.TableColumns("", "maintenance_data_orders")
	require.NoError(t, err)
	byName := map[string]string{}
	for _, c := range cols {
		byName[c.Name] = c.Type
	}
	assert.Equal(t, "TEXT", byName["qty"])
	assert.Equal(t, "REAL", byName["unit_price"])
}

func TestProcessNormalizesFrenchDates(t *testing.T) {
	st, err := store.Open(t.TempDir(), "excel_data")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	p := NewProcessor(st, nil, 1)

	csv := "Ref,Order Date\nWO-1,25/12/2023\nWO-2,03/01/2024\n"
	_, err = p.Process(context.Background(), "", strings.NewReader(csv), "orders.csv", nil, nil)
	require.NoError(t, err)

	// The column is declared TEXT but every value is stored in ISO form.
	cols, err := st.TableColumns("", "orders")
	require.NoError(t, err)
	byName := map[string]string{}
	for _, c := range cols {
		byName[c.Name] = c.Type
	}
	assert.Equal(t, "TEXT", byName["order_date"])

	db, err := st.DB("")
	require.NoError(t, err)
	var date string
	require.NoError(t, db.QueryRow(
		`SELECT order_date FROM orders WHERE ref = 'WO-1'`).Scan(&date))
	assert.Equal(t, "2023-12-25", date)
}

func TestReadCSVDelimiterAndEncoding(t *testing.T) {
	// Semicolon-delimited, Windows-1252 encoded (0xE9 is é).
	raw := []byte("Pi\xE8ce;Quantit\xE9\nc\xE2ble;3\nfrein;5\n")

	sheets, err := readCSV(bytes.NewReader(raw), "Comptage Stock.csv")
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	s := sheets[0]
	assert.Equal(t, "Comptage Stock", s.Name)
	assert.Equal(t, []string{"Pièce", "Quantité"}, s.Headers)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, []string{"câble", "3"}, s.Rows[0])
}

func TestReadCSVWithBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,2\n")...)
	sheets, err := readCSV(bytes.NewReader(raw), "data.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sheets[0].Headers)
}

func TestReadCSVRaggedRows(t *testing.T) {
	sheets, err := readCSV(strings.NewReader("a,b,c\n1,2\n4,5,6,7\n"), "x.csv")
	require.NoError(t, err)
	require.Len(t, sheets[0].Rows, 2)
	assert.Equal(t, []string{"1", "2", ""}, sheets[0].Rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, sheets[0].Rows[1])
}

func TestProcessUnsupportedFile(t *testing.T) {
	p := NewProcessor(nil, nil, 1)
	_, err := p.Analyze(strings.NewReader("x"), "photo.png")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1;2;3\n")))
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c\n")))
	assert.Equal(t, '\t', sniffDelimiter([]byte("a\tb\tc\n")))
	assert.Equal(t, '|', sniffDelimiter([]byte("a|b|c\n")))
}
