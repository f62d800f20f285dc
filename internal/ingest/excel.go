package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetData is the parsed contents of one sheet (or one CSV file, or one
// PDF document): a header row and string cell rows.
type SheetData struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// readExcel parses every non-empty sheet of an .xlsx/.xlsm workbook. The
// first non-empty row of each sheet is taken as the header row.
func readExcel(r io.Reader) ([]SheetData, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var sheets []SheetData
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", name, err)
		}

		headerIdx := -1
		for i, row := range rows {
			if !rowEmpty(row) {
				headerIdx = i
				break
			}
		}
		if headerIdx < 0 {
			continue // fully empty sheet
		}

		headers := rows[headerIdx]
		var data [][]string
		for _, row := range rows[headerIdx+1:] {
			if rowEmpty(row) {
				continue
			}
			data = append(data, padRow(row, len(headers)))
		}
		sheets = append(sheets, SheetData{Name: name, Headers: headers, Rows: data})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook contains no data")
	}
	return sheets, nil
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// padRow right-pads short rows so every row matches the header width.
// GetRows trims trailing empty cells per row.
func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
