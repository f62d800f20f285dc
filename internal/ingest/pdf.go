package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDF extracts plain text from a PDF and shapes it as a three-column
// table: page, line and content. PDFs carry no tabular structure worth
// guessing at, so the raw lines are preserved for downstream querying.
func readPDF(r io.Reader, name string) ([]SheetData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}

	var rows [][]string
	for pageNum := 1; pageNum <= doc.NumPage(); pageNum++ {
		page := doc.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single broken page should not sink the document.
			continue
		}
		lineNum := 0
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			lineNum++
			rows = append(rows, []string{
				strconv.Itoa(pageNum), strconv.Itoa(lineNum), line,
			})
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s contains no extractable text", name)
	}

	return []SheetData{{
		Name:    sheetNameFromFile(name),
		Headers: []string{"page", "line", "content"},
		Rows:    rows,
	}}, nil
}
