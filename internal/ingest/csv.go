package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// candidate delimiters, tried in order.
var csvDelimiters = []rune{',', ';', '\t', '|'}

// readCSV parses a delimited text file into a single SheetData. The
// delimiter is sniffed from the first lines, a UTF-8 BOM is stripped, and
// files that are not valid UTF-8 are re-decoded as Windows-1252, the usual
// encoding of CMMS exports.
func readCSV(r io.Reader, name string) ([]SheetData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	if !utf8.Valid(raw) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s as Windows-1252: %w", name, err)
		}
		raw = decoded
	}

	delim := sniffDelimiter(raw)
	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = delim
	cr.FieldsPerRecord = -1 // ragged rows are padded below
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	headerIdx := -1
	for i, rec := range records {
		if !rowEmpty(rec) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("%s contains no data", name)
	}

	headers := records[headerIdx]
	var rows [][]string
	for _, rec := range records[headerIdx+1:] {
		if rowEmpty(rec) {
			continue
		}
		rows = append(rows, padRow(rec, len(headers)))
	}

	return []SheetData{{Name: sheetNameFromFile(name), Headers: headers, Rows: rows}}, nil
}

// sniffDelimiter counts candidate delimiters over the first few lines and
// picks the most consistent one. Comma wins ties.
func sniffDelimiter(raw []byte) rune {
	sample := raw
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	lines := strings.Split(string(sample), "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}

	best := ','
	bestCount := 0
	for _, d := range csvDelimiters {
		count := 0
		for _, line := range lines {
			count += strings.Count(line, string(d))
		}
		if count > bestCount {
			best = d
			bestCount = count
		}
	}
	return best
}

func sheetNameFromFile(name string) string {
	base := name
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
