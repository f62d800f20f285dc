package ingest

import (
	"strconv"
	"strings"
	"time"
)

// inferSampleSize caps how many values per column feed type inference.
const inferSampleSize = 100

// dayFirstDateFormats lists the day-first layouts common in French CMMS
// exports. Four-digit years come first so they are never read as the
// two-digit form.
var dayFirstDateFormats = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	"02-01-06",
	"02.01.06",
}

func parseDayFirstDate(s string) (time.Time, bool) {
	for _, layout := range dayFirstDateFormats {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// InferColumnType picks a storage type from cell samples. A column is
// INTEGER or REAL only when at least 80% of its non-empty values parse;
// day-first date columns become DATE (stored as ISO text); everything else
// lands in TEXT, which loses nothing in SQLite.
func InferColumnType(samples []string) string {
	nonEmpty := 0
	ints := 0
	floats := 0
	dates := 0
	for _, v := range samples {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			ints++
			floats++
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			floats++
			continue
		}
		if _, ok := parseDayFirstDate(v); ok {
			dates++
		}
	}
	if nonEmpty == 0 {
		return "TEXT"
	}
	threshold := float64(nonEmpty) * 0.8
	switch {
	case float64(ints) >= threshold:
		return "INTEGER"
	case float64(floats) >= threshold:
		return "REAL"
	case float64(dates) >= threshold:
		return "DATE"
	default:
		return "TEXT"
	}
}

// columnSamples transposes up to inferSampleSize data rows into per-column
// sample slices.
func columnSamples(rows [][]string, width int) [][]string {
	n := len(rows)
	if n > inferSampleSize {
		n = inferSampleSize
	}
	out := make([][]string, width)
	for i := 0; i < n; i++ {
		for c := 0; c < width && c < len(rows[i]); c++ {
			out[c] = append(out[c], rows[i][c])
		}
	}
	return out
}

// convertValue turns a cell into the Go value inserted for the inferred
// column type. Empty cells become NULL; day-first dates are normalized to
// ISO; values that fail to parse for a typed column fall back to their
// text form.
func convertValue(v, colType string) any {
	t := strings.TrimSpace(v)
	if t == "" {
		return nil
	}
	switch colType {
	case "INTEGER":
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	case "REAL":
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	case "DATE":
		if d, ok := parseDayFirstDate(t); ok {
			return d.Format("2006-01-02")
		}
	}
	return v
}
