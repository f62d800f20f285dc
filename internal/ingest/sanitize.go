// Package ingest turns uploaded Excel, CSV and PDF files into dynamic
// SQLite tables. Processing happens in two phases: Analyze inspects the
// file and proposes table names and column types, Process creates the
// tables and bulk-inserts the rows.
package ingest

import (
	"fmt"
	"strings"
	"unicode"
)

// SanitizeName converts arbitrary sheet or file names into safe SQL
// identifiers: lower case, runs of non-alphanumerics collapsed to single
// underscores, and a "t_" prefix when the result would start with a digit
// or be empty.
func SanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) && r < 128 {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "t_unnamed"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "t_" + out
	}
	return out
}

// uniqueColumns sanitizes a header row and deduplicates the results with
// numeric suffixes. Blank headers become column_1, column_2, ...
func uniqueColumns(headers []string) []string {
	out := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := SanitizeName(h)
		if strings.TrimSpace(h) == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		if _, ok := seen[name]; !ok {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}
