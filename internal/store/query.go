package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/portside-dev/craneops/internal/model"
)

// ErrQueryNotAllowed is returned for ad-hoc SQL that is not a single
// read-only SELECT statement.
var ErrQueryNotAllowed = errors.New("only single SELECT statements are allowed")

// forbiddenKeywords are rejected anywhere in ad-hoc SQL. SQLite has no
// statement-level permission system, so this is a textual allowlist in the
// spirit of a read-only role.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
	"ATTACH", "DETACH", "PRAGMA", "VACUUM", "REINDEX",
}

// stripQuoted blanks the contents of quoted literals and identifiers so the
// statement checks cannot be fooled by text inside them. A doubled quote
// escapes itself in SQLite.
func stripQuoted(q string) string {
	out := []byte(q)
	for i := 0; i < len(out); i++ {
		open := out[i]
		if open != '\'' && open != '"' && open != '`' && open != '[' {
			continue
		}
		end := open
		if open == '[' {
			end = ']'
		}
		for i++; i < len(out); i++ {
			if out[i] != end {
				out[i] = ' '
				continue
			}
			if end != ']' && i+1 < len(out) && out[i+1] == end {
				out[i], out[i+1] = ' ', ' '
				i++
				continue
			}
			break
		}
	}
	return string(out)
}

// ValidateReadOnlyQuery checks that q is a single SELECT (or WITH … SELECT)
// statement with no write or schema keywords. Quoted literals and
// identifiers are ignored by the checks.
func ValidateReadOnlyQuery(q string) error {
	trimmed := strings.TrimSpace(stripQuoted(q))
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", ErrQueryNotAllowed)
	}

	// A single trailing semicolon is tolerated; anything after it is not.
	trimmed = strings.TrimSuffix(trimmed, ";")
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("%w: multiple statements", ErrQueryNotAllowed)
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return ErrQueryNotAllowed
	}
	for _, kw := range forbiddenKeywords {
		// Keyword must appear as a word, not inside an identifier.
		idx := 0
		for {
			i := strings.Index(upper[idx:], kw)
			if i < 0 {
				break
			}
			i += idx
			before := i == 0 || !isWordChar(upper[i-1])
			afterIdx := i + len(kw)
			after := afterIdx >= len(upper) || !isWordChar(upper[afterIdx])
			if before && after {
				return fmt.Errorf("%w: %s", ErrQueryNotAllowed, kw)
			}
			idx = afterIdx
		}
	}
	return nil
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// QueryResult is the shaped output of an ad-hoc SELECT.
type QueryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// ExecuteQuery runs a validated read-only SELECT against one database.
// Results are capped at limit rows (0 means the 10000-row default).
func (s *Store) ExecuteQuery(dbName, query string, limit int) (*QueryResult, error) {
	if err := ValidateReadOnlyQuery(query); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}

	db, err := s.DB(dbName)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		if len(out) >= limit {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, name := range cols {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
			} else {
				row[name] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &QueryResult{Columns: cols, Rows: out, RowCount: len(out)}, nil
}

// MaterializeQuery stores the result of a read-only SELECT as a new table
// with a metadata row, and returns the resulting row count.
func (s *Store) MaterializeQuery(dbName, query, table string) (int, error) {
	if err := ValidateReadOnlyQuery(query); err != nil {
		return 0, err
	}
	if !validIdent(table) || reservedTables[table] {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	exists, err := s.TableExists(dbName, table)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: %s", ErrTableExists, table)
	}

	db, err := s.DB(dbName)
	if err != nil {
		return 0, err
	}

	clean := strings.TrimSuffix(strings.TrimSpace(query), ";")
	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE %s AS %s", quoteIdent(table), clean)); err != nil {
		return 0, fmt.Errorf("materializing query into %s: %w", table, err)
	}

	var rowCount int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))).Scan(&rowCount); err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", table, err)
	}
	cols, err := s.columnNames(db, table)
	if err != nil {
		return rowCount, err
	}
	err = s.PutMetadata(dbName, model.TableMetadata{
		TableName:         table,
		OriginalSheetName: "query result",
		OriginalFilename:  "query result",
		ColumnCount:       len(cols),
		RowCount:          rowCount,
		CreatedDate:       time.Now().UTC().Format(time.RFC3339),
	})
	return rowCount, err
}
