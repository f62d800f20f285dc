package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/portside-dev/craneops/internal/model"
)

// PageRequest describes one table-browse request.
type PageRequest struct {
	Page    int
	PerPage int
	SortBy  string
	SortDir string // "asc" or "desc"
	Search  string // substring match across all text columns
}

// GetPage returns one page of rows from a dynamic table. Rows carry their
// SQLite rowid under the "_rowid" key so records can be addressed for
// editing.
func (s *Store) GetPage(dbName, table string, req PageRequest) (*model.Page, error) {
	if !validIdent(table) || reservedTables[table] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	exists, err := s.TableExists(dbName, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	db, err := s.DB(dbName)
	if err != nil {
		return nil, err
	}
	cols, err := s.columnNames(db, table)
	if err != nil {
		return nil, err
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 || req.PerPage > 500 {
		req.PerPage = 50
	}

	where := ""
	var args []any
	if req.Search != "" {
		conds := make([]string, len(cols))
		for i, c := range cols {
			conds[i] = fmt.Sprintf("CAST(%s AS TEXT) LIKE ?", quoteIdent(c))
			args = append(args, "%"+req.Search+"%")
		}
		where = " WHERE " + strings.Join(conds, " OR ")
	}

	var total int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdent(table), where), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting rows of %s: %w", table, err)
	}

	order := ""
	if req.SortBy != "" {
		found := false
		for _, c := range cols {
			if c == req.SortBy {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, req.SortBy)
		}
		dir := "ASC"
		if strings.EqualFold(req.SortDir, "desc") {
			dir = "DESC"
		}
		order = fmt.Sprintf(" ORDER BY %s %s", quoteIdent(req.SortBy), dir)
	}

	offset := (req.Page - 1) * req.PerPage
	query := fmt.Sprintf("SELECT rowid AS _rowid, * FROM %s%s%s LIMIT %d OFFSET %d",
		quoteIdent(table), where, order, req.PerPage, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying page of %s: %w", table, err)
	}
	defer rows.Close()

	data, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	totalPages := (total + req.PerPage - 1) / req.PerPage
	return &model.Page{
		Columns:    cols,
		Rows:       data,
		Page:       req.Page,
		PerPage:    req.PerPage,
		TotalRows:  total,
		TotalPages: totalPages,
	}, nil
}

// GetRecord fetches a single row by rowid.
func (s *Store) GetRecord(dbName, table string, rowID int64) (map[string]any, error) {
	if !validIdent(table) || reservedTables[table] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	db, err := s.DB(dbName)
	if err != nil {
		return nil, err
	}
	exists, err := s.TableExists(dbName, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	rows, err := db.Query(fmt.Sprintf(
		"SELECT rowid AS _rowid, * FROM %s WHERE rowid = ?", quoteIdent(table)), rowID)
	if err != nil {
		return nil, fmt.Errorf("querying record %d of %s: %w", rowID, table, err)
	}
	defer rows.Close()

	data, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s/%d", ErrRecordNotFound, table, rowID)
	}
	return data[0], nil
}

// UpdateRecord sets the given columns of one row. Unknown columns are
// rejected rather than silently dropped.
func (s *Store) UpdateRecord(dbName, table string, rowID int64, values map[string]any) error {
	if !validIdent(table) || reservedTables[table] {
		return fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	if len(values) == 0 {
		return fmt.Errorf("no columns to update")
	}

	db, err := s.DB(dbName)
	if err != nil {
		return err
	}
	cols, err := s.columnNames(db, table)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}

	var sets []string
	var args []any
	for col, val := range values {
		if !known[col] {
			return fmt.Errorf("%w: %s", ErrColumnNotFound, col)
		}
		sets = append(sets, fmt.Sprintf("%s = ?", quoteIdent(col)))
		args = append(args, val)
	}
	args = append(args, rowID)

	res, err := db.Exec(fmt.Sprintf("UPDATE %s SET %s WHERE rowid = ?",
		quoteIdent(table), strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("updating record %d of %s: %w", rowID, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%d", ErrRecordNotFound, table, rowID)
	}
	return nil
}

// DeleteRecord removes one row by rowid.
func (s *Store) DeleteRecord(dbName, table string, rowID int64) error {
	if !validIdent(table) || reservedTables[table] {
		return fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	db, err := s.DB(dbName)
	if err != nil {
		return err
	}
	res, err := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE rowid = ?", quoteIdent(table)), rowID)
	if err != nil {
		return fmt.Errorf("deleting record %d of %s: %w", rowID, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%d", ErrRecordNotFound, table, rowID)
	}
	return nil
}

// ColumnStats computes summary statistics for one column.
func (s *Store) ColumnStats(dbName, table, column string) (*model.ColumnStats, error) {
	if !validIdent(table) || !validIdent(column) {
		return nil, fmt.Errorf("%w: %q.%q", ErrInvalidName, table, column)
	}
	db, err := s.DB(dbName)
	if err != nil {
		return nil, err
	}
	cols, err := s.columnNames(db, table)
	if err != nil {
		return nil, err
	}
	found := false
	for _, c := range cols {
		if c == column {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	stats := &model.ColumnStats{Column: column}
	qc, qt := quoteIdent(column), quoteIdent(table)

	err = db.QueryRow(fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(*) - COUNT(%s),
		       COUNT(DISTINCT %s)
		FROM %s`, qc, qc, qt)).Scan(&stats.Count, &stats.NullCount, &stats.DistinctCount)
	if err != nil {
		return nil, fmt.Errorf("computing stats for %s.%s: %w", table, column, err)
	}

	// Numeric aggregates only make sense when every non-null value parses
	// as a number: the text form may contain only digits, sign, dot and
	// exponent characters.
	var numericCount int
	err = db.QueryRow(fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE %s IS NOT NULL
		  AND TRIM(CAST(%s AS TEXT)) != ''
		  AND TRIM(CAST(%s AS TEXT)) NOT GLOB '*[^0-9.+-eE]*'`,
		qt, qc, qc, qc)).Scan(&numericCount)
	if err != nil {
		numericCount = 0
	}
	nonNull := stats.Count - stats.NullCount
	if nonNull > 0 && numericCount >= nonNull {
		var minV, maxV, avgV sql.NullFloat64
		err = db.QueryRow(fmt.Sprintf(
			"SELECT MIN(CAST(%s AS REAL)), MAX(CAST(%s AS REAL)), AVG(CAST(%s AS REAL)) FROM %s WHERE %s IS NOT NULL",
			qc, qc, qc, qt, qc)).Scan(&minV, &maxV, &avgV)
		if err == nil {
			if minV.Valid {
				stats.Min = &minV.Float64
			}
			if maxV.Valid {
				stats.Max = &maxV.Float64
			}
			if avgV.Valid {
				stats.Avg = &avgV.Float64
			}
		}
	}
	return stats, nil
}

// scanRows converts a result set into generic row maps.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	colNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(colNames))
		ptrs := make([]any, len(colNames))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(colNames))
		for i, name := range colNames {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
			} else {
				row[name] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
