package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/portside-dev/craneops/internal/model"
)

// ColumnDef declares one column of a dynamic table.
type ColumnDef struct {
	Name string
	Type string // TEXT, INTEGER or REAL
}

// reserved bookkeeping tables are invisible to table listings and protected
// from dynamic-table operations.
var reservedTables = map[string]bool{
	"table_metadata":       true,
	"relationship_configs": true,
}

// TableExists reports whether a user table is present in sqlite_master.
func (s *Store) TableExists(dbName, table string) (bool, error) {
	db, err := s.DB(dbName)
	if err != nil {
		return false, err
	}
	var n int
	err = db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return n > 0, nil
}

// EnsureUniqueTableName returns base if free, otherwise base_2, base_3, ...
// Re-uploads therefore always create a new table; they never merge.
func (s *Store) EnsureUniqueTableName(dbName, base string) (string, error) {
	name := base
	for i := 2; ; i++ {
		exists, err := s.TableExists(dbName, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

// CreateTable creates a dynamic table with the given column definitions.
func (s *Store) CreateTable(dbName, table string, cols []ColumnDef) error {
	if !validIdent(table) || reservedTables[table] {
		return fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	if len(cols) == 0 {
		return fmt.Errorf("table %s: at least one column is required", table)
	}

	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		if !validIdent(c.Name) {
			return fmt.Errorf("%w: column %q", ErrInvalidName, c.Name)
		}
		typ := strings.ToUpper(c.Type)
		switch typ {
		case "TEXT", "INTEGER", "REAL":
		default:
			typ = "TEXT"
		}
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(c.Name), typ))
	}

	db, err := s.DB(dbName)
	if err != nil {
		return err
	}
	exists, err := s.TableExists(dbName, table)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTableExists, table)
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

// InsertRows bulk-inserts rows into a dynamic table inside one transaction
// and returns the number of rows written.
func (s *Store) InsertRows(dbName, table string, cols []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if !validIdent(table) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		if !validIdent(c) {
			return 0, fmt.Errorf("%w: column %q", ErrInvalidName, c)
		}
		quoted[i] = quoteIdent(c)
	}

	db, err := s.DB(dbName)
	if err != nil {
		return 0, err
	}
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning insert tx: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), placeholders,
	))
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range rows {
		if len(row) != len(cols) {
			return inserted, fmt.Errorf("row has %d values, want %d", len(row), len(cols))
		}
		if _, err := stmt.Exec(row...); err != nil {
			return inserted, fmt.Errorf("inserting row: %w", err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("committing insert: %w", err)
	}
	return inserted, nil
}

// PutMetadata writes or replaces the bookkeeping row for a table.
func (s *Store) PutMetadata(dbName string, meta model.TableMetadata) error {
	db, err := s.DB(dbName)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT OR REPLACE INTO table_metadata
		(table_name, original_sheet_name, original_filename, column_count, row_count, created_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		meta.TableName, meta.OriginalSheetName, meta.OriginalFilename,
		meta.ColumnCount, meta.RowCount, meta.CreatedDate,
	)
	if err != nil {
		return fmt.Errorf("writing metadata for %s: %w", meta.TableName, err)
	}
	return nil
}

// ListTables returns every user table with its metadata. Orphaned tables
// (present in sqlite_master but missing a metadata row) are flagged rather
// than hidden so they can be repaired.
func (s *Store) ListTables(dbName string) ([]model.TableInfo, error) {
	db, err := s.DB(dbName)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		if !reservedTables[name] {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)

	metas := make(map[string]model.TableMetadata)
	mrows, err := db.Query(`
		SELECT table_name, original_sheet_name, original_filename,
		       column_count, row_count, created_date
		FROM table_metadata`)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var m model.TableMetadata
		if err := mrows.Scan(&m.TableName, &m.OriginalSheetName, &m.OriginalFilename,
			&m.ColumnCount, &m.RowCount, &m.CreatedDate); err != nil {
			return nil, fmt.Errorf("scanning metadata: %w", err)
		}
		metas[m.TableName] = m
	}
	if err := mrows.Err(); err != nil {
		return nil, err
	}

	infos := make([]model.TableInfo, 0, len(names))
	for _, name := range names {
		info := model.TableInfo{}
		if m, ok := metas[name]; ok {
			info.TableMetadata = m
		} else {
			info.TableName = name
			info.Orphaned = true
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// RepairMetadata backfills a metadata row for an orphaned table from live
// counts and returns the repaired row.
func (s *Store) RepairMetadata(dbName, table string) (model.TableMetadata, error) {
	if !validIdent(table) || reservedTables[table] {
		return model.TableMetadata{}, fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	exists, err := s.TableExists(dbName, table)
	if err != nil {
		return model.TableMetadata{}, err
	}
	if !exists {
		return model.TableMetadata{}, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	db, err := s.DB(dbName)
	if err != nil {
		return model.TableMetadata{}, err
	}

	var rowCount int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))).Scan(&rowCount); err != nil {
		return model.TableMetadata{}, fmt.Errorf("counting rows of %s: %w", table, err)
	}
	cols, err := s.columnNames(db, table)
	if err != nil {
		return model.TableMetadata{}, err
	}

	meta := model.TableMetadata{
		TableName:         table,
		OriginalSheetName: "recovered",
		OriginalFilename:  "recovered",
		ColumnCount:       len(cols),
		RowCount:          rowCount,
		CreatedDate:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.PutMetadata(dbName, meta); err != nil {
		return model.TableMetadata{}, err
	}
	return meta, nil
}

// RenameTable renames a dynamic table and keeps its metadata row in step.
func (s *Store) RenameTable(dbName, oldName, newName string) error {
	if !validIdent(oldName) || reservedTables[oldName] {
		return fmt.Errorf("%w: %q", ErrInvalidName, oldName)
	}
	if !validIdent(newName) || reservedTables[newName] {
		return fmt.Errorf("%w: %q", ErrInvalidName, newName)
	}
	exists, err := s.TableExists(dbName, oldName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTableNotFound, oldName)
	}
	exists, err = s.TableExists(dbName, newName)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTableExists, newName)
	}

	db, err := s.DB(dbName)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning rename tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		quoteIdent(oldName), quoteIdent(newName))); err != nil {
		return fmt.Errorf("renaming %s: %w", oldName, err)
	}
	if _, err := tx.Exec(`UPDATE table_metadata SET table_name = ? WHERE table_name = ?`,
		newName, oldName); err != nil {
		return fmt.Errorf("updating metadata for %s: %w", oldName, err)
	}
	return tx.Commit()
}

// DuplicateTable copies a table's schema, and optionally its data, into a
// new table in the same database.
func (s *Store) DuplicateTable(dbName, source, target string, copyData bool) error {
	if !validIdent(source) || reservedTables[source] {
		return fmt.Errorf("%w: %q", ErrInvalidName, source)
	}
	if !validIdent(target) || reservedTables[target] {
		return fmt.Errorf("%w: %q", ErrInvalidName, target)
	}
	exists, err := s.TableExists(dbName, source)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTableNotFound, source)
	}
	exists, err = s.TableExists(dbName, target)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrTableExists, target)
	}

	db, err := s.DB(dbName)
	if err != nil {
		return err
	}

	where := ""
	if !copyData {
		where = " WHERE 0"
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s%s",
		quoteIdent(target), quoteIdent(source), where)); err != nil {
		return fmt.Errorf("duplicating %s: %w", source, err)
	}

	rowCount := 0
	if copyData {
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(target))).Scan(&rowCount); err != nil {
			return fmt.Errorf("counting rows of %s: %w", target, err)
		}
	}
	cols, err := s.columnNames(db, target)
	if err != nil {
		return err
	}
	return s.PutMetadata(dbName, model.TableMetadata{
		TableName:         target,
		OriginalSheetName: source,
		OriginalFilename:  "duplicate of " + source,
		ColumnCount:       len(cols),
		RowCount:          rowCount,
		CreatedDate:       time.Now().UTC().Format(time.RFC3339),
	})
}

// AddColumn appends a nullable column to an existing dynamic table and
// bumps the metadata column count.
func (s *Store) AddColumn(dbName, table, column, colType string) error {
	if !validIdent(table) || reservedTables[table] {
		return fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	if !validIdent(column) {
		return fmt.Errorf("%w: column %q", ErrInvalidName, column)
	}
	typ := strings.ToUpper(colType)
	switch typ {
	case "TEXT", "INTEGER", "REAL":
	default:
		typ = "TEXT"
	}
	exists, err := s.TableExists(dbName, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	db, err := s.DB(dbName)
	if err != nil {
		return err
	}
	if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		quoteIdent(table), quoteIdent(column), typ)); err != nil {
		return fmt.Errorf("adding column %s to %s: %w", column, table, err)
	}
	_, err = db.Exec(`UPDATE table_metadata SET column_count = column_count + 1 WHERE table_name = ?`, table)
	if err != nil {
		return fmt.Errorf("updating metadata for %s: %w", table, err)
	}
	return nil
}

// DeleteTable drops a table and its metadata row.
func (s *Store) DeleteTable(dbName, table string, confirm bool) error {
	if !confirm {
		return ErrNotConfirmed
	}
	if !validIdent(table) || reservedTables[table] {
		return fmt.Errorf("%w: %q", ErrInvalidName, table)
	}
	exists, err := s.TableExists(dbName, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	db, err := s.DB(dbName)
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(fmt.Sprintf("DROP TABLE %s", quoteIdent(table))); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}
	if _, err := tx.Exec(`DELETE FROM table_metadata WHERE table_name = ?`, table); err != nil {
		return fmt.Errorf("deleting metadata for %s: %w", table, err)
	}
	return tx.Commit()
}

var numericValue = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
	regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`),
	regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`),
}

// TableColumns returns the columns of a table with declared types, a
// sample-based inferred type, and up to five sample values.
func (s *Store) TableColumns(dbName, table string) ([]model.Column, error) {
	if !validIdent(table) {
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

	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("reading schema of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []model.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		cols = append(cols, model.Column{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cols {
		samples, err := s.sampleColumn(db, table, cols[i].Name, 100)
		if err != nil {
			return nil, err
		}
		cols[i].InferredType = inferValueType(samples)
		if len(samples) > 5 {
			samples = samples[:5]
		}
		cols[i].SampleValues = samples
	}
	return cols, nil
}

func (s *Store) sampleColumn(db *sql.DB, table, column string, limit int) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		quoteIdent(column), quoteIdent(table), quoteIdent(column), limit,
	))
	if err != nil {
		return nil, fmt.Errorf("sampling %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var samples []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		samples = append(samples, fmt.Sprintf("%v", v))
	}
	return samples, rows.Err()
}

// inferValueType buckets a column as numeric, date or text by majority vote
// over its sampled values (>= 80% agreement required).
func inferValueType(samples []string) string {
	if len(samples) == 0 {
		return "text"
	}
	numeric, date := 0, 0
	for _, v := range samples {
		if numericValue.MatchString(strings.TrimSpace(v)) {
			numeric++
			continue
		}
		if isDateLike(v) {
			date++
		}
	}
	total := float64(len(samples))
	switch {
	case float64(numeric)/total > 0.8:
		return "numeric"
	case float64(date)/total > 0.8:
		return "date"
	default:
		return "text"
	}
}

func isDateLike(v string) bool {
	v = strings.TrimSpace(v)
	for _, p := range datePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

func (s *Store) columnNames(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("reading schema of %s: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
