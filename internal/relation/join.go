package relation

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/portside-dev/craneops/internal/store"
)

// Service validates, runs and persists relationship configurations.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// buildQuery compiles a validated config into one SELECT plus its
// arguments. Column lists must already be resolved (see resolveColumns).
func buildQuery(c *Config, cols []OutputColumn) (string, []any) {
	var sel []string
	for _, col := range cols {
		sel = append(sel, fmt.Sprintf("%s.%s AS %s",
			quote(col.Table), quote(col.Column), quote(col.alias())))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(sel, ", "), quote(c.BaseTable))
	for _, rel := range c.Relationships {
		fmt.Fprintf(&b, " %s JOIN %s ON %s.%s = %s.%s",
			rel.JoinType, quote(rel.RightTable),
			quote(rel.LeftTable), quote(rel.LeftColumn),
			quote(rel.RightTable), quote(rel.RightColumn))
	}

	var args []any
	if len(c.Filters) > 0 {
		var conds []string
		for _, f := range c.Filters {
			ref := fmt.Sprintf("%s.%s", quote(f.Table), quote(f.Column))
			switch f.Op {
			case OpEq:
				conds = append(conds, ref+" = ?")
				args = append(args, f.Value)
			case OpNe:
				conds = append(conds, ref+" != ?")
				args = append(args, f.Value)
			case OpGt:
				conds = append(conds, ref+" > ?")
				args = append(args, f.Value)
			case OpLt:
				conds = append(conds, ref+" < ?")
				args = append(args, f.Value)
			case OpGe:
				conds = append(conds, ref+" >= ?")
				args = append(args, f.Value)
			case OpLe:
				conds = append(conds, ref+" <= ?")
				args = append(args, f.Value)
			case OpContains:
				conds = append(conds, ref+" LIKE ?")
				args = append(args, "%"+f.Value+"%")
			case OpEmpty:
				conds = append(conds, fmt.Sprintf("(%s IS NULL OR %s = '')", ref, ref))
			case OpNotEmpty:
				conds = append(conds, fmt.Sprintf("(%s IS NOT NULL AND %s != '')", ref, ref))
			}
		}
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	return b.String(), args
}

// Validate checks a config against the live schema: shape first, then that
// every referenced table and column actually exists.
func (s *Service) Validate(dbName string, c *Config) error {
	if err := c.validateShape(); err != nil {
		return err
	}

	schemas := map[string]map[string]bool{}
	for _, table := range c.involvedTables() {
		cols, err := s.store.TableColumns(dbName, table)
		if err != nil {
			return err
		}
		set := make(map[string]bool, len(cols))
		for _, col := range cols {
			set[col.Name] = true
		}
		schemas[table] = set
	}

	check := func(table, column string) error {
		if !schemas[table][column] {
			return fmt.Errorf("%w: column %s.%s does not exist", ErrInvalidConfig, table, column)
		}
		return nil
	}
	for _, rel := range c.Relationships {
		if err := check(rel.LeftTable, rel.LeftColumn); err != nil {
			return err
		}
		if err := check(rel.RightTable, rel.RightColumn); err != nil {
			return err
		}
	}
	for _, f := range c.Filters {
		if err := check(f.Table, f.Column); err != nil {
			return err
		}
	}
	for _, col := range c.Columns {
		if err := check(col.Table, col.Column); err != nil {
			return err
		}
	}
	return nil
}

// resolveColumns expands an empty output list to every column of every
// involved table under table_column aliases.
func (s *Service) resolveColumns(dbName string, c *Config) ([]OutputColumn, error) {
	if len(c.Columns) > 0 {
		return c.Columns, nil
	}
	var out []OutputColumn
	for _, table := range c.involvedTables() {
		cols, err := s.store.TableColumns(dbName, table)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			out = append(out, OutputColumn{Table: table, Column: col.Name})
		}
	}
	return out, nil
}

// ColumnSummary describes one output column of a preview.
type ColumnSummary struct {
	Alias    string `json:"alias"`
	Source   string `json:"source"`
	NonNull  int    `json:"non_null"`
	Distinct int    `json:"distinct"`
}

// Preview is a capped join result plus the estimated full size.
type Preview struct {
	Columns       []string         `json:"columns"`
	Rows          []map[string]any `json:"rows"`
	EstimatedRows int              `json:"estimated_rows"`
	Summaries     []ColumnSummary  `json:"summaries"`
}

// PreviewJoin validates, runs the join with a row cap and summarizes every
// output column over the previewed rows.
func (s *Service) PreviewJoin(dbName string, c *Config, limit int) (*Preview, error) {
	if err := s.Validate(dbName, c); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	cols, err := s.resolveColumns(dbName, c)
	if err != nil {
		return nil, err
	}
	query, args := buildQuery(c, cols)

	db, err := s.store.DB(dbName)
	if err != nil {
		return nil, err
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM (%s)", query)
	if err := db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("estimating join size: %w", err)
	}

	rows, err := db.Query(query+fmt.Sprintf(" LIMIT %d", limit), args...)
	if err != nil {
		return nil, fmt.Errorf("running join preview: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	preview := &Preview{Columns: names, EstimatedRows: total}
	nonNull := make([]int, len(names))
	distinct := make([]map[string]bool, len(names))
	for i := range distinct {
		distinct[i] = map[string]bool{}
	}

	for rows.Next() {
		dest := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning preview row: %w", err)
		}
		rec := make(map[string]any, len(names))
		for i, n := range names {
			v := dest[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[n] = v
			if v != nil {
				nonNull[i]++
				distinct[i][fmt.Sprint(v)] = true
			}
		}
		preview.Rows = append(preview.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, col := range cols {
		preview.Summaries = append(preview.Summaries, ColumnSummary{
			Alias:    names[i],
			Source:   col.Table + "." + col.Column,
			NonNull:  nonNull[i],
			Distinct: len(distinct[i]),
		})
	}
	return preview, nil
}

// Materialize runs the full join and writes the result into a new table.
func (s *Service) Materialize(dbName string, c *Config, targetTable string) (int, error) {
	if err := s.Validate(dbName, c); err != nil {
		return 0, err
	}
	cols, err := s.resolveColumns(dbName, c)
	if err != nil {
		return 0, err
	}
	query, args := buildQuery(c, cols)
	if len(args) > 0 {
		// MaterializeQuery runs bare SQL; inline the filter arguments.
		query = inlineArgs(query, args)
	}
	return s.store.MaterializeQuery(dbName, query, targetTable)
}

// inlineArgs substitutes placeholders with SQL-escaped literals. All
// filter values arrive as strings.
func inlineArgs(query string, args []any) string {
	var b strings.Builder
	argIdx := 0
	for _, r := range query {
		if r == '?' && argIdx < len(args) {
			v := fmt.Sprint(args[argIdx])
			argIdx++
			b.WriteString("'" + strings.ReplaceAll(v, "'", "''") + "'")
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ExportXLSX streams the full join result as a workbook.
func (s *Service) ExportXLSX(dbName string, c *Config, w io.Writer) error {
	if err := s.Validate(dbName, c); err != nil {
		return err
	}
	cols, err := s.resolveColumns(dbName, c)
	if err != nil {
		return err
	}
	query, args := buildQuery(c, cols)

	n, err := s.exportQueryXLSX(dbName, query, args, w)
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("relationship exported", "db", dbName, "config", c.Name, "rows", n)
	}
	return nil
}

// ExportTableXLSX writes one table's full contents as a workbook, through
// the same writer the join export uses.
func (s *Service) ExportTableXLSX(dbName, table string, w io.Writer) error {
	if !identPattern.MatchString(table) {
		return fmt.Errorf("%w: %q", store.ErrInvalidName, table)
	}
	exists, err := s.store.TableExists(dbName, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", store.ErrTableNotFound, table)
	}

	n, err := s.exportQueryXLSX(dbName, "SELECT * FROM "+quote(table), nil, w)
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("table exported", "db", dbName, "table", table, "rows", n)
	}
	return nil
}

// exportQueryXLSX runs the query and writes header plus rows to a fresh
// workbook, returning the data row count.
func (s *Service) exportQueryXLSX(dbName, query string, args []any, w io.Writer) (int, error) {
	db, err := s.store.DB(dbName)
	if err != nil {
		return 0, err
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return 0, fmt.Errorf("running export query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	header := make([]any, len(names))
	for i, n := range names {
		header[i] = n
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return 0, err
	}

	rowNum := 2
	for rows.Next() {
		dest := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, fmt.Errorf("scanning export row: %w", err)
		}
		for i, v := range dest {
			if b, ok := v.([]byte); ok {
				dest[i] = string(b)
			}
		}
		if err := setRow(f, sheet, rowNum, dest); err != nil {
			return 0, err
		}
		rowNum++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return rowNum - 2, f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// SaveConfig persists a named config as JSON.
func (s *Service) SaveConfig(dbName string, c *Config) error {
	if c.Name == "" {
		return fmt.Errorf("%w: config name is required", ErrInvalidConfig)
	}
	if err := c.validateShape(); err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config %s: %w", c.Name, err)
	}
	return s.store.SaveRelationshipConfig(dbName, c.Name, string(raw))
}

// LoadConfig fetches and decodes a saved config.
func (s *Service) LoadConfig(dbName, name string) (*Config, error) {
	saved, err := s.store.LoadRelationshipConfig(dbName, name)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal([]byte(saved.ConfigJSON), &c); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", name, err)
	}
	return &c, nil
}
