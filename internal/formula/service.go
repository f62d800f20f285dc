package formula

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/portside-dev/craneops/internal/store"
)

// Service applies calculated fields to dynamic tables: it validates a
// formula against the table schema, adds the target column and fills it
// row by row.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// ValidationResult reports what a formula references and a preview of its
// output on real rows.
type ValidationResult struct {
	Valid             bool     `json:"valid"`
	Error             string   `json:"error,omitempty"`
	ReferencedColumns []string `json:"referenced_columns,omitempty"`
	SampleResults     []any    `json:"sample_results,omitempty"`
}

// ApplyResult summarizes one calculated-field run. Rows whose evaluation
// failed keep a NULL in the new column and are counted, never fatal.
type ApplyResult struct {
	FieldName   string `json:"field_name"`
	RowsUpdated int    `json:"rows_updated"`
	RowErrors   int    `json:"row_errors"`
}

const sampleRows = 5

// ErrInvalidFormula is returned by Apply when the formula fails validation.
var ErrInvalidFormula = errors.New("invalid formula")

// Validate parses the formula, checks every referenced column against the
// table schema and evaluates it on a handful of rows.
func (s *Service) Validate(dbName, table, formula string) (*ValidationResult, error) {
	expr, err := Parse(formula)
	if err != nil {
		return &ValidationResult{Valid: false, Error: err.Error()}, nil
	}

	cols, err := s.store.TableColumns(dbName, table)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c.Name] = true
	}

	refs := ReferencedColumns(expr)
	for _, ref := range refs {
		if !known[ref] {
			return &ValidationResult{
				Valid: false,
				Error: fmt.Sprintf("column [%s] does not exist in %s", ref, table),
			}, nil
		}
	}

	samples, err := s.sampleEval(dbName, table, expr, refs)
	if err != nil {
		return nil, err
	}
	return &ValidationResult{Valid: true, ReferencedColumns: refs, SampleResults: samples}, nil
}

func (s *Service) sampleEval(dbName, table string, expr Expr, refs []string) ([]any, error) {
	rows, err := s.queryRefs(dbName, table, refs, sampleRows)
	if err != nil {
		return nil, err
	}

	samples := make([]any, 0, len(rows))
	for _, env := range rows {
		v, err := Eval(expr, env)
		if err != nil {
			samples = append(samples, nil)
			continue
		}
		samples = append(samples, v)
	}
	return samples, nil
}

// Apply adds fieldName to the table and computes the formula for every
// row. The column type follows the formula output: numeric results get
// REAL, everything else TEXT.
func (s *Service) Apply(dbName, table, fieldName, formula string) (*ApplyResult, error) {
	res, err := s.Validate(dbName, table, formula)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormula, res.Error)
	}

	expr, err := Parse(formula)
	if err != nil {
		return nil, err
	}

	cols, err := s.store.TableColumns(dbName, table)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if strings.EqualFold(c.Name, fieldName) {
			return nil, fmt.Errorf("column %q already exists in %s: %w", fieldName, table, store.ErrInvalidName)
		}
	}

	colType := "TEXT"
	if allNumeric(res.SampleResults) {
		colType = "REAL"
	}
	if err := s.store.AddColumn(dbName, table, fieldName, colType); err != nil {
		return nil, err
	}

	refs := ReferencedColumns(expr)
	rows, err := s.queryRefs(dbName, table, refs, 0)
	if err != nil {
		return nil, err
	}

	db, err := s.store.DB(dbName)
	if err != nil {
		return nil, err
	}
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting calculated field transaction: %w", err)
	}
	defer tx.Rollback()

	update, err := tx.Prepare(fmt.Sprintf(
		`UPDATE "%s" SET "%s" = ? WHERE rowid = ?`, table, fieldName))
	if err != nil {
		return nil, fmt.Errorf("preparing update: %w", err)
	}
	defer update.Close()

	out := &ApplyResult{FieldName: fieldName}
	for _, env := range rows {
		rowID := env["_rowid"].(int64)
		delete(env, "_rowid")

		v, err := Eval(expr, env)
		if err != nil {
			// NULL stays in place for this row.
			out.RowErrors++
			if s.logger != nil && !errors.Is(err, ErrNullOperand) {
				s.logger.Debug("calculated field row failed",
					"table", table, "field", fieldName, "rowid", rowID, "error", err)
			}
			continue
		}
		if _, err := update.Exec(v, rowID); err != nil {
			return nil, fmt.Errorf("writing calculated value: %w", err)
		}
		out.RowsUpdated++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing calculated field: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("calculated field applied",
			"db", dbName, "table", table, "field", fieldName,
			"rows", out.RowsUpdated, "row_errors", out.RowErrors)
	}
	return out, nil
}

// queryRefs reads rowid plus the referenced columns. limit 0 means all
// rows.
func (s *Service) queryRefs(dbName, table string, refs []string, limit int) ([]Env, error) {
	db, err := s.store.DB(dbName)
	if err != nil {
		return nil, err
	}

	sel := `rowid AS _rowid`
	for _, r := range refs {
		sel += fmt.Sprintf(`, "%s"`, r)
	}
	query := fmt.Sprintf(`SELECT %s FROM "%s"`, sel, table)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("reading rows from %s: %w", table, err)
	}
	defer rows.Close()

	var out []Env
	for rows.Next() {
		dest := make([]any, len(refs)+1)
		ptrs := make([]any, len(dest))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		env := Env{"_rowid": dest[0]}
		for i, r := range refs {
			v := dest[i+1]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			env[r] = v
		}
		out = append(out, env)
	}
	return out, rows.Err()
}

// allNumeric ignores NULL previews: a numeric formula over a column with
// gaps still deserves a REAL column.
func allNumeric(samples []any) bool {
	seen := false
	for _, s := range samples {
		if s == nil {
			continue
		}
		if _, ok := s.(float64); !ok {
			return false
		}
		seen = true
	}
	return seen
}
