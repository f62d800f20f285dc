// Package relation implements the relationship designer: suggesting join
// candidates between dynamic tables, validating join configurations,
// building and running the resulting read-only SQL, and exporting results.
package relation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Join types accepted by the designer. RIGHT and FULL joins are not
// offered; SQLite only grew them recently and LEFT covers the use cases.
const (
	JoinInner = "INNER"
	JoinLeft  = "LEFT"
)

// Filter operators.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpGt       = "gt"
	OpLt       = "lt"
	OpGe       = "ge"
	OpLe       = "le"
	OpContains = "contains"
	OpEmpty    = "empty"
	OpNotEmpty = "not_empty"
)

var ErrInvalidConfig = errors.New("invalid relationship configuration")

// Relationship links one column pair across two tables.
type Relationship struct {
	LeftTable   string `json:"left_table"`
	LeftColumn  string `json:"left_column"`
	RightTable  string `json:"right_table"`
	RightColumn string `json:"right_column"`
	JoinType    string `json:"join_type"`
}

// Filter restricts the joined rows. Value is unused for empty/not_empty.
type Filter struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  string `json:"value,omitempty"`
}

// OutputColumn selects one column for the result set. An empty Alias
// defaults to table_column.
type OutputColumn struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Alias  string `json:"alias,omitempty"`
}

// Config is one saved relationship design. With no output columns, every
// column of every involved table is selected under table_column aliases.
type Config struct {
	Name          string         `json:"name"`
	BaseTable     string         `json:"base_table"`
	Relationships []Relationship `json:"relationships"`
	Filters       []Filter       `json:"filters,omitempty"`
	Columns       []OutputColumn `json:"columns,omitempty"`
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var filterOps = map[string]bool{
	OpEq: true, OpNe: true, OpGt: true, OpLt: true, OpGe: true, OpLe: true,
	OpContains: true, OpEmpty: true, OpNotEmpty: true,
}

// validateShape checks everything that needs no database access: join
// types, operator names, identifier syntax and join connectivity (every
// relationship must attach to a table already in the join tree).
func (c *Config) validateShape() error {
	if !identPattern.MatchString(c.BaseTable) {
		return fmt.Errorf("%w: base table %q", ErrInvalidConfig, c.BaseTable)
	}
	if len(c.Relationships) == 0 {
		return fmt.Errorf("%w: at least one relationship is required", ErrInvalidConfig)
	}

	joined := map[string]bool{c.BaseTable: true}
	for _, rel := range c.Relationships {
		for _, ident := range []string{rel.LeftTable, rel.LeftColumn, rel.RightTable, rel.RightColumn} {
			if !identPattern.MatchString(ident) {
				return fmt.Errorf("%w: identifier %q", ErrInvalidConfig, ident)
			}
		}
		if rel.JoinType != JoinInner && rel.JoinType != JoinLeft {
			return fmt.Errorf("%w: join type %q (INNER or LEFT)", ErrInvalidConfig, rel.JoinType)
		}
		if !joined[rel.LeftTable] {
			return fmt.Errorf("%w: %s joins against %s before it is reachable",
				ErrInvalidConfig, rel.RightTable, rel.LeftTable)
		}
		if joined[rel.RightTable] {
			return fmt.Errorf("%w: table %s joined twice", ErrInvalidConfig, rel.RightTable)
		}
		joined[rel.RightTable] = true
	}

	for _, f := range c.Filters {
		if !joined[f.Table] {
			return fmt.Errorf("%w: filter on unjoined table %s", ErrInvalidConfig, f.Table)
		}
		if !identPattern.MatchString(f.Column) {
			return fmt.Errorf("%w: filter column %q", ErrInvalidConfig, f.Column)
		}
		if !filterOps[f.Op] {
			return fmt.Errorf("%w: filter operator %q", ErrInvalidConfig, f.Op)
		}
	}

	seen := map[string]bool{}
	for _, col := range c.Columns {
		if !joined[col.Table] {
			return fmt.Errorf("%w: output column from unjoined table %s", ErrInvalidConfig, col.Table)
		}
		if !identPattern.MatchString(col.Column) {
			return fmt.Errorf("%w: output column %q", ErrInvalidConfig, col.Column)
		}
		alias := col.alias()
		if seen[alias] {
			return fmt.Errorf("%w: duplicate output alias %q", ErrInvalidConfig, alias)
		}
		seen[alias] = true
	}
	return nil
}

func (c OutputColumn) alias() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Table + "_" + c.Column
}

// involvedTables returns the base table plus every joined table, in join
// order.
func (c *Config) involvedTables() []string {
	out := []string{c.BaseTable}
	for _, rel := range c.Relationships {
		out = append(out, rel.RightTable)
	}
	return out
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
