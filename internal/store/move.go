package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/portside-dev/craneops/internal/model"
)

// ProgressFunc receives progress updates from long-running operations.
type ProgressFunc func(stage string, percent int, message string)

const moveBatchSize = 500

// MoveTable copies a table into another database in batches and, unless
// keepSource is set, drops it from the source afterwards. Progress is
// reported through fn; the context only gates between batches, since
// SQLite has no statement cancellation here.
func (s *Store) MoveTable(ctx context.Context, srcDB, dstDB, table string, keepSource bool, fn ProgressFunc) error {
	if fn == nil {
		fn = func(string, int, string) {}
	}
	if !validIdent(table) || reservedTables[table] {
		return fmt.Errorf("%w: %q", ErrInvalidName, table)
	}

	fn("validating", 0, "checking source and target")
	exists, err := s.TableExists(srcDB, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	exists, err = s.TableExists(dstDB, table)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s in %s", ErrTableExists, table, dstDB)
	}

	src, err := s.DB(srcDB)
	if err != nil {
		return err
	}
	dst, err := s.DB(dstDB)
	if err != nil {
		return err
	}

	// Recreate the table with its original DDL from sqlite_master.
	fn("schema", 10, "copying table definition")
	var ddl string
	if err := src.QueryRow(
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
	).Scan(&ddl); err != nil {
		return fmt.Errorf("reading DDL of %s: %w", table, err)
	}
	if _, err := dst.Exec(ddl); err != nil {
		return fmt.Errorf("creating %s in %s: %w", table, dstDB, err)
	}

	var total int
	if err := src.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))).Scan(&total); err != nil {
		return fmt.Errorf("counting rows of %s: %w", table, err)
	}

	cols, err := s.columnNames(src, table)
	if err != nil {
		return err
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	colList := strings.Join(quoted, ", ")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), colList, placeholders)

	copied := 0
	for offset := 0; offset < total; offset += moveBatchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Paging without a fixed order would let batches overlap.
		rows, err := src.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid LIMIT %d OFFSET %d",
			colList, quoteIdent(table), moveBatchSize, offset))
		if err != nil {
			return fmt.Errorf("reading batch at %d: %w", offset, err)
		}

		tx, err := dst.Begin()
		if err != nil {
			rows.Close()
			return fmt.Errorf("beginning batch tx: %w", err)
		}
		stmt, err := tx.Prepare(insertSQL)
		if err != nil {
			rows.Close()
			tx.Rollback()
			return fmt.Errorf("preparing batch insert: %w", err)
		}

		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				stmt.Close()
				rows.Close()
				tx.Rollback()
				return fmt.Errorf("scanning batch row: %w", err)
			}
			if _, err := stmt.Exec(values...); err != nil {
				stmt.Close()
				rows.Close()
				tx.Rollback()
				return fmt.Errorf("inserting batch row: %w", err)
			}
			copied++
		}
		err = rows.Err()
		stmt.Close()
		rows.Close()
		if err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing batch: %w", err)
		}

		pct := 10
		if total > 0 {
			pct = 10 + int(float64(copied)/float64(total)*75)
		}
		fn("copying", pct, fmt.Sprintf("%d/%d rows", copied, total))
	}

	fn("metadata", 90, "writing bookkeeping")
	meta := model.TableMetadata{
		TableName:         table,
		OriginalSheetName: table,
		OriginalFilename:  fmt.Sprintf("moved from %s", srcDB),
		ColumnCount:       len(cols),
		RowCount:          copied,
		CreatedDate:       time.Now().UTC().Format(time.RFC3339),
	}
	if srcMeta, ok := s.lookupMetadata(srcDB, table); ok {
		meta.OriginalSheetName = srcMeta.OriginalSheetName
		meta.OriginalFilename = srcMeta.OriginalFilename
	}
	if err := s.PutMetadata(dstDB, meta); err != nil {
		return err
	}

	if !keepSource {
		fn("cleanup", 95, "dropping source table")
		if err := s.DeleteTable(srcDB, table, true); err != nil {
			return fmt.Errorf("dropping source after move: %w", err)
		}
	}

	fn("done", 100, fmt.Sprintf("%d rows moved", copied))
	return nil
}

func (s *Store) lookupMetadata(dbName, table string) (model.TableMetadata, bool) {
	db, err := s.DB(dbName)
	if err != nil {
		return model.TableMetadata{}, false
	}
	var m model.TableMetadata
	err = db.QueryRow(`
		SELECT table_name, original_sheet_name, original_filename,
		       column_count, row_count, created_date
		FROM table_metadata WHERE table_name = ?`, table,
	).Scan(&m.TableName, &m.OriginalSheetName, &m.OriginalFilename,
		&m.ColumnCount, &m.RowCount, &m.CreatedDate)
	if err != nil {
		return model.TableMetadata{}, false
	}
	return m, true
}
