package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/portside-dev/craneops/internal/model"
	"github.com/portside-dev/craneops/internal/store"
)

// ErrUnsupportedFile rejects uploads whose extension has no reader.
var ErrUnsupportedFile = errors.New("unsupported file type")

const insertBatchSize = 1000

// Processor drives the two-phase upload flow against the store.
type Processor struct {
	store   *store.Store
	logger  *slog.Logger
	workers int
}

func NewProcessor(st *store.Store, logger *slog.Logger, workers int) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{store: st, logger: logger, workers: workers}
}

// ColumnPlan maps one source header to its table column.
type ColumnPlan struct {
	Name         string `json:"name"`
	SourceHeader string `json:"source_header"`
	Type         string `json:"type"`
}

// SheetAnalysis is the Analyze-phase proposal for one sheet.
type SheetAnalysis struct {
	SheetName     string       `json:"sheet_name"`
	ProposedTable string       `json:"proposed_table"`
	Columns       []ColumnPlan `json:"columns"`
	RowCount      int          `json:"row_count"`
	Preview       [][]string   `json:"preview"`
}

// FileAnalysis is the Analyze-phase result for a whole upload.
type FileAnalysis struct {
	Filename string          `json:"filename"`
	FileType string          `json:"file_type"`
	Sheets   []SheetAnalysis `json:"sheets"`
}

// Result reports one table created by Process.
type Result struct {
	TableName string `json:"table_name"`
	SheetName string `json:"sheet_name"`
	Columns   int    `json:"columns"`
	Rows      int    `json:"rows"`
}

// ProgressFunc receives coarse progress updates during Process.
type ProgressFunc func(stage string, percent int, message string)

func readFile(r io.Reader, filename string) (string, []SheetData, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		sheets, err := readExcel(r)
		return "excel", sheets, err
	case ".csv", ".txt":
		sheets, err := readCSV(r, filename)
		return "csv", sheets, err
	case ".pdf":
		sheets, err := readPDF(r, filename)
		return "pdf", sheets, err
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(filename))
	}
}

// Analyze inspects an upload without writing anything: proposed table
// names, sanitized columns with inferred types, and a short preview per
// sheet.
func (p *Processor) Analyze(r io.Reader, filename string) (*FileAnalysis, error) {
	fileType, sheets, err := readFile(r, filename)
	if err != nil {
		return nil, err
	}

	base := SanitizeName(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	analysis := &FileAnalysis{Filename: filepath.Base(filename), FileType: fileType}

	for _, sheet := range sheets {
		cols := uniqueColumns(sheet.Headers)
		samples := columnSamples(sheet.Rows, len(cols))

		plans := make([]ColumnPlan, len(cols))
		for i, name := range cols {
			plans[i] = ColumnPlan{
				Name:         name,
				SourceHeader: sheet.Headers[i],
				Type:         InferColumnType(samples[i]),
			}
		}

		preview := sheet.Rows
		if len(preview) > 5 {
			preview = preview[:5]
		}

		table := base
		if fileType == "excel" {
			table = base + "_" + SanitizeName(sheet.Name)
		}
		analysis.Sheets = append(analysis.Sheets, SheetAnalysis{
			SheetName:     sheet.Name,
			ProposedTable: table,
			Columns:       plans,
			RowCount:      len(sheet.Rows),
			Preview:       preview,
		})
	}
	return analysis, nil
}

// Process parses the upload and creates one table per sheet. Sheets are
// ingested in parallel up to the worker limit; a failed sheet aborts the
// whole upload. Table names are made unique up front so a re-upload of the
// same file creates fresh tables instead of touching existing ones.
// overrides pins column types chosen from the Analyze phase, keyed by
// sanitized column name; columns not listed keep their inferred type.
func (p *Processor) Process(ctx context.Context, dbName string, r io.Reader, filename string, overrides map[string]string, progress ProgressFunc) ([]Result, error) {
	if progress == nil {
		progress = func(string, int, string) {}
	}
	progress("parsing", 5, "reading "+filepath.Base(filename))

	fileType, sheets, err := readFile(r, filename)
	if err != nil {
		return nil, err
	}

	base := SanitizeName(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))

	// Name assignment is sequential; the planned set catches collisions
	// between sheets of this same upload.
	planned := make(map[string]bool, len(sheets))
	names := make([]string, len(sheets))
	for i, sheet := range sheets {
		want := base
		if fileType == "excel" {
			want = base + "_" + SanitizeName(sheet.Name)
		}
		name, err := p.uniqueName(dbName, want, planned)
		if err != nil {
			return nil, err
		}
		planned[name] = true
		names[i] = name
	}

	progress("creating", 15, fmt.Sprintf("creating %d table(s)", len(sheets)))

	results := make([]Result, len(sheets))
	var mu sync.Mutex
	done := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range sheets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := p.ingestSheet(dbName, names[i], filepath.Base(filename), sheets[i], overrides)
			if err != nil {
				return err
			}

			mu.Lock()
			results[i] = res
			done++
			pct := 15 + done*80/len(sheets)
			mu.Unlock()
			progress("inserting", pct, fmt.Sprintf("table %s ready (%d rows)", res.TableName, res.Rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	progress("done", 100, "upload complete")
	if p.logger != nil {
		p.logger.Info("file ingested",
			"db", dbName, "file", filepath.Base(filename),
			"type", fileType, "tables", len(results))
	}
	return results, nil
}

func (p *Processor) uniqueName(dbName, base string, planned map[string]bool) (string, error) {
	name := base
	for i := 2; ; i++ {
		exists, err := p.store.TableExists(dbName, name)
		if err != nil {
			return "", err
		}
		if !exists && !planned[name] {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

func (p *Processor) ingestSheet(dbName, table, filename string, sheet SheetData, overrides map[string]string) (Result, error) {
	cols := uniqueColumns(sheet.Headers)
	samples := columnSamples(sheet.Rows, len(cols))

	defs := make([]store.ColumnDef, len(cols))
	types := make([]string, len(cols))
	for i, name := range cols {
		types[i] = InferColumnType(samples[i])
		if t, ok := overrides[name]; ok {
			types[i] = strings.ToUpper(strings.TrimSpace(t))
		}
		defs[i] = store.ColumnDef{Name: name, Type: types[i]}
	}
	if err := p.store.CreateTable(dbName, table, defs); err != nil {
		return Result{}, err
	}

	inserted := 0
	for start := 0; start < len(sheet.Rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(sheet.Rows) {
			end = len(sheet.Rows)
		}
		batch := make([][]any, 0, end-start)
		for _, row := range sheet.Rows[start:end] {
			vals := make([]any, len(cols))
			for c := range cols {
				vals[c] = convertValue(row[c], types[c])
			}
			batch = append(batch, vals)
		}
		n, err := p.store.InsertRows(dbName, table, cols, batch)
		inserted += n
		if err != nil {
			return Result{}, fmt.Errorf("inserting into %s: %w", table, err)
		}
	}

	meta := model.TableMetadata{
		TableName:         table,
		OriginalSheetName: sheet.Name,
		OriginalFilename:  filename,
		ColumnCount:       len(cols),
		RowCount:          inserted,
		CreatedDate:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.store.PutMetadata(dbName, meta); err != nil {
		return Result{}, err
	}
	return Result{TableName: table, SheetName: sheet.Name, Columns: len(cols), Rows: inserted}, nil
}
