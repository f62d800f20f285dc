package dashboard

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/portside-dev/craneops/internal/store"
)

// Stock alert and status labels, ordered by severity.
const (
	AlertOutOfStock    = "OUT_OF_STOCK"
	AlertReorderNeeded = "REORDER_NEEDED"
	AlertExcessStock   = "EXCESS_STOCK"
	AlertStaleStock    = "STALE_STOCK"

	StatusCritical = "CRITICAL"
	StatusLow      = "LOW"
	StatusExcess   = "EXCESS"
	StatusNormal   = "NORMAL"
)

// Stock aggregates the spare-parts inventory. The Stock table is a CMMS
// export with French column names; they are kept verbatim because every
// upload recreates them.
type Stock struct {
	store  *store.Store
	logger *slog.Logger
	dbName string
}

func NewStock(st *store.Store, logger *slog.Logger, dbName string) *Stock {
	return &Stock{store: st, logger: logger, dbName: dbName}
}

// StockItem is one inventory line with its derived status.
type StockItem struct {
	Reference   string  `json:"reference_article"`
	Designation string  `json:"designation"`
	Category    string  `json:"category,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	StockValue  float64 `json:"stock_value"`
	MinReorder  float64 `json:"min_reorder_level"`
	MaxLevel    float64 `json:"max_stock_level"`
	Status      string  `json:"status"`
	Buyer       string  `json:"buyer,omitempty"`
	LastReceipt string  `json:"last_receipt_date,omitempty"`
	LastIssue   string  `json:"last_issue_date,omitempty"`
}

// statusCase derives the stock status exactly as the dashboard colors it.
const statusCase = `CASE
	WHEN quantite_en_stock <= seuil_de_reappro_min THEN 'CRITICAL'
	WHEN quantite_en_stock <= (seuil_de_reappro_min * 1.2) THEN 'LOW'
	WHEN quantite_en_stock >= quantite_maximum_max THEN 'EXCESS'
	ELSE 'NORMAL'
END`

const stockSelect = `
	SELECT reference_article,
	       COALESCE(designation_1, ''),
	       COALESCE(categorie_article, ''),
	       COALESCE(quantite_en_stock, 0),
	       COALESCE(pmp, 0),
	       COALESCE(quantite_en_stock, 0) * COALESCE(pmp, 0) AS stock_value,
	       COALESCE(seuil_de_reappro_min, 0),
	       COALESCE(quantite_maximum_max, 0),
	       ` + statusCase + `,
	       COALESCE(acheteur, ''),
	       COALESCE(date_derniere_entree, ''),
	       COALESCE(date_derniere_sortie, '')
	FROM Stock
	WHERE reference_article IS NOT NULL`

func (s *Stock) db() (*sql.DB, error) {
	return s.store.DB(s.dbName)
}

func scanItems(rows *sql.Rows) ([]StockItem, error) {
	defer rows.Close()
	var out []StockItem
	for rows.Next() {
		var it StockItem
		if err := rows.Scan(&it.Reference, &it.Designation, &it.Category,
			&it.Quantity, &it.UnitPrice, &it.StockValue, &it.MinReorder,
			&it.MaxLevel, &it.Status, &it.Buyer, &it.LastReceipt, &it.LastIssue); err != nil {
			return nil, fmt.Errorf("scanning stock item: %w", err)
		}
		it.StockValue = round2(it.StockValue)
		out = append(out, it)
	}
	return out, rows.Err()
}

// Search lists inventory items, optionally filtered by a substring of the
// article reference or designation.
func (s *Stock) Search(filter string, limit int) ([]StockItem, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := stockSelect
	var args []any
	if filter != "" {
		query += ` AND (reference_article LIKE ? OR designation_1 LIKE ?)`
		args = append(args, "%"+filter+"%", "%"+filter+"%")
	}
	query += fmt.Sprintf(` ORDER BY reference_article LIMIT %d`, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching stock: %w", err)
	}
	return scanItems(rows)
}

// Summary is the stock dashboard header.
type Summary struct {
	TotalItems         int                `json:"total_items"`
	TotalStockValue    float64            `json:"total_stock_value"`
	CategoriesCount    int                `json:"categories_count"`
	StatusDistribution map[string]int     `json:"status_distribution"`
	CategoryValues     map[string]float64 `json:"category_values"`
	TopValueItems      []StockItem        `json:"top_value_items"`
	CriticalItems      []StockItem        `json:"critical_items"`
}

func (s *Stock) Summarize() (*Summary, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		StatusDistribution: map[string]int{},
		CategoryValues:     map[string]float64{},
	}

	err = db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(COALESCE(quantite_en_stock, 0) * COALESCE(pmp, 0)), 0),
		       COUNT(DISTINCT categorie_article)
		FROM Stock WHERE reference_article IS NOT NULL`).
		Scan(&sum.TotalItems, &sum.TotalStockValue, &sum.CategoriesCount)
	if err != nil {
		return nil, fmt.Errorf("summarizing stock: %w", err)
	}
	sum.TotalStockValue = round2(sum.TotalStockValue)

	rows, err := db.Query(`SELECT ` + statusCase + ` AS status, COUNT(*)
		FROM Stock WHERE reference_article IS NOT NULL GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("reading status distribution: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning status: %w", err)
		}
		sum.StatusDistribution[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := db.Query(`
		SELECT COALESCE(categorie_article, ''),
		       COALESCE(SUM(COALESCE(quantite_en_stock, 0) * COALESCE(pmp, 0)), 0)
		FROM Stock WHERE reference_article IS NOT NULL GROUP BY categorie_article`)
	if err != nil {
		return nil, fmt.Errorf("reading category values: %w", err)
	}
	for crows.Next() {
		var cat string
		var v float64
		if err := crows.Scan(&cat, &v); err != nil {
			crows.Close()
			return nil, fmt.Errorf("scanning category value: %w", err)
		}
		sum.CategoryValues[cat] = round2(v)
	}
	crows.Close()
	if err := crows.Err(); err != nil {
		return nil, err
	}

	top, err := db.Query(stockSelect + ` ORDER BY stock_value DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("reading top value items: %w", err)
	}
	if sum.TopValueItems, err = scanItems(top); err != nil {
		return nil, err
	}

	crit, err := db.Query(stockSelect +
		` AND quantite_en_stock <= seuil_de_reappro_min ORDER BY stock_value DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("reading critical items: %w", err)
	}
	if sum.CriticalItems, err = scanItems(crit); err != nil {
		return nil, err
	}
	return sum, nil
}

// Alert is one inventory line requiring attention.
type Alert struct {
	Reference    string  `json:"reference_article"`
	Designation  string  `json:"designation"`
	Quantity     float64 `json:"quantity"`
	MinReorder   float64 `json:"min_reorder_level"`
	MaxLevel     float64 `json:"max_stock_level"`
	StockValue   float64 `json:"stock_value"`
	AlertType    string  `json:"alert_type"`
	Buyer        string  `json:"buyer,omitempty"`
	LastMovement string  `json:"last_movement,omitempty"`
}

// lastMovementDays measures days since the most recent receipt or issue.
// Items that never moved score 9999 and always count as stale.
const lastMovementDays = `julianday('now') - MAX(
	COALESCE(julianday(date_derniere_entree), julianday('now') - 9999),
	COALESCE(julianday(date_derniere_sortie), julianday('now') - 9999))`

// Alerts lists items that are out of stock, below their reorder threshold,
// above their maximum level, or stale (no movement for over a year), worst
// first. A stale item that also trips a level threshold appears twice, once
// per alert type.
func (s *Stock) Alerts() ([]Alert, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT reference_article,
		       COALESCE(designation_1, ''),
		       COALESCE(quantite_en_stock, 0),
		       COALESCE(seuil_de_reappro_min, 0),
		       COALESCE(quantite_maximum_max, 0),
		       COALESCE(quantite_en_stock, 0) * COALESCE(pmp, 0) AS stock_value,
		       CASE
		           WHEN quantite_en_stock <= 0 THEN 'OUT_OF_STOCK'
		           WHEN quantite_en_stock <= seuil_de_reappro_min THEN 'REORDER_NEEDED'
		           WHEN quantite_en_stock >= quantite_maximum_max THEN 'EXCESS_STOCK'
		           ELSE 'NORMAL'
		       END AS alert_type,
		       COALESCE(acheteur, '')
		FROM Stock
		WHERE quantite_en_stock <= 0
		   OR quantite_en_stock <= seuil_de_reappro_min
		   OR quantite_en_stock >= quantite_maximum_max
		ORDER BY CASE
		           WHEN quantite_en_stock <= 0 THEN 1
		           WHEN quantite_en_stock <= seuil_de_reappro_min THEN 2
		           ELSE 3
		         END,
		         stock_value DESC`)
	if err != nil {
		return nil, fmt.Errorf("reading stock alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.Reference, &a.Designation, &a.Quantity,
			&a.MinReorder, &a.MaxLevel, &a.StockValue, &a.AlertType, &a.Buyer); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		a.StockValue = round2(a.StockValue)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stale, err := db.Query(`
		SELECT reference_article,
		       COALESCE(designation_1, ''),
		       COALESCE(quantite_en_stock, 0),
		       COALESCE(seuil_de_reappro_min, 0),
		       COALESCE(quantite_maximum_max, 0),
		       COALESCE(quantite_en_stock, 0) * COALESCE(pmp, 0) AS stock_value,
		       COALESCE(acheteur, ''),
		       COALESCE(MAX(date_derniere_entree, date_derniere_sortie), '')
		FROM Stock
		WHERE quantite_en_stock > 0
		  AND ` + lastMovementDays + ` > 365
		ORDER BY stock_value DESC`)
	if err != nil {
		return nil, fmt.Errorf("reading stale stock: %w", err)
	}
	defer stale.Close()

	for stale.Next() {
		a := Alert{AlertType: AlertStaleStock}
		if err := stale.Scan(&a.Reference, &a.Designation, &a.Quantity,
			&a.MinReorder, &a.MaxLevel, &a.StockValue, &a.Buyer, &a.LastMovement); err != nil {
			return nil, fmt.Errorf("scanning stale stock: %w", err)
		}
		a.StockValue = round2(a.StockValue)
		out = append(out, a)
	}
	return out, stale.Err()
}

// ExportAlertsXLSX writes the current alerts as a workbook.
func (s *Stock) ExportAlertsXLSX(w io.Writer) error {
	alerts, err := s.Alerts()
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	header := []any{"Reference", "Designation", "Quantity", "Min Reorder",
		"Max Level", "Stock Value", "Alert", "Buyer", "Last Movement"}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, a := range alerts {
		row := []any{a.Reference, a.Designation, a.Quantity, a.MinReorder,
			a.MaxLevel, a.StockValue, a.AlertType, a.Buyer, a.LastMovement}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("stock alerts exported", "db", s.dbName, "alerts", len(alerts))
	}
	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
