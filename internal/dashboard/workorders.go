package dashboard

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math"

	"github.com/portside-dev/craneops/internal/store"
)

// WorkOrders aggregates the corrective-maintenance history for the
// analytics dashboard.
type WorkOrders struct {
	store  *store.Store
	logger *slog.Logger
	dbName string
}

func NewWorkOrders(st *store.Store, logger *slog.Logger, dbName string) *WorkOrders {
	return &WorkOrders{store: st, logger: logger, dbName: dbName}
}

func (w *WorkOrders) table() (*sql.DB, string, error) {
	db, err := w.store.DB(w.dbName)
	if err != nil {
		return nil, "", err
	}
	for _, name := range []string{"all_cm", "allCM"} {
		var found string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
		).Scan(&found)
		if err == nil {
			return db, found, nil
		}
		if err != sql.ErrNoRows {
			return nil, "", fmt.Errorf("locating work order table: %w", err)
		}
	}
	return nil, "", fmt.Errorf("locating work order table: %w", store.ErrTableNotFound)
}

// BasicStats is the headline box of the work-order dashboard.
type BasicStats struct {
	TotalRecords        int                `json:"total_records"`
	DateStart           string             `json:"date_start,omitempty"`
	DateEnd             string             `json:"date_end,omitempty"`
	StatusDistribution  map[string]int     `json:"status_distribution"`
	CompletedPercentage float64            `json:"completed_percentage"`
}

func (w *WorkOrders) BasicStatistics() (*BasicStats, error) {
	db, table, err := w.table()
	if err != nil {
		return nil, err
	}

	stats := &BasicStats{StatusDistribution: map[string]int{}}
	if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)).Scan(&stats.TotalRecords); err != nil {
		return nil, fmt.Errorf("counting work orders: %w", err)
	}

	var start, end sql.NullString
	err = db.QueryRow(fmt.Sprintf(
		`SELECT MIN(order_date), MAX(order_date) FROM "%s" WHERE order_date IS NOT NULL`, table,
	)).Scan(&start, &end)
	if err != nil {
		return nil, fmt.Errorf("reading date range: %w", err)
	}
	stats.DateStart = start.String
	stats.DateEnd = end.String

	rows, err := db.Query(fmt.Sprintf(`SELECT etatjob, COUNT(*) FROM "%s" GROUP BY etatjob`, table))
	if err != nil {
		return nil, fmt.Errorf("reading status distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status sql.NullString
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		stats.StatusDistribution[status.String] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalRecords > 0 {
		stats.CompletedPercentage = round1(float64(stats.StatusDistribution["TER"]) /
			float64(stats.TotalRecords) * 100)
	}
	return stats, nil
}

// Bucket is one slice of a categorical breakdown.
type Bucket struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// breakdown groups the table by one column and maps codes to labels.
func (w *WorkOrders) breakdown(column string, labels map[string]string) ([]Bucket, error) {
	db, table, err := w.table()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(fmt.Sprintf(
		`SELECT "%s", COUNT(*) AS count FROM "%s" WHERE "%s" IS NOT NULL GROUP BY "%s" ORDER BY count DESC`,
		column, table, column, column))
	if err != nil {
		return nil, fmt.Errorf("breaking down %s: %w", column, err)
	}
	defer rows.Close()

	var buckets []Bucket
	total := 0
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Code, &b.Count); err != nil {
			return nil, fmt.Errorf("scanning %s bucket: %w", column, err)
		}
		if name, ok := labels[b.Code]; ok {
			b.Name = name
		} else {
			b.Name = fmt.Sprintf("Unknown (%s)", b.Code)
		}
		total += b.Count
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range buckets {
		if total > 0 {
			buckets[i].Percentage = round1(float64(buckets[i].Count) / float64(total) * 100)
		}
	}
	return buckets, nil
}

func (w *WorkOrders) JobTypeAnalysis() ([]Bucket, error) {
	return w.breakdown("jobtype", jobTypeLabels)
}

func (w *WorkOrders) StatusAnalysis() ([]Bucket, error) {
	return w.breakdown("etatjob", statusLabels)
}

func (w *WorkOrders) PriorityAnalysis() ([]Bucket, error) {
	return w.breakdown("WO_priority_key", priorityLabels)
}

func (w *WorkOrders) PosKeyAnalysis() ([]Bucket, error) {
	return w.breakdown("POS_key", posKeyLabels)
}

func (w *WorkOrders) CostPurposeAnalysis() ([]Bucket, error) {
	return w.breakdown("cost_purpose_key", costPurposeLabels)
}

func (w *WorkOrders) SupplierAnalysis() ([]Bucket, error) {
	return w.breakdown("work_supplier_key", supplierLabels)
}

func (w *WorkOrders) LocationAnalysis() ([]Bucket, error) {
	return w.breakdown("location", locationLabels)
}

// CategoryAnalysis bundles every categorical breakdown into one response.
func (w *WorkOrders) CategoryAnalysis() (map[string][]Bucket, error) {
	out := map[string][]Bucket{}
	for name, fn := range map[string]func() ([]Bucket, error){
		"etatjob":       w.StatusAnalysis,
		"job_types":     w.JobTypeAnalysis,
		"pos_keys":      w.PosKeyAnalysis,
		"cost_purposes": w.CostPurposeAnalysis,
		"suppliers":     w.SupplierAnalysis,
		"priorities":    w.PriorityAnalysis,
	} {
		buckets, err := fn()
		if err != nil {
			return nil, err
		}
		out[name] = buckets
	}
	return out, nil
}

// MonthCount is one month of work-order volume.
type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// MonthlyTrend counts work orders per month from order_date.
func (w *WorkOrders) MonthlyTrend() ([]MonthCount, error) {
	db, table, err := w.table()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(fmt.Sprintf(`
		SELECT SUBSTR(order_date, 1, 7) AS month, COUNT(*)
		FROM "%s"
		WHERE order_date IS NOT NULL AND LENGTH(order_date) >= 7
		GROUP BY month ORDER BY month`, table))
	if err != nil {
		return nil, fmt.Errorf("reading monthly trend: %w", err)
	}
	defer rows.Close()

	var out []MonthCount
	for rows.Next() {
		var m MonthCount
		if err := rows.Scan(&m.Month, &m.Count); err != nil {
			return nil, fmt.Errorf("scanning month: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TrendPoint is one month of maintenance volume split by job type.
type TrendPoint struct {
	Month      string `json:"month"` // YYYY-MM
	Corrective int    `json:"corrective"`
	Preventive int    `json:"preventive"`
	Total      int    `json:"total"`
}

// MaintenanceTrends splits monthly work-order volume into corrective and
// preventive over the trailing period. periodDays below 1 defaults to a
// year.
func (w *WorkOrders) MaintenanceTrends(periodDays int) ([]TrendPoint, error) {
	db, table, err := w.table()
	if err != nil {
		return nil, err
	}
	if periodDays < 1 {
		periodDays = 365
	}

	rows, err := db.Query(fmt.Sprintf(`
		SELECT SUBSTR(order_date, 1, 7) AS month,
		       SUM(CASE WHEN jobtype = 'C' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN jobtype = 'P' THEN 1 ELSE 0 END),
		       COUNT(*)
		FROM "%s"
		WHERE order_date IS NOT NULL AND LENGTH(order_date) >= 7
		  AND order_date >= date('now', ?)
		GROUP BY month ORDER BY month`, table),
		fmt.Sprintf("-%d days", periodDays))
	if err != nil {
		return nil, fmt.Errorf("reading maintenance trends: %w", err)
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Month, &p.Corrective, &p.Preventive, &p.Total); err != nil {
			return nil, fmt.Errorf("scanning trend point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EquipmentPerformance is one equipment unit's work-order scorecard.
type EquipmentPerformance struct {
	Equipment        string  `json:"equipment"`
	TotalWorkOrders  int     `json:"total_work_orders"`
	Completed        int     `json:"completed"`
	AvgDowntime      float64 `json:"avg_downtime"`
	UrgentCount      int     `json:"urgent_count"`
	CompletionRate   float64 `json:"completion_rate"`
	PerformanceScore float64 `json:"performance_score"`
}

// PerformanceByEquipment scores each equipment unit on completion rate,
// average downtime and urgent share, busiest units first. A non-empty
// equipmentID restricts the result to that unit.
func (w *WorkOrders) PerformanceByEquipment(equipmentID string) ([]EquipmentPerformance, error) {
	db, table, err := w.table()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT equipement,
		       COUNT(*) AS total,
		       SUM(CASE WHEN etatjob = 'TER' THEN 1 ELSE 0 END),
		       AVG(COALESCE(stop_time, 0)),
		       SUM(CASE WHEN WO_priority_key LIKE '%%IMM%%' THEN 1 ELSE 0 END)
		FROM "%s"
		WHERE equipement IS NOT NULL`, table)
	var args []any
	if equipmentID != "" {
		query += ` AND equipement = ?`
		args = append(args, equipmentID)
	}
	query += ` GROUP BY equipement ORDER BY total DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading equipment performance: %w", err)
	}
	defer rows.Close()

	var out []EquipmentPerformance
	for rows.Next() {
		var p EquipmentPerformance
		if err := rows.Scan(&p.Equipment, &p.TotalWorkOrders, &p.Completed,
			&p.AvgDowntime, &p.UrgentCount); err != nil {
			return nil, fmt.Errorf("scanning equipment performance: %w", err)
		}
		p.AvgDowntime = round2(p.AvgDowntime)
		p.CompletionRate = round1(float64(p.Completed) / float64(p.TotalWorkOrders) * 100)
		urgentShare := float64(p.UrgentCount) / float64(p.TotalWorkOrders) * 100
		p.PerformanceScore = round1(p.CompletionRate*0.4 +
			(100-p.AvgDowntime)*0.3 + (100-urgentShare)*0.3)
		out = append(out, p)
	}
	return out, rows.Err()
}

// EquipmentDowntime is one equipment unit's downtime total.
type EquipmentDowntime struct {
	Equipment     string  `json:"equipment"`
	TotalDowntime float64 `json:"total_downtime"`
	WorkOrders    int     `json:"work_orders"`
}

// KPIs are the computed performance indicators of the dashboard header.
type KPIs struct {
	CorrectivePreventiveRatio float64             `json:"corrective_preventive_ratio"`
	CorrectiveCount           int                 `json:"corrective_count"`
	PreventiveCount           int                 `json:"preventive_count"`
	AvgCompletionTime         float64             `json:"avg_completion_time"`
	MinCompletionTime         float64             `json:"min_completion_time"`
	MaxCompletionTime         float64             `json:"max_completion_time"`
	UrgentCount               int                 `json:"urgent_count"`
	UrgentPercentage          float64             `json:"urgent_percentage"`
	TotalCount                int                 `json:"total_count"`
	ActiveCount               int                 `json:"active_count"`
	OverdueCount              int                 `json:"overdue_count"`
	AvgCloseDays              float64             `json:"avg_close_days"`
	EquipmentDowntime         []EquipmentDowntime `json:"equipment_downtime"`
}

// Work-order states that count as still open.
const activeStatuses = `('INI', 'EXE', 'PRT', 'APC')`

// PerformanceMetrics computes the KPI block: corrective vs preventive
// ratio, completion-time stats over stop_time, urgent share, open and
// overdue counts, days to close, and the ten worst equipment units by
// downtime.
func (w *WorkOrders) PerformanceMetrics() (*KPIs, error) {
	db, table, err := w.table()
	if err != nil {
		return nil, err
	}
	k := &KPIs{}

	rows, err := db.Query(fmt.Sprintf(
		`SELECT jobtype, COUNT(*) FROM "%s" WHERE jobtype IN ('C', 'P') GROUP BY jobtype`, table))
	if err != nil {
		return nil, fmt.Errorf("reading job type counts: %w", err)
	}
	for rows.Next() {
		var jt string
		var n int
		if err := rows.Scan(&jt, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning job type count: %w", err)
		}
		if jt == "C" {
			k.CorrectiveCount = n
		} else {
			k.PreventiveCount = n
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if k.PreventiveCount > 0 {
		k.CorrectivePreventiveRatio = round2(float64(k.CorrectiveCount) / float64(k.PreventiveCount))
	}

	var avg, min, max sql.NullFloat64
	err = db.QueryRow(fmt.Sprintf(`
		SELECT AVG(stop_time), MIN(stop_time), MAX(stop_time)
		FROM "%s" WHERE stop_time IS NOT NULL AND stop_time > 0`, table)).Scan(&avg, &min, &max)
	if err != nil {
		return nil, fmt.Errorf("reading completion times: %w", err)
	}
	k.AvgCompletionTime = round2(avg.Float64)
	k.MinCompletionTime = round2(min.Float64)
	k.MaxCompletionTime = round2(max.Float64)

	err = db.QueryRow(fmt.Sprintf(
		`SELECT COUNT(*) FROM "%s" WHERE WO_priority_key IN ('1-IMM', '1- PR IMM')`, table)).Scan(&k.UrgentCount)
	if err != nil {
		return nil, fmt.Errorf("counting urgent work orders: %w", err)
	}
	if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)).Scan(&k.TotalCount); err != nil {
		return nil, fmt.Errorf("counting work orders: %w", err)
	}
	if k.TotalCount > 0 {
		k.UrgentPercentage = round1(float64(k.UrgentCount) / float64(k.TotalCount) * 100)
	}

	// Overdue means still open a month after the order was raised.
	err = db.QueryRow(fmt.Sprintf(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN order_date < date('now', '-30 days') THEN 1 ELSE 0 END), 0)
		FROM "%s" WHERE etatjob IN `+activeStatuses, table)).Scan(&k.ActiveCount, &k.OverdueCount)
	if err != nil {
		return nil, fmt.Errorf("counting active work orders: %w", err)
	}

	var closeDays sql.NullFloat64
	err = db.QueryRow(fmt.Sprintf(`
		SELECT AVG(julianday(jobexec_dt) - julianday(order_date))
		FROM "%s"
		WHERE etatjob = 'TER' AND jobexec_dt IS NOT NULL AND order_date IS NOT NULL`, table)).Scan(&closeDays)
	if err != nil {
		return nil, fmt.Errorf("reading close times: %w", err)
	}
	k.AvgCloseDays = round1(closeDays.Float64)

	drows, err := db.Query(fmt.Sprintf(`
		SELECT equipement, SUM(stop_time) AS total_downtime, COUNT(*)
		FROM "%s"
		WHERE equipement IS NOT NULL AND stop_time IS NOT NULL AND stop_time > 0
		GROUP BY equipement ORDER BY total_downtime DESC LIMIT 10`, table))
	if err != nil {
		return nil, fmt.Errorf("reading downtime: %w", err)
	}
	defer drows.Close()
	for drows.Next() {
		var d EquipmentDowntime
		if err := drows.Scan(&d.Equipment, &d.TotalDowntime, &d.WorkOrders); err != nil {
			return nil, fmt.Errorf("scanning downtime: %w", err)
		}
		d.TotalDowntime = round2(d.TotalDowntime)
		k.EquipmentDowntime = append(k.EquipmentDowntime, d)
	}
	return k, drows.Err()
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
