package dashboard

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/portside-dev/craneops/internal/store"
)

func newWorkOrderFixture(t *testing.T) *WorkOrders {
	t.Helper()
	st, err := store.Open(t.TempDir(), "Workorder")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	db, err := st.DB("Workorder")
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE all_cm (
		WO_name TEXT, description TEXT, jobtype TEXT, equipement TEXT,
		MO_key TEXT, POS_key TEXT, order_date TEXT, jobexec_dt TEXT,
		etatjob TEXT, WO_priority_key TEXT, cost_purpose_key TEXT,
		work_supplier_key TEXT, location TEXT, stop_time REAL
	)`)
	require.NoError(t, err)

	type row struct {
		jobtype, equip, pos, date, exec, status, prio, cost, supplier, loc string
		stop                                                               float64
	}
	rows := []row{
		{"C", "STS04MNH", "STS", "2026-01-10", "2026-01-12", "TER", "1-IMM", "COR", "ELEC", "MNH", 4.5},
		{"C", "STS04MNH", "STS", "2026-02-15", "", "EXE", "3-WEEK", "COR", "MEC", "MNH", 2.0},
		{"P", "STS05GAN", "STS", "2026-02-20", "2026-02-24", "TER", "4-PLAN", "PREV", "MEC", "GAN", 1.5},
		{"C", "SPS312TWL", "SPR", "2026-03-01", "", "INI", "2-DAY", "COR", "ELEC", "TWL", 0},
		{"X", "STS04ELE", "STS", "2026-03-05", "2026-03-05", "TER", "9-ZZZ", "COR", "WELD", "ELE", 3.0},
	}
	for i, r := range rows {
		var exec any
		if r.exec != "" {
			exec = r.exec
		}
		_, err = db.Exec(`INSERT INTO all_cm
			(WO_name, description, jobtype, equipement, MO_key, POS_key,
			 order_date, jobexec_dt, etatjob, WO_priority_key,
			 cost_purpose_key, work_supplier_key, location, stop_time)
			VALUES (?, 'fault', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i, r.jobtype, r.equip, r.equip, r.pos, r.date, exec, r.status,
			r.prio, r.cost, r.supplier, r.loc, r.stop)
		require.NoError(t, err)
	}
	return NewWorkOrders(st, nil, "Workorder")
}

func TestBasicStatistics(t *testing.T) {
	w := newWorkOrderFixture(t)

	stats, err := w.BasicStatistics()
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalRecords)
	assert.Equal(t, "2026-01-10", stats.DateStart)
	assert.Equal(t, "2026-03-05", stats.DateEnd)
	assert.Equal(t, 3, stats.StatusDistribution["TER"])
	assert.Equal(t, 60.0, stats.CompletedPercentage)
}

func TestJobTypeAnalysis(t *testing.T) {
	w := newWorkOrderFixture(t)

	buckets, err := w.JobTypeAnalysis()
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	// Sorted by count descending; C has 3 of 5 rows.
	assert.Equal(t, "C", buckets[0].Code)
	assert.Equal(t, "Corrective Maintenance", buckets[0].Name)
	assert.Equal(t, 3, buckets[0].Count)
	assert.Equal(t, 60.0, buckets[0].Percentage)

	// Unmapped codes keep an explicit unknown label.
	var unknown *Bucket
	for i := range buckets {
		if buckets[i].Code == "X" {
			unknown = &buckets[i]
		}
	}
	require.NotNil(t, unknown)
	assert.Equal(t, "Unknown (X)", unknown.Name)
}

func TestCategoryAnalysis(t *testing.T) {
	w := newWorkOrderFixture(t)

	all, err := w.CategoryAnalysis()
	require.NoError(t, err)
	for _, key := range []string{"etatjob", "job_types", "pos_keys", "cost_purposes", "suppliers", "priorities"} {
		assert.NotEmpty(t, all[key], "missing breakdown %s", key)
	}
	assert.Equal(t, "Ship to Shore", all["pos_keys"][0].Name)
}

func TestMonthlyTrend(t *testing.T) {
	w := newWorkOrderFixture(t)

	trend, err := w.MonthlyTrend()
	require.NoError(t, err)
	require.Len(t, trend, 3)
	assert.Equal(t, MonthCount{Month: "2026-01", Count: 1}, trend[0])
	assert.Equal(t, MonthCount{Month: "2026-02", Count: 2}, trend[1])
	assert.Equal(t, MonthCount{Month: "2026-03", Count: 2}, trend[2])
}

func TestPerformanceMetrics(t *testing.T) {
	w := newWorkOrderFixture(t)

	k, err := w.PerformanceMetrics()
	require.NoError(t, err)
	assert.Equal(t, 3, k.CorrectiveCount)
	assert.Equal(t, 1, k.PreventiveCount)
	assert.Equal(t, 3.0, k.CorrectivePreventiveRatio)
	assert.Equal(t, 2.75, k.AvgCompletionTime) // (4.5+2+1.5+3)/4
	assert.Equal(t, 1.5, k.MinCompletionTime)
	assert.Equal(t, 4.5, k.MaxCompletionTime)
	assert.Equal(t, 1, k.UrgentCount)
	assert.Equal(t, 20.0, k.UrgentPercentage)
	assert.Equal(t, 2, k.ActiveCount)  // EXE + INI
	assert.Equal(t, 2, k.OverdueCount) // both raised over a month ago
	assert.Equal(t, 2.0, k.AvgCloseDays)
	require.NotEmpty(t, k.EquipmentDowntime)
	assert.Equal(t, "STS04MNH", k.EquipmentDowntime[0].Equipment)
	assert.Equal(t, 6.5, k.EquipmentDowntime[0].TotalDowntime)
}

func TestMaintenanceTrends(t *testing.T) {
	w := newWorkOrderFixture(t)

	trend, err := w.MaintenanceTrends(36500)
	require.NoError(t, err)
	require.Len(t, trend, 3)
	assert.Equal(t, TrendPoint{Month: "2026-01", Corrective: 1, Preventive: 0, Total: 1}, trend[0])
	assert.Equal(t, TrendPoint{Month: "2026-02", Corrective: 1, Preventive: 1, Total: 2}, trend[1])
	assert.Equal(t, TrendPoint{Month: "2026-03", Corrective: 1, Preventive: 0, Total: 2}, trend[2])
}

func TestPerformanceByEquipment(t *testing.T) {
	w := newWorkOrderFixture(t)

	perf, err := w.PerformanceByEquipment("")
	require.NoError(t, err)
	require.Len(t, perf, 4)
	assert.Equal(t, "STS04MNH", perf[0].Equipment) // busiest first

	perf, err = w.PerformanceByEquipment("STS04MNH")
	require.NoError(t, err)
	require.Len(t, perf, 1)
	p := perf[0]
	assert.Equal(t, 2, p.TotalWorkOrders)
	assert.Equal(t, 1, p.Completed)
	assert.Equal(t, 50.0, p.CompletionRate)
	assert.Equal(t, 3.25, p.AvgDowntime)
	assert.Equal(t, 1, p.UrgentCount)
	// 50*0.4 + (100-3.25)*0.3 + (100-50)*0.3
	assert.Equal(t, 64.0, p.PerformanceScore)
}

func newStockFixture(t *testing.T) *Stock {
	t.Helper()
	st, err := store.Open(t.TempDir(), "Stock")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	db, err := st.DB("Stock")
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE Stock (
		reference_article TEXT, designation_1 TEXT, categorie_article TEXT,
		quantite_en_stock REAL, pmp REAL, seuil_de_reappro_min REAL,
		quantite_maximum_max REAL, acheteur TEXT,
		date_derniere_entree TEXT, date_derniere_sortie TEXT
	)`)
	require.NoError(t, err)

	recent := time.Now().AddDate(0, -1, 0).Format("2006-01-02")
	old := time.Now().AddDate(-2, 0, 0).Format("2006-01-02")
	for _, r := range [][]any{
		{"ART-001", "brake pad", "MECA", 0.0, 50.0, 5.0, 100.0, "A", recent, recent},
		{"ART-002", "hydraulic hose", "HYDR", 2.0, 30.0, 5.0, 100.0, "A", recent, recent},
		{"ART-003", "festoon cable", "ELEC", 50.0, 10.0, 5.0, 100.0, "B", recent, recent},
		{"ART-004", "grease drum", "LUBR", 150.0, 20.0, 5.0, 100.0, "B", recent, recent},
		{"ART-005", "spare gearbox", "MECA", 1.0, 400.0, 0.0, 100.0, "B", old, old},
	} {
		_, err = db.Exec(`INSERT INTO Stock
			(reference_article, designation_1, categorie_article, quantite_en_stock,
			 pmp, seuil_de_reappro_min, quantite_maximum_max, acheteur,
			 date_derniere_entree, date_derniere_sortie)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r...)
		require.NoError(t, err)
	}
	return NewStock(st, nil, "Stock")
}

func TestStockAlerts(t *testing.T) {
	s := newStockFixture(t)

	alerts, err := s.Alerts()
	require.NoError(t, err)
	require.Len(t, alerts, 4)

	// Severity order: out of stock, reorder, excess, then stale items.
	assert.Equal(t, "ART-001", alerts[0].Reference)
	assert.Equal(t, AlertOutOfStock, alerts[0].AlertType)
	assert.Equal(t, "ART-002", alerts[1].Reference)
	assert.Equal(t, AlertReorderNeeded, alerts[1].AlertType)
	assert.Equal(t, "ART-004", alerts[2].Reference)
	assert.Equal(t, AlertExcessStock, alerts[2].AlertType)
	assert.Equal(t, "ART-005", alerts[3].Reference)
	assert.Equal(t, AlertStaleStock, alerts[3].AlertType)
	assert.NotEmpty(t, alerts[3].LastMovement)
}

func TestStockSummarize(t *testing.T) {
	s := newStockFixture(t)

	sum, err := s.Summarize()
	require.NoError(t, err)
	assert.Equal(t, 5, sum.TotalItems)
	assert.Equal(t, 4, sum.CategoriesCount)
	assert.Equal(t, 3960.0, sum.TotalStockValue) // 0 + 60 + 500 + 3000 + 400
	assert.Equal(t, 2, sum.StatusDistribution[StatusCritical])
	assert.Equal(t, 1, sum.StatusDistribution[StatusExcess])
	assert.Equal(t, 2, sum.StatusDistribution[StatusNormal])

	require.NotEmpty(t, sum.TopValueItems)
	assert.Equal(t, "ART-004", sum.TopValueItems[0].Reference)

	require.Len(t, sum.CriticalItems, 2)
	assert.Equal(t, 500.0, sum.CategoryValues["ELEC"])
}

func TestStockSearch(t *testing.T) {
	s := newStockFixture(t)

	items, err := s.Search("hydraulic", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ART-002", items[0].Reference)
	assert.Equal(t, StatusCritical, items[0].Status)

	all, err := s.Search("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestExportAlertsXLSX(t *testing.T) {
	s := newStockFixture(t)

	var buf bytes.Buffer
	require.NoError(t, s.ExportAlertsXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 5) // header + 4 alerts
	assert.Equal(t, "Reference", rows[0][0])
}
