package analysis

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/portside-dev/craneops/internal/model"
	"github.com/portside-dev/craneops/internal/store"
)

// Analyzer runs fault-pattern mining over the corrective-maintenance
// history stored in the work-order database.
type Analyzer struct {
	store  *store.Store
	dbName string
}

// NewAnalyzer returns an Analyzer reading from dbName (normally
// "Workorder").
func NewAnalyzer(st *store.Store, dbName string) *Analyzer {
	return &Analyzer{store: st, dbName: dbName}
}

// resolveWorkOrderTable finds the corrective-maintenance table. Imports
// have produced both "all_cm" and "allCM" over time.
func (a *Analyzer) resolveWorkOrderTable(db *sql.DB) (string, error) {
	for _, name := range []string{"all_cm", "allCM"} {
		var found string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
		).Scan(&found)
		if err == nil {
			return found, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("locating work order table: %w", err)
		}
	}
	return "", fmt.Errorf("locating work order table: %w", store.ErrTableNotFound)
}

// GetEquipmentFaults returns the corrective work orders for one equipment
// unit over the last daysBack days, oldest first. Crane units match on the
// first 5 characters of the machine code, spreaders on the first 6.
func (a *Analyzer) GetEquipmentFaults(equipmentID string, daysBack int) ([]model.WorkOrder, error) {
	db, err := a.store.DB(a.dbName)
	if err != nil {
		return nil, err
	}
	table, err := a.resolveWorkOrderTable(db)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -daysBack).Format("2006-01-02")
	query := fmt.Sprintf(`
		SELECT WO_name, description, jobtype, MO_key, POS_key, order_date,
		       COALESCE(execution_date, ''), COALESCE(etatjob, ''),
		       COALESCE(WO_priority_key, ''), COALESCE(cost_purpose_key, '')
		FROM "%s"
		WHERE CASE POS_key
		        WHEN 'STS' THEN SUBSTR(MO_key, 1, 5)
		        WHEN 'SPR' THEN SUBSTR(MO_key, 1, 6)
		        ELSE MO_key
		      END = ?
		  AND order_date >= ?
		  AND description IS NOT NULL
		ORDER BY order_date ASC`, table)

	rows, err := db.Query(query, equipmentID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying faults for %s: %w", equipmentID, err)
	}
	defer rows.Close()

	var orders []model.WorkOrder
	for rows.Next() {
		var wo model.WorkOrder
		if err := rows.Scan(&wo.WOName, &wo.Description, &wo.JobType, &wo.EquipmentCode,
			&wo.POSKey, &wo.OrderDate, &wo.ExecutionDate, &wo.Status,
			&wo.Priority, &wo.CostPurpose); err != nil {
			return nil, fmt.Errorf("scanning work order: %w", err)
		}
		orders = append(orders, wo)
	}
	return orders, rows.Err()
}

// AnalyzeFaultPatterns groups an equipment unit's fault history by fault
// category and derives a recurrence pattern for every category seen at
// least twice, most frequent first.
func (a *Analyzer) AnalyzeFaultPatterns(equipmentID string, daysBack int) ([]model.FaultPattern, error) {
	orders, err := a.GetEquipmentFaults(equipmentID, daysBack)
	if err != nil {
		return nil, err
	}

	byCategory := map[string][]model.WorkOrder{}
	for _, wo := range orders {
		cat := CategorizeFault(wo.Description)
		byCategory[cat] = append(byCategory[cat], wo)
	}

	equipType := "crane"
	if strings.HasPrefix(strings.ToUpper(equipmentID), "SPR") ||
		strings.HasPrefix(strings.ToUpper(equipmentID), "SPS") {
		equipType = "spreader"
	}

	observed := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		observed = append(observed, cat)
	}

	var patterns []model.FaultPattern
	for cat, faults := range byCategory {
		// One-off faults are noise, not a pattern.
		if len(faults) < 2 {
			continue
		}
		dates := make([]time.Time, 0, len(faults))
		for _, wo := range faults {
			t, err := time.Parse("2006-01-02", wo.OrderDate[:min(len(wo.OrderDate), 10)])
			if err != nil {
				continue
			}
			dates = append(dates, t)
		}
		if len(dates) < 2 {
			continue
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		intervals := make([]float64, 0, len(dates)-1)
		for i := 1; i < len(dates); i++ {
			intervals = append(intervals, dates[i].Sub(dates[i-1]).Hours())
		}
		avg := mean(intervals)

		patterns = append(patterns, model.FaultPattern{
			EquipmentID:      equipmentID,
			EquipmentType:    equipType,
			FaultDescription: cat,
			Frequency:        len(faults),
			TimeIntervals:    intervals,
			AvgInterval:      avg,
			Trend:            CalculateTrend(intervals),
			Criticality:      AssessCriticality(len(faults), avg, cat),
			RelatedFaults:    RelatedFaults(cat, observed),
		})
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Frequency > patterns[j].Frequency })
	return patterns, nil
}

// GenerateInsights turns fault patterns into templated recommendations.
func (a *Analyzer) GenerateInsights(equipmentID string, patterns []model.FaultPattern) []model.Insight {
	insights := []model.Insight{}

	for _, p := range patterns {
		if p.Frequency >= 5 {
			insights = append(insights, model.Insight{
				InsightType: "high_frequency",
				EquipmentID: equipmentID,
				Title:       fmt.Sprintf("Frequent %s faults", p.FaultDescription),
				Description: fmt.Sprintf("%s has experienced %d %s faults, one every %.0f hours on average.",
					equipmentID, p.Frequency, p.FaultDescription, p.AvgInterval),
				Recommendation: fmt.Sprintf("Schedule a detailed inspection of the %s.", p.FaultDescription),
				Priority:       p.Criticality,
				Confidence:     0.85,
			})
		}
		if p.Trend == TrendIncreasing {
			insights = append(insights, model.Insight{
				InsightType: "increasing_trend",
				EquipmentID: equipmentID,
				Title:       fmt.Sprintf("%s faults accelerating", p.FaultDescription),
				Description: fmt.Sprintf("The interval between %s faults on %s is shrinking.",
					p.FaultDescription, equipmentID),
				Recommendation: "Prioritize preventive maintenance before the next expected failure.",
				Priority:       "high",
				Confidence:     0.80,
			})
		}
		if p.Criticality == CriticalityHigh {
			insights = append(insights, model.Insight{
				InsightType: "critical_system",
				EquipmentID: equipmentID,
				Title:       fmt.Sprintf("Critical system affected: %s", p.FaultDescription),
				Description: fmt.Sprintf("%s faults on %s involve a safety-relevant system.",
					p.FaultDescription, equipmentID),
				Recommendation: "Review spare-part availability and escalate to the reliability team.",
				Priority:       "critical",
				Confidence:     0.90,
			})
		}
	}

	for i, p := range patterns {
		if i >= 2 {
			break
		}
		if len(p.RelatedFaults) == 0 {
			continue
		}
		insights = append(insights, model.Insight{
			InsightType: "related_faults",
			EquipmentID: equipmentID,
			Title:       fmt.Sprintf("Systems related to %s", p.FaultDescription),
			Description: fmt.Sprintf("%s faults often co-occur with: %s.",
				p.FaultDescription, strings.Join(p.RelatedFaults, ", ")),
			Recommendation: "Inspect the related systems during the same maintenance window.",
			Priority:       "medium",
			Confidence:     0.75,
		})
	}

	return insights
}

// EquipmentList returns the crane and spreader units with enough fault
// history to analyze, busiest first.
func (a *Analyzer) EquipmentList() ([]model.Equipment, error) {
	db, err := a.store.DB(a.dbName)
	if err != nil {
		return nil, err
	}
	table, err := a.resolveWorkOrderTable(db)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT CASE POS_key
		         WHEN 'STS' THEN SUBSTR(MO_key, 1, 5)
		         WHEN 'SPR' THEN SUBSTR(MO_key, 1, 6)
		         ELSE MO_key
		       END AS equipment_id,
		       POS_key, COUNT(*) AS fault_count
		FROM "%s"
		WHERE POS_key IN ('STS', 'SPR') AND description IS NOT NULL
		GROUP BY equipment_id
		HAVING fault_count >= 3
		ORDER BY fault_count DESC
		LIMIT 50`, table)

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing equipment: %w", err)
	}
	defer rows.Close()

	var out []model.Equipment
	for rows.Next() {
		var e model.Equipment
		var pos string
		if err := rows.Scan(&e.EquipmentID, &pos, &e.FaultCount); err != nil {
			return nil, fmt.Errorf("scanning equipment: %w", err)
		}
		if pos == "SPR" {
			e.EquipmentType = "Spreader"
		} else {
			e.EquipmentType = "Crane"
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FleetSummary aggregates fault patterns across the busiest equipment.
type FleetSummary struct {
	EquipmentAnalyzed int                             `json:"equipment_analyzed"`
	TotalPatterns     int                             `json:"total_patterns"`
	CommonFaults      []FaultCount                    `json:"common_faults"`
	CriticalEquipment []string                        `json:"critical_equipment"`
	Recommendations   []string                        `json:"recommendations"`
	PerEquipment      map[string][]model.FaultPattern `json:"per_equipment"`
}

// FaultCount pairs a fault category with its fleet-wide occurrence count.
type FaultCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ComprehensiveAnalysis analyzes the top 10 equipment units and rolls the
// results up into a fleet-level summary.
func (a *Analyzer) ComprehensiveAnalysis(daysBack int) (*FleetSummary, error) {
	equipment, err := a.EquipmentList()
	if err != nil {
		return nil, err
	}
	if len(equipment) > 10 {
		equipment = equipment[:10]
	}

	summary := &FleetSummary{
		PerEquipment:    map[string][]model.FaultPattern{},
		Recommendations: []string{},
	}
	faultTotals := map[string]int{}
	critical := map[string]bool{}

	for _, eq := range equipment {
		patterns, err := a.AnalyzeFaultPatterns(eq.EquipmentID, daysBack)
		if err != nil {
			return nil, err
		}
		if len(patterns) == 0 {
			continue
		}
		summary.EquipmentAnalyzed++
		summary.TotalPatterns += len(patterns)
		summary.PerEquipment[eq.EquipmentID] = patterns

		for _, p := range patterns {
			faultTotals[p.FaultDescription] += p.Frequency
			if p.Criticality == CriticalityHigh {
				critical[eq.EquipmentID] = true
			}
			if p.Frequency >= 8 {
				summary.Recommendations = append(summary.Recommendations,
					fmt.Sprintf("Move %s on %s to a predictive maintenance plan.", p.FaultDescription, eq.EquipmentID))
			}
			if p.Trend == TrendIncreasing {
				summary.Recommendations = append(summary.Recommendations,
					fmt.Sprintf("Inspect %s on %s: fault intervals are shortening.", p.FaultDescription, eq.EquipmentID))
			}
		}
	}

	for cat, n := range faultTotals {
		summary.CommonFaults = append(summary.CommonFaults, FaultCount{Category: cat, Count: n})
	}
	sort.Slice(summary.CommonFaults, func(i, j int) bool {
		if summary.CommonFaults[i].Count != summary.CommonFaults[j].Count {
			return summary.CommonFaults[i].Count > summary.CommonFaults[j].Count
		}
		return summary.CommonFaults[i].Category < summary.CommonFaults[j].Category
	})
	if len(summary.CommonFaults) > 5 {
		summary.CommonFaults = summary.CommonFaults[:5]
	}

	for id := range critical {
		summary.CriticalEquipment = append(summary.CriticalEquipment, id)
	}
	sort.Strings(summary.CriticalEquipment)
	if len(summary.CriticalEquipment) > 0 {
		summary.Recommendations = append(summary.Recommendations,
			fmt.Sprintf("Prioritize maintenance windows for: %s.", strings.Join(summary.CriticalEquipment, ", ")))
	}

	return summary, nil
}
