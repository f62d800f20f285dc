package analysis

// Trend labels for fault recurrence.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Criticality labels.
const (
	CriticalityHigh   = "high"
	CriticalityMedium = "medium"
	CriticalityLow    = "low"
)

// CalculateTrend compares the mean of the first and second halves of a
// chronological list of inter-occurrence intervals (hours). Intervals
// getting shorter means faults are occurring closer together, i.e. the
// fault is increasing. Fewer than 3 intervals is always stable. The
// comparison is ratio-based, so scaling all intervals by a positive
// constant never changes the result.
func CalculateTrend(intervals []float64) string {
	if len(intervals) < 3 {
		return TrendStable
	}

	mid := len(intervals) / 2
	firstHalf := mean(intervals[:mid])
	secondHalf := mean(intervals[mid:])

	switch {
	case secondHalf < firstHalf*0.8:
		return TrendIncreasing
	case secondHalf > firstHalf*1.2:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// criticalCategories are the systems whose faults escalate criticality at
// lower frequencies.
var criticalCategories = map[string]bool{
	CategoryHydraulic:  true,
	CategoryBraking:    true,
	CategoryElectrical: true,
}

// AssessCriticality applies the fixed decision table, first match wins:
// frequency thresholds, then recurrence-interval thresholds, then the
// critical-system category rule.
func AssessCriticality(frequency int, avgIntervalHours float64, faultType string) string {
	if frequency >= 10 {
		return CriticalityHigh
	}
	if frequency >= 5 {
		return CriticalityMedium
	}

	if avgIntervalHours < 168 { // less than a week
		return CriticalityHigh
	}
	if avgIntervalHours < 720 { // less than a month
		return CriticalityMedium
	}

	if criticalCategories[faultType] {
		if frequency >= 3 {
			return CriticalityHigh
		}
		return CriticalityMedium
	}

	return CriticalityLow
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
