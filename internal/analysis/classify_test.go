package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorizeFault(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want string
	}{
		{"empty", "", CategoryUnknown},
		{"whitespace only", "   ", CategoryUnknown},
		{"hydraulic english", "leak in hydraulic oil line", CategoryHydraulic},
		{"hydraulic french", "fuite huile sur verin", CategoryHydraulic},
		{"electrical", "power supply voltage drop", CategoryElectrical},
		{"mechanical", "gearbox bearing noise", CategoryMechanical},
		{"braking french", "probleme de frein treuil", CategoryBraking},
		{"sensor", "alarm on laser detector", CategorySensor},
		{"cable", "damaged festoon cable", CategoryCable},
		{"lubrication", "grease line blocked", CategoryLubrication},
		{"inspection", "annual inspection due", CategoryInspection},
		{"unmatched", "zzz qqq", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategorizeFault(tt.desc))
		})
	}
}

func TestCategorizeFaultFirstMatchWins(t *testing.T) {
	// "oil" (hydraulic) appears before "motor" (mechanical) in the rule
	// order, so mixed text lands in the earlier category.
	assert.Equal(t, CategoryHydraulic, CategorizeFault("motor oil low"))
}

func TestRelatedFaults(t *testing.T) {
	observed := []string{CategoryHydraulic, CategoryMechanical, CategorySensor}

	got := RelatedFaults(CategoryHydraulic, observed)
	assert.Equal(t, []string{CategoryMechanical}, got)

	assert.Nil(t, RelatedFaults(CategoryOther, observed))
	assert.Nil(t, RelatedFaults(CategoryHydraulic, nil))
}

func TestCalculateTrend(t *testing.T) {
	tests := []struct {
		name      string
		intervals []float64
		want      string
	}{
		{"empty", nil, TrendStable},
		{"two intervals", []float64{100, 10}, TrendStable},
		{"shrinking intervals", []float64{200, 180, 50, 40}, TrendIncreasing},
		{"growing intervals", []float64{40, 50, 180, 200}, TrendDecreasing},
		{"flat", []float64{100, 100, 100, 100}, TrendStable},
		{"just inside band", []float64{100, 100, 81, 81}, TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateTrend(tt.intervals))
		})
	}
}

func TestCalculateTrendScaleInvariant(t *testing.T) {
	base := []float64{200, 180, 50, 40}
	scaled := make([]float64, len(base))
	for i, v := range base {
		scaled[i] = v * 24
	}
	assert.Equal(t, CalculateTrend(base), CalculateTrend(scaled))
}

func TestAssessCriticality(t *testing.T) {
	tests := []struct {
		name      string
		frequency int
		avgHours  float64
		faultType string
		want      string
	}{
		{"frequency 10 wins over long interval", 10, 10000, CategoryOther, CriticalityHigh},
		{"frequency 5", 5, 10000, CategoryOther, CriticalityMedium},
		{"weekly recurrence", 2, 100, CategoryOther, CriticalityHigh},
		{"monthly recurrence", 2, 500, CategoryOther, CriticalityMedium},
		{"critical category at 3", 3, 2000, CategoryBraking, CriticalityHigh},
		{"critical category at 2", 2, 2000, CategoryHydraulic, CriticalityMedium},
		{"rare non-critical", 2, 2000, CategoryOther, CriticalityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessCriticality(tt.frequency, tt.avgHours, tt.faultType))
		})
	}
}

func TestAnalyzeFaultCauses(t *testing.T) {
	tests := []struct {
		name      string
		shortDesc string
		machine   string
		bdn       string
		want      string
	}{
		{"non-CMU breakdown is skipped", "TWIN FAULT", "HOIST", "PRV", ""},
		{"later rule overrides earlier", "TWIN BRAKE FAULT", "Other", "CMU", "Brake"},
		{"brake keeps machine prefix", "BRAKE WORN", "HOIST", "CMU", "HOIST Brake"},
		{"misspelled overload", "OVERLAOD ON MAIN HOIST", "HOIST", "CMU", "Over load"},
		{"correct overload", "OVERLOAD ON MAIN HOIST", "HOIST", "CMU", "Overload"},
		{"e-stop", "E-STOP PRESSED IN CABIN", "Other", "CMU", "E-Stop"},
		{"power off with operator ack", "POWER OFF ACQUITTEMENT DEFAUT", "Other", "CMU", "Power Off auto restart"},
		{"power off plain", "POWER CUT OFF MAIN", "Other", "CMU", "Power Off"},
		{"snag needs fault number", "SNAG FAULT # 12", "Other", "CMU", "snag"},
		{"snag with cut excluded falls back", "SNAG CUT", "GANTRY", "CMU", "GANTRY"},
		{"spreader position becomes sensor adjustment", "POSITION ERROR", "SPREADER", "CMU", "Sensor Adjustment"},
		{"hoist position keeps machine", "POSITION ERROR", "HOIST", "CMU", "HOIST position"},
		{"communication on electrical", "COMMUNICATION LOST", "ELECTRICAL", "CMU", "Communication"},
		{"communication on trolley", "COMMUNICATION LOST", "TROLLEY", "CMU", "TROLLEY Communication"},
		{"no match falls back to machine", "ZZZ", "GANTRY", "CMU", "GANTRY"},
		{"spreader change via sub-cascade", "SPR312 CHANGEMENT", "SPREADER", "CMU", "Change spreader"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnalyzeFaultCauses(tt.shortDesc, tt.machine, tt.bdn))
		})
	}
}

func TestAnalyzeSpreaderFault(t *testing.T) {
	// Gate: no spreader mention and machine is not a spreader.
	assert.Equal(t, "", AnalyzeSpreaderFault("TWIN FAULT", "HOIST", "CMU"))

	// Machine SPREADER on a CMU breakdown passes the gate without a
	// spreader token in the text.
	assert.Equal(t, "twin", AnalyzeSpreaderFault("TWIN FAULT", "SPREADER", "CMU"))

	// Flipper only fires when nothing else matched.
	assert.Equal(t, "flipper", AnalyzeSpreaderFault("SPR305 FLIPPER BENT", "SPREADER", "CMU"))
	assert.Equal(t, "twin", AnalyzeSpreaderFault("SPR305 FLIPPER TWIN", "SPREADER", "CMU"))

	assert.Equal(t, "", AnalyzeSpreaderFault("", "SPREADER", "CMU"))
}

func TestEquipmentType(t *testing.T) {
	tests := []struct {
		machine string
		want    string
	}{
		{"STS04MNH", "HOIST"},
		{"STS04HDB01", "SPREADER"},
		{"STS11GAN", "GANTRY"},
		{"STS04ELE", "ELECTRICAL"},
		{"STS04TRM99", "TLS"},
		{"STS04XYZ", "Other"},
		{"SHORT", "Other"},
		{"", "Other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EquipmentType(tt.machine), "machine %q", tt.machine)
	}
}

func TestExtractCraneID(t *testing.T) {
	assert.Equal(t, "STS04", ExtractCraneID("sts04mnh"))
	assert.Equal(t, "STS11", ExtractCraneID("STS11GAN"))
	assert.Equal(t, "", ExtractCraneID("STS00MNH")) // crane 0 does not exist
	assert.Equal(t, "", ExtractCraneID("STS94MNH")) // out of range
	assert.Equal(t, "", ExtractCraneID("RTG04MNH"))
	assert.Equal(t, "", ExtractCraneID("STS"))
}

func TestExtractSpreaderNumber(t *testing.T) {
	assert.Equal(t, "312", ExtractSpreaderNumber("SPR312 twistlock stuck", "STS04HDB"))
	assert.Equal(t, "305", ExtractSpreaderNumber("sps305 flipper", "STS04HDB"))
	assert.Equal(t, "non", ExtractSpreaderNumber("SPR100 old unit", "STS04HDB"))
	assert.Equal(t, "non", ExtractSpreaderNumber("no prefix here", "STS04HDB"))
	assert.Equal(t, "non", ExtractSpreaderNumber("SPR", "STS04HDB"))
	assert.Equal(t, "", ExtractSpreaderNumber("SPR312 twistlock", "STS04MNH"))
}

func TestClassifyEquipment(t *testing.T) {
	cat := ClassifyEquipment("STS04MNH")
	assert.Equal(t, "STS_Crane", cat.Type)
	assert.Equal(t, "STS04", cat.Unit)
	assert.Equal(t, "Main_Hoist", cat.Component)

	cat = ClassifyEquipment("SPS312STSTWL")
	assert.Equal(t, "SPS_Spreader", cat.Type)
	assert.Equal(t, "SPS312", cat.Unit)
	assert.Equal(t, "Trolley", cat.Component)

	// A bare SPS code names the spreader itself, component abbreviations
	// only count on combined SPS-STS codes.
	cat = ClassifyEquipment("SPS312ELE")
	assert.Equal(t, "SPS_Spreader", cat.Type)
	assert.Equal(t, "Spreader", cat.Component)

	cat = ClassifyEquipment("SPR305")
	assert.Equal(t, "Spreader", cat.Type)
	assert.Equal(t, "Spreader", cat.Component)

	cat = ClassifyEquipment("SPR312ELE")
	assert.Equal(t, "Spreader", cat.Component)

	cat = ClassifyEquipment("RTG01")
	assert.Equal(t, "Other", cat.Type)
	assert.Equal(t, "Unknown", cat.Unit)
}

func TestClassifyEquipmentComponentPrecedence(t *testing.T) {
	// Codes carrying two abbreviations resolve by rule order, every time.
	for range 100 {
		assert.Equal(t, "Main_Hoist", ClassifyEquipment("STS04MNHELE").Component)
		assert.Equal(t, "Electrical", ClassifyEquipment("STS04ELESTR").Component)
		assert.Equal(t, "Electrical", ClassifyEquipment("SPS312STSELEHYD").Component)
	}
}
