// Package analysis implements the rule-based classifiers for maintenance
// work-order text: fault categorization, recurrence trends, criticality
// assessment and the fault-cause cascade ported from the legacy
// spreadsheet macro.
package analysis

import "strings"

// Fault category labels. The vocabulary is fixed; free text is bucketed
// into exactly one of these.
const (
	CategoryHydraulic   = "Hydraulic System"
	CategoryElectrical  = "Electrical System"
	CategoryMechanical  = "Mechanical System"
	CategoryBraking     = "Braking System"
	CategorySensor      = "Sensor/Detection"
	CategoryCable       = "Cable/Wiring"
	CategoryLubrication = "Lubrication"
	CategoryInspection  = "Inspection/Testing"
	CategoryOther       = "Other/General"
	CategoryUnknown     = "Unknown"
)

// categoryRule binds one label to its keyword list. The rules form an
// ordered cascade: the first rule with any matching keyword wins, so the
// slice order is part of the contract (the legacy implementation depended
// on dict iteration order; here it is pinned explicitly).
type categoryRule struct {
	label    string
	keywords []string
}

// categoryRules lists English and French keywords per category.
var categoryRules = []categoryRule{
	{CategoryHydraulic, []string{"hydraulic", "oil", "pressure", "hydraulique", "huile", "pression"}},
	{CategoryElectrical, []string{"electrical", "electric", "power", "voltage", "électrique", "electrique", "tension"}},
	{CategoryMechanical, []string{"mechanical", "gear", "bearing", "motor", "mécanique", "mecanique", "roulement", "moteur"}},
	{CategoryBraking, []string{"brake", "braking", "frein", "freinage"}},
	{CategorySensor, []string{"sensor", "detector", "alarm", "capteur", "détecteur", "detecteur", "alarme"}},
	{CategoryCable, []string{"cable", "wire", "connection", "câble", "fil", "connexion"}},
	{CategoryLubrication, []string{"lubrication", "grease", "lubricant", "graissage", "graisse", "lubrifiant"}},
	{CategoryInspection, []string{"inspection", "check", "test", "contrôle", "controle", "vérification", "verification"}},
}

// CategorizeFault buckets a free-text fault description into one category
// label by first-match substring search. Empty text maps to Unknown,
// unmatched text to Other/General.
func CategorizeFault(description string) string {
	if strings.TrimSpace(description) == "" {
		return CategoryUnknown
	}
	lower := strings.ToLower(description)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}
	return CategoryOther
}

// relatedSystems is the fixed adjacency of fault categories that tend to
// fail together.
var relatedSystems = map[string][]string{
	CategoryHydraulic:   {CategoryMechanical, CategoryLubrication},
	CategoryElectrical:  {CategorySensor, CategoryCable},
	CategoryMechanical:  {CategoryHydraulic, CategoryLubrication},
	CategoryBraking:     {CategoryHydraulic, CategoryMechanical},
	CategorySensor:      {CategoryElectrical, CategoryCable},
	CategoryCable:       {CategoryElectrical, CategorySensor},
	CategoryLubrication: {CategoryMechanical, CategoryHydraulic},
}

// RelatedFaults returns the related categories of category that are also
// present in observed.
func RelatedFaults(category string, observed []string) []string {
	related := relatedSystems[category]
	if len(related) == 0 {
		return nil
	}
	present := make(map[string]bool, len(observed))
	for _, o := range observed {
		present[o] = true
	}
	var out []string
	for _, r := range related {
		if present[r] && r != category {
			out = append(out, r)
		}
	}
	return out
}
