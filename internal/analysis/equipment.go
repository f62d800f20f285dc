package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/portside-dev/craneops/internal/model"
)

// Machine codes follow the site's naming convention: a 5-character unit
// prefix (STS04, SPS312, ...) followed by a 3-letter component code.

// equipmentTypeCodes maps the 3-letter component code embedded at position
// 5 of a machine code to its equipment type.
var equipmentTypeCodes = map[string]string{
	"MNH": "HOIST",
	"HDB": "SPREADER",
	"GAN": "GANTRY",
	"ELE": "ELECTRICAL",
	"TRL": "TROLLEY",
	"LIG": "LIGHTING",
	"CAB": "OPERATOR CABIN",
	"HYD": "HYDRAULIC",
	"FES": "FESTOON",
	"ELV": "ELEVATOR",
	"TRM": "TLS",
}

// EquipmentType derives the equipment type from a machine code by reading
// the 3-letter component code at a fixed offset. Codes too short to carry
// one are "Other".
func EquipmentType(machine string) string {
	if len(machine) <= 7 {
		return "Other"
	}
	var code string
	if len(machine) > 8 {
		code = machine[5:8]
	} else {
		code = machine[5:]
	}
	if t, ok := equipmentTypeCodes[strings.ToUpper(code)]; ok {
		return t
	}
	return "Other"
}

// ExtractCraneID pulls a crane identifier (e.g. "STS04") from the first 5
// characters of an equipment name. Returns "" when the name does not carry
// a valid STS crane number >= 1.
func ExtractCraneID(craneName string) string {
	if len(craneName) < 5 {
		return ""
	}
	craneID := strings.ToUpper(craneName[:5])
	if !strings.HasPrefix(craneID, "STS") {
		return ""
	}
	if craneID[3] != '0' && craneID[3] != '1' {
		return ""
	}
	n, err := strconv.Atoi(craneID[3:5])
	if err != nil || n < 1 {
		return ""
	}
	return craneID
}

// ExtractSpreaderNumber pulls a spreader number from the first 6 characters
// of a short description ("SPR312 ..." yields "312"). Spreader numbers are
// only valid above 200; anything else is the "non" sentinel. Non-spreader
// machines yield "".
func ExtractSpreaderNumber(shortDesc, machine string) string {
	if EquipmentType(machine) != "SPREADER" {
		return ""
	}
	d := strings.TrimSpace(strings.ToUpper(shortDesc))
	if len(d) < 6 {
		return "non"
	}
	spnr := d[:6]
	if !strings.HasPrefix(spnr, "SPR") && !strings.HasPrefix(spnr, "SPS") {
		return "non"
	}
	n, err := strconv.Atoi(spnr[3:6])
	if err != nil || n <= 200 {
		return "non"
	}
	return strconv.Itoa(n)
}

var stsUnitPattern = regexp.MustCompile(`^STS(\d{2})`)
var spsUnitPattern = regexp.MustCompile(`^SPS(\d{3})`)

// componentRule binds a component abbreviation to its name and description.
// Rules are checked in slice order and the first hit wins, so a code that
// carries two abbreviations always resolves the same way.
type componentRule struct {
	abbr string
	name string
	desc string
}

var craneComponents = []componentRule{
	{"MNH", "Main_Hoist", "Main Hoist System"},
	{"HDB", "Head_Block", "Head Block System"},
	{"ELE", "Electrical", "Electrical System"},
	{"STR", "Structure", "Structural Components"},
	{"HYD", "Hydraulic", "Hydraulic System"},
	{"GAN", "Gantry", "Gantry System"},
	{"LIG", "Lighting", "Lighting System"},
}

var spreaderComponents = []componentRule{
	{"ELE", "Electrical", "Spreader Electrical System"},
	{"HYD", "Hydraulic", "Spreader Hydraulic System"},
	{"FLP", "Flipper", "Spreader Flipper System"},
	{"TWL", "Trolley", "Spreader Trolley System"},
	{"STR", "Structure", "Spreader Structure"},
}

// ClassifyEquipment breaks an equipment code down into type, unit and
// component for the PowerBI-style grouping views.
func ClassifyEquipment(code string) model.EquipmentCategory {
	c := strings.ToUpper(strings.TrimSpace(code))
	cat := model.EquipmentCategory{Type: "Other", Unit: "Unknown", Component: "General", Description: code}

	switch {
	case strings.HasPrefix(c, "STS"):
		cat.Type = "STS_Crane"
		if m := stsUnitPattern.FindStringSubmatch(c); m != nil {
			cat.Unit = "STS" + m[1]
		}
		cat.Component, cat.Description = componentOf(c, craneComponents, "General STS Equipment")
	case strings.HasPrefix(c, "SPS"):
		cat.Type = "SPS_Spreader"
		if m := spsUnitPattern.FindStringSubmatch(c); m != nil {
			cat.Unit = "SPS" + m[1]
		}
		// Only combined SPS-STS codes carry a component abbreviation; a
		// bare SPS code names the spreader itself.
		if strings.Contains(c, "STS") {
			cat.Component, cat.Description = componentOf(c, spreaderComponents, "General Spreader Equipment")
		} else {
			cat.Component, cat.Description = "Spreader", "Container Spreader"
		}
	case strings.HasPrefix(c, "SPR"):
		cat.Type = "Spreader"
		cat.Component, cat.Description = "Spreader", "Container Spreader"
	}
	return cat
}

func componentOf(code string, rules []componentRule, fallbackDesc string) (string, string) {
	for _, r := range rules {
		if strings.Contains(code, r.abbr) {
			return r.name, r.desc
		}
	}
	return "General", fallbackDesc
}
