package analysis

import (
	"strings"
)

// The fault-cause extraction below is a behavioral port of a legacy Excel
// macro. The macro runs a fixed sequence of substring checks against the
// uppercased short description + machine type, each check unconditionally
// overwriting the accumulated cause, so later rules take priority over
// earlier ones. The rule order is load-bearing; do not reorder or merge
// rules, and do not replace the accumulator with scoring.

// causeRule is one step of the cascade: if match returns a non-empty
// label, that label replaces the accumulated cause.
type causeRule struct {
	match func(d, machine string) string
}

func anyOf(d string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(d, t) {
			return true
		}
	}
	return false
}

// causeCascade is applied in order; the last matching rule wins.
var causeCascade = []causeRule{
	{func(d, _ string) string {
		if strings.Contains(d, "TWIN") {
			return "twin"
		}
		return ""
	}},
	{func(d, _ string) string {
		if anyOf(d, "TELESCO", "TELESCOPIE") {
			return "telescopic"
		}
		return ""
	}},
	{func(d, _ string) string {
		if anyOf(d, "UNLOCK", "SIGNAL", "LOCK", "DEVEROUILLAGE", "DEVERROUILLAGE", "VERROUILLAGE") {
			return "Lock/Unlock"
		}
		return ""
	}},
	// The macro repeats the SIGNAL check on its own; kept for parity.
	{func(d, _ string) string {
		if strings.Contains(d, "SIGNAL") {
			return "Lock/Unlock"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "BAD CONT") {
			return "Bad contenair"
		}
		return ""
	}},
	{func(d, machine string) string {
		if strings.Contains(d, "ASSIST") {
			return machine + " Assistance"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "BOOM") {
			return "Boom"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "WHEEL") && strings.Contains(d, "BRAKE") {
			return "wheel brake"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "MODULE") {
			return "Module"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "GCR") {
			return "GCR"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "SCR") {
			return "SCR"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "E-STOP") {
			return "E-Stop"
		}
		return ""
	}},
	// "OVERLAOD" is the macro's own misspelling, preserved as a literal
	// match target; the correctly spelled OVERLOAD rule appears later.
	{func(d, _ string) string {
		if anyOf(d, "OVERLAOD", "OVER LAOD") {
			return "Over load"
		}
		return ""
	}},
	{func(d, _ string) string {
		if anyOf(d, "CRANE OFF", "DRIVE OFF") {
			return "Crane off"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "TLS") {
			return "TLS"
		}
		return ""
	}},
	{func(d, _ string) string {
		if anyOf(d, "OVERCURRENT", "OVER CURRENT") {
			return "Over current"
		}
		return ""
	}},
	{func(d, _ string) string {
		if anyOf(d, "OVER VOLTAGE", "OVERVOLTAGE") {
			return "Over voltage"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "SLOWDOWN") {
			return "slowdown"
		}
		return ""
	}},
	{func(d, machine string) string {
		if strings.Contains(d, "INVERT") {
			return machine + " inverter"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "ENCOD") {
			return "Encoder"
		}
		return ""
	}},
	{func(d, machine string) string {
		if strings.Contains(d, "COMMUNICAT") {
			if machine == "ELECTRICAL" || machine == "Other" {
				return "Communication"
			}
			return machine + " Communication"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "BLINK") {
			return "Spreader Communication"
		}
		return ""
	}},
	{func(d, machine string) string {
		if strings.Contains(d, "LIMIT SWITCH") {
			if machine == "Other" {
				return "limit switch"
			}
			return machine + " limit switch"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "UVA") {
			return "UVA"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "ALM") {
			return "ALM"
		}
		return ""
	}},
	{func(d, _ string) string {
		if anyOf(d, "POWER CUT OFF", "POWER OFF", "TRANSFO") {
			if anyOf(d, "L'OPÉRATEUR", "ACQUITTEMENT DEFAUT", "OPERATOR", "AUTOMATI") {
				return "Power Off auto restart"
			}
			return "Power Off"
		}
		return ""
	}},
	{func(d, _ string) string {
		if anyOf(d, "ECCENTRIC", "UNBALANCE", "ECE", "ECC FAULT") {
			return "Eccentric"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "SNAG") && !strings.Contains(d, "CUT") && strings.Contains(d, "FAULT #") {
			return "snag"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "SLACK") {
			return "slack"
		}
		return ""
	}},
	{func(d, machine string) string {
		if strings.Contains(d, "POSITION") && !strings.Contains(d, "TELESCOPIE") {
			causes := machine + " position"
			if causes == "SPREADER position" {
				return "Sensor Adjustment"
			}
			return causes
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "OVERLOAD") {
			return "Overload"
		}
		return ""
	}},
	{func(d, _ string) string {
		if anyOf(d, "COINCÉ", "STUCK") {
			return "Stuck"
		}
		return ""
	}},
	{func(d, _ string) string {
		if anyOf(d, "CLIGNOT", "CLIGNOTANT", "BLINKING", "BLINK") {
			return "blinking"
		}
		return ""
	}},
	{func(d, _ string) string {
		if strings.Contains(d, "ROOF") {
			return "Roof detected"
		}
		return ""
	}},
	{func(d, machine string) string {
		if anyOf(d, "BRAKE", "FREIN") {
			if machine == "Other" {
				return "Brake"
			}
			return machine + " Brake"
		}
		return ""
	}},
	{func(d, machine string) string {
		if anyOf(d, "BRAKER", "TRIP") {
			if machine == "Other" {
				return "Braker"
			}
			return machine + " Braker"
		}
		return ""
	}},
}

// AnalyzeFaultCauses extracts the most specific fault cause from a work
// order's short description and machine type. bdn is the breakdown
// discriminator; anything other than "CMU" is out of scope and yields "".
// Falls back to the bare machine type when nothing matches.
func AnalyzeFaultCauses(shortDesc, machine, bdn string) string {
	if bdn != "CMU" {
		return ""
	}
	d := strings.TrimSpace(strings.ToUpper(shortDesc + " " + machine))

	causes := ""
	// The first six rules run before the spreader-specific pass, the rest
	// after, matching the macro's statement order.
	for _, rule := range causeCascade[:6] {
		if label := rule.match(d, machine); label != "" {
			causes = label
		}
	}
	if spreader := AnalyzeSpreaderFault(shortDesc, machine, bdn); spreader != "" {
		causes = spreader
	}
	for _, rule := range causeCascade[6:] {
		if label := rule.match(d, machine); label != "" {
			causes = label
		}
	}

	if len(causes) < 2 {
		causes = machine
	}
	return causes
}

// AnalyzeSpreaderFault runs the spreader-specific sub-cascade. It only
// applies when the text mentions a spreader, or when the machine type is
// SPREADER on a CMU breakdown.
func AnalyzeSpreaderFault(shortDesc, machine, bdn string) string {
	if strings.TrimSpace(shortDesc) == "" {
		return ""
	}
	d := strings.TrimSpace(strings.ToUpper(shortDesc))

	spreaderWork := anyOf(d, "SPR", "SPS", "SPREADER") || (machine == "SPREADER" && bdn == "CMU")
	if !spreaderWork {
		return ""
	}

	causes := ""
	if strings.Contains(d, "TWIN") {
		causes = "twin"
	}
	if anyOf(d, "TELESCO", "TELESCOPIE", "TÉLESCOPIE") {
		causes = "telescopic"
	}
	if anyOf(d, "UNLOCK", "SIGNAL", "LOCK", "DEVEROUILLAGE", "DEVERROUILLAGE", "VERROUILLAGE") {
		causes = "Lock/Unlock"
	}
	if strings.Contains(d, "SIGNAL") {
		causes = "Lock/Unlock"
	}
	if anyOf(d, "BAD CONT", "CORNER") {
		causes = "Bad contenair"
	}
	if anyOf(d, "CHANGEMENT", "REMPLACE", "CHANGE") {
		causes = "Change spreader"
	}
	// Flipper only applies when nothing above matched.
	if causes == "" && anyOf(d, "FLIPPER", "FLIP") {
		causes = "flipper"
	}
	return causes
}
