// Package dashboard computes the aggregate views served to the analytics
// pages: work-order breakdowns and KPIs over the corrective-maintenance
// history, and stock health over the spare-parts inventory.
package dashboard

// CMMS export codes and their display names. Unknown codes fall through
// with an "Unknown (X)" label rather than being dropped.

var statusLabels = map[string]string{
	"EXE": "In Execution",
	"INI": "Initiated",
	"TER": "Terminated/Completed",
	"PRT": "Partially Complete",
	"APC": "Awaiting Parts/Completion",
}

var jobTypeLabels = map[string]string{
	"C": "Corrective Maintenance",
	"O": "Operational",
	"I": "Inspection",
	"P": "Preventive Maintenance",
	"U": "Unplanned/Urgent",
	"B": "Breakdown",
	"L": "Lubrication",
}

var posKeyLabels = map[string]string{
	"STS": "Ship to Shore",
	"SPR": "Spreader Systems",
}

var costPurposeLabels = map[string]string{
	"COR":    "Corrective",
	"SUP":    "Support",
	"PROJ":   "Project",
	"PREV":   "Preventive",
	"COND":   "Conditional",
	"IT SUP": "IT Support",
	"DOM":    "Damage/Dommage",
	"IMP":    "Improvement",
}

var priorityLabels = map[string]string{
	"1-IMM":      "Immediate",
	"2-DAY":      "Within Day",
	"3-WEEK":     "Within Week",
	"4-PLAN":     "Planned",
	"5-GAP":      "Gap/Spare Time",
	"6-ONG":      "Ongoing",
	"1- PR IMM":  "Immediate (High Priority)",
	"2 - PR HIG": "High Priority",
	"3- PR MED":  "Medium Priority",
	"4 - PR LOW": "Low Priority",
}

var supplierLabels = map[string]string{
	"PAINT":    "Paint Works",
	"ELEC/MEC": "Electrical/Mechanical",
	"MEC":      "Mechanical",
	"CR":       "Crane Operations",
	"ELEC":     "Electrical",
	"WELD":     "Welding",
	"GLASS":    "Glass Works",
	"Projects": "Project Works",
}

var locationLabels = map[string]string{
	"MNH": "Main Hoist",
	"SPS": "Spreader System",
	"HDB": "Head Block",
	"ELE": "Electrical",
	"GAN": "Gantry",
	"TRL": "Trolley",
	"ELV": "Elevator",
	"BMH": "Boom Hoist",
	"CAB": "Cabin",
	"LIG": "Lighting",
	"STR": "Structure",
	"TRM": "Terminal",
	"SLE": "Slewring",
	"HYD": "Hydraulic",
	"FES": "Festoon",
	"HVS": "High Voltage System",
	"SRC": "Source",
	"TWL": "Twist Lock",
	"TLS": "Tools",
	"CMS": "CMS System",
	"SCR": "Screen",
	"FLP": "Flipper",
	"BCO": "Boom Cord",
	"ATR": "Auto Transfer",
	"MTR": "Motor",
	"LVS": "Low Voltage System",
}
