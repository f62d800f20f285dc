// Package model defines all shared domain types for craneops.
package model

// TableMetadata is the bookkeeping row kept for every ingested table.
type TableMetadata struct {
	TableName         string `json:"table_name"`
	OriginalSheetName string `json:"original_sheet_name"`
	OriginalFilename  string `json:"original_filename"`
	ColumnCount       int    `json:"column_count"`
	RowCount          int    `json:"row_count"`
	CreatedDate       string `json:"created_date"` // ISO-8601
}

// TableInfo combines metadata with liveness information.
type TableInfo struct {
	TableMetadata
	Orphaned bool `json:"orphaned"` // present in sqlite_master but missing metadata
}

// DatabaseInfo describes one SQLite dataset file.
type DatabaseInfo struct {
	Name       string `json:"name"`
	SizeBytes  int64  `json:"size_bytes"`
	TableCount int    `json:"table_count"`
	Default    bool   `json:"default"`
}

// Column describes one column of a dynamic table.
type Column struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`          // declared SQLite type
	InferredType string   `json:"inferred_type"` // "numeric", "date" or "text"
	SampleValues []string `json:"sample_values,omitempty"`
}

// ColumnStats summarizes a single column's contents.
type ColumnStats struct {
	Column        string   `json:"column"`
	Count         int      `json:"count"`
	NullCount     int      `json:"null_count"`
	DistinctCount int      `json:"distinct_count"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Avg           *float64 `json:"avg,omitempty"`
}

// Page is one page of table rows plus paging bookkeeping.
type Page struct {
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalRows  int              `json:"total_rows"`
	TotalPages int              `json:"total_pages"`
}

// WorkOrder is one maintenance work-order row as read from the all_cm
// table. Field names mirror the CMMS export columns.
type WorkOrder struct {
	WOName        string `json:"wo_name"`
	Description   string `json:"description"`
	JobType       string `json:"job_type"`
	EquipmentCode string `json:"equipment_code"`
	Supplier      string `json:"supplier"`
	OrderDate     string `json:"order_date"`
	ExecutionDate string `json:"execution_date"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	POSKey        string `json:"pos_key"`
	CostPurpose   string `json:"cost_purpose_key"`
}

// FaultPattern is a recurring fault derived for one equipment unit. It is
// computed on demand, never persisted; Frequency is >= 2 by construction.
type FaultPattern struct {
	EquipmentID      string    `json:"equipment_id"`
	EquipmentType    string    `json:"equipment_type"` // "crane" or "spreader"
	FaultDescription string    `json:"fault_description"`
	Frequency        int       `json:"frequency"`
	TimeIntervals    []float64 `json:"time_intervals"` // hours between occurrences
	AvgInterval      float64   `json:"avg_interval_hours"`
	Trend            string    `json:"trend"`       // "increasing", "decreasing", "stable"
	Criticality      string    `json:"criticality"` // "high", "medium", "low"
	RelatedFaults    []string  `json:"related_faults"`
}

// Insight is a templated natural-language wrapper around a FaultPattern.
type Insight struct {
	InsightType    string  `json:"type"`
	EquipmentID    string  `json:"equipment_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
	Priority       string  `json:"priority"`
	Confidence     float64 `json:"confidence"`
}

// Equipment is one entry of the analyzable-equipment listing.
type Equipment struct {
	EquipmentID   string `json:"equipment_id"`
	EquipmentType string `json:"equipment_type"` // "Crane" or "Spreader"
	FaultCount    int    `json:"fault_count"`
}

// EquipmentCategory is the positional breakdown of an equipment code.
type EquipmentCategory struct {
	Type        string `json:"type"`
	Unit        string `json:"unit"`
	Component   string `json:"component"`
	Description string `json:"description"`
}

// Background operation states.
const (
	OpPending = "pending"
	OpRunning = "running"
	OpDone    = "done"
	OpError   = "error"
)

// Operation is a snapshot of one background operation's state.
type Operation struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Stage     string `json:"stage,omitempty"`
	Percent   int    `json:"percent"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	StartedAt int64  `json:"started_at"`
	EndedAt   int64  `json:"ended_at,omitempty"`
}
