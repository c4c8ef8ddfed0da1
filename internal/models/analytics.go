package models

import "time"

// CategoryStat breaks grievance volume down per category.
type CategoryStat struct {
	Category        string `db:"category" json:"category"`
	Count           int    `db:"count" json:"count"`
	ResolvedCount   int    `db:"resolved_count" json:"resolved_count"`
	PendingCount    int    `db:"pending_count" json:"pending_count"`
	InProgressCount int    `db:"in_progress_count" json:"in_progress_count"`
}

// MonthlyTrendPoint counts submissions per calendar month.
type MonthlyTrendPoint struct {
	Month    string `db:"month" json:"month"`
	Total    int    `db:"total" json:"total"`
	Resolved int    `db:"resolved" json:"resolved"`
	Pending  int    `db:"pending" json:"pending"`
}

// ResolutionTimeStat reports average hours to resolution per category.
type ResolutionTimeStat struct {
	Category      string  `db:"category" json:"category"`
	AvgHours      float64 `db:"avg_hours" json:"avg_hours"`
	ResolvedCount int     `db:"resolved_count" json:"resolved_count"`
}

// DepartmentWorkload aggregates grievance volume per assigned department.
type DepartmentWorkload struct {
	Department      string `db:"department" json:"department"`
	TotalGrievances int    `db:"total_grievances" json:"total_grievances"`
	Resolved        int    `db:"resolved" json:"resolved"`
	InProgress      int    `db:"in_progress" json:"in_progress"`
	Pending         int    `db:"pending" json:"pending"`
}

// ActivityEvent is one recent status-change event with actor context.
type ActivityEvent struct {
	GrievanceID   string          `db:"grievance_id" json:"grievance_id"`
	Status        GrievanceStatus `db:"status" json:"status"`
	ChangedAt     time.Time       `db:"changed_at" json:"changed_at"`
	AdminRemark   *string         `db:"admin_remark" json:"admin_remark,omitempty"`
	ChangedByName *string         `db:"changed_by_name" json:"changed_by_name,omitempty"`
	Category      *string         `db:"category" json:"category,omitempty"`
	StudentName   *string         `db:"student_name" json:"student_name,omitempty"`
}
