package models

import "time"

// GrievanceStatus enumerates the lifecycle states of a grievance.
type GrievanceStatus string

const (
	StatusPending    GrievanceStatus = "Pending"
	StatusInProgress GrievanceStatus = "In Progress"
	StatusResolved   GrievanceStatus = "Resolved"
	StatusRejected   GrievanceStatus = "Rejected"
)

// Valid reports whether the status is a known lifecycle state.
func (s GrievanceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo consults the lifecycle transition table. Resolved and
// Rejected are terminal; In Progress may be re-affirmed.
func (s GrievanceStatus) CanTransitionTo(next GrievanceStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusResolved || next == StatusRejected
	case StatusInProgress:
		return next == StatusInProgress || next == StatusResolved || next == StatusRejected
	default:
		return false
	}
}

// Categories a grievance may be filed under.
var GrievanceCategories = []string{
	"Academic Issues",
	"Administration Issues",
	"Infrastructure Issues",
	"Hostel Issues",
	"Other",
}

// Grievance represents a student complaint tracked through its lifecycle.
type Grievance struct {
	ID                 string          `db:"id" json:"id"`
	StudentID          string          `db:"student_id" json:"student_id"`
	Category           string          `db:"category" json:"category"`
	Description        string          `db:"description" json:"description"`
	AttachmentPath     *string         `db:"attachment_path" json:"attachment_path,omitempty"`
	Status             GrievanceStatus `db:"status" json:"status"`
	AssignedDepartment *string         `db:"assigned_department" json:"assigned_department,omitempty"`
	AdminRemark        *string         `db:"admin_remark" json:"admin_remark,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// GrievanceWithStudent joins the owning student's identity for admin listings.
type GrievanceWithStudent struct {
	Grievance
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// StatusHistoryEntry is an immutable audit record of one status change.
type StatusHistoryEntry struct {
	ID                 string          `db:"id" json:"id"`
	GrievanceID        string          `db:"grievance_id" json:"grievance_id"`
	Status             GrievanceStatus `db:"status" json:"status"`
	ChangedBy          string          `db:"changed_by" json:"changed_by"`
	AdminRemark        *string         `db:"admin_remark" json:"admin_remark,omitempty"`
	AssignedDepartment *string         `db:"assigned_department" json:"assigned_department,omitempty"`
	ChangedAt          time.Time       `db:"changed_at" json:"changed_at"`
}

// StatusHistoryDetail includes actor identity for admin history views.
type StatusHistoryDetail struct {
	StatusHistoryEntry
	ChangedByName *string   `db:"changed_by_name" json:"changed_by_name,omitempty"`
	ChangedByRole *UserRole `db:"changed_by_role" json:"changed_by_role,omitempty"`
}

// SubmitGrievanceRequest is the payload for filing a grievance.
type SubmitGrievanceRequest struct {
	Category    string `form:"category" json:"category" validate:"required"`
	Description string `form:"description" json:"description" validate:"required,min=10,max=2000"`
}

// AdminUpdateRequest mutates a grievance's lifecycle state.
type AdminUpdateRequest struct {
	Status             GrievanceStatus `json:"status" validate:"required"`
	AdminRemark        *string         `json:"admin_remark" validate:"omitempty,max=1000"`
	AssignedDepartment *string         `json:"assigned_department" validate:"omitempty,max=100"`
}

// GrievanceStats aggregates grievance counts by status.
type GrievanceStats struct {
	Total      int `db:"total" json:"total"`
	Pending    int `db:"pending" json:"pending"`
	InProgress int `db:"in_progress" json:"inProgress"`
	Resolved   int `db:"resolved" json:"resolved"`
	Rejected   int `db:"rejected" json:"rejected"`
}
