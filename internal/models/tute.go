package models

import "time"

// Tute represents a piece of teaching material scoped to a grade and a
// month, not to an individual student.
type Tute struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Grade       string     `db:"grade" json:"grade"`
	Month       string     `db:"month" json:"month"`
	FileURL     *string    `db:"file_url" json:"file_url,omitempty"`
	FileName    *string    `db:"file_name" json:"file_name,omitempty"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	IsDeleted   bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TuteFilter defines query filters for tute material listings.
type TuteFilter struct {
	Grade          string
	Month          string
	IncludeDeleted bool
}

// AssignmentStatus tracks whether a student has received an assigned tute.
type AssignmentStatus string

const (
	AssignmentStatusAssigned AssignmentStatus = "assigned"
	AssignmentStatusReceived AssignmentStatus = "received"
)

// TuteAssignment links a student to a tute. The pair (student, tute) is
// globally unique: a student is assigned a given tute at most once, ever,
// regardless of class or month. Re-assignment in a later month reuses the
// historical row instead of duplicating it.
type TuteAssignment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	TuteID     string           `db:"tute_id" json:"tute_id"`
	AssignedAt time.Time        `db:"assigned_at" json:"assigned_at"`
	Status     AssignmentStatus `db:"status" json:"status"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// TuteAssignmentRecord extends the assignment with display metadata.
type TuteAssignmentRecord struct {
	TuteAssignment
	StudentName string  `db:"student_name" json:"student_name"`
	TuteTitle   *string `db:"tute_title" json:"tute_title,omitempty"`
}

// MonthAssignments bundles the materials for a month with the assignment
// rows whose assigned_at falls inside the month window, shaped for the
// monthly grid.
type MonthAssignments struct {
	ClassID     string                 `json:"class_id"`
	Month       string                 `json:"month"`
	Tutes       []Tute                 `json:"tutes"`
	Assignments []TuteAssignmentRecord `json:"assignments"`
}
