package models

import "time"

// Attendance represents a single daily attendance row for a student in a
// class. For a given (student, class) at most one non-deleted row exists
// per calendar day of session_date.
type Attendance struct {
	ID          string     `db:"id" json:"id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	ClassID     string     `db:"class_id" json:"class_id"`
	SessionDate time.Time  `db:"session_date" json:"session_date"`
	IsPresent   bool       `db:"is_present" json:"is_present"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	MarkedBy    string     `db:"marked_by" json:"marked_by"`
	IsDeleted   bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the attendance row with display metadata.
type AttendanceRecord struct {
	Attendance
	StudentName  string  `db:"student_name" json:"student_name"`
	ClassName    *string `db:"class_name" json:"class_name,omitempty"`
	MarkedByName *string `db:"marked_by_name" json:"marked_by_name,omitempty"`
}

// AttendanceFilter defines query filters for attendance listings.
type AttendanceFilter struct {
	StudentID      string
	ClassID        string
	SessionDate    *time.Time
	StartDate      *time.Time
	EndDate        *time.Time
	IncludeDeleted bool
}

// AttendanceDayCell is one cell of the monthly attendance matrix.
type AttendanceDayCell struct {
	Present bool    `json:"present"`
	Notes   *string `json:"notes,omitempty"`
}

// StudentAttendanceHistory holds the day-indexed cells and derived rate
// for one student. The rate counts recorded days only.
type StudentAttendanceHistory struct {
	StudentID    string                       `json:"student_id"`
	StudentName  string                       `json:"student_name"`
	Days         map[string]AttendanceDayCell `json:"days"`
	PresentDays  int                          `json:"present_days"`
	RecordedDays int                          `json:"recorded_days"`
	Rate         float64                      `json:"rate"`
}

// AttendanceHistory is the per-student x per-day matrix for a class month.
// Days lists the distinct calendar days that have at least one record.
type AttendanceHistory struct {
	ClassID  string                               `json:"class_id"`
	Month    string                               `json:"month"`
	Days     []string                             `json:"days"`
	Students map[string]*StudentAttendanceHistory `json:"students"`
}
