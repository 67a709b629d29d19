package models

import "time"

// FeeStatus represents the payment status of a fee record.
type FeeStatus string

const (
	FeeStatusPaid    FeeStatus = "paid"
	FeeStatusPending FeeStatus = "pending"
)

// Fee represents a fee payment record. The daily bulk flow keeps at most
// one non-deleted row per (student, class, payment day); "unpaid" is the
// absence of a paid row, not an explicit state.
type Fee struct {
	ID          string     `db:"id" json:"id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	ClassID     string     `db:"class_id" json:"class_id"`
	Amount      float64    `db:"amount" json:"amount"`
	PaymentDate time.Time  `db:"payment_date" json:"payment_date"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	Status      FeeStatus  `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	RecordedBy  string     `db:"recorded_by" json:"recorded_by"`
	IsDeleted   bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// FeeRecord extends the fee row with display metadata.
type FeeRecord struct {
	Fee
	StudentName    string  `db:"student_name" json:"student_name"`
	ClassName      *string `db:"class_name" json:"class_name,omitempty"`
	RecordedByName *string `db:"recorded_by_name" json:"recorded_by_name,omitempty"`
}

// FeeFilter defines query filters for fee listings.
type FeeFilter struct {
	StudentID      string
	ClassID        string
	Status         FeeStatus
	StartDate      *time.Time
	EndDate        *time.Time
	IncludeDeleted bool
}

// StudentFeeHistory holds day-indexed amounts and the month total for one
// student.
type StudentFeeHistory struct {
	StudentID   string             `json:"student_id"`
	StudentName string             `json:"student_name"`
	Days        map[string]float64 `json:"days"`
	Total       float64            `json:"total"`
}

// FeeHistory is the per-student x per-day payment matrix for a class month.
type FeeHistory struct {
	ClassID  string                        `json:"class_id"`
	Month    string                        `json:"month"`
	Days     []string                      `json:"days"`
	Students map[string]*StudentFeeHistory `json:"students"`
}
