package models

import "time"

// AssignmentStatus controls whether submissions are accepted.
type AssignmentStatus string

const (
	AssignmentOpen   AssignmentStatus = "OPEN"
	AssignmentClosed AssignmentStatus = "CLOSED"
)

// Assignment belongs to a course; ownership follows the course creator.
type Assignment struct {
	ID                    string           `db:"id" json:"id"`
	CourseID              string           `db:"course_id" json:"course_id"`
	Title                 string           `db:"title" json:"title"`
	Description           *string          `db:"description" json:"description,omitempty"`
	Status                AssignmentStatus `db:"status" json:"status"`
	DueDate               *time.Time       `db:"due_date" json:"due_date,omitempty"`
	LateSubmissionAllowed bool             `db:"late_submission_allowed" json:"late_submission_allowed"`
	LateDeadline          *time.Time       `db:"late_deadline" json:"late_deadline,omitempty"`
	AttachmentURL         *string          `db:"attachment_url" json:"attachment_url,omitempty"`
	AttachmentID          *string          `db:"attachment_id" json:"attachment_id,omitempty"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updated_at"`
}

// AcceptsSubmissionAt reports whether a submission arriving at ts is
// still admissible, mirroring the deadline rules: closed assignments
// reject outright; past the due date a submission is only allowed when
// late submissions are enabled and the late deadline (if set) has not
// passed.
func (a *Assignment) AcceptsSubmissionAt(ts time.Time) (ok bool, late bool) {
	if a.Status == AssignmentClosed {
		return false, false
	}
	if a.DueDate == nil || !ts.After(*a.DueDate) {
		return true, false
	}
	if !a.LateSubmissionAllowed {
		return false, true
	}
	if a.LateDeadline != nil && ts.After(*a.LateDeadline) {
		return false, true
	}
	return true, true
}
