package models

import (
	"time"

	"github.com/lib/pq"
)

// SubmissionStatus tracks the lifecycle of a student submission.
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "DRAFT"
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionGraded    SubmissionStatus = "GRADED"
)

// Submission is owned by the student who created it.
type Submission struct {
	ID             string           `db:"id" json:"id"`
	AssignmentID   string           `db:"assignment_id" json:"assignment_id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	Content        *string          `db:"content" json:"content,omitempty"`
	AttachmentURLs pq.StringArray   `db:"attachment_urls" json:"attachment_urls"`
	AttachmentIDs  pq.StringArray   `db:"attachment_ids" json:"attachment_ids"`
	Status         SubmissionStatus `db:"status" json:"status"`
	SubmittedAt    *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	IsLate         bool             `db:"is_late" json:"is_late"`
	Grade          *float64         `db:"grade" json:"grade,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}
