package models

import "time"

// PaymentStatus follows the manual approval flow: a student uploads a
// transfer proof, finance verifies it.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRejected PaymentStatus = "REJECTED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Valid reports whether the status is a member of the enumeration.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPending, PaymentPaid, PaymentRejected, PaymentRefunded:
		return true
	}
	return false
}

// AcceptsProof reports whether a new payment proof may be attached.
// Completed and refunded payments are final.
func (s PaymentStatus) AcceptsProof() bool {
	return s != PaymentPaid && s != PaymentRefunded
}

// Payment is owned by the paying student.
type Payment struct {
	ID          string        `db:"id" json:"id"`
	StudentID   string        `db:"student_id" json:"student_id"`
	CourseID    string        `db:"course_id" json:"course_id"`
	Amount      int64         `db:"amount" json:"amount"`
	Status      PaymentStatus `db:"status" json:"status"`
	ProofURL    *string       `db:"proof_url" json:"proof_url,omitempty"`
	ProofFileID *string       `db:"proof_file_id" json:"proof_file_id,omitempty"`
	VerifiedBy  *string       `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt  *time.Time    `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentFilter narrows report and listing queries.
type PaymentFilter struct {
	Status   *PaymentStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
