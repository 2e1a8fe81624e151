package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lms-community/lms-api/internal/models"
)

// SubmissionRepository provides database access for submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByID returns a submission by identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, assignment_id, student_id, content, attachment_urls, attachment_ids, status, submitted_at, is_late, grade, created_at, updated_at
		FROM submissions WHERE id = $1 LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by id: %w", err)
	}
	return &submission, nil
}

// AttachUpload appends an uploaded attachment and marks the submission
// as submitted. submitted_at is only set on the first submission.
func (r *SubmissionRepository) AttachUpload(ctx context.Context, id string, content *string, attachmentURL, attachmentID string, isLate bool, ts time.Time) error {
	const query = `UPDATE submissions SET
			content = COALESCE($2, content),
			attachment_urls = array_append(attachment_urls, $3),
			attachment_ids = array_append(attachment_ids, $4),
			status = $5,
			submitted_at = COALESCE(submitted_at, $6),
			is_late = $7,
			updated_at = $6
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, content, attachmentURL, attachmentID, models.SubmissionSubmitted, ts, isLate)
	if err != nil {
		return fmt.Errorf("attach submission upload: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
