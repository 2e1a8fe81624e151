package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lms-community/lms-api/internal/models"
)

const fileColumns = `id, file_name, original_name, mime_type, file_size, drive_file_id, drive_file_url, drive_folder_id, uploaded_by, purpose, is_public, download_count, last_accessed_at, created_at, deleted_at`

// FileRepository provides database access for upload metadata.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new instance of FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts an upload metadata row.
func (r *FileRepository) Create(ctx context.Context, f *models.FileUpload) error {
	const query = `INSERT INTO file_uploads (id, file_name, original_name, mime_type, file_size, drive_file_id, drive_file_url, drive_folder_id, uploaded_by, purpose, is_public, download_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(ctx, query,
		f.ID, f.FileName, f.OriginalName, f.MimeType, f.FileSize, f.DriveFileID, f.DriveFileURL,
		f.DriveFolderID, f.UploadedBy, f.Purpose, f.IsPublic, f.DownloadCount, f.CreatedAt); err != nil {
		return fmt.Errorf("create file upload: %w", err)
	}
	return nil
}

// FindByDriveFileID returns the non-deleted metadata row for a drive file.
func (r *FileRepository) FindByDriveFileID(ctx context.Context, driveFileID string) (*models.FileUpload, error) {
	query := `SELECT ` + fileColumns + ` FROM file_uploads WHERE drive_file_id = $1 AND deleted_at IS NULL LIMIT 1`
	var file models.FileUpload
	if err := r.db.GetContext(ctx, &file, query, driveFileID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find file by drive id: %w", err)
	}
	return &file, nil
}

// ListByUser returns a user's non-deleted uploads with total count.
func (r *FileRepository) ListByUser(ctx context.Context, userID string, filter models.FileFilter) ([]models.FileUpload, int, error) {
	baseQuery := `FROM file_uploads WHERE uploaded_by = $1 AND deleted_at IS NULL`
	args := []interface{}{userID}

	if filter.MimeType != "" {
		baseQuery += fmt.Sprintf(" AND mime_type = $%d", len(args)+1)
		args = append(args, filter.MimeType)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count user files: %w", err)
	}

	limit := filter.Limit
	if limit < 1 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT "+fileColumns+" %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		baseQuery, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	files := []models.FileUpload{}
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list user files: %w", err)
	}
	return files, total, nil
}

// IncrementDownloadCount bumps the counter and access timestamp.
func (r *FileRepository) IncrementDownloadCount(ctx context.Context, driveFileID string, ts time.Time) error {
	const query = `UPDATE file_uploads SET download_count = download_count + 1, last_accessed_at = $2 WHERE drive_file_id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, driveFileID, ts); err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// SoftDelete marks the metadata row as deleted.
func (r *FileRepository) SoftDelete(ctx context.Context, driveFileID string, ts time.Time) error {
	const query = `UPDATE file_uploads SET deleted_at = $2 WHERE drive_file_id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, driveFileID, ts)
	if err != nil {
		return fmt.Errorf("soft delete file upload: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
