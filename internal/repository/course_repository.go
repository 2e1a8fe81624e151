package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lms-community/lms-api/internal/models"
)

// CourseRepository provides database access for courses and materials.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new instance of CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a non-deleted course.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, creator_id, price, published, created_at, updated_at, deleted_at FROM courses WHERE id = $1 AND deleted_at IS NULL LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// CreateMaterial inserts a material row for a course.
func (r *CourseRepository) CreateMaterial(ctx context.Context, m *models.Material) error {
	const query = `INSERT INTO materials (id, course_id, title, description, type, file_url, file_id, file_name, file_size, mime_type, is_free, is_downloadable, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	if _, err := r.db.ExecContext(ctx, query,
		m.ID, m.CourseID, m.Title, m.Description, m.Type, m.FileURL, m.FileID, m.FileName,
		m.FileSize, m.MimeType, m.IsFree, m.IsDownloadable, m.SortOrder, m.CreatedAt, m.UpdatedAt); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// ListMaterials returns the non-deleted materials of a course in order.
func (r *CourseRepository) ListMaterials(ctx context.Context, courseID string) ([]models.Material, error) {
	const query = `SELECT id, course_id, title, description, type, file_url, file_id, file_name, file_size, mime_type, is_free, is_downloadable, sort_order, created_at, updated_at, deleted_at
		FROM materials WHERE course_id = $1 AND deleted_at IS NULL ORDER BY sort_order ASC`
	materials := []models.Material{}
	if err := r.db.SelectContext(ctx, &materials, query, courseID); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}

// SoftDeleteMaterialByFileID marks the material referencing a drive
// file as deleted.
func (r *CourseRepository) SoftDeleteMaterialByFileID(ctx context.Context, driveFileID string, ts time.Time) error {
	const query = `UPDATE materials SET deleted_at = $2, updated_at = $2 WHERE file_id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, driveFileID, ts); err != nil {
		return fmt.Errorf("soft delete material: %w", err)
	}
	return nil
}
