package models

import "time"

// Course represents a published course authored by a teacher.
// CreatorID is the owning principal and never changes after creation.
type Course struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	CreatorID   string     `db:"creator_id" json:"creator_id"`
	Price       int64      `db:"price" json:"price"`
	Published   bool       `db:"published" json:"published"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// MaterialType categorises course materials.
type MaterialType string

const (
	MaterialTypeDocument MaterialType = "DOCUMENT"
	MaterialTypeVideo    MaterialType = "VIDEO"
	MaterialTypeImage    MaterialType = "IMAGE"
	MaterialTypeOther    MaterialType = "OTHER"
)

// Material is a single uploaded course resource.
type Material struct {
	ID             string       `db:"id" json:"id"`
	CourseID       string       `db:"course_id" json:"course_id"`
	Title          string       `db:"title" json:"title"`
	Description    *string      `db:"description" json:"description,omitempty"`
	Type           MaterialType `db:"type" json:"type"`
	FileURL        string       `db:"file_url" json:"file_url"`
	FileID         string       `db:"file_id" json:"file_id"`
	FileName       string       `db:"file_name" json:"file_name"`
	FileSize       int64        `db:"file_size" json:"file_size"`
	MimeType       string       `db:"mime_type" json:"mime_type"`
	IsFree         bool         `db:"is_free" json:"is_free"`
	IsDownloadable bool         `db:"is_downloadable" json:"is_downloadable"`
	SortOrder      int          `db:"sort_order" json:"sort_order"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time   `db:"deleted_at" json:"deleted_at,omitempty"`
}
