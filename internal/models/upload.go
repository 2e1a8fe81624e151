package models

import "time"

// UploadPurpose is the functional category of an uploaded file. It
// determines the validation policy and the Drive folder placement.
type UploadPurpose string

const (
	PurposeMaterial     UploadPurpose = "material"
	PurposeAssignment   UploadPurpose = "assignment"
	PurposeSubmission   UploadPurpose = "submission"
	PurposePaymentProof UploadPurpose = "payment-proof"
)

// FileUpload is the local metadata row recorded after a successful
// Drive upload. DriveFileID is unique; rows are soft deleted.
type FileUpload struct {
	ID             string        `db:"id" json:"id"`
	FileName       string        `db:"file_name" json:"file_name"`
	OriginalName   string        `db:"original_name" json:"original_name"`
	MimeType       string        `db:"mime_type" json:"mime_type"`
	FileSize       int64         `db:"file_size" json:"file_size"`
	DriveFileID    string        `db:"drive_file_id" json:"drive_file_id"`
	DriveFileURL   string        `db:"drive_file_url" json:"drive_file_url"`
	DriveFolderID  *string       `db:"drive_folder_id" json:"drive_folder_id,omitempty"`
	UploadedBy     string        `db:"uploaded_by" json:"uploaded_by"`
	Purpose        UploadPurpose `db:"purpose" json:"purpose"`
	IsPublic       bool          `db:"is_public" json:"is_public"`
	DownloadCount  int           `db:"download_count" json:"download_count"`
	LastAccessedAt *time.Time    `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	DeletedAt      *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
}

// UploadResult is returned to callers after a successful upload.
type UploadResult struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	FileURL     string `json:"file_url"`
	WebViewLink string `json:"web_view_link"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
}

// FileFilter narrows the caller's file listing.
type FileFilter struct {
	MimeType string
	Limit    int
	Offset   int
}
