package drive

import (
	"context"
	"io"
)

// File describes a remote file or folder.
type File struct {
	ID             string
	Name           string
	MimeType       string
	Size           int64
	WebViewLink    string
	WebContentLink string
}

// UploadInput carries everything needed to create a remote file.
type UploadInput struct {
	Name     string
	MimeType string
	FolderID string
	Body     io.Reader
}

// Client is the storage provider surface consumed by the upload and
// file services. The production implementation talks to Google Drive;
// tests substitute a recording fake.
type Client interface {
	// FindFolder returns the ID of the first non-trashed folder with
	// the exact name under parentID, or "" when none exists. An empty
	// parentID searches the drive root.
	FindFolder(ctx context.Context, name, parentID string) (string, error)

	// CreateFolder creates a folder and returns its ID.
	CreateFolder(ctx context.Context, name, parentID string) (string, error)

	// UploadFile creates a file with the given content.
	UploadFile(ctx context.Context, in UploadInput) (*File, error)

	// AllowPublicRead grants anyone read access to the file.
	AllowPublicRead(ctx context.Context, fileID string) error

	// DeleteFile removes the remote file.
	DeleteFile(ctx context.Context, fileID string) error

	// GetFile fetches remote metadata.
	GetFile(ctx context.Context, fileID string) (*File, error)
}

// ClientFactory builds a Client acting as a specific user. Drive access
// is per-user: each user uploads with their own OAuth tokens.
type ClientFactory interface {
	ForUser(ctx context.Context, userID string) (Client, error)
}
