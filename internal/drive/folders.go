package drive

import (
	"context"
	"fmt"

	"github.com/lms-community/lms-api/internal/models"
)

const (
	defaultRootFolder = "LMS-Community"
	coursesFolder     = "Courses"
	paymentsFolder    = "Payments"
)

// FolderResolver derives the destination folder for an upload purpose,
// creating intermediate folders as needed.
//
// Course-scoped purposes resolve root/Courses/{courseID}/{purpose},
// payment proofs resolve root/Payments. Each level is a get-or-create
// with no locking: two concurrent first-time resolutions of the same
// path may each create a folder. Both results are valid destinations;
// later lookups always reuse the first folder found by name, so
// duplicates are tolerated rather than prevented.
type FolderResolver struct {
	root string
}

// NewFolderResolver builds a resolver rooted at rootName.
func NewFolderResolver(rootName string) *FolderResolver {
	if rootName == "" {
		rootName = defaultRootFolder
	}
	return &FolderResolver{root: rootName}
}

// Resolve walks the folder path for the purpose and returns the leaf
// folder ID. courseID is required for course-scoped purposes.
func (r *FolderResolver) Resolve(ctx context.Context, cli Client, purpose models.UploadPurpose, courseID string) (string, error) {
	segments, err := r.path(purpose, courseID)
	if err != nil {
		return "", err
	}

	parent := ""
	for _, name := range segments {
		id, err := getOrCreate(ctx, cli, name, parent)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

func (r *FolderResolver) path(purpose models.UploadPurpose, courseID string) ([]string, error) {
	switch purpose {
	case models.PurposeMaterial, models.PurposeAssignment, models.PurposeSubmission:
		if courseID == "" {
			return nil, fmt.Errorf("course id is required for %s uploads", purpose)
		}
		return []string{r.root, coursesFolder, courseID, purposeFolderName(purpose)}, nil
	case models.PurposePaymentProof:
		return []string{r.root, paymentsFolder}, nil
	default:
		return nil, fmt.Errorf("unknown upload purpose %q", purpose)
	}
}

func purposeFolderName(purpose models.UploadPurpose) string {
	switch purpose {
	case models.PurposeMaterial:
		return "materials"
	case models.PurposeAssignment:
		return "assignments"
	default:
		return "submissions"
	}
}

func getOrCreate(ctx context.Context, cli Client, name, parent string) (string, error) {
	id, err := cli.FindFolder(ctx, name, parent)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return cli.CreateFolder(ctx, name, parent)
}
