package service

import (
	"fmt"

	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
)

// UploadPolicy is the per-purpose validation rule set: a size ceiling
// and an exact-match MIME allow-list. No wildcard expansion happens at
// this layer.
type UploadPolicy struct {
	MaxSizeMB    int64
	AllowedMIMEs []string
}

// MaxSizeBytes returns the ceiling in bytes.
func (p UploadPolicy) MaxSizeBytes() int64 {
	return p.MaxSizeMB * 1024 * 1024
}

var uploadPolicies = map[models.UploadPurpose]UploadPolicy{
	models.PurposeMaterial: {
		MaxSizeMB: 100,
		AllowedMIMEs: []string{
			"application/pdf",
			"image/jpeg",
			"image/png",
			"image/gif",
			"image/webp",
			"video/mp4",
			"video/webm",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.ms-powerpoint",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
			"text/plain",
		},
	},
	models.PurposeAssignment: {
		MaxSizeMB: 50,
		AllowedMIMEs: []string{
			"application/pdf",
			"image/jpeg",
			"image/png",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/zip",
			"text/plain",
		},
	},
	models.PurposeSubmission: {
		MaxSizeMB: 50,
		AllowedMIMEs: []string{
			"application/pdf",
			"image/jpeg",
			"image/png",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/zip",
			"text/plain",
		},
	},
	models.PurposePaymentProof: {
		MaxSizeMB: 10,
		AllowedMIMEs: []string{
			"application/pdf",
			"image/jpeg",
			"image/png",
			"image/gif",
			"image/webp",
		},
	},
}

// PolicyFor returns the validation policy for an upload purpose.
func PolicyFor(purpose models.UploadPurpose) (UploadPolicy, bool) {
	p, ok := uploadPolicies[purpose]
	return p, ok
}

// ValidatePayload applies the policy rules in order: the size ceiling
// first, then the MIME allow-list. The size failure message names the
// configured limit.
func ValidatePayload(size int64, mimeType string, policy UploadPolicy) error {
	if size > policy.MaxSizeBytes() {
		return appErrors.Clone(appErrors.ErrFileTooLarge,
			fmt.Sprintf("file size must be less than %dMB", policy.MaxSizeMB))
	}
	for _, allowed := range policy.AllowedMIMEs {
		if mimeType == allowed {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrUnsupportedType, "file type not allowed")
}
