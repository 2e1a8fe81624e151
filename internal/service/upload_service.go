package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lms-community/lms-api/internal/drive"
	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
)

type uploadCourseRepo interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	CreateMaterial(ctx context.Context, m *models.Material) error
}

type uploadAssignmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	UpdateAttachment(ctx context.Context, id, attachmentURL, attachmentID string, ts time.Time) error
}

type uploadSubmissionRepo interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	AttachUpload(ctx context.Context, id string, content *string, attachmentURL, attachmentID string, isLate bool, ts time.Time) error
}

type uploadPaymentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	AttachProof(ctx context.Context, id, proofURL, proofFileID string, ts time.Time) (*models.Payment, error)
}

type uploadFileRepo interface {
	Create(ctx context.Context, f *models.FileUpload) error
}

type folderResolver interface {
	Resolve(ctx context.Context, cli drive.Client, purpose models.UploadPurpose, courseID string) (string, error)
}

// FilePayload carries the inbound multipart file.
type FilePayload struct {
	Name     string
	Size     int64
	MimeType string
	Content  io.Reader
}

// UploadMaterialRequest is the teacher-facing material upload payload.
type UploadMaterialRequest struct {
	File           FilePayload
	CourseID       string              `validate:"required"`
	Title          string              `validate:"required"`
	Description    *string
	Type           models.MaterialType `validate:"required"`
	IsFree         bool
	IsDownloadable bool
	Order          int
}

// UploadAssignmentRequest attaches a reference file to an assignment.
type UploadAssignmentRequest struct {
	File         FilePayload
	AssignmentID string `validate:"required"`
	CourseID     string `validate:"required"`
}

// UploadSubmissionRequest is the student-facing submission payload.
type UploadSubmissionRequest struct {
	File         FilePayload
	SubmissionID string `validate:"required"`
	AssignmentID string `validate:"required"`
	CourseID     string `validate:"required"`
	Content      *string
}

// UploadPaymentProofRequest attaches a transfer proof to a payment.
type UploadPaymentProofRequest struct {
	File      FilePayload
	PaymentID string `validate:"required"`
}

// MaterialUploadResponse pairs the created material with the upload result.
type MaterialUploadResponse struct {
	Material     *models.Material     `json:"material"`
	UploadResult *models.UploadResult `json:"upload_result"`
}

// AssignmentUploadResponse pairs the updated assignment with the upload result.
type AssignmentUploadResponse struct {
	Assignment   *models.Assignment   `json:"assignment"`
	UploadResult *models.UploadResult `json:"upload_result"`
}

// SubmissionUploadResponse pairs the updated submission with the upload result.
type SubmissionUploadResponse struct {
	Submission   *models.Submission   `json:"submission"`
	UploadResult *models.UploadResult `json:"upload_result"`
}

// PaymentProofUploadResponse pairs the updated payment with the upload result.
type PaymentProofUploadResponse struct {
	Payment      *models.Payment      `json:"payment"`
	UploadResult *models.UploadResult `json:"upload_result"`
}

// UploadService sequences every upload request: payload validation,
// then the ownership gate, then folder resolution, the Drive write,
// and finally local metadata persistence. No Drive call happens before
// validation and authorization both pass, and a failed local write
// after a successful Drive write is logged, never rolled back.
type UploadService struct {
	courses     uploadCourseRepo
	assignments uploadAssignmentRepo
	submissions uploadSubmissionRepo
	payments    uploadPaymentRepo
	files       uploadFileRepo
	drives      drive.ClientFactory
	resolver    folderResolver
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewUploadService constructs an UploadService instance.
func NewUploadService(
	courses uploadCourseRepo,
	assignments uploadAssignmentRepo,
	submissions uploadSubmissionRepo,
	payments uploadPaymentRepo,
	files uploadFileRepo,
	drives drive.ClientFactory,
	resolver folderResolver,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *UploadService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{
		courses:     courses,
		assignments: assignments,
		submissions: submissions,
		payments:    payments,
		files:       files,
		drives:      drives,
		resolver:    resolver,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// UploadMaterial stores a course material. The caller must own the
// course; SUPER_ADMIN bypasses ownership. Free preview materials are
// made publicly readable.
func (s *UploadService) UploadMaterial(ctx context.Context, claims *models.JWTClaims, req UploadMaterialRequest) (*MaterialUploadResponse, error) {
	if err := s.validateRequest(req, req.File, models.PurposeMaterial); err != nil {
		return nil, err
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return nil, notFoundOr(err, "course not found")
	}
	if err := CheckOwnership(claims, course.CreatorID, models.RoleSuperAdmin); err != nil {
		return nil, ownershipError(err, "you do not have permission to upload materials to this course")
	}

	result, folderID, err := s.performUpload(ctx, claims.UserID, models.PurposeMaterial, req.CourseID, req.File, req.IsFree)
	if err != nil {
		s.metrics.RecordUpload(models.PurposeMaterial, false, 0)
		return nil, err
	}

	now := s.now()
	material := &models.Material{
		ID:             uuid.NewString(),
		CourseID:       req.CourseID,
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		FileURL:        result.WebViewLink,
		FileID:         result.FileID,
		FileName:       result.FileName,
		FileSize:       result.Size,
		MimeType:       result.MimeType,
		IsFree:         req.IsFree,
		IsDownloadable: req.IsDownloadable,
		SortOrder:      req.Order,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.courses.CreateMaterial(ctx, material); err != nil {
		s.logOrphan(result.FileID, "material", err)
		s.metrics.RecordUpload(models.PurposeMaterial, false, 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save material")
	}

	s.recordFile(ctx, claims.UserID, models.PurposeMaterial, req.File, result, folderID, req.IsFree)
	s.metrics.RecordUpload(models.PurposeMaterial, true, result.Size)

	return &MaterialUploadResponse{Material: material, UploadResult: result}, nil
}

// UploadAssignmentFile attaches a reference file to an assignment owned
// by the caller through the assignment's course.
func (s *UploadService) UploadAssignmentFile(ctx context.Context, claims *models.JWTClaims, req UploadAssignmentRequest) (*AssignmentUploadResponse, error) {
	if err := s.validateRequest(req, req.File, models.PurposeAssignment); err != nil {
		return nil, err
	}

	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		return nil, notFoundOr(err, "assignment not found")
	}
	course, err := s.courses.FindByID(ctx, assignment.CourseID)
	if err != nil {
		return nil, notFoundOr(err, "course not found")
	}
	if err := CheckOwnership(claims, course.CreatorID, models.RoleSuperAdmin); err != nil {
		return nil, ownershipError(err, "you do not have permission to upload files to this assignment")
	}

	result, folderID, err := s.performUpload(ctx, claims.UserID, models.PurposeAssignment, assignment.CourseID, req.File, false)
	if err != nil {
		s.metrics.RecordUpload(models.PurposeAssignment, false, 0)
		return nil, err
	}

	now := s.now()
	if err := s.assignments.UpdateAttachment(ctx, assignment.ID, result.WebViewLink, result.FileID, now); err != nil {
		s.logOrphan(result.FileID, "assignment", err)
		s.metrics.RecordUpload(models.PurposeAssignment, false, 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assignment attachment")
	}
	assignment.AttachmentURL = &result.WebViewLink
	assignment.AttachmentID = &result.FileID
	assignment.UpdatedAt = now

	s.recordFile(ctx, claims.UserID, models.PurposeAssignment, req.File, result, folderID, false)
	s.metrics.RecordUpload(models.PurposeAssignment, true, result.Size)

	return &AssignmentUploadResponse{Assignment: assignment, UploadResult: result}, nil
}

// UploadSubmission attaches a file to the caller's own submission,
// enforcing the assignment's deadline rules.
func (s *UploadService) UploadSubmission(ctx context.Context, claims *models.JWTClaims, req UploadSubmissionRequest) (*SubmissionUploadResponse, error) {
	if err := s.validateRequest(req, req.File, models.PurposeSubmission); err != nil {
		return nil, err
	}

	submission, err := s.submissions.FindByID(ctx, req.SubmissionID)
	if err != nil {
		return nil, notFoundOr(err, "submission not found")
	}
	if err := CheckOwnership(claims, submission.StudentID, models.RoleSuperAdmin); err != nil {
		return nil, ownershipError(err, "you do not have permission to upload files to this submission")
	}

	assignment, err := s.assignments.FindByID(ctx, submission.AssignmentID)
	if err != nil {
		return nil, notFoundOr(err, "assignment not found")
	}

	now := s.now()
	ok, late := assignment.AcceptsSubmissionAt(now)
	if !ok {
		switch {
		case assignment.Status == models.AssignmentClosed:
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "this assignment is no longer accepting submissions")
		case late && assignment.LateSubmissionAllowed:
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "late submission deadline has passed")
		default:
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "submission deadline has passed")
		}
	}

	result, folderID, err := s.performUpload(ctx, claims.UserID, models.PurposeSubmission, req.CourseID, req.File, false)
	if err != nil {
		s.metrics.RecordUpload(models.PurposeSubmission, false, 0)
		return nil, err
	}

	if err := s.submissions.AttachUpload(ctx, submission.ID, req.Content, result.WebViewLink, result.FileID, late, now); err != nil {
		s.logOrphan(result.FileID, "submission", err)
		s.metrics.RecordUpload(models.PurposeSubmission, false, 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	if req.Content != nil {
		submission.Content = req.Content
	}
	submission.AttachmentURLs = append(submission.AttachmentURLs, result.WebViewLink)
	submission.AttachmentIDs = append(submission.AttachmentIDs, result.FileID)
	submission.Status = models.SubmissionSubmitted
	if submission.SubmittedAt == nil {
		submission.SubmittedAt = &now
	}
	submission.IsLate = late
	submission.UpdatedAt = now

	s.recordFile(ctx, claims.UserID, models.PurposeSubmission, req.File, result, folderID, false)
	s.metrics.RecordUpload(models.PurposeSubmission, true, result.Size)

	return &SubmissionUploadResponse{Submission: submission, UploadResult: result}, nil
}

// UploadPaymentProof attaches a transfer proof to a payment. The owner,
// FINANCE, and SUPER_ADMIN may upload; completed or refunded payments
// reject new proofs.
func (s *UploadService) UploadPaymentProof(ctx context.Context, claims *models.JWTClaims, req UploadPaymentProofRequest) (*PaymentProofUploadResponse, error) {
	if err := s.validateRequest(req, req.File, models.PurposePaymentProof); err != nil {
		return nil, err
	}

	payment, err := s.payments.FindByID(ctx, req.PaymentID)
	if err != nil {
		return nil, notFoundOr(err, "payment not found")
	}
	if err := CheckOwnership(claims, payment.StudentID, models.RoleSuperAdmin, models.RoleFinance); err != nil {
		return nil, ownershipError(err, "you do not have permission to upload payment proof for this payment")
	}
	if !payment.Status.AcceptsProof() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot upload payment proof for completed or refunded payments")
	}

	result, folderID, err := s.performUpload(ctx, claims.UserID, models.PurposePaymentProof, "", req.File, false)
	if err != nil {
		s.metrics.RecordUpload(models.PurposePaymentProof, false, 0)
		return nil, err
	}

	updated, err := s.payments.AttachProof(ctx, payment.ID, result.WebViewLink, result.FileID, s.now())
	if err != nil {
		s.logOrphan(result.FileID, "payment", err)
		s.metrics.RecordUpload(models.PurposePaymentProof, false, 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save payment proof")
	}

	s.recordFile(ctx, claims.UserID, models.PurposePaymentProof, req.File, result, folderID, false)
	s.metrics.RecordUpload(models.PurposePaymentProof, true, result.Size)

	return &PaymentProofUploadResponse{Payment: updated, UploadResult: result}, nil
}

// validateRequest runs the payload policy and struct validation before
// anything else touches the database or the storage provider.
func (s *UploadService) validateRequest(req interface{}, file FilePayload, purpose models.UploadPurpose) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "missing required fields")
	}
	if file.Content == nil || file.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	policy, ok := PolicyFor(purpose)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "unknown upload purpose")
	}
	return ValidatePayload(file.Size, file.MimeType, policy)
}

// performUpload builds the per-user Drive client, resolves the
// destination folder, and writes the file. Runs only after validation
// and authorization have passed.
func (s *UploadService) performUpload(ctx context.Context, userID string, purpose models.UploadPurpose, courseID string, file FilePayload, makePublic bool) (*models.UploadResult, string, error) {
	cli, err := s.drives.ForUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	start := s.now()
	folderID, err := s.resolver.Resolve(ctx, cli, purpose, courseID)
	s.metrics.ObserveDriveCall("resolve_folder", err, time.Since(start))
	if err != nil {
		return nil, "", storageError(err, "failed to resolve storage folder")
	}

	start = s.now()
	uploaded, err := cli.UploadFile(ctx, drive.UploadInput{
		Name:     file.Name,
		MimeType: file.MimeType,
		FolderID: folderID,
		Body:     file.Content,
	})
	s.metrics.ObserveDriveCall("upload_file", err, time.Since(start))
	if err != nil {
		return nil, "", storageError(err, "failed to upload file to storage")
	}

	if makePublic {
		if err := cli.AllowPublicRead(ctx, uploaded.ID); err != nil {
			return nil, "", storageError(err, "failed to set public permission")
		}
	}

	size := uploaded.Size
	if size == 0 {
		size = file.Size
	}
	result := &models.UploadResult{
		FileID:      uploaded.ID,
		FileName:    uploaded.Name,
		FileURL:     firstNonEmpty(uploaded.WebContentLink, uploaded.WebViewLink),
		WebViewLink: uploaded.WebViewLink,
		MimeType:    uploaded.MimeType,
		Size:        size,
	}
	return result, folderID, nil
}

// recordFile persists the upload metadata row. A failure here leaves
// the remote file orphaned; that is logged for reconciliation, not
// rolled back, and the request still succeeds.
func (s *UploadService) recordFile(ctx context.Context, userID string, purpose models.UploadPurpose, file FilePayload, result *models.UploadResult, folderID string, isPublic bool) {
	record := &models.FileUpload{
		ID:           uuid.NewString(),
		FileName:     result.FileName,
		OriginalName: file.Name,
		MimeType:     result.MimeType,
		FileSize:     result.Size,
		DriveFileID:  result.FileID,
		DriveFileURL: result.WebViewLink,
		UploadedBy:   userID,
		Purpose:      purpose,
		IsPublic:     isPublic,
		CreatedAt:    s.now(),
	}
	if folderID != "" {
		record.DriveFolderID = &folderID
	}
	if err := s.files.Create(ctx, record); err != nil {
		s.logOrphan(result.FileID, string(purpose), err)
	}
}

func (s *UploadService) logOrphan(driveFileID, resource string, err error) {
	s.logger.Warn("drive file orphaned by failed local persistence",
		zap.String("drive_file_id", driveFileID),
		zap.String("resource", resource),
		zap.Error(err))
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch resource")
}

func ownershipError(err error, message string) error {
	if appErrors.HasCode(err, appErrors.ErrUnauthenticated) {
		return err
	}
	return appErrors.Clone(appErrors.ErrForbidden, message)
}

func storageError(err error, message string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, message)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
