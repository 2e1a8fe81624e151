package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lms-community/lms-api/internal/drive"
	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
)

type fakeDriveClient struct {
	mu        sync.Mutex
	calls     []string
	folders   map[string]string
	nextID    int
	findErr   error
	createErr error
	uploadErr error
	publicErr error
	deleteErr error
}

func newFakeDriveClient() *fakeDriveClient {
	return &fakeDriveClient{folders: make(map[string]string)}
}

func (f *fakeDriveClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeDriveClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeDriveClient) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	f.record("find:" + name)
	if f.findErr != nil {
		return "", f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.folders[parentID+"/"+name], nil
}

func (f *fakeDriveClient) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	f.record("create:" + name)
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("folder-%d", f.nextID)
	f.folders[parentID+"/"+name] = id
	return id, nil
}

func (f *fakeDriveClient) UploadFile(ctx context.Context, in drive.UploadInput) (*drive.File, error) {
	f.record("upload:" + in.Name)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &drive.File{
		ID:          "drive-file-1",
		Name:        in.Name,
		MimeType:    in.MimeType,
		WebViewLink: "https://drive.google.com/file/d/drive-file-1/view",
	}, nil
}

func (f *fakeDriveClient) AllowPublicRead(ctx context.Context, fileID string) error {
	f.record("public:" + fileID)
	return f.publicErr
}

func (f *fakeDriveClient) DeleteFile(ctx context.Context, fileID string) error {
	f.record("delete:" + fileID)
	return f.deleteErr
}

func (f *fakeDriveClient) GetFile(ctx context.Context, fileID string) (*drive.File, error) {
	f.record("get:" + fileID)
	return &drive.File{ID: fileID}, nil
}

type fakeDriveFactory struct {
	cli   *fakeDriveClient
	err   error
	calls int
}

func (f *fakeDriveFactory) ForUser(ctx context.Context, userID string) (drive.Client, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cli, nil
}

type stubCourses struct {
	course    *models.Course
	findErr   error
	created   []*models.Material
	createErr error
}

func (s *stubCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.course, nil
}

func (s *stubCourses) CreateMaterial(ctx context.Context, m *models.Material) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, m)
	return nil
}

type stubAssignments struct {
	assignment *models.Assignment
	findErr    error
	updated    bool
	updateErr  error
}

func (s *stubAssignments) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.assignment, nil
}

func (s *stubAssignments) UpdateAttachment(ctx context.Context, id, attachmentURL, attachmentID string, ts time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = true
	return nil
}

type stubSubmissions struct {
	submission *models.Submission
	findErr    error
	attached   bool
	attachLate bool
}

func (s *stubSubmissions) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.submission, nil
}

func (s *stubSubmissions) AttachUpload(ctx context.Context, id string, content *string, attachmentURL, attachmentID string, isLate bool, ts time.Time) error {
	s.attached = true
	s.attachLate = isLate
	return nil
}

type stubPayments struct {
	payment  *models.Payment
	findErr  error
	attached bool
}

func (s *stubPayments) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.payment, nil
}

func (s *stubPayments) AttachProof(ctx context.Context, id, proofURL, proofFileID string, ts time.Time) (*models.Payment, error) {
	s.attached = true
	updated := *s.payment
	updated.Status = models.PaymentPending
	updated.ProofURL = &proofURL
	updated.ProofFileID = &proofFileID
	return &updated, nil
}

type stubFiles struct {
	records   []*models.FileUpload
	createErr error
}

func (s *stubFiles) Create(ctx context.Context, f *models.FileUpload) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.records = append(s.records, f)
	return nil
}

type uploadFixture struct {
	svc         *UploadService
	drive       *fakeDriveClient
	factory     *fakeDriveFactory
	courses     *stubCourses
	assignments *stubAssignments
	submissions *stubSubmissions
	payments    *stubPayments
	files       *stubFiles
}

func newUploadFixture() *uploadFixture {
	cli := newFakeDriveClient()
	f := &uploadFixture{
		drive:   cli,
		factory: &fakeDriveFactory{cli: cli},
		courses: &stubCourses{course: &models.Course{
			ID:        "course-1",
			CreatorID: "teacher-1",
		}},
		assignments: &stubAssignments{assignment: &models.Assignment{
			ID:       "assignment-1",
			CourseID: "course-1",
			Status:   models.AssignmentOpen,
		}},
		submissions: &stubSubmissions{submission: &models.Submission{
			ID:           "submission-1",
			AssignmentID: "assignment-1",
			StudentID:    "student-1",
			Status:       models.SubmissionDraft,
		}},
		payments: &stubPayments{payment: &models.Payment{
			ID:        "payment-1",
			StudentID: "student-1",
			Status:    models.PaymentUnpaid,
		}},
		files: &stubFiles{},
	}
	f.svc = NewUploadService(
		f.courses, f.assignments, f.submissions, f.payments, f.files,
		f.factory, drive.NewFolderResolver(""), nil, nil, nil,
	)
	return f
}

func claimsFor(userID string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role}
}

func testFile(size int64, mimeType string) FilePayload {
	return FilePayload{
		Name:     "lecture-notes.pdf",
		Size:     size,
		MimeType: mimeType,
		Content:  strings.NewReader("content"),
	}
}

func materialRequest(file FilePayload) UploadMaterialRequest {
	return UploadMaterialRequest{
		File:     file,
		CourseID: "course-1",
		Title:    "Week 1 Notes",
		Type:     models.MaterialTypeDocument,
	}
}

func TestUploadMaterialRejectsOversizeBeforeStorage(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		materialRequest(testFile(150*1024*1024, "application/pdf")))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrFileTooLarge))
	assert.Contains(t, err.Error(), "100MB")
	assert.Equal(t, 0, f.factory.calls, "storage must not be touched for an invalid payload")
	assert.Equal(t, 0, f.drive.callCount())
}

func TestUploadSubmissionOversizeNamesConfiguredLimit(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadSubmission(context.Background(),
		claimsFor("student-1", models.RoleStudent),
		UploadSubmissionRequest{
			File:         testFile(60*1024*1024, "application/pdf"),
			SubmissionID: "submission-1",
			AssignmentID: "assignment-1",
			CourseID:     "course-1",
		})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrFileTooLarge))
	assert.Contains(t, err.Error(), "50MB")
	assert.Equal(t, 0, f.drive.callCount())
}

func TestUploadMaterialRejectsUnsupportedType(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		materialRequest(testFile(1024, "application/x-msdownload")))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnsupportedType))
	assert.Equal(t, 0, f.drive.callCount())
}

func TestUploadMaterialForeignCourseForbidden(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-2", models.RoleTeacher),
		materialRequest(testFile(1024, "application/pdf")))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
	assert.Equal(t, 0, f.factory.calls, "ownership denial must precede any storage work")
	assert.Equal(t, 0, f.drive.callCount())
}

func TestUploadMaterialSuperAdminBypassesOwnership(t *testing.T) {
	f := newUploadFixture()

	resp, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("admin-1", models.RoleSuperAdmin),
		materialRequest(testFile(1024, "application/pdf")))

	require.NoError(t, err)
	require.NotNil(t, resp.Material)
	assert.Equal(t, "drive-file-1", resp.Material.FileID)
	require.Len(t, f.courses.created, 1)
	require.Len(t, f.files.records, 1)
	assert.Equal(t, models.PurposeMaterial, f.files.records[0].Purpose)
}

func TestUploadMaterialCourseNotFound(t *testing.T) {
	f := newUploadFixture()
	f.courses.findErr = sql.ErrNoRows

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		materialRequest(testFile(1024, "application/pdf")))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	assert.Equal(t, 0, f.drive.callCount())
}

func TestUploadMaterialFolderWalkThenUpload(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		materialRequest(testFile(1024, "application/pdf")))

	require.NoError(t, err)
	require.NotEmpty(t, f.drive.calls)
	assert.Equal(t, "find:LMS-Community", f.drive.calls[0])
	assert.Equal(t, "upload:lecture-notes.pdf", f.drive.calls[len(f.drive.calls)-1])

	for _, call := range f.drive.calls {
		if strings.HasPrefix(call, "upload:") {
			break
		}
		assert.True(t,
			strings.HasPrefix(call, "find:") || strings.HasPrefix(call, "create:"),
			"only folder resolution may precede the upload, got %s", call)
	}
}

func TestUploadMaterialReusesExistingFolders(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		materialRequest(testFile(1024, "application/pdf")))
	require.NoError(t, err)
	firstCreates := countPrefix(f.drive.calls, "create:")
	assert.Equal(t, 4, firstCreates)

	_, err = f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		materialRequest(testFile(1024, "application/pdf")))
	require.NoError(t, err)
	assert.Equal(t, firstCreates, countPrefix(f.drive.calls, "create:"),
		"second upload must reuse the folders from the first")
}

func TestUploadFreeMaterialMadePublic(t *testing.T) {
	f := newUploadFixture()
	req := materialRequest(testFile(1024, "application/pdf"))
	req.IsFree = true

	resp, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher), req)

	require.NoError(t, err)
	assert.Contains(t, f.drive.calls, "public:drive-file-1")
	require.Len(t, f.files.records, 1)
	assert.True(t, f.files.records[0].IsPublic)
	assert.True(t, resp.Material.IsFree)
}

func TestUploadPaidMaterialStaysPrivate(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		materialRequest(testFile(1024, "application/pdf")))

	require.NoError(t, err)
	assert.NotContains(t, f.drive.calls, "public:drive-file-1")
}

func TestUploadMaterialStorageFailure(t *testing.T) {
	f := newUploadFixture()
	f.drive.uploadErr = errors.New("quota exceeded")

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		materialRequest(testFile(1024, "application/pdf")))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStorageUnavailable))
	assert.Empty(t, f.courses.created)
}

func TestUploadMaterialPersistFailureLeavesRemoteFile(t *testing.T) {
	f := newUploadFixture()
	f.courses.createErr = errors.New("connection reset")

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		materialRequest(testFile(1024, "application/pdf")))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal))
	for _, call := range f.drive.calls {
		assert.False(t, strings.HasPrefix(call, "delete:"),
			"a failed local write must not roll back the remote file")
	}
}

func TestUploadAssignmentFileUpdatesAttachment(t *testing.T) {
	f := newUploadFixture()

	resp, err := f.svc.UploadAssignmentFile(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		UploadAssignmentRequest{
			File:         testFile(1024, "application/pdf"),
			AssignmentID: "assignment-1",
			CourseID:     "course-1",
		})

	require.NoError(t, err)
	assert.True(t, f.assignments.updated)
	require.NotNil(t, resp.Assignment.AttachmentID)
	assert.Equal(t, "drive-file-1", *resp.Assignment.AttachmentID)
}

func TestUploadAssignmentFileForeignCourse(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadAssignmentFile(context.Background(),
		claimsFor("teacher-2", models.RoleTeacher),
		UploadAssignmentRequest{
			File:         testFile(1024, "application/pdf"),
			AssignmentID: "assignment-1",
			CourseID:     "course-1",
		})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
	assert.Equal(t, 0, f.drive.callCount())
}

func submissionRequest() UploadSubmissionRequest {
	return UploadSubmissionRequest{
		File:         testFile(1024, "application/pdf"),
		SubmissionID: "submission-1",
		AssignmentID: "assignment-1",
		CourseID:     "course-1",
	}
}

func TestUploadSubmissionClosedAssignment(t *testing.T) {
	f := newUploadFixture()
	f.assignments.assignment.Status = models.AssignmentClosed

	_, err := f.svc.UploadSubmission(context.Background(),
		claimsFor("student-1", models.RoleStudent), submissionRequest())

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
	assert.Contains(t, err.Error(), "no longer accepting")
	assert.Equal(t, 0, f.drive.callCount())
}

func TestUploadSubmissionPastDueWithoutLateWindow(t *testing.T) {
	f := newUploadFixture()
	due := time.Now().UTC().Add(-time.Hour)
	f.assignments.assignment.DueDate = &due

	_, err := f.svc.UploadSubmission(context.Background(),
		claimsFor("student-1", models.RoleStudent), submissionRequest())

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
	assert.Contains(t, err.Error(), "submission deadline has passed")
	assert.Equal(t, 0, f.drive.callCount())
}

func TestUploadSubmissionInsideLateWindow(t *testing.T) {
	f := newUploadFixture()
	due := time.Now().UTC().Add(-time.Hour)
	lateUntil := time.Now().UTC().Add(time.Hour)
	f.assignments.assignment.DueDate = &due
	f.assignments.assignment.LateSubmissionAllowed = true
	f.assignments.assignment.LateDeadline = &lateUntil

	resp, err := f.svc.UploadSubmission(context.Background(),
		claimsFor("student-1", models.RoleStudent), submissionRequest())

	require.NoError(t, err)
	assert.True(t, f.submissions.attachLate)
	assert.True(t, resp.Submission.IsLate)
	assert.Equal(t, models.SubmissionSubmitted, resp.Submission.Status)
}

func TestUploadSubmissionAfterLateDeadline(t *testing.T) {
	f := newUploadFixture()
	due := time.Now().UTC().Add(-2 * time.Hour)
	lateUntil := time.Now().UTC().Add(-time.Hour)
	f.assignments.assignment.DueDate = &due
	f.assignments.assignment.LateSubmissionAllowed = true
	f.assignments.assignment.LateDeadline = &lateUntil

	_, err := f.svc.UploadSubmission(context.Background(),
		claimsFor("student-1", models.RoleStudent), submissionRequest())

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
	assert.Contains(t, err.Error(), "late submission deadline")
}

func TestUploadSubmissionNotOwner(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadSubmission(context.Background(),
		claimsFor("student-2", models.RoleStudent), submissionRequest())

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
	assert.Equal(t, 0, f.drive.callCount())
}

func TestUploadPaymentProofCompletedPayment(t *testing.T) {
	f := newUploadFixture()
	f.payments.payment.Status = models.PaymentPaid

	_, err := f.svc.UploadPaymentProof(context.Background(),
		claimsFor("student-1", models.RoleStudent),
		UploadPaymentProofRequest{
			File:      testFile(1024, "image/png"),
			PaymentID: "payment-1",
		})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState))
	assert.Equal(t, 0, f.drive.callCount())
}

func TestUploadPaymentProofFinanceBypassesOwnership(t *testing.T) {
	f := newUploadFixture()

	resp, err := f.svc.UploadPaymentProof(context.Background(),
		claimsFor("finance-1", models.RoleFinance),
		UploadPaymentProofRequest{
			File:      testFile(1024, "image/png"),
			PaymentID: "payment-1",
		})

	require.NoError(t, err)
	assert.True(t, f.payments.attached)
	assert.Equal(t, models.PaymentPending, resp.Payment.Status)
}

func TestUploadPaymentProofGoesToPaymentsFolder(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadPaymentProof(context.Background(),
		claimsFor("student-1", models.RoleStudent),
		UploadPaymentProofRequest{
			File:      testFile(1024, "image/png"),
			PaymentID: "payment-1",
		})

	require.NoError(t, err)
	assert.Contains(t, f.drive.calls, "find:Payments")
	assert.NotContains(t, f.drive.calls, "find:Courses")
}

func TestUploadPaymentProofForeignStudent(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadPaymentProof(context.Background(),
		claimsFor("student-2", models.RoleStudent),
		UploadPaymentProofRequest{
			File:      testFile(1024, "image/png"),
			PaymentID: "payment-1",
		})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestUploadMissingRequiredFields(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadMaterial(context.Background(),
		claimsFor("teacher-1", models.RoleTeacher),
		UploadMaterialRequest{File: testFile(1024, "application/pdf")})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	assert.Equal(t, 0, f.drive.callCount())
}

func countPrefix(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
