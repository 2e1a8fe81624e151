package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
)

type stubFileStore struct {
	file        *models.FileUpload
	findErr     error
	listed      []models.FileUpload
	total       int
	incremented []string
	softDeleted []string
	deleteErr   error
}

func (s *stubFileStore) FindByDriveFileID(ctx context.Context, driveFileID string) (*models.FileUpload, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.file, nil
}

func (s *stubFileStore) ListByUser(ctx context.Context, userID string, filter models.FileFilter) ([]models.FileUpload, int, error) {
	return s.listed, s.total, nil
}

func (s *stubFileStore) IncrementDownloadCount(ctx context.Context, driveFileID string, ts time.Time) error {
	s.incremented = append(s.incremented, driveFileID)
	return nil
}

func (s *stubFileStore) SoftDelete(ctx context.Context, driveFileID string, ts time.Time) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.softDeleted = append(s.softDeleted, driveFileID)
	return nil
}

type stubMaterialStore struct {
	deleted []string
	err     error
}

func (s *stubMaterialStore) SoftDeleteMaterialByFileID(ctx context.Context, driveFileID string, ts time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, driveFileID)
	return nil
}

type stubAuditStore struct {
	logs []*models.AuditLog
}

func (s *stubAuditStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func studentFile() *models.FileUpload {
	return &models.FileUpload{
		ID:           "file-1",
		FileName:     "1700000000_answer.pdf",
		OriginalName: "answer.pdf",
		MimeType:     "application/pdf",
		FileSize:     1024,
		DriveFileID:  "drive-file-1",
		DriveFileURL: "https://drive.google.com/file/d/drive-file-1/view",
		UploadedBy:   "student-1",
		Purpose:      models.PurposeSubmission,
		CreatedAt:    time.Now().UTC(),
	}
}

func fileFixture(file *models.FileUpload) (*FileService, *stubFileStore, *stubMaterialStore, *stubAuditStore, *fakeDriveClient) {
	files := &stubFileStore{file: file}
	materials := &stubMaterialStore{}
	audits := &stubAuditStore{}
	cli := newFakeDriveClient()
	svc := NewFileService(files, materials, audits, &fakeDriveFactory{cli: cli}, nil, time.Minute, nil, nil)
	return svc, files, materials, audits, cli
}

func TestFileServiceDeleteBySuperAdmin(t *testing.T) {
	svc, files, materials, audits, cli := fileFixture(studentFile())
	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleSuperAdmin}

	err := svc.Delete(context.Background(), claims, "drive-file-1", "10.0.0.1", "test-agent")

	require.NoError(t, err)
	assert.Contains(t, cli.calls, "delete:drive-file-1")
	assert.Equal(t, []string{"drive-file-1"}, files.softDeleted)
	assert.Equal(t, []string{"drive-file-1"}, materials.deleted)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionFileDelete, audits.logs[0].Action)
	require.NotNil(t, audits.logs[0].UserID)
	assert.Equal(t, "admin-1", *audits.logs[0].UserID)
}

func TestFileServiceDeleteByOwner(t *testing.T) {
	svc, files, _, audits, cli := fileFixture(studentFile())
	claims := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}

	err := svc.Delete(context.Background(), claims, "drive-file-1", "10.0.0.1", "test-agent")

	require.NoError(t, err)
	assert.Contains(t, cli.calls, "delete:drive-file-1")
	assert.Equal(t, []string{"drive-file-1"}, files.softDeleted)
	assert.Len(t, audits.logs, 1)
}

func TestFileServiceDeleteByNonOwner(t *testing.T) {
	svc, files, _, audits, cli := fileFixture(studentFile())
	claims := &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent}

	err := svc.Delete(context.Background(), claims, "drive-file-1", "10.0.0.1", "test-agent")

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
	assert.Zero(t, cli.callCount())
	assert.Empty(t, files.softDeleted)
	assert.Empty(t, audits.logs)
}

func TestFileServiceDeleteToleratesMissingRemoteFile(t *testing.T) {
	svc, files, _, _, cli := fileFixture(studentFile())
	cli.deleteErr = appErrors.Clone(appErrors.ErrNotFound, "file not found in drive")
	claims := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}

	err := svc.Delete(context.Background(), claims, "drive-file-1", "10.0.0.1", "test-agent")

	require.NoError(t, err)
	assert.Equal(t, []string{"drive-file-1"}, files.softDeleted)
}

func TestFileServiceDeleteUnknownFile(t *testing.T) {
	svc, files, _, _, cli := fileFixture(nil)
	files.findErr = sql.ErrNoRows
	claims := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}

	err := svc.Delete(context.Background(), claims, "drive-file-9", "10.0.0.1", "test-agent")

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	assert.Zero(t, cli.callCount())
}

func TestFileServiceGetByOwner(t *testing.T) {
	svc, _, _, _, _ := fileFixture(studentFile())
	claims := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}

	file, err := svc.Get(context.Background(), claims, "drive-file-1")

	require.NoError(t, err)
	assert.Equal(t, "drive-file-1", file.DriveFileID)
}

func TestFileServiceGetPublicFileByNonOwner(t *testing.T) {
	public := studentFile()
	public.IsPublic = true
	svc, _, _, _, _ := fileFixture(public)
	claims := &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent}

	file, err := svc.Get(context.Background(), claims, "drive-file-1")

	require.NoError(t, err)
	assert.True(t, file.IsPublic)
}

func TestFileServiceGetPrivateFileByNonOwner(t *testing.T) {
	svc, _, _, _, _ := fileFixture(studentFile())
	claims := &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent}

	_, err := svc.Get(context.Background(), claims, "drive-file-1")

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestFileServiceTrackDownload(t *testing.T) {
	svc, files, _, _, _ := fileFixture(studentFile())
	claims := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}

	file, err := svc.TrackDownload(context.Background(), claims, "drive-file-1")

	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/drive-file-1/view", file.DriveFileURL)
	assert.Equal(t, []string{"drive-file-1"}, files.incremented)
}

func TestFileServiceTrackDownloadByNonOwner(t *testing.T) {
	svc, files, _, _, _ := fileFixture(studentFile())
	claims := &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent}

	_, err := svc.TrackDownload(context.Background(), claims, "drive-file-1")

	require.Error(t, err)
	assert.Empty(t, files.incremented)
}

func TestFileServiceListByUserClampsLimit(t *testing.T) {
	svc, files, _, _, _ := fileFixture(nil)
	files.listed = []models.FileUpload{*studentFile()}
	files.total = 1
	claims := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}

	listed, pagination, err := svc.ListByUser(context.Background(), claims, models.FileFilter{Limit: 500})

	require.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.Page)
}
