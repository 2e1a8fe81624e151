package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lms-community/lms-api/internal/drive"
	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
)

type fileRepo interface {
	FindByDriveFileID(ctx context.Context, driveFileID string) (*models.FileUpload, error)
	ListByUser(ctx context.Context, userID string, filter models.FileFilter) ([]models.FileUpload, int, error)
	IncrementDownloadCount(ctx context.Context, driveFileID string, ts time.Time) error
	SoftDelete(ctx context.Context, driveFileID string, ts time.Time) error
}

type fileMaterialRepo interface {
	SoftDeleteMaterialByFileID(ctx context.Context, driveFileID string, ts time.Time) error
}

type fileAuditRepo interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// FileService serves file metadata and deletion. Metadata reads go
// through a Redis cache keyed by Drive file ID; deletes remove the
// remote file first and then soft delete the local rows.
type FileService struct {
	files     fileRepo
	materials fileMaterialRepo
	audits    fileAuditRepo
	drives    drive.ClientFactory
	cache     *redis.Client
	cacheTTL  time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewFileService constructs a FileService instance. cache may be nil,
// in which case every read goes to the database.
func NewFileService(
	files fileRepo,
	materials fileMaterialRepo,
	audits fileAuditRepo,
	drives drive.ClientFactory,
	cache *redis.Client,
	cacheTTL time.Duration,
	metrics *MetricsService,
	logger *zap.Logger,
) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &FileService{
		files:     files,
		materials: materials,
		audits:    audits,
		drives:    drives,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func fileCacheKey(driveFileID string) string {
	return fmt.Sprintf("file:meta:%s", driveFileID)
}

// Get returns the metadata for one uploaded file. The caller must own
// the file unless they hold SUPER_ADMIN.
func (s *FileService) Get(ctx context.Context, claims *models.JWTClaims, driveFileID string) (*models.FileUpload, error) {
	file, err := s.lookup(ctx, driveFileID)
	if err != nil {
		return nil, err
	}
	if err := CheckOwnership(claims, file.UploadedBy, models.RoleSuperAdmin); err != nil {
		if file.IsPublic {
			return file, nil
		}
		return nil, ownershipError(err, "you do not have permission to access this file")
	}
	return file, nil
}

// ListByUser returns the caller's upload history.
func (s *FileService) ListByUser(ctx context.Context, claims *models.JWTClaims, filter models.FileFilter) ([]models.FileUpload, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthenticated
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	files, total, err := s.files.ListByUser(ctx, claims.UserID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	page := filter.Offset/filter.Limit + 1
	return files, &models.Pagination{Page: page, PageSize: filter.Limit, TotalCount: total}, nil
}

// TrackDownload bumps the download counter for a file the caller may
// access and returns the file so callers get the view link back.
// Counter updates invalidate the metadata cache entry.
func (s *FileService) TrackDownload(ctx context.Context, claims *models.JWTClaims, driveFileID string) (*models.FileUpload, error) {
	file, err := s.Get(ctx, claims, driveFileID)
	if err != nil {
		return nil, err
	}
	if err := s.files.IncrementDownloadCount(ctx, driveFileID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to track download")
	}
	s.invalidate(ctx, driveFileID)
	return file, nil
}

// Delete removes the remote file and soft deletes the local metadata
// and any material referencing it. Owner only, SUPER_ADMIN bypasses.
func (s *FileService) Delete(ctx context.Context, claims *models.JWTClaims, driveFileID, ip, userAgent string) error {
	file, err := s.lookup(ctx, driveFileID)
	if err != nil {
		return err
	}
	if err := CheckOwnership(claims, file.UploadedBy, models.RoleSuperAdmin); err != nil {
		return ownershipError(err, "you do not have permission to delete this file")
	}

	cli, err := s.drives.ForUser(ctx, file.UploadedBy)
	if err != nil {
		return err
	}
	start := s.now()
	err = cli.DeleteFile(ctx, driveFileID)
	s.metrics.ObserveDriveCall("delete_file", err, time.Since(start))
	if err != nil && !appErrors.HasCode(err, appErrors.ErrNotFound) {
		return storageError(err, "failed to delete file from storage")
	}

	now := s.now()
	if err := s.files.SoftDelete(ctx, driveFileID, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file record")
	}
	if err := s.materials.SoftDeleteMaterialByFileID(ctx, driveFileID, now); err != nil {
		s.logger.Warn("failed to soft delete materials for file", zap.String("drive_file_id", driveFileID), zap.Error(err))
	}
	s.invalidate(ctx, driveFileID)
	s.auditDelete(ctx, claims, file, ip, userAgent)
	return nil
}

func (s *FileService) lookup(ctx context.Context, driveFileID string) (*models.FileUpload, error) {
	if cached := s.fromCache(ctx, driveFileID); cached != nil {
		return cached, nil
	}

	file, err := s.files.FindByDriveFileID(ctx, driveFileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch file")
	}
	s.toCache(ctx, file)
	return file, nil
}

func (s *FileService) fromCache(ctx context.Context, driveFileID string) *models.FileUpload {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, fileCacheKey(driveFileID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("file cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
		return nil
	}
	var file models.FileUpload
	if err := json.Unmarshal(raw, &file); err != nil {
		s.metrics.RecordCacheLookup(false)
		return nil
	}
	s.metrics.RecordCacheLookup(true)
	return &file
}

func (s *FileService) toCache(ctx context.Context, file *models.FileUpload) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(file)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, fileCacheKey(file.DriveFileID), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("file cache write failed", zap.Error(err))
	}
}

func (s *FileService) invalidate(ctx context.Context, driveFileID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, fileCacheKey(driveFileID)).Err(); err != nil {
		s.logger.Warn("file cache invalidation failed", zap.Error(err))
	}
}

func (s *FileService) auditDelete(ctx context.Context, claims *models.JWTClaims, file *models.FileUpload, ip, userAgent string) {
	var actorID *string
	if claims != nil {
		actorID = &claims.UserID
	}
	log := &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     actorID,
		Action:     models.AuditActionFileDelete,
		Resource:   "file",
		ResourceID: &file.DriveFileID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		CreatedAt:  s.now(),
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
