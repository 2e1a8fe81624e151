package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lms-community/lms-api/internal/models"
	appErrors "github.com/lms-community/lms-api/pkg/errors"
)

type userRepo interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole, updatedAt time.Time) error
	SoftDelete(ctx context.Context, id string, ts time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpdateRoleRequest changes a user's role.
type UpdateRoleRequest struct {
	Role      models.UserRole `json:"role" validate:"required"`
	IP        string          `json:"-"`
	UserAgent string          `json:"-"`
}

// UserService covers administrative user management. Role changes and
// deletions are restricted to SUPER_ADMIN at the routing layer and
// leave an audit trail here.
type UserService struct {
	users     userRepo
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(users userRepo, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:     users,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns users matching the filter with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid role filter")
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	}, nil
}

// Get returns a single user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	return user, nil
}

// UpdateRole changes a user's role and records the transition. Actors
// cannot change their own role, which keeps at least one admin able to
// undo a mistake.
func (s *UserService) UpdateRole(ctx context.Context, actor *models.JWTClaims, userID string, req UpdateRoleRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "role is required")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid role")
	}
	if actor != nil && actor.UserID == userID {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "you cannot change your own role")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == req.Role {
		return user, nil
	}

	now := s.now()
	if err := s.users.UpdateRole(ctx, userID, req.Role, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}

	s.auditRoleChange(ctx, actor, user, req)

	user.Role = req.Role
	user.UpdatedAt = now
	return user, nil
}

// Delete soft deletes a user and revokes their sessions.
func (s *UserService) Delete(ctx context.Context, actor *models.JWTClaims, userID, ip, userAgent string) error {
	if actor != nil && actor.UserID == userID {
		return appErrors.Clone(appErrors.ErrInvalidState, "you cannot delete your own account")
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}

	if err := s.users.SoftDelete(ctx, userID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	if err := s.users.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions of deleted user", zap.String("user_id", userID), zap.Error(err))
	}

	var actorID *string
	if actor != nil {
		actorID = &actor.UserID
	}
	s.writeAudit(ctx, &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     actorID,
		Action:     models.AuditActionUserDelete,
		Resource:   "user",
		ResourceID: &userID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		CreatedAt:  s.now(),
	})
	return nil
}

func (s *UserService) auditRoleChange(ctx context.Context, actor *models.JWTClaims, before *models.User, req UpdateRoleRequest) {
	oldValues, _ := json.Marshal(map[string]string{"role": string(before.Role)})
	newValues, _ := json.Marshal(map[string]string{"role": string(req.Role)})

	var actorID *string
	if actor != nil {
		actorID = &actor.UserID
	}
	s.writeAudit(ctx, &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     actorID,
		Action:     models.AuditActionRoleChange,
		Resource:   "user",
		ResourceID: &before.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
		CreatedAt:  s.now(),
	})
}

func (s *UserService) writeAudit(ctx context.Context, log *models.AuditLog) {
	if err := s.users.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
