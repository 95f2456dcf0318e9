package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ilmhub/qa-api/internal/dto"
	"github.com/ilmhub/qa-api/internal/models"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
	DeleteCascade(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles admin account management: listing, manual role changes,
// blocking, and account removal.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns users matching the filter with a total count.
func (s *UserService) List(ctx context.Context, actor *models.JWTClaims, filter models.UserFilter) ([]models.User, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Store(err, "failed to list users")
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, total, nil
}

// Get returns a single user. Admins may inspect anyone; everyone else only
// their own account.
func (s *UserService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.User, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.UserID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another user's account")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateRole changes a user's role directly, outside the request workflow.
// Admins cannot change their own role.
func (s *UserService) UpdateRole(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateUserRoleRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	if !models.ValidRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if actor.UserID == id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change own role")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == req.Role {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "user already holds this role")
	}
	if err := s.repo.UpdateRole(ctx, id, req.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Store(err, "failed to update role")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionUserUpdate, id,
		[]byte(fmt.Sprintf(`{"role":%q,"previous":%q}`, req.Role, user.Role)))

	user.Role = req.Role
	user.PasswordHash = ""
	return user, nil
}

// UpdateStatus blocks or unblocks an account. Blocking also revokes every
// refresh token so the account cannot mint new access tokens.
func (s *UserService) UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateUserStatusRequest) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !models.ValidUserStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
	}
	if actor.UserID == id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change own status")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Status == req.Status {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "user already in this status")
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Store(err, "failed to update status")
	}
	if req.Status == models.UserStatusBlocked {
		if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke tokens for blocked user",
				zap.String("user_id", id), zap.Error(err))
		}
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionUserUpdate, id,
		[]byte(fmt.Sprintf(`{"status":%q,"previous":%q}`, req.Status, user.Status)))

	user.Status = req.Status
	user.PasswordHash = ""
	return user, nil
}

// Delete removes an account together with its questions and tokens.
func (s *UserService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete own account")
	}
	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Store(err, "failed to delete user")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionUserDelete, id, nil)
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Store(err, "failed to load user")
	}
	return user, nil
}

func (s *UserService) emitAudit(ctx context.Context, actorID, action, targetID string, values []byte) {
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &targetID,
		NewValues:  values,
		IPAddress:  "system",
		UserAgent:  "user-service",
	}
	if err := s.repo.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
