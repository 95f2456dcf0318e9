package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ilmhub/qa-api/internal/dto"
	"github.com/ilmhub/qa-api/internal/models"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
)

type roleRequestStore interface {
	Create(ctx context.Context, request *models.RoleRequest) error
	GetByID(ctx context.Context, id string) (*models.RoleRequest, error)
	List(ctx context.Context, filter models.RoleRequestFilter) ([]models.RoleRequest, error)
	HasPending(ctx context.Context, userID string) (bool, error)
	Approve(ctx context.Context, id, reviewerID string, reviewedAt time.Time) (*models.RoleRequest, error)
	Reject(ctx context.Context, id, reviewerID string, reviewedAt time.Time) error
}

// RoleRequestService runs the one-shot promotion workflow:
// pending -> approved/rejected, with approval also promoting the user.
type RoleRequestService struct {
	repo      roleRequestStore
	notifier  Notifier
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoleRequestService constructs the service.
func NewRoleRequestService(repo roleRequestStore, notifier Notifier, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *RoleRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleRequestService{repo: repo, notifier: notifier, audit: audit, validator: validate, logger: logger}
}

// Submit files a pending role request for the actor. A user may hold at most
// one open request at a time.
func (s *RoleRequestService) Submit(ctx context.Context, actor *models.JWTClaims, req dto.CreateRoleRequest) (*models.RoleRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role request payload")
	}
	if !models.RequestableRole(req.RequestedRole) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requested role must be SCHOLAR or ADMIN")
	}
	if req.RequestedRole == actor.Role {
		return nil, appErrors.Clone(appErrors.ErrValidation, "already holding the requested role")
	}

	pending, err := s.repo.HasPending(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to check open requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an open role request already exists")
	}

	request := &models.RoleRequest{
		UserID:         actor.UserID,
		UserName:       actor.FullName,
		UserEmail:      actor.Email,
		RequestedRole:  req.RequestedRole,
		Qualifications: req.Qualifications,
		Institution:    req.Institution,
		Experience:     req.Experience,
		Status:         models.RoleRequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Store(err, "failed to create role request")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionRoleRequest, request.ID,
		[]byte(fmt.Sprintf(`{"requested_role":%q}`, request.RequestedRole)))
	return request, nil
}

// Approve grants the request and promotes the user, both in one transaction.
// Replaying an already-reviewed request fails with InvalidTransition and
// does not re-mutate the user's role.
func (s *RoleRequestService) Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.RoleRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	request, err := s.repo.Approve(ctx, id, actor.UserID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explainReviewFailure(ctx, id)
		}
		return nil, appErrors.Store(err, "failed to approve role request")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, request.UserID, models.NotificationSystemAnnouncement,
			"Role request approved",
			fmt.Sprintf("Your request for the %s role has been approved.", request.RequestedRole),
			request.ID)
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionRoleReview, id,
		[]byte(fmt.Sprintf(`{"decision":"approved","role":%q}`, request.RequestedRole)))
	return request, nil
}

// Reject declines the request without touching the user's role.
func (s *RoleRequestService) Reject(ctx context.Context, actor *models.JWTClaims, id string) (*models.RoleRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	if err := s.repo.Reject(ctx, id, actor.UserID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explainReviewFailure(ctx, id)
		}
		return nil, appErrors.Store(err, "failed to reject role request")
	}

	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Store(err, "failed to reload role request")
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, request.UserID, models.NotificationSystemAnnouncement,
			"Role request declined",
			fmt.Sprintf("Your request for the %s role was declined.", request.RequestedRole),
			request.ID)
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionRoleReview, id, []byte(`{"decision":"rejected"}`))
	return request, nil
}

// Get returns a request; admins see all, users only their own.
func (s *RoleRequestService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.RoleRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "role request not found")
		}
		return nil, appErrors.Store(err, "failed to load role request")
	}
	if actor.Role != models.RoleAdmin && request.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another user's role request")
	}
	return request, nil
}

// List returns requests scoped by role: admins see everything, everyone else
// only their own submissions.
func (s *RoleRequestService) List(ctx context.Context, actor *models.JWTClaims, query dto.RoleRequestQuery) ([]models.RoleRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.RoleRequestFilter{
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if actor.Role != models.RoleAdmin {
		filter.UserID = actor.UserID
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list role requests")
	}
	return requests, nil
}

func (s *RoleRequestService) explainReviewFailure(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "role request not found")
		}
		return appErrors.Store(err, "failed to load role request")
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, "role request already reviewed")
}

func (s *RoleRequestService) emitAudit(ctx context.Context, actorID, action, requestID string, values []byte) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "role_requests",
		ResourceID: &requestID,
		NewValues:  values,
		IPAddress:  "system",
		UserAgent:  "role-request-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
