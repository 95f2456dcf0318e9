package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ilmhub/qa-api/internal/dto"
	"github.com/ilmhub/qa-api/internal/models"
	appErrors "github.com/ilmhub/qa-api/pkg/errors"
	"github.com/ilmhub/qa-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) error
	CountUnread(ctx context.Context, recipientID string) (int, error)
	ListActiveRecipientIDs(ctx context.Context) ([]string, error)
}

// NotificationService persists and delivers notifications. Delivery runs
// through a background queue so workflow transitions never wait on it, and a
// failed delivery is logged but never surfaced to the caller.
type NotificationService struct {
	repo      notificationStore
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the service. Queue workers are started by
// the caller; until then Notify falls back to synchronous writes.
func NewNotificationService(repo notificationStore, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, validator: validate, logger: logger}
}

// AttachQueue wires the background dispatch queue. Notifications are
// delivered once, with no retry, so a lost delivery stays lost.
func (s *NotificationService) AttachQueue(workers, buffer int) *jobs.Queue {
	s.queue = jobs.NewQueue("notifications", s.dispatch, jobs.QueueConfig{
		Workers:    workers,
		BufferSize: buffer,
		MaxRetries: 1,
		Logger:     s.logger,
	})
	return s.queue
}

// Notify records a notification for the recipient. It never returns an error:
// the workflow that triggered it has already committed.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, nType models.NotificationType, title, message, relatedID string) {
	if recipientID == "" {
		return
	}
	if !models.ValidNotificationType(nType) {
		s.logger.Warn("dropping notification with unknown type", zap.String("type", string(nType)))
		return
	}
	notification := &models.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        nType,
		Title:       title,
		Message:     message,
	}
	if relatedID != "" {
		notification.RelatedID = &relatedID
	}

	if s.queue == nil {
		s.deliver(ctx, notification)
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: notification.ID, Type: string(nType), Payload: notification}); err != nil {
		s.logger.Warn("notification enqueue failed, delivering inline", zap.Error(err))
		s.deliver(ctx, notification)
	}
}

func (s *NotificationService) dispatch(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(*models.Notification)
	if !ok {
		s.logger.Error("notification job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("recipient_id", notification.RecipientID),
			zap.String("type", string(notification.Type)),
			zap.Error(err))
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, notification *models.Notification) {
	if err := s.repo.Create(ctx, notification); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("recipient_id", notification.RecipientID),
			zap.String("type", string(notification.Type)),
			zap.Error(err))
	}
}

// List returns the actor's own notifications.
func (s *NotificationService) List(ctx context.Context, actor *models.JWTClaims, query dto.NotificationQuery) ([]models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	notifications, err := s.repo.ListByRecipient(ctx, actor.UserID, query.UnreadOnly, query.Limit, query.Offset)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list notifications")
	}
	return notifications, nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor *models.JWTClaims, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Store(err, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead flags every unread notification of the actor.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.MarkAllRead(ctx, actor.UserID); err != nil {
		return appErrors.Store(err, "failed to mark notifications read")
	}
	return nil
}

// UnreadCount returns the actor's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, actor *models.JWTClaims) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	count, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, appErrors.Store(err, "failed to count unread notifications")
	}
	return count, nil
}

// Announce broadcasts a system announcement to every active user.
func (s *NotificationService) Announce(ctx context.Context, actor *models.JWTClaims, req dto.AnnouncementRequest) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	recipients, err := s.repo.ListActiveRecipientIDs(ctx)
	if err != nil {
		return 0, appErrors.Store(err, "failed to resolve announcement recipients")
	}
	for _, recipientID := range recipients {
		s.Notify(ctx, recipientID, models.NotificationSystemAnnouncement, req.Title, req.Message, "")
	}
	s.logger.Info("announcement dispatched",
		zap.String("sender_id", actor.UserID),
		zap.Int("recipients", len(recipients)))
	return len(recipients), nil
}
