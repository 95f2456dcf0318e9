package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilmhub/qa-api/internal/dto"
	"github.com/ilmhub/qa-api/internal/models"
	"github.com/ilmhub/qa-api/internal/service"
)

type notificationStoreStub struct {
	byRecipient map[string][]models.Notification
	active      []string
	created     []models.Notification
}

func (s *notificationStoreStub) Create(ctx context.Context, notification *models.Notification) error {
	s.created = append(s.created, *notification)
	return nil
}

func (s *notificationStoreStub) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.byRecipient[recipientID], nil
}

func (s *notificationStoreStub) MarkRead(ctx context.Context, id, recipientID string) error {
	for _, n := range s.byRecipient[recipientID] {
		if n.ID == id {
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *notificationStoreStub) MarkAllRead(ctx context.Context, recipientID string) error {
	return nil
}

func (s *notificationStoreStub) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return len(s.byRecipient[recipientID]), nil
}

func (s *notificationStoreStub) ListActiveRecipientIDs(ctx context.Context) ([]string, error) {
	return s.active, nil
}

func newNotificationHandler(store *notificationStoreStub) *NotificationHandler {
	return NewNotificationHandler(service.NewNotificationService(store, nil, nil))
}

func TestNotificationHandlerListOwnOnly(t *testing.T) {
	store := &notificationStoreStub{byRecipient: map[string][]models.Notification{
		"u1": {{ID: "n-1", RecipientID: "u1", Type: models.NotificationQuestionAnswered}},
	}}
	handler := newNotificationHandler(store)

	c, w := testContext(t, http.MethodGet, "/notifications", nil,
		&models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "n-1")
}

func TestNotificationHandlerMarkReadForeignNotification(t *testing.T) {
	store := &notificationStoreStub{byRecipient: map[string][]models.Notification{
		"u1": {{ID: "n-1", RecipientID: "u1"}},
	}}
	handler := newNotificationHandler(store)

	c, w := testContext(t, http.MethodPost, "/notifications/n-1/read", nil,
		&models.JWTClaims{UserID: "u2", Role: models.RoleUser})
	c.Params = gin.Params{{Key: "id", Value: "n-1"}}

	handler.MarkRead(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationHandlerAnnounceAdminOnly(t *testing.T) {
	store := &notificationStoreStub{active: []string{"u1", "u2"}}
	handler := newNotificationHandler(store)

	c, w := testContext(t, http.MethodPost, "/notifications/announce",
		dto.AnnouncementRequest{Title: "Maintenance", Message: "Back soon"},
		&models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	handler.Announce(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNotificationHandlerAnnounceBroadcasts(t *testing.T) {
	store := &notificationStoreStub{active: []string{"u1", "u2", "u3"}}
	handler := newNotificationHandler(store)

	c, w := testContext(t, http.MethodPost, "/notifications/announce",
		dto.AnnouncementRequest{Title: "Maintenance", Message: "Back soon"},
		&models.JWTClaims{UserID: "a1", Role: models.RoleAdmin})

	handler.Announce(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, store.created, 3)
}
