package models

import "time"

// NotificationType enumerates supported notification categories.
type NotificationType string

const (
	NotificationQuestionAnswered   NotificationType = "question_answered"
	NotificationQuestionApproved   NotificationType = "question_approved"
	NotificationQuestionRejected   NotificationType = "question_rejected"
	NotificationQuestionAssigned   NotificationType = "question_assigned"
	NotificationSystemAnnouncement NotificationType = "system_announcement"
)

// Notification is an unread-by-default record created as a side effect of a
// workflow transition and consumed by the recipient's client.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipient_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	RelatedID   *string          `db:"related_id" json:"related_id,omitempty"`
	Read        bool             `db:"read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// ValidNotificationType reports whether the raw value names a known type.
func ValidNotificationType(raw NotificationType) bool {
	switch raw {
	case NotificationQuestionAnswered, NotificationQuestionApproved,
		NotificationQuestionRejected, NotificationQuestionAssigned,
		NotificationSystemAnnouncement:
		return true
	default:
		return false
	}
}
