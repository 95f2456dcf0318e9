package dto

// AnnouncementRequest payload for an admin broadcast to all active users.
type AnnouncementRequest struct {
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// NotificationQuery mirrors supported listing filters.
type NotificationQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}
