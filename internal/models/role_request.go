package models

import "time"

// RoleRequestStatus captures the one-shot promotion workflow states.
type RoleRequestStatus string

const (
	RoleRequestStatusPending  RoleRequestStatus = "PENDING"
	RoleRequestStatusApproved RoleRequestStatus = "APPROVED"
	RoleRequestStatusRejected RoleRequestStatus = "REJECTED"
)

// RoleRequest stores a user's application for an elevated role. Once the
// status leaves PENDING the record is terminal.
type RoleRequest struct {
	ID             string            `db:"id" json:"id"`
	UserID         string            `db:"user_id" json:"user_id"`
	UserName       string            `db:"user_name" json:"user_name"`
	UserEmail      string            `db:"user_email" json:"user_email"`
	RequestedRole  UserRole          `db:"requested_role" json:"requested_role"`
	Qualifications string            `db:"qualifications" json:"qualifications"`
	Institution    string            `db:"institution" json:"institution"`
	Experience     string            `db:"experience" json:"experience"`
	Status         RoleRequestStatus `db:"status" json:"status"`
	ReviewedBy     *string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	ReviewedAt     *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// RoleRequestFilter constrains listing queries.
type RoleRequestFilter struct {
	Status []RoleRequestStatus
	UserID string
	Limit  int
	Offset int
}

// RequestableRole reports whether the role may be applied for.
func RequestableRole(role UserRole) bool {
	return role == RoleScholar || role == RoleAdmin
}
