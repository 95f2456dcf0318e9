package dto

import "github.com/ilmhub/qa-api/internal/models"

// UpdateUserRoleRequest payload for an admin manual role change.
type UpdateUserRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required"`
}

// UpdateUserStatusRequest payload for blocking or unblocking an account.
type UpdateUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required"`
}
