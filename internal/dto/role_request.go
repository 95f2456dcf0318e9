package dto

import "github.com/ilmhub/qa-api/internal/models"

// CreateRoleRequest payload for applying for an elevated role.
type CreateRoleRequest struct {
	RequestedRole  models.UserRole `json:"requested_role" validate:"required"`
	Qualifications string          `json:"qualifications" validate:"required"`
	Institution    string          `json:"institution"`
	Experience     string          `json:"experience"`
}

// RoleRequestQuery mirrors supported listing filters.
type RoleRequestQuery struct {
	Status []models.RoleRequestStatus
	Limit  int
	Offset int
}
