package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleUser    UserRole = "USER"
	RoleScholar UserRole = "SCHOLAR"
	RoleAdmin   UserRole = "ADMIN"
)

// UserStatus captures whether an account may act on the platform.
type UserStatus string

const (
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusBlocked UserStatus = "BLOCKED"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Status       UserStatus `db:"status" json:"status"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsScholar reports whether the user holds the scholar role.
func (u *User) IsScholar() bool {
	return u != nil && u.Role == RoleScholar
}

// IsActive reports whether the account is not blocked.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Status    *UserStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ValidRole reports whether the raw value names a known role.
func ValidRole(raw UserRole) bool {
	switch raw {
	case RoleUser, RoleScholar, RoleAdmin:
		return true
	default:
		return false
	}
}

// ValidUserStatus reports whether the raw value names a known account status.
func ValidUserStatus(raw UserStatus) bool {
	switch raw {
	case UserStatusActive, UserStatusBlocked:
		return true
	default:
		return false
	}
}
