package models

import "time"

// UserRole represents the available roles for the RBAC system.
//
// SUPER_ADMIN implicitly satisfies every role requirement. FINANCE and
// TEACHER are siblings with no ordering between them; access is always
// decided by explicit role sets, never by a numeric hierarchy.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPER_ADMIN"
	RoleFinance    UserRole = "FINANCE"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// Valid reports whether the role is a member of the fixed enumeration.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleFinance, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
// Google Drive tokens are stored opaquely; the identity provider owns
// the OAuth exchange.
type User struct {
	ID                 string     `db:"id" json:"id"`
	Email              string     `db:"email" json:"email"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	FullName           string     `db:"full_name" json:"full_name"`
	Role               UserRole   `db:"role" json:"role"`
	Active             bool       `db:"active" json:"active"`
	GoogleAccessToken  *string    `db:"google_access_token" json:"-"`
	GoogleRefreshToken *string    `db:"google_refresh_token" json:"-"`
	LastLogin          *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt          *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// HasDriveAccess reports whether both Google tokens are present.
func (u *User) HasDriveAccess() bool {
	return u != nil &&
		u.GoogleAccessToken != nil && *u.GoogleAccessToken != "" &&
		u.GoogleRefreshToken != nil && *u.GoogleRefreshToken != ""
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
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
