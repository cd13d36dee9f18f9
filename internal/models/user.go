package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// Home is the dashboard path a role lands on after sign-in.
func (r UserRole) Home() string {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return "/admin"
	case RoleTeacher:
		return "/teacher"
	default:
		return "/student"
	}
}

// User is a profile row in the users table.
type User struct {
	ID            string     `db:"id" json:"id"`
	SchoolID      string     `db:"school_id" json:"school_id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FullName      string     `db:"full_name" json:"full_name"`
	Role          UserRole   `db:"role" json:"role"`
	GradeLevel    *string    `db:"grade_level" json:"grade_level,omitempty"`
	StudentNumber *string    `db:"student_number" json:"student_number,omitempty"`
	PhotoURL      *string    `db:"photo_url" json:"photo_url,omitempty"`
	Active        bool       `db:"active" json:"active"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users of one school.
type UserFilter struct {
	SchoolID  string
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

// UserList is a cached page of users.
type UserList struct {
	Items      []User     `json:"items"`
	Pagination Pagination `json:"pagination"`
}
