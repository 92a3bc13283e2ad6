package models

import "strings"

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// ParseRole accepts any casing ("ADMIN", "Teacher") and falls back to student.
func ParseRole(s string) UserRole {
	switch UserRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleTeacher:
		return RoleTeacher
	default:
		return RoleStudent
	}
}

func (r UserRole) IsStaff() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// Actor is the caller identity threaded into every core operation.
type Actor struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name,omitempty"`
	Role   UserRole `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsStudent() bool {
	return a.Role == RoleStudent
}
