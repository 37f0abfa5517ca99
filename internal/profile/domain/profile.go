package domain

import "time"

// Role is the closed set of console roles. Anything outside the set collapses
// to RoleNone, so an unrecognized value in a backing record can never grant
// access.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleNone    Role = ""
)

// RoleFromString maps a stored role value to a Role. Values other than
// "admin" and "teacher" become RoleNone.
func RoleFromString(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleTeacher:
		return RoleTeacher
	default:
		return RoleNone
	}
}

// Profile is the domain record describing an identity's role and display
// attributes. Points, Level, Subjects, and Subscribed are carried for
// downstream screens and play no part in authorization.
type Profile struct {
	ID          string // equal to the identity id
	Email       string
	DisplayName string
	Role        Role
	Points      int
	Level       int
	Subjects    []string
	Subscribed  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Placeholder returns the substitute profile used when the record for an
// identity cannot be resolved. It never carries a privileged role.
func Placeholder(id, email string) *Profile {
	return &Profile{ID: id, Email: email, Role: RoleNone}
}
