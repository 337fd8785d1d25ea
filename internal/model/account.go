package model

import (
	"strings"
	"time"
)

// Role is the principal kind of an account.  It is fixed when the account is
// created.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// ParseRole normalizes s into a Role.  The second result is false for
// unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Account represents a row in the `accounts` table.  It is used by both the
// coach (admin) and the clients (user).
//
// Fields:
//
//	ID                 UUID primary key.
//	Email              unique, lower-cased e-mail address.
//	PasswordHash       bcrypt hash, never empty.
//	DietTime           free-text programme length (e.g. "21 days"); may be empty.
//	DietStartDate      admin override of the first diet day (calendar date).
//	DietEndDate        admin override of the last diet day (calendar date).
//	MustChangePassword set for admin-created accounts until the first password change.
//	CreatedAt          enrollment anchor for the plan window.
type Account struct {
	ID                 string
	Name               string
	Email              string
	PasswordHash       string
	Role               Role
	DietTime           string
	DietStartDate      *time.Time
	DietEndDate        *time.Time
	MustChangePassword bool
	FirstLogin         bool
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NormalizeEmail lower-cases and trims an e-mail address the way it is
// stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DashboardRow is one line of the admin client table: an account joined with
// the questionnaire answers the coach looks at most.
type DashboardRow struct {
	ID                 string
	Name               string
	Email              string
	DietTime           string
	DietStartDate      *time.Time
	DietEndDate        *time.Time
	FirstLogin         bool
	MustChangePassword bool
	CreatedAt          time.Time
	Age                *int
	ProgramGoal        *string
	Height             *string
	Weight             *string
}
