package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of account roles
type Role string

const (
	RoleUser       Role = "USER"
	RoleStaff      Role = "STAFF"
	RoleModerator  Role = "MODERATOR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole converts a stored or token-supplied role into a Role
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleModerator, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// CanModerate reports whether the role may trigger maintenance operations
// such as pool recalculation
func (r Role) CanModerate() bool {
	switch r {
	case RoleModerator, RoleAdmin, RoleSuperAdmin:
		return true
	case RoleUser, RoleStaff:
		return false
	default:
		return false
	}
}

// CanAdjustBalances reports whether the role may credit or debit other users directly
func (r Role) CanAdjustBalances() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return true
	case RoleUser, RoleStaff, RoleModerator:
		return false
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// User is an AP Coins account
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Balance   int64     `db:"balance" json:"balance"`
	Level     int       `db:"level" json:"level"`
	XP        int64     `db:"xp" json:"xp"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasSufficientBalance checks if the user can pay amount without going negative
func (u *User) HasSufficientBalance(amount int64) bool {
	return u.Balance >= amount
}

// Shortfall returns how many coins the user is missing to pay amount
func (u *User) Shortfall(amount int64) int64 {
	if u.Balance >= amount {
		return 0
	}
	return amount - u.Balance
}
