package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles a user account can hold. The role gates which operations a session
// may attempt; relationship checks (lecturer assigned, student enrolled) are
// verified separately against the database on every request.
const (
	RoleAdmin    = "ADMIN"
	RoleLecturer = "LECTURER"
	RoleStudent  = "STUDENT"
)

// User represents an account in any of the three roles.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash []byte    `gorm:"not null" json:"-"`
	Role         string    `gorm:"size:32;not null;default:STUDENT" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SetPassword hashes and stores the given plaintext password.
func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword compares the stored hash against the given plaintext password.
func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// HasRole reports whether the user's role matches any of the given roles,
// case-insensitively.
func (u User) HasRole(roles ...string) bool {
	for _, role := range roles {
		if strings.EqualFold(u.Role, role) {
			return true
		}
	}
	return false
}

// ValidRole reports whether the given string names a known role.
func ValidRole(role string) bool {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case RoleAdmin, RoleLecturer, RoleStudent:
		return true
	default:
		return false
	}
}
