package model

import (
	"strings"
	"time"
)

// User is a learner account. Email is the login identity.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:128;not null;uniqueIndex" json:"email"`
	FirstName    string     `gorm:"size:64" json:"first_name"`
	LastName     string     `gorm:"size:64" json:"last_name"`
	ProfilePic   string     `gorm:"size:512" json:"profile_pic,omitempty"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DisplayName falls back to the mailbox name when no name was given.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}
