package models

import "time"

// User is a portal account with its entitlement flags.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Premium      bool       `json:"premium"`
	Admin        bool       `json:"admin"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired reports whether the account has an expiry that lies at or before now.
func (u *User) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && !now.Before(*u.ExpiresAt)
}

// CanPlay reports whether the account may open the player. Admins always can.
func (u *User) CanPlay() bool {
	return u.Premium || u.Admin
}
