package core

import "time"

// Account holds the credentials of a user. The profile with the same
// UserID is created alongside it.
type Account struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is an opaque bearer token bound to a user.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
