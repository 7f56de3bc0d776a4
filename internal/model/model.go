// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// Role is the access level of a signed-in user.
type Role string

// Known roles.
const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleHost, RoleAdmin:
		return true
	}
	return false
}

// User is the persisted "current user" record.
type User struct {
	ID            string    `json:"id"` // encrypted pseudo-identifier, not an identity
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Role          Role      `json:"role"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"createdAt"`
	SessionExpiry time.Time `json:"sessionExpiry"`
}

// Expired reports whether the session is past its expiry at now.
func (u *User) Expired(now time.Time) bool {
	return now.After(u.SessionExpiry)
}

// AuthState is a point-in-time copy of the session store.
type AuthState struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	Error           string // empty when no error is pending
}

// LoginInput is the ephemeral login form payload.
type LoginInput struct {
	Email    string
	Password string
}

// RegisterInput is the ephemeral registration form payload.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

// ProfileUpdate carries the optional profile fields; nil or empty means untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// MessageInput is the payload of a conversation message.
type MessageInput struct {
	Content string
}

// Message is a validated, sanitized message ready for a conversation store.
type Message struct {
	ID             string
	ConversationID string
	Content        string
	Timestamp      time.Time
}

// PropertySearch is an optional-field property search query.
type PropertySearch struct {
	Destination string
	CheckIn     string
	CheckOut    string
	Guests      *int
}
