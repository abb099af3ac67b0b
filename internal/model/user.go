package model

import "time"

// UserID is the opaque authenticated principal identifier
type UserID string

// User is a registered principal and their denormalized points balance.
// Points always equals the sum of the user's ledger entries.
type User struct {
	ID        UserID    `json:"uid"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Handicap  *float64  `json:"handicap,omitempty"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName returns the user's full name, falling back to their email
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}
