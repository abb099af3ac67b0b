package request

import (
	"time"

	"github.com/mcoot/fairway/internal/model"
)

// Address is a resolved course location
type Address struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	PlaceID string  `json:"place_id,omitempty"`
}

// ToModel converts the request address, preserving nil
func (a *Address) ToModel() *model.Address {
	if a == nil {
		return nil
	}
	return &model.Address{Address: a.Address, Lat: a.Lat, Lng: a.Lng, PlaceID: a.PlaceID}
}

// CreateMatchRequest is the request body for creating a match
type CreateMatchRequest struct {
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	NumberOfHoles int        `json:"number_of_holes"`
	Location      string     `json:"location,omitempty"`
	LocationName  string     `json:"location_name,omitempty"`
	Address       *Address   `json:"address,omitempty"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
}

// EditMatchRequest is the request body for editing a match. Omitted fields
// are left unchanged.
type EditMatchRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Location     *string    `json:"location,omitempty"`
	LocationName *string    `json:"location_name,omitempty"`
	Address      *Address   `json:"address,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// SubmitScoreRequest is the request body for recording a hole score
type SubmitScoreRequest struct {
	Strokes *int `json:"strokes"`
}

// RegisterRequest is the request body for saving the caller's profile
type RegisterRequest struct {
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Handicap  *float64 `json:"handicap,omitempty"`
}

// JoinRequest is the request body for joining with an invite link or token
type JoinRequest struct {
	Invite string `json:"invite"`
}
