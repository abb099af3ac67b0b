package model

import (
	"cmp"
	"slices"
	"time"
)

// MatchID uniquely identifies a match. It doubles as the invite token.
type MatchID string

// MatchStatus represents the lifecycle phase of a match
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"   // Created, waiting for the host to start
	MatchStatusActive    MatchStatus = "active"    // In play, scores being entered
	MatchStatusCompleted MatchStatus = "completed" // Ended by the host
	MatchStatusCancelled MatchStatus = "cancelled" // Terminal
)

// transitions lists the legal status changes
var transitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:   {MatchStatusActive, MatchStatusCancelled},
	MatchStatusActive:    {MatchStatusCompleted, MatchStatusCancelled},
	MatchStatusCompleted: {MatchStatusActive},
}

// CanTransition reports whether a match may move from one status to another
func CanTransition(from, to MatchStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Valid reports whether s is a known status
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusPending, MatchStatusActive, MatchStatusCompleted, MatchStatusCancelled:
		return true
	}
	return false
}

// MatchType describes how participants enter a match
type MatchType string

const MatchTypeInvite MatchType = "invite"

// Supported course lengths
const (
	NineHoles     = 9
	EighteenHoles = 18
)

// Address is the resolved course location
type Address struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	PlaceID string  `json:"placeId,omitempty"`
}

// Match is one scheduled or in-progress contest
type Match struct {
	ID          MatchID   `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	HostID      UserID    `json:"hostId"`
	Type        MatchType `json:"type"`

	// Participants is ordered by join order; the host is at index 0
	Participants      []UserID          `json:"participants"`
	ParticipantEmails map[UserID]string `json:"participantEmails"`

	NumberOfHoles int         `json:"numberOfHoles"`
	Location      string      `json:"location,omitempty"`
	LocationName  string      `json:"locationName,omitempty"`
	Address       *Address    `json:"address,omitempty"`
	Status        MatchStatus `json:"status"`
	Scores        Scorecard   `json:"scores"`
	PointsAwarded bool        `json:"pointsAwarded"`

	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsHost reports whether the user hosts the match
func (m *Match) IsHost(user UserID) bool {
	return m.HostID == user
}

// IsParticipant reports whether the user is in the participant set
func (m *Match) IsParticipant(user UserID) bool {
	return slices.Contains(m.Participants, user)
}

// ValidHole reports whether hole is within 1..NumberOfHoles
func (m *Match) ValidHole(hole int) bool {
	return hole >= 1 && hole <= m.NumberOfHoles
}

// Clone returns a deep copy so callers can mutate without aliasing stored state
func (m *Match) Clone() *Match {
	c := *m
	c.Participants = slices.Clone(m.Participants)
	if m.ParticipantEmails != nil {
		c.ParticipantEmails = make(map[UserID]string, len(m.ParticipantEmails))
		for k, v := range m.ParticipantEmails {
			c.ParticipantEmails[k] = v
		}
	}
	if m.Address != nil {
		addr := *m.Address
		c.Address = &addr
	}
	c.ScheduledFor = cloneTime(m.ScheduledFor)
	c.StartedAt = cloneTime(m.StartedAt)
	c.CompletedAt = cloneTime(m.CompletedAt)
	c.Scores = m.Scores.Clone()
	return &c
}

// MatchFilter selects matches in a listing. Empty fields match everything;
// set fields are combined with AND.
type MatchFilter struct {
	Participant UserID
	Host        UserID
	Statuses    []MatchStatus
}

// Matches reports whether m satisfies the filter
func (f MatchFilter) Matches(m *Match) bool {
	if f.Participant != "" && !m.IsParticipant(f.Participant) {
		return false
	}
	if f.Host != "" && m.HostID != f.Host {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, m.Status) {
		return false
	}
	return true
}

// SortNewestFirst orders matches by creation time, newest first, with ID as tie-break
func SortNewestFirst(matches []*Match) {
	slices.SortStableFunc(matches, func(a, b *Match) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
