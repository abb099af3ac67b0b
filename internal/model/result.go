package model

import (
	"slices"
	"time"
)

// ResultID uniquely identifies a match result
type ResultID string

// MatchResult is the immutable snapshot taken when a fully scored match
// completes. Only PointsAwarded and PointsAwardedAt ever change, once.
type MatchResult struct {
	ID              ResultID   `json:"id"`
	MatchID         MatchID    `json:"matchId"`
	Title           string     `json:"title"`
	NumberOfHoles   int        `json:"numberOfHoles"`
	Participants    []UserID   `json:"participants"`
	Scores          Scorecard  `json:"scores"`
	PointsAwarded   bool       `json:"pointsAwarded"`
	PointsAwardedAt *time.Time `json:"pointsAwardedAt,omitempty"`
	CompletedAt     time.Time  `json:"completedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Clone returns a deep copy
func (r *MatchResult) Clone() *MatchResult {
	c := *r
	c.Participants = slices.Clone(r.Participants)
	c.Scores = r.Scores.Clone()
	c.PointsAwardedAt = cloneTime(r.PointsAwardedAt)
	return &c
}

// ResultEvent is one delivery of the result-created feed. Deliveries are
// at-least-once; ID identifies the delivery for acknowledgement.
type ResultEvent struct {
	ID        string    `json:"id"`
	ResultID  ResultID  `json:"resultId"`
	MatchID   MatchID   `json:"matchId"`
	CreatedAt time.Time `json:"createdAt"`
}
