package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Lifecycle events
	EventMatchUpdated      EventType = "match-updated"
	EventMatchStarted      EventType = "match-started"
	EventMatchCompleted    EventType = "match-completed"
	EventMatchCancelled    EventType = "match-cancelled"
	EventParticipantJoined EventType = "participant-joined"

	// Scoring events
	EventScoreSubmitted EventType = "score-submitted"

	// Points events
	EventPointsAwarded EventType = "points-awarded"
)

// Event is a change notification pushed to clients watching a match
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	MatchID   MatchID   `json:"matchId"`
	UserID    UserID    `json:"userId,omitempty"` // The user who triggered or is affected
	Payload   any       `json:"payload,omitempty"`
}

// ScoreSubmittedPayload contains data for score submitted events
type ScoreSubmittedPayload struct {
	Hole    int    `json:"hole"`
	UserID  UserID `json:"userId"`
	Strokes int    `json:"strokes"`
}

// MatchCompletedPayload contains data for match completed events
type MatchCompletedPayload struct {
	Outcome  string   `json:"outcome"`
	ResultID ResultID `json:"resultId,omitempty"`
}

// PointsAwardedPayload contains data for points awarded events
type PointsAwardedPayload struct {
	ResultID ResultID `json:"resultId"`
	Awarded  []UserID `json:"awarded"`
	Points   int      `json:"points"`
}
