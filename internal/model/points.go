package model

import "time"

// LedgerEntryID uniquely identifies a points ledger entry
type LedgerEntryID string

// PointsReason records why points were granted
type PointsReason string

const (
	PointsReasonMatchCompletion PointsReason = "match_completion"
	PointsReasonAchievement     PointsReason = "achievement"
	PointsReasonBonus           PointsReason = "bonus"
)

// PointsLedgerEntry is an append-only record of one grant. At most one
// entry exists per (UserID, MatchID).
type PointsLedgerEntry struct {
	ID        LedgerEntryID `json:"id"`
	UserID    UserID        `json:"userId"`
	MatchID   MatchID       `json:"matchId"`
	Points    int           `json:"points"`
	Reason    PointsReason  `json:"reason"`
	CreatedAt time.Time     `json:"createdAt"`
}
