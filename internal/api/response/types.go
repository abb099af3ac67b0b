package response

import (
	"time"

	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/completion"
	"github.com/mcoot/fairway/internal/services/scoring"
)

// Address represents a course location
type Address struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	PlaceID string  `json:"place_id,omitempty"`
}

func addressFromModel(a *model.Address) *Address {
	if a == nil {
		return nil
	}
	return &Address{Address: a.Address, Lat: a.Lat, Lng: a.Lng, PlaceID: a.PlaceID}
}

// Score is one recorded scorecard cell
type Score struct {
	Hole    int    `json:"hole"`
	UserID  string `json:"user_id"`
	Strokes int    `json:"strokes"`
}

func scoresFromModel(sc model.Scorecard) []Score {
	cells := sc.Cells()
	scores := make([]Score, len(cells))
	for i, c := range cells {
		scores[i] = Score{Hole: c.Hole, UserID: string(c.UserID), Strokes: c.Strokes}
	}
	return scores
}

func userIDs(ids []model.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// Match represents a match in API responses
type Match struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	HostID        string     `json:"host_id"`
	Type          string     `json:"type"`
	Participants  []string   `json:"participants"`
	NumberOfHoles int        `json:"number_of_holes"`
	Location      string     `json:"location,omitempty"`
	LocationName  string     `json:"location_name,omitempty"`
	Address       *Address   `json:"address,omitempty"`
	Status        string     `json:"status"`
	Scores        []Score    `json:"scores"`
	PointsAwarded bool       `json:"points_awarded"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MatchFromModel converts model.Match. Participant emails are not exposed.
func MatchFromModel(m *model.Match) Match {
	return Match{
		ID:            string(m.ID),
		Title:         m.Title,
		Description:   m.Description,
		HostID:        string(m.HostID),
		Type:          string(m.Type),
		Participants:  userIDs(m.Participants),
		NumberOfHoles: m.NumberOfHoles,
		Location:      m.Location,
		LocationName:  m.LocationName,
		Address:       addressFromModel(m.Address),
		Status:        string(m.Status),
		Scores:        scoresFromModel(m.Scores),
		PointsAwarded: m.PointsAwarded,
		ScheduledFor:  m.ScheduledFor,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// MatchesFromModel converts a match listing
func MatchesFromModel(matches []*model.Match) []Match {
	out := make([]Match, len(matches))
	for i, m := range matches {
		out[i] = MatchFromModel(m)
	}
	return out
}

// MatchResult represents an immutable match result
type MatchResult struct {
	ID              string     `json:"id"`
	MatchID         string     `json:"match_id"`
	Title           string     `json:"title"`
	NumberOfHoles   int        `json:"number_of_holes"`
	Participants    []string   `json:"participants"`
	Scores          []Score    `json:"scores"`
	PointsAwarded   bool       `json:"points_awarded"`
	PointsAwardedAt *time.Time `json:"points_awarded_at,omitempty"`
	CompletedAt     time.Time  `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MatchResultFromModel converts model.MatchResult
func MatchResultFromModel(r *model.MatchResult) MatchResult {
	return MatchResult{
		ID:              string(r.ID),
		MatchID:         string(r.MatchID),
		Title:           r.Title,
		NumberOfHoles:   r.NumberOfHoles,
		Participants:    userIDs(r.Participants),
		Scores:          scoresFromModel(r.Scores),
		PointsAwarded:   r.PointsAwarded,
		PointsAwardedAt: r.PointsAwardedAt,
		CompletedAt:     r.CompletedAt,
		CreatedAt:       r.CreatedAt,
	}
}

// MissingScore names a cell that still needs a score
type MissingScore struct {
	Hole   int    `json:"hole"`
	UserID string `json:"user_id"`
}

func missingFromModel(cells []model.ScoreCell) []MissingScore {
	out := make([]MissingScore, len(cells))
	for i, c := range cells {
		out[i] = MissingScore{Hole: c.Hole, UserID: string(c.UserID)}
	}
	return out
}

// EndMatchResponse is the response after ending a match
type EndMatchResponse struct {
	Match   Match          `json:"match"`
	Outcome string         `json:"outcome"`
	Result  *MatchResult   `json:"result,omitempty"`
	Missing []MissingScore `json:"missing,omitempty"`
}

// EndMatchResponseFromModel converts the controller's end result
func EndMatchResponseFromModel(m *model.Match, rec *completion.Reconciliation) EndMatchResponse {
	resp := EndMatchResponse{Match: MatchFromModel(m)}
	if rec == nil {
		return resp
	}
	resp.Outcome = string(rec.Outcome)
	if rec.Result != nil {
		r := MatchResultFromModel(rec.Result)
		resp.Result = &r
	}
	if len(rec.Missing) > 0 {
		resp.Missing = missingFromModel(rec.Missing)
	}
	return resp
}

// LeaderboardRow is one participant's standing
type LeaderboardRow struct {
	Position       int    `json:"position"`
	UserID         string `json:"user_id"`
	Strokes        int    `json:"strokes"`
	HolesScored    int    `json:"holes_scored"`
	HolesRemaining int    `json:"holes_remaining"`
}

// Leaderboard represents a match leaderboard and its scoring progress
type Leaderboard struct {
	MatchID     string           `json:"match_id"`
	Rows        []LeaderboardRow `json:"rows"`
	FullyScored bool             `json:"fully_scored"`
	Missing     []MissingScore   `json:"missing"`
}

// LeaderboardFromModel converts scoring read models
func LeaderboardFromModel(matchID model.MatchID, rows []scoring.ParticipantTotal, progress *scoring.Progress) Leaderboard {
	out := Leaderboard{MatchID: string(matchID), Rows: make([]LeaderboardRow, len(rows))}
	for i, r := range rows {
		out.Rows[i] = LeaderboardRow{
			Position:       r.Position,
			UserID:         string(r.UserID),
			Strokes:        r.Strokes,
			HolesScored:    r.HolesScored,
			HolesRemaining: r.HolesRemaining,
		}
	}
	if progress != nil {
		out.FullyScored = progress.FullyScored
		out.Missing = missingFromModel(progress.Missing)
	}
	return out
}

// Invite is a shareable join link
type Invite struct {
	MatchID string `json:"match_id"`
	Link    string `json:"link"`
}

// User represents a user profile
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Handicap  *float64  `json:"handicap,omitempty"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFromModel converts model.User
func UserFromModel(u *model.User) User {
	return User{
		ID:        string(u.ID),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Handicap:  u.Handicap,
		Points:    u.Points,
		CreatedAt: u.CreatedAt,
	}
}

// Points is a user's balance
type Points struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// LedgerEntry is one points grant
type LedgerEntry struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// PointsHistory lists a user's grants, newest first
type PointsHistory struct {
	UserID  string        `json:"user_id"`
	Entries []LedgerEntry `json:"entries"`
}

// PointsHistoryFromModel converts ledger entries
func PointsHistoryFromModel(user model.UserID, entries []*model.PointsLedgerEntry) PointsHistory {
	out := PointsHistory{UserID: string(user), Entries: make([]LedgerEntry, len(entries))}
	for i, e := range entries {
		out.Entries[i] = LedgerEntry{
			ID:        string(e.ID),
			MatchID:   string(e.MatchID),
			Points:    e.Points,
			Reason:    string(e.Reason),
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}
