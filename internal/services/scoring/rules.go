package scoring

import (
	"cmp"
	"slices"

	"github.com/mcoot/fairway/internal/model"
)

// Rules decide which scorecard cells count as recorded
type Rules struct {
	// AllowZeroScores makes an explicit 0 count as a recorded score.
	// By default only positive stroke counts do.
	AllowZeroScores bool
}

// DefaultRules returns the rules used when none are configured
func DefaultRules() Rules {
	return Rules{}
}

// Counts reports whether a cell in the given state is a recorded score
func (r Rules) Counts(state model.CellState) bool {
	switch state {
	case model.CellScored:
		return true
	case model.CellZero:
		return r.AllowZeroScores
	default:
		return false
	}
}

// HasScored reports whether user has a recorded score for hole
func (r Rules) HasScored(m *model.Match, hole int, user model.UserID) bool {
	return r.Counts(m.Scores.State(hole, user))
}

// IsFullyScored reports whether every participant has a recorded score for
// every hole. A match with no participants or no holes is never fully scored.
func (r Rules) IsFullyScored(m *model.Match) bool {
	if len(m.Participants) == 0 || m.NumberOfHoles <= 0 {
		return false
	}
	for hole := 1; hole <= m.NumberOfHoles; hole++ {
		for _, user := range m.Participants {
			if !r.HasScored(m, hole, user) {
				return false
			}
		}
	}
	return true
}

// MissingCells lists the cells still lacking a recorded score, ordered by
// hole and then by join order
func (r Rules) MissingCells(m *model.Match) []model.ScoreCell {
	var missing []model.ScoreCell
	for hole := 1; hole <= m.NumberOfHoles; hole++ {
		for _, user := range m.Participants {
			if !r.HasScored(m, hole, user) {
				missing = append(missing, model.ScoreCell{Hole: hole, UserID: user})
			}
		}
	}
	return missing
}

// HolesRemaining returns how many holes user has not yet recorded
func (r Rules) HolesRemaining(m *model.Match, user model.UserID) int {
	remaining := 0
	for hole := 1; hole <= m.NumberOfHoles; hole++ {
		if !r.HasScored(m, hole, user) {
			remaining++
		}
	}
	return remaining
}

// ParticipantTotal is one leaderboard row
type ParticipantTotal struct {
	UserID         model.UserID `json:"userId"`
	Strokes        int          `json:"strokes"`
	HolesScored    int          `json:"holesScored"`
	HolesRemaining int          `json:"holesRemaining"`
	Position       int          `json:"position"`
}

// Leaderboard totals each participant's recorded strokes. Lowest total
// ranks first; equal totals share a position and keep join order.
func (r Rules) Leaderboard(m *model.Match) []ParticipantTotal {
	rows := make([]ParticipantTotal, 0, len(m.Participants))
	for _, user := range m.Participants {
		row := ParticipantTotal{UserID: user}
		for hole := 1; hole <= m.NumberOfHoles; hole++ {
			if !r.HasScored(m, hole, user) {
				continue
			}
			strokes, _ := m.Scores.Get(hole, user)
			row.Strokes += strokes
			row.HolesScored++
		}
		row.HolesRemaining = m.NumberOfHoles - row.HolesScored
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b ParticipantTotal) int {
		return cmp.Compare(a.Strokes, b.Strokes)
	})

	for i := range rows {
		if i > 0 && rows[i].Strokes == rows[i-1].Strokes {
			rows[i].Position = rows[i-1].Position
		} else {
			rows[i].Position = i + 1
		}
	}
	return rows
}
