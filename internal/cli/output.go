package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mcoot/fairway/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	w      io.Writer
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(w io.Writer, format string) *Output {
	return &Output{w: w, format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Match:
		o.printMatch(v)
	case []response.Match:
		o.printMatchList(v)
	case response.EndMatchResponse:
		o.printEndMatch(v)
	case response.Leaderboard:
		o.printLeaderboard(v)
	case response.MatchResult:
		o.printResult(v)
	case response.Invite:
		fmt.Fprintf(o.w, "Invite link: %s\n", v.Link)
	case response.User:
		o.printUser(v)
	case response.Points:
		fmt.Fprintf(o.w, "%s: %d points\n", v.UserID, v.Points)
	case response.PointsHistory:
		o.printPointsHistory(v)
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printMatch(m response.Match) {
	fmt.Fprintf(o.w, "Match: %s (%s)\n", m.Title, m.ID)
	fmt.Fprintf(o.w, "Status: %s\n", m.Status)
	fmt.Fprintf(o.w, "Holes: %d\n", m.NumberOfHoles)
	if m.LocationName != "" {
		fmt.Fprintf(o.w, "Course: %s\n", m.LocationName)
	}
	if m.ScheduledFor != nil {
		fmt.Fprintf(o.w, "Tee time: %s\n", m.ScheduledFor.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(o.w, "Host: %s\n", m.HostID)
	fmt.Fprintf(o.w, "Players (%d): %s\n", len(m.Participants), strings.Join(m.Participants, ", "))
	fmt.Fprintf(o.w, "Scores entered: %d of %d\n", len(m.Scores), m.NumberOfHoles*len(m.Participants))
	if m.PointsAwarded {
		fmt.Fprintln(o.w, "Points awarded")
	}
}

func (o *Output) printMatchList(matches []response.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(o.w, "No matches")
		return
	}
	for _, m := range matches {
		fmt.Fprintf(o.w, "%s  %-9s  %2d holes  %s\n", m.ID, m.Status, m.NumberOfHoles, m.Title)
	}
}

func (o *Output) printEndMatch(e response.EndMatchResponse) {
	fmt.Fprintf(o.w, "Match %s is %s\n", e.Match.ID, e.Match.Status)
	switch {
	case e.Result != nil:
		fmt.Fprintf(o.w, "Result %s (%s)\n", e.Result.ID, e.Outcome)
	case len(e.Missing) > 0:
		fmt.Fprintf(o.w, "No result: %d scores missing\n", len(e.Missing))
		for _, m := range e.Missing {
			fmt.Fprintf(o.w, "  - hole %d: %s\n", m.Hole, m.UserID)
		}
	}
}

func (o *Output) printLeaderboard(l response.Leaderboard) {
	fmt.Fprintf(o.w, "Leaderboard for %s\n", l.MatchID)
	for _, r := range l.Rows {
		fmt.Fprintf(o.w, "  %2d. %-20s %3d  (%d to play)\n", r.Position, r.UserID, r.Strokes, r.HolesRemaining)
	}
	if l.FullyScored {
		fmt.Fprintln(o.w, "All scores in")
	} else {
		fmt.Fprintf(o.w, "%d scores missing\n", len(l.Missing))
	}
}

func (o *Output) printResult(r response.MatchResult) {
	fmt.Fprintf(o.w, "Result: %s for match %s\n", r.ID, r.MatchID)
	fmt.Fprintf(o.w, "Completed: %s\n", r.CompletedAt.Format("2006-01-02 15:04"))
	if r.PointsAwarded {
		fmt.Fprintln(o.w, "Points: awarded")
	} else {
		fmt.Fprintln(o.w, "Points: pending")
	}
}

func (o *Output) printUser(u response.User) {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Email
	}
	fmt.Fprintf(o.w, "User: %s (%s)\n", name, u.ID)
	fmt.Fprintf(o.w, "Email: %s\n", u.Email)
	if u.Handicap != nil {
		fmt.Fprintf(o.w, "Handicap: %.1f\n", *u.Handicap)
	}
	fmt.Fprintf(o.w, "Points: %d\n", u.Points)
}

func (o *Output) printPointsHistory(h response.PointsHistory) {
	if len(h.Entries) == 0 {
		fmt.Fprintf(o.w, "%s has no points yet\n", h.UserID)
		return
	}
	for _, e := range h.Entries {
		fmt.Fprintf(o.w, "%s  +%d  %s (%s)\n", e.CreatedAt.Format("2006-01-02"), e.Points, e.MatchID, e.Reason)
	}
}
