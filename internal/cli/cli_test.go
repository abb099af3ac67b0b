package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/fairway/internal/api/response"
)

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		"event: connected",
		`data: {"match_id":"m1"}`,
		"",
		": keepalive",
		"",
		"event: score-submitted",
		`data: {"hole":3,`,
		`data: "strokes":4}`,
		"",
		"data: orphaned",
		"",
	}, "\n")

	type got struct{ event, data string }
	var events []got
	err := readEvents(strings.NewReader(stream), func(event, data string) {
		events = append(events, got{event, data})
	})
	require.NoError(t, err)

	assert.Equal(t, []got{
		{"connected", `{"match_id":"m1"}`},
		{"score-submitted", "{\"hole\":3,\n\"strokes\":4}"},
	}, events)
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	NewOutput(&buf, "json").Print(response.Points{UserID: "alice", Points: 30})
	assert.JSONEq(t, `{"user_id":"alice","points":30}`, buf.String())

	buf.Reset()
	NewOutput(&buf, "json").PrintMessage("done")
	assert.JSONEq(t, `{"message":"done"}`, buf.String())
}

func TestOutputTextEndMatch(t *testing.T) {
	var buf bytes.Buffer
	NewOutput(&buf, "text").Print(response.EndMatchResponse{
		Match:   response.Match{ID: "m1", Status: "completed"},
		Missing: []response.MissingScore{{Hole: 18, UserID: "bob"}},
	})

	out := buf.String()
	assert.Contains(t, out, "Match m1 is completed")
	assert.Contains(t, out, "1 scores missing")
	assert.Contains(t, out, "hole 18: bob")
}

func TestOutputTextLeaderboard(t *testing.T) {
	var buf bytes.Buffer
	NewOutput(&buf, "text").Print(response.Leaderboard{
		MatchID: "m1",
		Rows: []response.LeaderboardRow{
			{Position: 1, UserID: "alice", Strokes: 36},
			{Position: 2, UserID: "bob", Strokes: 40, HolesRemaining: 1},
		},
		Missing: []response.MissingScore{{Hole: 9, UserID: "bob"}},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "alice")
	assert.Contains(t, lines[2], "(1 to play)")
	assert.Equal(t, "1 scores missing", lines[3])
}

func TestOutputUnknownFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	NewOutput(&buf, "text").Print(map[string]string{"token": "abc"})
	assert.JSONEq(t, `{"token":"abc"}`, buf.String())
}

func TestParseScheduled(t *testing.T) {
	at, err := parseScheduled("2024-06-01T07:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 7, at.Hour())

	_, err = parseScheduled("2024-06-01 07:30")
	assert.NoError(t, err)

	_, err = parseScheduled("next saturday")
	assert.Error(t, err)
}
