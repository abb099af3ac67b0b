package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/fairway/internal/api/apierr"
	"github.com/mcoot/fairway/internal/api/response"
	"github.com/mcoot/fairway/internal/factory"
	"github.com/mcoot/fairway/internal/model"
)

// testServer wraps the router of a test app
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	return &testServer{
		handler: app.Router(),
		app:     app,
	}
}

func (ts *testServer) token(id string) string {
	return ts.app.Token(model.UserID(id), id+"@example.com")
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apierr.ErrorResponse](t, rr).Error.Code
}

// createActiveMatch creates a match hosted by alice, joined by the others, and starts it
func (ts *testServer) createActiveMatch(t *testing.T, holes int, others ...string) string {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/matches", map[string]any{
		"title":           "Twilight nine",
		"number_of_holes": holes,
	}, ts.token("alice"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := decode[response.Match](t, rr).ID

	for _, user := range others {
		rr = ts.request(http.MethodPost, "/api/v1/matches/"+id+"/join", nil, ts.token(user))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	rr = ts.request(http.MethodPost, "/api/v1/matches/"+id+"/start", nil, ts.token("alice"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return id
}

func (ts *testServer) submit(id string, hole, strokes int, user string) *httptest.ResponseRecorder {
	return ts.request(http.MethodPut, fmt.Sprintf("/api/v1/matches/%s/scores/%d", id, hole),
		map[string]int{"strokes": strokes}, ts.token(user))
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/me/matches", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeUnauthorized, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/me/matches", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token("alice")

	ts.app.MockClock.Advance(48 * time.Hour)
	rr := ts.request(http.MethodGet, "/api/v1/me/matches", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateMatch(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueID("m1")

	rr := ts.request(http.MethodPost, "/api/v1/matches", map[string]any{
		"title":           "  Sunday round  ",
		"number_of_holes": 18,
		"location_name":   "Pebble Beach",
	}, ts.token("alice"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	m := decode[response.Match](t, rr)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "Sunday round", m.Title)
	assert.Equal(t, "alice", m.HostID)
	assert.Equal(t, []string{"alice"}, m.Participants)
	assert.Equal(t, "pending", m.Status)
	assert.Equal(t, "invite", m.Type)
}

func TestCreateMatchValidation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/matches", map[string]any{"title": "x", "number_of_holes": 12}, ts.token("alice"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/matches", map[string]any{"number_of_holes": 9}, ts.token("alice"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLifecycleGuards(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createActiveMatch(t, 9, "bob")

	// Only the host may end
	rr := ts.request(http.MethodPost, "/api/v1/matches/"+id+"/end", nil, ts.token("bob"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotHost, errorCode(t, rr))

	// An active match cannot be started again
	rr = ts.request(http.MethodPost, "/api/v1/matches/"+id+"/start", nil, ts.token("alice"))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeInvalidTransition, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/matches/missing/start", nil, ts.token("alice"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeMatchNotFound, errorCode(t, rr))
}

func TestSubmitScoreGuards(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createActiveMatch(t, 9, "bob")

	rr := ts.submit(id, 1, 4, "mallory")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotParticipant, errorCode(t, rr))

	rr = ts.submit(id, 10, 4, "bob")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeOutOfRange, errorCode(t, rr))

	rr = ts.submit(id, 1, -1, "bob")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeOutOfRange, errorCode(t, rr))

	rr = ts.request(http.MethodPut, "/api/v1/matches/"+id+"/scores/1", map[string]any{}, ts.token("bob"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.submit(id, 1, 4, "bob")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestEndToEndAward(t *testing.T) {
	ts := newTestServer(t)
	for _, user := range []string{"alice", "bob"} {
		rr := ts.request(http.MethodPut, "/api/v1/me", map[string]string{"first_name": user}, ts.token(user))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	id := ts.createActiveMatch(t, 9, "bob")

	for hole := 1; hole <= 9; hole++ {
		require.Equal(t, http.StatusNoContent, ts.submit(id, hole, 4, "alice").Code)
		require.Equal(t, http.StatusNoContent, ts.submit(id, hole, 5, "bob").Code)
	}

	rr := ts.request(http.MethodGet, "/api/v1/matches/"+id+"/leaderboard", nil, ts.token("bob"))
	require.Equal(t, http.StatusOK, rr.Code)
	board := decode[response.Leaderboard](t, rr)
	assert.True(t, board.FullyScored)
	require.Len(t, board.Rows, 2)
	assert.Equal(t, "alice", board.Rows[0].UserID)
	assert.Equal(t, 36, board.Rows[0].Strokes)
	assert.Equal(t, 45, board.Rows[1].Strokes)

	rr = ts.request(http.MethodPost, "/api/v1/matches/"+id+"/end", nil, ts.token("alice"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	end := decode[response.EndMatchResponse](t, rr)
	assert.Equal(t, "result_created", end.Outcome)
	require.NotNil(t, end.Result)
	assert.Equal(t, "completed", end.Match.Status)

	_, err := ts.app.AwardWorker.RunOnce(t.Context())
	require.NoError(t, err)

	rr = ts.request(http.MethodGet, "/api/v1/users/bob/points", nil, ts.token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 10, decode[response.Points](t, rr).Points)

	rr = ts.request(http.MethodGet, "/api/v1/users/bob/points/history", nil, ts.token("bob"))
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[response.PointsHistory](t, rr)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, id, history.Entries[0].MatchID)
	assert.Equal(t, "match_completion", history.Entries[0].Reason)

	rr = ts.request(http.MethodGet, "/api/v1/matches/"+id+"/result", nil, ts.token("bob"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[response.MatchResult](t, rr).PointsAwarded)
}

func TestEndIncompleteReportsMissing(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createActiveMatch(t, 9, "bob")
	require.Equal(t, http.StatusNoContent, ts.submit(id, 1, 4, "alice").Code)

	rr := ts.request(http.MethodPost, "/api/v1/matches/"+id+"/end", nil, ts.token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	end := decode[response.EndMatchResponse](t, rr)
	assert.Equal(t, "incomplete", end.Outcome)
	assert.Nil(t, end.Result)
	assert.Len(t, end.Missing, 17)

	rr = ts.request(http.MethodGet, "/api/v1/matches/"+id+"/result", nil, ts.token("alice"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeResultNotFound, errorCode(t, rr))
}

func TestInviteLinkAndJoin(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueID("m1")
	rr := ts.request(http.MethodPost, "/api/v1/matches", map[string]any{"title": "Scramble", "number_of_holes": 9}, ts.token("alice"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/matches/m1/invite", nil, ts.token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	link := decode[response.Invite](t, rr).Link
	assert.Equal(t, "http://localhost:8080/matches/join/m1", link)

	rr = ts.request(http.MethodPost, "/api/v1/matches/join", map[string]string{"invite": link}, ts.token("bob"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"alice", "bob"}, decode[response.Match](t, rr).Participants)

	// Joining again changes nothing
	rr = ts.request(http.MethodPost, "/api/v1/matches/m1/join", nil, ts.token("bob"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"alice", "bob"}, decode[response.Match](t, rr).Participants)

	rr = ts.request(http.MethodPost, "/api/v1/matches/join", map[string]string{"invite": "https://x.test/other/m1"}, ts.token("bob"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEditAndCancel(t *testing.T) {
	ts := newTestServer(t)
	ts.app.MockRandom.QueueID("m1")
	rr := ts.request(http.MethodPost, "/api/v1/matches", map[string]any{"title": "Old", "number_of_holes": 9}, ts.token("alice"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodPatch, "/api/v1/matches/m1", map[string]string{"title": "New"}, ts.token("bob"))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodPatch, "/api/v1/matches/m1", map[string]string{"title": "New"}, ts.token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "New", decode[response.Match](t, rr).Title)

	rr = ts.request(http.MethodPost, "/api/v1/matches/m1/cancel", nil, ts.token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cancelled", decode[response.Match](t, rr).Status)

	rr = ts.request(http.MethodPost, "/api/v1/matches/m1/start", nil, ts.token("alice"))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCurrentAndHistory(t *testing.T) {
	ts := newTestServer(t)
	shared := ts.createActiveMatch(t, 9, "bob")
	ts.app.MockClock.Advance(time.Minute)
	private := ts.createActiveMatch(t, 9, "carol")

	rr := ts.request(http.MethodGet, "/api/v1/me/matches", nil, ts.token("alice"))
	require.Equal(t, http.StatusOK, rr.Code)
	current := decode[[]response.Match](t, rr)
	require.Len(t, current, 2)
	assert.Equal(t, private, current[0].ID)

	// bob only sees the match he shared with alice
	rr = ts.request(http.MethodGet, "/api/v1/users/alice/matches", nil, ts.token("bob"))
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[[]response.Match](t, rr)
	require.Len(t, history, 1)
	assert.Equal(t, shared, history[0].ID)
}

func TestMeRequiresRegistration(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/me", nil, ts.token("alice"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeUserNotFound, errorCode(t, rr))

	rr = ts.request(http.MethodPut, "/api/v1/me", map[string]any{"first_name": "Alice", "handicap": 12.4}, ts.token("alice"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	u := decode[response.User](t, rr)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice", u.FirstName)
	require.NotNil(t, u.Handicap)
	assert.InDelta(t, 12.4, *u.Handicap, 0.001)
}

func TestEventsRequireParticipant(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createActiveMatch(t, 9)

	rr := ts.request(http.MethodGet, "/api/v1/matches/"+id+"/events", nil, ts.token("mallory"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotParticipant, errorCode(t, rr))
}
