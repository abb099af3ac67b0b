// Package storagetest holds the behaviour every storage backend must share.
// Backend packages embed Suite in their own test suites.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

// Suite runs the shared storage contract against a backend
type Suite struct {
	suite.Suite
	Backend storage.Backend
	Ctx     context.Context

	// Now is the base time used for fixtures
	Now time.Time
}

// NewMatch builds a pending match fixture
func (s *Suite) NewMatch(id model.MatchID, host model.UserID, holes int, createdAt time.Time) *model.Match {
	return &model.Match{
		ID:                id,
		Title:             "Sunday " + string(id),
		HostID:            host,
		Type:              model.MatchTypeInvite,
		Participants:      []model.UserID{host},
		ParticipantEmails: map[model.UserID]string{host: string(host) + "@example.com"},
		NumberOfHoles:     holes,
		Status:            model.MatchStatusPending,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

func (s *Suite) saveUser(id model.UserID) {
	_, err := s.Backend.SaveUserProfile(s.Ctx, &model.User{
		ID:        id,
		Email:     string(id) + "@example.com",
		CreatedAt: s.Now,
		UpdatedAt: s.Now,
	})
	s.Require().NoError(err)
}

func (s *Suite) newResult(id model.ResultID, matchID model.MatchID, createdAt time.Time) *model.MatchResult {
	return &model.MatchResult{
		ID:            id,
		MatchID:       matchID,
		Title:         "Sunday " + string(matchID),
		NumberOfHoles: 9,
		Participants:  []model.UserID{"alice", "bob"},
		Scores:        model.NewScorecard(model.ScoreCell{Hole: 1, UserID: "alice", Strokes: 4}),
		CompletedAt:   createdAt,
		CreatedAt:     createdAt,
	}
}

// User tests

func (s *Suite) TestSaveAndGetUser() {
	s.saveUser("alice")

	user, err := s.Backend.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice@example.com", user.Email)
	s.Equal(0, user.Points)
}

func (s *Suite) TestGetUserNotFound() {
	_, err := s.Backend.GetUser(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *Suite) TestSaveUserProfilePreservesPoints() {
	s.saveUser("alice")
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))
	s.Require().NoError(s.Backend.AwardPoints(s.Ctx, &model.PointsLedgerEntry{
		ID: "e1", UserID: "alice", MatchID: "m1", Points: 10,
		Reason: model.PointsReasonMatchCompletion, CreatedAt: s.Now,
	}))

	saved, err := s.Backend.SaveUserProfile(s.Ctx, &model.User{
		ID:        "alice",
		Email:     "alice@new.example.com",
		FirstName: "Alice",
		CreatedAt: s.Now.Add(time.Hour),
		UpdatedAt: s.Now.Add(time.Hour),
	})
	s.Require().NoError(err)
	s.Equal(10, saved.Points)

	user, err := s.Backend.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(10, user.Points)
	s.Equal("Alice", user.FirstName)
	s.Equal("alice@new.example.com", user.Email)
	s.True(user.CreatedAt.Equal(s.Now))
}

// Match tests

func (s *Suite) TestCreateAndGetMatch() {
	m := s.NewMatch("m1", "alice", 18, s.Now)
	m.Address = &model.Address{Address: "1 Links Rd", Lat: 1.5, Lng: -2.5, PlaceID: "p1"}
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, m))

	got, err := s.Backend.GetMatch(s.Ctx, "m1")
	s.Require().NoError(err)
	s.Equal(model.MatchID("m1"), got.ID)
	s.Equal([]model.UserID{"alice"}, got.Participants)
	s.Equal("alice@example.com", got.ParticipantEmails["alice"])
	s.Equal(18, got.NumberOfHoles)
	s.Equal(model.MatchStatusPending, got.Status)
	s.Require().NotNil(got.Address)
	s.Equal("p1", got.Address.PlaceID)
	s.Equal(0, got.Scores.Len())
}

func (s *Suite) TestGetMatchNotFound() {
	_, err := s.Backend.GetMatch(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrMatchNotFound)
}

func (s *Suite) TestUpdateMatch() {
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))

	updated, err := s.Backend.UpdateMatch(s.Ctx, "m1", func(m *model.Match) error {
		m.Status = model.MatchStatusActive
		m.Participants = append(m.Participants, "bob")
		m.ParticipantEmails["bob"] = "bob@example.com"
		return nil
	})
	s.Require().NoError(err)
	s.Equal(model.MatchStatusActive, updated.Status)

	got, err := s.Backend.GetMatch(s.Ctx, "m1")
	s.Require().NoError(err)
	s.Equal(model.MatchStatusActive, got.Status)
	s.Equal([]model.UserID{"alice", "bob"}, got.Participants)
	s.Equal("bob@example.com", got.ParticipantEmails["bob"])
}

func (s *Suite) TestUpdateMatchErrorLeavesMatchUntouched() {
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))
	boom := errors.New("boom")

	_, err := s.Backend.UpdateMatch(s.Ctx, "m1", func(m *model.Match) error {
		m.Status = model.MatchStatusActive
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.Backend.GetMatch(s.Ctx, "m1")
	s.Require().NoError(err)
	s.Equal(model.MatchStatusPending, got.Status)
}

func (s *Suite) TestUpdateMatchSkipWrite() {
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))

	got, err := s.Backend.UpdateMatch(s.Ctx, "m1", func(m *model.Match) error {
		m.Title = "changed"
		return storage.ErrSkipWrite
	})
	s.Require().NoError(err)
	s.Equal("Sunday m1", got.Title)
}

func (s *Suite) TestUpdateMatchNotFound() {
	_, err := s.Backend.UpdateMatch(s.Ctx, "missing", func(m *model.Match) error { return nil })
	s.ErrorIs(err, model.ErrMatchNotFound)
}

func (s *Suite) TestUpdateMatchNeverTouchesScores() {
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))
	s.Require().NoError(s.Backend.SetScore(s.Ctx, "m1", model.ScoreCell{Hole: 1, UserID: "alice", Strokes: 4}, s.Now))

	_, err := s.Backend.UpdateMatch(s.Ctx, "m1", func(m *model.Match) error {
		m.Scores = model.Scorecard{}
		m.Title = "renamed"
		return nil
	})
	s.Require().NoError(err)

	got, err := s.Backend.GetMatch(s.Ctx, "m1")
	s.Require().NoError(err)
	strokes, ok := got.Scores.Get(1, "alice")
	s.True(ok)
	s.Equal(4, strokes)
	s.Equal("renamed", got.Title)
}

// Score tests

func (s *Suite) TestSetScoreTargetsSingleCell() {
	m := s.NewMatch("m1", "alice", 9, s.Now)
	m.Participants = append(m.Participants, "bob")
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, m))

	s.Require().NoError(s.Backend.SetScore(s.Ctx, "m1", model.ScoreCell{Hole: 1, UserID: "alice", Strokes: 4}, s.Now))
	s.Require().NoError(s.Backend.SetScore(s.Ctx, "m1", model.ScoreCell{Hole: 1, UserID: "bob", Strokes: 5}, s.Now))
	s.Require().NoError(s.Backend.SetScore(s.Ctx, "m1", model.ScoreCell{Hole: 2, UserID: "alice", Strokes: 0}, s.Now))
	s.Require().NoError(s.Backend.SetScore(s.Ctx, "m1", model.ScoreCell{Hole: 1, UserID: "alice", Strokes: 3}, s.Now.Add(time.Minute)))

	got, err := s.Backend.GetMatch(s.Ctx, "m1")
	s.Require().NoError(err)
	s.Equal([]model.ScoreCell{
		{Hole: 1, UserID: "alice", Strokes: 3},
		{Hole: 1, UserID: "bob", Strokes: 5},
		{Hole: 2, UserID: "alice", Strokes: 0},
	}, got.Scores.Cells())
	s.Equal(model.CellZero, got.Scores.State(2, "alice"))
	s.Equal(model.CellUnset, got.Scores.State(2, "bob"))
	s.True(got.UpdatedAt.Equal(s.Now.Add(time.Minute)))
}

func (s *Suite) TestSetScoreMatchNotFound() {
	err := s.Backend.SetScore(s.Ctx, "missing", model.ScoreCell{Hole: 1, UserID: "alice", Strokes: 4}, s.Now)
	s.ErrorIs(err, model.ErrMatchNotFound)
}

func (s *Suite) TestConcurrentSetScoreSameHole() {
	m := s.NewMatch("m1", "host", 18, s.Now)
	const players = 8
	for i := 0; i < players; i++ {
		m.Participants = append(m.Participants, model.UserID(fmt.Sprintf("p%d", i)))
	}
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, m))

	var wg sync.WaitGroup
	errs := make(chan error, players)
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cell := model.ScoreCell{Hole: 7, UserID: model.UserID(fmt.Sprintf("p%d", i)), Strokes: i + 1}
			errs <- s.Backend.SetScore(s.Ctx, "m1", cell, s.Now)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	got, err := s.Backend.GetMatch(s.Ctx, "m1")
	s.Require().NoError(err)
	for i := 0; i < players; i++ {
		strokes, ok := got.Scores.Get(7, model.UserID(fmt.Sprintf("p%d", i)))
		s.True(ok)
		s.Equal(i+1, strokes)
	}
}

func (s *Suite) TestConcurrentSetScoreAndUpdateMatch() {
	m := s.NewMatch("m1", "alice", 9, s.Now)
	m.Participants = append(m.Participants, "bob")
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, m))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for hole := 1; hole <= 9; hole++ {
			s.NoError(s.Backend.SetScore(s.Ctx, "m1", model.ScoreCell{Hole: hole, UserID: "bob", Strokes: 4}, s.Now))
		}
	}()
	go func() {
		defer wg.Done()
		_, err := s.Backend.UpdateMatch(s.Ctx, "m1", func(m *model.Match) error {
			m.Status = model.MatchStatusActive
			return nil
		})
		s.NoError(err)
	}()
	wg.Wait()

	got, err := s.Backend.GetMatch(s.Ctx, "m1")
	s.Require().NoError(err)
	s.Equal(model.MatchStatusActive, got.Status)
	s.Equal(9, got.Scores.Len())
}

// Listing tests

func (s *Suite) TestListMatches() {
	m1 := s.NewMatch("m1", "alice", 9, s.Now)
	m1.Participants = append(m1.Participants, "bob")
	m2 := s.NewMatch("m2", "bob", 9, s.Now.Add(time.Hour))
	m3 := s.NewMatch("m3", "alice", 18, s.Now.Add(2*time.Hour))
	m3.Status = model.MatchStatusCompleted
	for _, m := range []*model.Match{m1, m2, m3} {
		s.Require().NoError(s.Backend.CreateMatch(s.Ctx, m))
	}
	s.Require().NoError(s.Backend.SetScore(s.Ctx, "m1", model.ScoreCell{Hole: 1, UserID: "bob", Strokes: 3}, s.Now))

	byBob, err := s.Backend.ListMatches(s.Ctx, model.MatchFilter{Participant: "bob"})
	s.Require().NoError(err)
	s.Equal([]model.MatchID{"m2", "m1"}, matchIDs(byBob))
	s.Equal(1, byBob[1].Scores.Len())

	byAlice, err := s.Backend.ListMatches(s.Ctx, model.MatchFilter{Host: "alice"})
	s.Require().NoError(err)
	s.Equal([]model.MatchID{"m3", "m1"}, matchIDs(byAlice))

	open, err := s.Backend.ListMatches(s.Ctx, model.MatchFilter{
		Participant: "alice",
		Statuses:    []model.MatchStatus{model.MatchStatusPending, model.MatchStatusActive},
	})
	s.Require().NoError(err)
	s.Equal([]model.MatchID{"m1"}, matchIDs(open))

	all, err := s.Backend.ListMatches(s.Ctx, model.MatchFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *Suite) TestListMatchesFollowsJoins() {
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))
	_, err := s.Backend.UpdateMatch(s.Ctx, "m1", func(m *model.Match) error {
		m.Participants = append(m.Participants, "carol")
		return nil
	})
	s.Require().NoError(err)

	got, err := s.Backend.ListMatches(s.Ctx, model.MatchFilter{Participant: "carol"})
	s.Require().NoError(err)
	s.Equal([]model.MatchID{"m1"}, matchIDs(got))
}

// Result tests

func (s *Suite) TestCreateMatchResultOncePerMatch() {
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))
	s.Require().NoError(s.Backend.CreateMatchResult(s.Ctx, s.newResult("r1", "m1", s.Now)))

	err := s.Backend.CreateMatchResult(s.Ctx, s.newResult("r2", "m1", s.Now))
	s.ErrorIs(err, model.ErrResultExists)

	got, err := s.Backend.GetMatchResultForMatch(s.Ctx, "m1")
	s.Require().NoError(err)
	s.Equal(model.ResultID("r1"), got.ID)
	s.False(got.PointsAwarded)
	strokes, ok := got.Scores.Get(1, "alice")
	s.True(ok)
	s.Equal(4, strokes)

	_, err = s.Backend.GetMatchResult(s.Ctx, "r2")
	s.ErrorIs(err, model.ErrResultNotFound)
}

func (s *Suite) TestConcurrentCreateMatchResult() {
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))

	const attempts = 6
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Backend.CreateMatchResult(s.Ctx, s.newResult(model.ResultID(fmt.Sprintf("r%d", i)), "m1", s.Now))
		}(i)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		s.ErrorIs(err, model.ErrResultExists)
	}
	s.Equal(1, created)

	events, err := s.Backend.ReadResultEvents(s.Ctx, "test", 10)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *Suite) TestGetMatchResultNotFound() {
	_, err := s.Backend.GetMatchResult(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrResultNotFound)
	_, err = s.Backend.GetMatchResultForMatch(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrResultNotFound)
}

func (s *Suite) TestMarkPointsAwardedIsIdempotent() {
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))
	s.Require().NoError(s.Backend.CreateMatchResult(s.Ctx, s.newResult("r1", "m1", s.Now)))

	first := s.Now.Add(time.Minute)
	s.Require().NoError(s.Backend.MarkPointsAwarded(s.Ctx, "r1", first))
	s.Require().NoError(s.Backend.MarkPointsAwarded(s.Ctx, "r1", first.Add(time.Hour)))

	result, err := s.Backend.GetMatchResult(s.Ctx, "r1")
	s.Require().NoError(err)
	s.True(result.PointsAwarded)
	s.Require().NotNil(result.PointsAwardedAt)
	s.True(result.PointsAwardedAt.Equal(first))

	m, err := s.Backend.GetMatch(s.Ctx, "m1")
	s.Require().NoError(err)
	s.True(m.PointsAwarded)
}

func (s *Suite) TestMarkPointsAwardedNotFound() {
	err := s.Backend.MarkPointsAwarded(s.Ctx, "missing", s.Now)
	s.ErrorIs(err, model.ErrResultNotFound)
}

func (s *Suite) TestListUnawardedResults() {
	for i, id := range []model.MatchID{"m1", "m2", "m3"} {
		s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch(id, "alice", 9, s.Now)))
		rid := model.ResultID("r" + string(id))
		s.Require().NoError(s.Backend.CreateMatchResult(s.Ctx, s.newResult(rid, id, s.Now.Add(time.Duration(i)*time.Minute))))
	}
	s.Require().NoError(s.Backend.MarkPointsAwarded(s.Ctx, "rm1", s.Now))

	got, err := s.Backend.ListUnawardedResults(s.Ctx, s.Now.Add(90*time.Second))
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(model.ResultID("rm2"), got[0].ID)
}

// Points ledger tests

func (s *Suite) TestAwardPoints() {
	s.saveUser("alice")
	entry := &model.PointsLedgerEntry{
		ID: "e1", UserID: "alice", MatchID: "m1", Points: 10,
		Reason: model.PointsReasonMatchCompletion, CreatedAt: s.Now,
	}
	s.Require().NoError(s.Backend.AwardPoints(s.Ctx, entry))

	user, err := s.Backend.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(10, user.Points)

	got, err := s.Backend.GetLedgerEntry(s.Ctx, "alice", "m1")
	s.Require().NoError(err)
	s.Equal(model.LedgerEntryID("e1"), got.ID)
	s.Equal(model.PointsReasonMatchCompletion, got.Reason)
}

func (s *Suite) TestAwardPointsOncePerUserAndMatch() {
	s.saveUser("alice")
	entry := &model.PointsLedgerEntry{ID: "e1", UserID: "alice", MatchID: "m1", Points: 10, CreatedAt: s.Now}
	s.Require().NoError(s.Backend.AwardPoints(s.Ctx, entry))

	again := &model.PointsLedgerEntry{ID: "e2", UserID: "alice", MatchID: "m1", Points: 10, CreatedAt: s.Now}
	s.ErrorIs(s.Backend.AwardPoints(s.Ctx, again), model.ErrAlreadyAwarded)

	user, err := s.Backend.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(10, user.Points)
}

func (s *Suite) TestAwardPointsUserNotFound() {
	entry := &model.PointsLedgerEntry{ID: "e1", UserID: "ghost", MatchID: "m1", Points: 10, CreatedAt: s.Now}
	s.ErrorIs(s.Backend.AwardPoints(s.Ctx, entry), model.ErrUserNotFound)

	_, err := s.Backend.GetLedgerEntry(s.Ctx, "ghost", "m1")
	s.ErrorIs(err, model.ErrLedgerEntryNotFound)
}

func (s *Suite) TestConcurrentAwardsForDifferentMatches() {
	s.saveUser("alice")
	const matches = 10
	var wg sync.WaitGroup
	for i := 0; i < matches; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := &model.PointsLedgerEntry{
				ID:        model.LedgerEntryID(fmt.Sprintf("e%d", i)),
				UserID:    "alice",
				MatchID:   model.MatchID(fmt.Sprintf("m%d", i)),
				Points:    10,
				CreatedAt: s.Now,
			}
			s.NoError(s.Backend.AwardPoints(s.Ctx, entry))
		}(i)
	}
	wg.Wait()

	user, err := s.Backend.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(matches*10, user.Points)
}

func (s *Suite) TestListLedgerEntriesNewestFirst() {
	s.saveUser("alice")
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.Backend.AwardPoints(s.Ctx, &model.PointsLedgerEntry{
			ID:        model.LedgerEntryID(fmt.Sprintf("e%d", i)),
			UserID:    "alice",
			MatchID:   model.MatchID(fmt.Sprintf("m%d", i)),
			Points:    10,
			CreatedAt: s.Now.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.Backend.ListLedgerEntries(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal(model.LedgerEntryID("e2"), entries[0].ID)
	s.Equal(model.LedgerEntryID("e0"), entries[2].ID)

	none, err := s.Backend.ListLedgerEntries(s.Ctx, "bob")
	s.Require().NoError(err)
	s.Empty(none)
}

// Feed tests

func (s *Suite) TestResultFeedDeliversAndAcks() {
	s.Require().NoError(s.Backend.CreateMatch(s.Ctx, s.NewMatch("m1", "alice", 9, s.Now)))
	s.Require().NoError(s.Backend.CreateMatchResult(s.Ctx, s.newResult("r1", "m1", s.Now)))

	events, err := s.Backend.ReadResultEvents(s.Ctx, "worker-1", 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(model.ResultID("r1"), events[0].ResultID)
	s.Equal(model.MatchID("m1"), events[0].MatchID)

	s.Require().NoError(s.Backend.AckResultEvent(s.Ctx, events[0]))

	events, err = s.Backend.ReadResultEvents(s.Ctx, "worker-1", 10)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *Suite) TestResultFeedEmpty() {
	events, err := s.Backend.ReadResultEvents(s.Ctx, "worker-1", 10)
	s.Require().NoError(err)
	s.Empty(events)
}

func matchIDs(matches []*model.Match) []model.MatchID {
	ids := make([]model.MatchID, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids
}
