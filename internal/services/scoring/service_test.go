package scoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairway/internal/dependencies/mocks"
	"github.com/mcoot/fairway/internal/events"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage/memory"
	"github.com/mcoot/fairway/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage   *memory.Storage
	clock     *mocks.MockClock
	publisher *events.Recorder
	service   *Service
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.publisher = &events.Recorder{}
	s.service = New(s.storage, DefaultRules(), s.clock, s.publisher, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) createMatch(participants ...model.UserID) *model.Match {
	m := &model.Match{
		ID:            "m1",
		Title:         "Sunday round",
		HostID:        participants[0],
		Type:          model.MatchTypeInvite,
		Participants:  participants,
		NumberOfHoles: 3,
		Status:        model.MatchStatusActive,
		CreatedAt:     s.clock.Now(),
		UpdatedAt:     s.clock.Now(),
	}
	s.Require().NoError(s.storage.CreateMatch(s.ctx, m))
	return m
}

func (s *ServiceSuite) TestSubmitScoreWritesOwnCell() {
	s.createMatch("alice", "bob")

	s.Require().NoError(s.service.SubmitScore(s.ctx, "m1", 2, "bob", 4))

	m, err := s.storage.GetMatch(s.ctx, "m1")
	s.Require().NoError(err)
	v, ok := m.Scores.Get(2, "bob")
	s.True(ok)
	s.Equal(4, v)
	s.Equal(1, m.Scores.Len())

	s.Equal([]model.EventType{model.EventScoreSubmitted}, s.publisher.Types())
}

func (s *ServiceSuite) TestSubmitScoreOverwritesOwnCell() {
	s.createMatch("alice")

	s.Require().NoError(s.service.SubmitScore(s.ctx, "m1", 1, "alice", 7))
	s.Require().NoError(s.service.SubmitScore(s.ctx, "m1", 1, "alice", 5))

	m, _ := s.storage.GetMatch(s.ctx, "m1")
	v, _ := m.Scores.Get(1, "alice")
	s.Equal(5, v)
}

func (s *ServiceSuite) TestSubmitScoreAcceptsZero() {
	s.createMatch("alice")

	s.Require().NoError(s.service.SubmitScore(s.ctx, "m1", 1, "alice", 0))

	m, _ := s.storage.GetMatch(s.ctx, "m1")
	s.Equal(model.CellZero, m.Scores.State(1, "alice"))
	s.False(s.service.Rules().HasScored(m, 1, "alice"))
}

func (s *ServiceSuite) TestSubmitScoreMatchNotFound() {
	err := s.service.SubmitScore(s.ctx, "missing", 1, "alice", 4)
	s.ErrorIs(err, model.ErrMatchNotFound)
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ServiceSuite) TestSubmitScoreNonParticipantForbidden() {
	s.createMatch("alice")

	err := s.service.SubmitScore(s.ctx, "m1", 1, "mallory", 4)
	s.ErrorIs(err, model.ErrNotParticipant)
	s.ErrorIs(err, model.ErrForbidden)
	s.Empty(s.publisher.Events())
}

func (s *ServiceSuite) TestSubmitScoreForbiddenBeforeRange() {
	s.createMatch("alice")

	// A non-participant with a bad hole is rejected as forbidden
	err := s.service.SubmitScore(s.ctx, "m1", 99, "mallory", -1)
	s.ErrorIs(err, model.ErrForbidden)
}

func (s *ServiceSuite) TestSubmitScoreHoleOutOfRange() {
	s.createMatch("alice")

	for _, hole := range []int{0, -1, 4} {
		err := s.service.SubmitScore(s.ctx, "m1", hole, "alice", 4)
		s.ErrorIs(err, model.ErrInvalidHole, "hole %d", hole)
		s.ErrorIs(err, model.ErrOutOfRange, "hole %d", hole)
	}
}

func (s *ServiceSuite) TestSubmitScoreNegativeValue() {
	s.createMatch("alice")

	err := s.service.SubmitScore(s.ctx, "m1", 1, "alice", -2)
	s.ErrorIs(err, model.ErrNegativeScore)
	s.ErrorIs(err, model.ErrOutOfRange)
}

func (s *ServiceSuite) TestSubmitScoreIgnoresStatus() {
	m := s.createMatch("alice")
	_, err := s.storage.UpdateMatch(s.ctx, m.ID, func(m *model.Match) error {
		m.Status = model.MatchStatusCompleted
		return nil
	})
	s.Require().NoError(err)

	s.NoError(s.service.SubmitScore(s.ctx, "m1", 1, "alice", 4))
}

func (s *ServiceSuite) TestConcurrentSameHoleSubmissions() {
	s.createMatch("alice", "bob")

	var wg sync.WaitGroup
	for i, user := range []model.UserID{"alice", "bob"} {
		wg.Add(1)
		go func(user model.UserID, strokes int) {
			defer wg.Done()
			s.NoError(s.service.SubmitScore(s.ctx, "m1", 1, user, strokes))
		}(user, i+3)
	}
	wg.Wait()

	m, _ := s.storage.GetMatch(s.ctx, "m1")
	a, _ := m.Scores.Get(1, "alice")
	b, _ := m.Scores.Get(1, "bob")
	s.Equal(3, a)
	s.Equal(4, b)
}

func (s *ServiceSuite) TestLeaderboardAndProgress() {
	s.createMatch("alice", "bob")
	for hole := 1; hole <= 3; hole++ {
		s.Require().NoError(s.service.SubmitScore(s.ctx, "m1", hole, "alice", 4))
	}
	s.Require().NoError(s.service.SubmitScore(s.ctx, "m1", 1, "bob", 3))

	board, err := s.service.Leaderboard(s.ctx, "m1")
	s.Require().NoError(err)
	s.Require().Len(board, 2)
	s.Equal(model.UserID("bob"), board[0].UserID)
	s.Equal(2, board[0].HolesRemaining)

	progress, err := s.service.Progress(s.ctx, "m1")
	s.Require().NoError(err)
	s.False(progress.FullyScored)
	s.Len(progress.Missing, 2)
}

func (s *ServiceSuite) TestLeaderboardMatchNotFound() {
	_, err := s.service.Leaderboard(s.ctx, "missing")
	s.ErrorIs(err, model.ErrMatchNotFound)
}
