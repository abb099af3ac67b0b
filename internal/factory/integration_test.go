package factory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/completion"
	"github.com/mcoot/fairway/internal/services/match"
	"github.com/mcoot/fairway/internal/services/user"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *IntegrationSuite) register(ids ...model.UserID) {
	for _, id := range ids {
		_, err := s.app.UserService.Register(s.ctx, id, user.Profile{Email: string(id) + "@example.com"})
		s.Require().NoError(err)
	}
}

// startMatch creates an active match hosted by the first user and joined by the rest
func (s *IntegrationSuite) startMatch(id model.MatchID, holes int, players ...model.UserID) {
	s.app.MockRandom.QueueID(string(id))
	_, err := s.app.MatchController.CreateMatch(s.ctx, match.CreateParams{
		HostID:        players[0],
		HostEmail:     string(players[0]) + "@example.com",
		Title:         "Saturday skins",
		NumberOfHoles: holes,
	})
	s.Require().NoError(err)
	for _, p := range players[1:] {
		_, err := s.app.InviteService.JoinWithInvite(s.ctx, id, p, string(p)+"@example.com")
		s.Require().NoError(err)
	}
	_, err = s.app.MatchController.StartMatch(s.ctx, id, players[0])
	s.Require().NoError(err)
}

func (s *IntegrationSuite) scoreAll(id model.MatchID, holes int, players ...model.UserID) {
	for hole := 1; hole <= holes; hole++ {
		for _, p := range players {
			s.Require().NoError(s.app.ScoringService.SubmitScore(s.ctx, id, hole, p, 4))
		}
	}
}

func (s *IntegrationSuite) points(id model.UserID) int {
	balance, err := s.app.PointsService.GetUserPoints(s.ctx, id)
	s.Require().NoError(err)
	return balance
}

// Test: 18 holes, three players, awarded through the result feed
func (s *IntegrationSuite) TestEighteenHoleMatchAwardsEveryPlayerOnce() {
	players := []model.UserID{"alice", "bob", "carol"}
	s.register(players...)
	s.startMatch("m1", model.EighteenHoles, players...)

	// Each player enters their own card concurrently
	var wg sync.WaitGroup
	for _, p := range players {
		wg.Add(1)
		go func(p model.UserID) {
			defer wg.Done()
			for hole := 1; hole <= model.EighteenHoles; hole++ {
				s.NoError(s.app.ScoringService.SubmitScore(s.ctx, "m1", hole, p, 3+hole%3))
			}
		}(p)
	}
	wg.Wait()

	s.app.MockRandom.QueueID("r1")
	end, err := s.app.MatchController.EndMatch(s.ctx, "m1", "alice")
	s.Require().NoError(err)
	s.Equal(completion.OutcomeResultCreated, end.Reconciliation.Outcome)
	s.Equal(model.ResultID("r1"), end.Reconciliation.Result.ID)
	s.Equal(54, end.Reconciliation.Result.Scores.Len())

	acked, err := s.app.AwardWorker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, acked)

	for _, p := range players {
		s.Equal(10, s.points(p))
		received, err := s.app.PointsService.HasReceivedPointsForMatch(s.ctx, p, "m1")
		s.Require().NoError(err)
		s.True(received)
	}

	m, err := s.app.MatchController.GetMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.True(m.PointsAwarded)

	result, err := s.app.Reconciler.ResultForMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.True(result.PointsAwarded)
	s.NotNil(result.PointsAwardedAt)

	s.Contains(s.app.Events.Types(), model.EventPointsAwarded)
}

// Test: a restart and second end never produce a second result or award
func (s *IntegrationSuite) TestRestartAndEndAgainIsNoOp() {
	s.register("alice", "bob")
	s.startMatch("m1", model.NineHoles, "alice", "bob")
	s.scoreAll("m1", model.NineHoles, "alice", "bob")

	first, err := s.app.MatchController.EndMatch(s.ctx, "m1", "alice")
	s.Require().NoError(err)
	_, err = s.app.AwardWorker.RunOnce(s.ctx)
	s.Require().NoError(err)

	_, err = s.app.MatchController.StartMatch(s.ctx, "m1", "alice")
	s.Require().NoError(err)
	second, err := s.app.MatchController.EndMatch(s.ctx, "m1", "alice")
	s.Require().NoError(err)

	s.Equal(completion.OutcomeResultExists, second.Reconciliation.Outcome)
	s.Equal(first.Reconciliation.Result.ID, second.Reconciliation.Result.ID)

	acked, err := s.app.AwardWorker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(acked)
	s.Equal(10, s.points("alice"))
	s.Equal(10, s.points("bob"))

	history, err := s.app.PointsService.History(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(history, 1)
}

// Test: processing the same result repeatedly awards once
func (s *IntegrationSuite) TestRedeliveredResultDoesNotDoubleAward() {
	s.register("alice", "bob")
	s.startMatch("m1", model.NineHoles, "alice", "bob")
	s.scoreAll("m1", model.NineHoles, "alice", "bob")
	end, err := s.app.MatchController.EndMatch(s.ctx, "m1", "alice")
	s.Require().NoError(err)
	resultID := end.Reconciliation.Result.ID

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.app.PointsProcessor.ProcessResult(s.ctx, resultID)
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(10, s.points("alice"))
	s.Equal(10, s.points("bob"))
}

// Test: a missing score leaves the match completed with no result
func (s *IntegrationSuite) TestIncompleteMatchNeverAwards() {
	s.register("alice", "bob")
	s.startMatch("m1", model.NineHoles, "alice", "bob")
	s.scoreAll("m1", model.NineHoles, "alice")
	s.Require().NoError(s.app.ScoringService.SubmitScore(s.ctx, "m1", 1, "bob", 5))

	end, err := s.app.MatchController.EndMatch(s.ctx, "m1", "alice")
	s.Require().NoError(err)
	s.Equal(completion.OutcomeIncomplete, end.Reconciliation.Outcome)
	s.Len(end.Reconciliation.Missing, 8)
	s.Equal(model.MatchStatusCompleted, end.Match.Status)

	_, err = s.app.Reconciler.ResultForMatch(s.ctx, "m1")
	s.ErrorIs(err, model.ErrNotFound)

	acked, err := s.app.AwardWorker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Zero(acked)
	s.Zero(s.points("alice"))
}

// Test: an unregistered participant is skipped and the rest are still paid
func (s *IntegrationSuite) TestUnregisteredParticipantIsSkipped() {
	s.register("alice")
	s.startMatch("m1", model.NineHoles, "alice", "ghost")
	s.scoreAll("m1", model.NineHoles, "alice", "ghost")

	_, err := s.app.MatchController.EndMatch(s.ctx, "m1", "alice")
	s.Require().NoError(err)
	_, err = s.app.AwardWorker.RunOnce(s.ctx)
	s.Require().NoError(err)

	s.Equal(10, s.points("alice"))
	s.Zero(s.points("ghost"))
}

// Test: the sweep pays results whose feed event was never consumed
func (s *IntegrationSuite) TestSweepPaysStrandedResult() {
	s.register("alice", "bob")
	s.startMatch("m1", model.NineHoles, "alice", "bob")
	s.scoreAll("m1", model.NineHoles, "alice", "bob")
	_, err := s.app.MatchController.EndMatch(s.ctx, "m1", "alice")
	s.Require().NoError(err)

	s.app.MockClock.Advance(s.app.cfg.Workers.SweepGrace + 1)
	awarded, err := s.app.Sweeper.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, awarded)
	s.Equal(10, s.points("bob"))

	// The feed event is still delivered, and acked without a second grant
	acked, err := s.app.AwardWorker.RunOnce(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, acked)
	s.Equal(10, s.points("bob"))
}

// Test: only the host drives the lifecycle
func (s *IntegrationSuite) TestNonHostCannotEnd() {
	s.register("alice", "bob")
	s.startMatch("m1", model.NineHoles, "alice", "bob")

	_, err := s.app.MatchController.EndMatch(s.ctx, "m1", "bob")
	s.ErrorIs(err, model.ErrNotHost)

	m, err := s.app.MatchController.GetMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.Equal(model.MatchStatusActive, m.Status)
}
