package match

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairway/internal/dependencies/mocks"
	"github.com/mcoot/fairway/internal/events"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/completion"
	"github.com/mcoot/fairway/internal/services/scoring"
	"github.com/mcoot/fairway/internal/storage"
	"github.com/mcoot/fairway/internal/storage/memory"
	"github.com/mcoot/fairway/internal/testutil"
)

// resultOutage fails the next n CreateMatchResult calls as a transient store error
type resultOutage struct {
	*memory.Storage
	failures atomic.Int32
}

func (o *resultOutage) CreateMatchResult(ctx context.Context, result *model.MatchResult) error {
	if o.failures.Add(-1) >= 0 {
		return storage.Unavailable(errors.New("connection reset"))
	}
	return o.Storage.CreateMatchResult(ctx, result)
}

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	publisher  *events.Recorder
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	logger := testutil.NopLogger()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.publisher = &events.Recorder{}
	reconciler := completion.NewReconciler(s.storage, scoring.DefaultRules(), nil, s.clock, s.random, logger)
	s.controller = NewController(s.storage, reconciler, s.clock, s.random, s.publisher, logger)
	s.ctx = context.Background()
}

func (s *ControllerSuite) createMatch(holes int) *model.Match {
	m, err := s.controller.CreateMatch(s.ctx, CreateParams{
		HostID:        "alice",
		HostEmail:     "alice@example.com",
		Title:         "Sunday round",
		NumberOfHoles: holes,
	})
	s.Require().NoError(err)
	return m
}

func (s *ControllerSuite) addParticipant(id model.MatchID, user model.UserID) {
	_, err := s.storage.UpdateMatch(s.ctx, id, func(m *model.Match) error {
		m.Participants = append(m.Participants, user)
		return nil
	})
	s.Require().NoError(err)
}

func (s *ControllerSuite) scoreAll(id model.MatchID) {
	m, err := s.storage.GetMatch(s.ctx, id)
	s.Require().NoError(err)
	for hole := 1; hole <= m.NumberOfHoles; hole++ {
		for _, u := range m.Participants {
			s.Require().NoError(s.storage.SetScore(s.ctx, id, model.ScoreCell{Hole: hole, UserID: u, Strokes: 4}, s.clock.Now()))
		}
	}
}

// CreateMatch tests

func (s *ControllerSuite) TestCreateMatchIsPending() {
	s.random.QueueID("m1")

	m := s.createMatch(18)

	s.Equal(model.MatchID("m1"), m.ID)
	s.Equal(model.MatchStatusPending, m.Status)
	s.Equal(model.MatchTypeInvite, m.Type)
	s.Equal([]model.UserID{"alice"}, m.Participants)
	s.Equal("alice@example.com", m.ParticipantEmails["alice"])
	s.Equal(18, m.NumberOfHoles)
	s.False(m.PointsAwarded)
	s.Equal(s.clock.Now(), m.CreatedAt)

	stored, err := s.controller.GetMatch(s.ctx, "m1")
	s.Require().NoError(err)
	s.Equal(m.Title, stored.Title)
}

func (s *ControllerSuite) TestCreateMatchValidatesHoles() {
	for _, holes := range []int{0, 3, 10, 36} {
		_, err := s.controller.CreateMatch(s.ctx, CreateParams{HostID: "alice", Title: "x", NumberOfHoles: holes})
		s.ErrorIs(err, model.ErrInvalidHoles, "holes %d", holes)
		s.ErrorIs(err, model.ErrInvalidInput)
	}
}

func (s *ControllerSuite) TestCreateMatchRequiresTitle() {
	_, err := s.controller.CreateMatch(s.ctx, CreateParams{HostID: "alice", Title: "  ", NumberOfHoles: 9})
	s.ErrorIs(err, model.ErrMissingTitle)
}

// Transition tests

func (s *ControllerSuite) TestStartMatch() {
	m := s.createMatch(9)
	s.clock.Advance(time.Minute)

	started, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)

	s.Equal(model.MatchStatusActive, started.Status)
	s.Require().NotNil(started.StartedAt)
	s.Equal(s.clock.Now(), *started.StartedAt)
	s.Equal([]model.EventType{model.EventMatchStarted}, s.publisher.Types())
}

func (s *ControllerSuite) TestStartMatchByNonHostForbidden() {
	m := s.createMatch(9)
	s.addParticipant(m.ID, "bob")

	_, err := s.controller.StartMatch(s.ctx, m.ID, "bob")
	s.ErrorIs(err, model.ErrNotHost)
	s.ErrorIs(err, model.ErrForbidden)

	stored, _ := s.storage.GetMatch(s.ctx, m.ID)
	s.Equal(model.MatchStatusPending, stored.Status)
}

func (s *ControllerSuite) TestStartActiveMatchIsInvalid() {
	m := s.createMatch(9)
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)

	_, err = s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *ControllerSuite) TestNonHostCheckedBeforeTransition() {
	m := s.createMatch(9)
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)

	// Illegal transition and wrong caller: forbidden wins
	_, err = s.controller.StartMatch(s.ctx, m.ID, "mallory")
	s.ErrorIs(err, model.ErrForbidden)
}

func (s *ControllerSuite) TestTransitionMatchNotFound() {
	_, err := s.controller.StartMatch(s.ctx, "missing", "alice")
	s.ErrorIs(err, model.ErrMatchNotFound)
	_, err = s.controller.EndMatch(s.ctx, "missing", "alice")
	s.ErrorIs(err, model.ErrMatchNotFound)
}

func (s *ControllerSuite) TestEndPendingMatchIsInvalid() {
	m := s.createMatch(9)

	_, err := s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *ControllerSuite) TestEndMatchByNonHostForbidden() {
	m := s.createMatch(9)
	s.addParticipant(m.ID, "bob")
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)

	_, err = s.controller.EndMatch(s.ctx, m.ID, "bob")
	s.ErrorIs(err, model.ErrNotHost)
}

func (s *ControllerSuite) TestEndIncompleteMatch() {
	m := s.createMatch(9)
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.clock.Advance(time.Hour)

	res, err := s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)

	s.Equal(model.MatchStatusCompleted, res.Match.Status)
	s.Require().NotNil(res.Match.CompletedAt)
	s.Equal(s.clock.Now(), *res.Match.CompletedAt)
	s.Equal(completion.OutcomeIncomplete, res.Reconciliation.Outcome)
	s.Len(res.Reconciliation.Missing, 9)

	_, err = s.storage.GetMatchResultForMatch(s.ctx, m.ID)
	s.ErrorIs(err, model.ErrResultNotFound)
}

func (s *ControllerSuite) TestEndFullyScoredMatchCreatesResult() {
	m := s.createMatch(9)
	s.addParticipant(m.ID, "bob")
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.scoreAll(m.ID)
	s.random.QueueID("r1")

	res, err := s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)

	s.Equal(completion.OutcomeResultCreated, res.Reconciliation.Outcome)
	s.Equal(model.ResultID("r1"), res.Reconciliation.Result.ID)

	last := s.publisher.Events()[len(s.publisher.Events())-1]
	s.Equal(model.EventMatchCompleted, last.Type)
	s.Equal(model.MatchCompletedPayload{Outcome: "result_created", ResultID: "r1"}, last.Payload)
}

func (s *ControllerSuite) TestRestartAndEndAgainKeepsOneResult() {
	m := s.createMatch(9)
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.scoreAll(m.ID)
	s.random.QueueID("r1")

	first, err := s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.Equal(completion.OutcomeResultCreated, first.Reconciliation.Outcome)

	restarted, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.Equal(model.MatchStatusActive, restarted.Status)

	second, err := s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.Equal(completion.OutcomeResultExists, second.Reconciliation.Outcome)
	s.Equal(model.ResultID("r1"), second.Reconciliation.Result.ID)
}

func (s *ControllerSuite) TestEndRetriedAfterStoreFailureCreatesResult() {
	store := &resultOutage{Storage: s.storage}
	store.failures.Store(1)
	logger := testutil.NopLogger()
	reconciler := completion.NewReconciler(store, scoring.DefaultRules(), nil, s.clock, s.random, logger)
	s.controller = NewController(store, reconciler, s.clock, s.random, s.publisher, logger)

	m := s.createMatch(9)
	s.addParticipant(m.ID, "bob")
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.scoreAll(m.ID)

	s.random.QueueID("r-lost")
	first, err := s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.ErrorIs(err, model.ErrStoreUnavailable)
	s.Require().NotNil(first)
	s.Equal(model.MatchStatusCompleted, first.Match.Status)

	_, err = s.storage.GetMatchResultForMatch(s.ctx, m.ID)
	s.ErrorIs(err, model.ErrResultNotFound)

	// Retrying the same call finishes the job
	s.random.QueueID("r1")
	retry, err := s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.Equal(model.MatchStatusCompleted, retry.Match.Status)
	s.Equal(completion.OutcomeResultCreated, retry.Reconciliation.Outcome)
	s.Equal(model.ResultID("r1"), retry.Reconciliation.Result.ID)

	// Once the result exists the match cannot be ended again
	_, err = s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *ControllerSuite) TestEndRetryByNonHostForbidden() {
	store := &resultOutage{Storage: s.storage}
	store.failures.Store(1)
	logger := testutil.NopLogger()
	reconciler := completion.NewReconciler(store, scoring.DefaultRules(), nil, s.clock, s.random, logger)
	s.controller = NewController(store, reconciler, s.clock, s.random, s.publisher, logger)

	m := s.createMatch(9)
	s.addParticipant(m.ID, "bob")
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.scoreAll(m.ID)
	_, err = s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.Require().ErrorIs(err, model.ErrStoreUnavailable)

	_, err = s.controller.EndMatch(s.ctx, m.ID, "bob")
	s.ErrorIs(err, model.ErrNotHost)
}

func (s *ControllerSuite) TestEndCompletedMatchIsInvalid() {
	m := s.createMatch(9)
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	_, err = s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)

	_, err = s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *ControllerSuite) TestCancelMatch() {
	m := s.createMatch(9)

	cancelled, err := s.controller.CancelMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	s.Equal(model.MatchStatusCancelled, cancelled.Status)

	// Terminal
	_, err = s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.ErrorIs(err, model.ErrInvalidTransition)
	_, err = s.controller.CancelMatch(s.ctx, m.ID, "alice")
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *ControllerSuite) TestCancelCompletedMatchIsInvalid() {
	m := s.createMatch(9)
	_, err := s.controller.StartMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)
	_, err = s.controller.EndMatch(s.ctx, m.ID, "alice")
	s.Require().NoError(err)

	_, err = s.controller.CancelMatch(s.ctx, m.ID, "alice")
	s.ErrorIs(err, model.ErrInvalidTransition)
}

// EditMatch tests

func (s *ControllerSuite) TestEditMatchUpdatesOnlyGivenFields() {
	m := s.createMatch(9)
	s.addParticipant(m.ID, "bob")
	s.Require().NoError(s.storage.SetScore(s.ctx, m.ID, model.ScoreCell{Hole: 1, UserID: "bob", Strokes: 3}, s.clock.Now()))

	title := "Saturday round"
	at := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	edited, err := s.controller.EditMatch(s.ctx, m.ID, "alice", EditParams{
		Title:        &title,
		Address:      &model.Address{Address: "1 Fairway Dr", Lat: 1.5, Lng: 2.5},
		ScheduledFor: &at,
	})
	s.Require().NoError(err)

	s.Equal("Saturday round", edited.Title)
	s.Equal("1 Fairway Dr", edited.Address.Address)
	s.Equal(at, *edited.ScheduledFor)
	s.Equal([]model.UserID{"alice", "bob"}, edited.Participants)
	s.Equal(1, edited.Scores.Len())
	s.Equal(model.MatchStatusPending, edited.Status)
	s.Equal([]model.EventType{model.EventMatchUpdated}, s.publisher.Types())
}

func (s *ControllerSuite) TestEditMatchByNonHostForbidden() {
	m := s.createMatch(9)
	title := "mine now"

	_, err := s.controller.EditMatch(s.ctx, m.ID, "bob", EditParams{Title: &title})
	s.ErrorIs(err, model.ErrNotHost)
}

func (s *ControllerSuite) TestEditMatchRejectsEmptyTitle() {
	m := s.createMatch(9)
	title := ""

	_, err := s.controller.EditMatch(s.ctx, m.ID, "alice", EditParams{Title: &title})
	s.ErrorIs(err, model.ErrMissingTitle)
}

// Query tests

func (s *ControllerSuite) TestCurrentMatches() {
	s.random.QueueID("pending", "active", "done")
	s.createMatch(9)
	s.clock.Advance(time.Minute)
	active := s.createMatch(9)
	s.clock.Advance(time.Minute)
	done := s.createMatch(9)

	_, err := s.controller.StartMatch(s.ctx, active.ID, "alice")
	s.Require().NoError(err)
	_, err = s.controller.CancelMatch(s.ctx, done.ID, "alice")
	s.Require().NoError(err)

	current, err := s.controller.CurrentMatches(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(current, 2)
	s.Equal(model.MatchID("active"), current[0].ID)
	s.Equal(model.MatchID("pending"), current[1].ID)
}

func (s *ControllerSuite) TestMatchHistoryUnionAndViewerFilter() {
	s.random.QueueID("m1", "m2", "m3")
	s.createMatch(9)
	s.clock.Advance(time.Minute)
	s.createMatch(9)
	s.clock.Advance(time.Minute)

	// bob hosts m3 and alice joins it
	m3, err := s.controller.CreateMatch(s.ctx, CreateParams{HostID: "bob", Title: "Bob's round", NumberOfHoles: 18})
	s.Require().NoError(err)
	s.addParticipant(m3.ID, "alice")
	s.addParticipant("m1", "bob")

	history, err := s.controller.MatchHistory(s.ctx, "alice", "")
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal(model.MatchID("m3"), history[0].ID)
	s.Equal(model.MatchID("m2"), history[1].ID)
	s.Equal(model.MatchID("m1"), history[2].ID)

	// bob sees only the matches he shares with alice
	shared, err := s.controller.MatchHistory(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.Require().Len(shared, 2)
	s.Equal(model.MatchID("m3"), shared[0].ID)
	s.Equal(model.MatchID("m1"), shared[1].ID)

	own, err := s.controller.MatchHistory(s.ctx, "alice", "alice")
	s.Require().NoError(err)
	s.Len(own, 3)
}
