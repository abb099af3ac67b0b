package completion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/fairway/internal/dependencies/mocks"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/scoring"
	"github.com/mcoot/fairway/internal/storage/memory"
	"github.com/mcoot/fairway/internal/testutil"
)

type recordingArchiver struct {
	mu       sync.Mutex
	archived []model.ResultID
	err      error
}

func (a *recordingArchiver) ArchiveResult(_ context.Context, result *model.MatchResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, result.ID)
	return a.err
}

type ReconcilerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	archiver   *recordingArchiver
	reconciler *Reconciler
	ctx        context.Context
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.archiver = &recordingArchiver{}
	s.reconciler = NewReconciler(s.storage, scoring.DefaultRules(), s.archiver, s.clock, s.random, testutil.NopLogger())
	s.ctx = context.Background()
}

// createCompleted stores a completed 3-hole match for alice and bob
func (s *ReconcilerSuite) createCompleted() *model.Match {
	completed := s.clock.Now()
	m := &model.Match{
		ID:            "m1",
		Title:         "Sunday round",
		HostID:        "alice",
		Type:          model.MatchTypeInvite,
		Participants:  []model.UserID{"alice", "bob"},
		NumberOfHoles: 3,
		Status:        model.MatchStatusCompleted,
		CompletedAt:   &completed,
		CreatedAt:     s.clock.Now(),
		UpdatedAt:     s.clock.Now(),
	}
	s.Require().NoError(s.storage.CreateMatch(s.ctx, m))
	return m
}

func (s *ReconcilerSuite) scoreAll(m *model.Match) {
	for hole := 1; hole <= m.NumberOfHoles; hole++ {
		for _, u := range m.Participants {
			s.Require().NoError(s.storage.SetScore(s.ctx, m.ID, model.ScoreCell{Hole: hole, UserID: u, Strokes: 4}, s.clock.Now()))
		}
	}
}

func (s *ReconcilerSuite) TestFullyScoredCreatesResult() {
	m := s.createCompleted()
	s.scoreAll(m)
	s.random.QueueID("r1")

	rec, err := s.reconciler.Reconcile(s.ctx, m.ID)
	s.Require().NoError(err)

	s.Equal(OutcomeResultCreated, rec.Outcome)
	s.Require().NotNil(rec.Result)
	s.Equal(model.ResultID("r1"), rec.Result.ID)
	s.False(rec.Result.PointsAwarded)
	s.Equal([]model.UserID{"alice", "bob"}, rec.Result.Participants)
	s.Equal(6, rec.Result.Scores.Len())
	s.Equal(*m.CompletedAt, rec.Result.CompletedAt)

	stored, err := s.storage.GetMatchResultForMatch(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(model.ResultID("r1"), stored.ID)

	s.Equal([]model.ResultID{"r1"}, s.archiver.archived)
}

func (s *ReconcilerSuite) TestMissingCellIsIncomplete() {
	m := s.createCompleted()
	s.scoreAll(m)
	s.Require().NoError(s.storage.SetScore(s.ctx, m.ID, model.ScoreCell{Hole: 2, UserID: "bob", Strokes: 0}, s.clock.Now()))

	rec, err := s.reconciler.Reconcile(s.ctx, m.ID)
	s.Require().NoError(err)

	s.Equal(OutcomeIncomplete, rec.Outcome)
	s.Nil(rec.Result)
	s.Equal([]model.ScoreCell{{Hole: 2, UserID: "bob"}}, rec.Missing)

	_, err = s.storage.GetMatchResultForMatch(s.ctx, m.ID)
	s.ErrorIs(err, model.ErrResultNotFound)
	s.Empty(s.archiver.archived)
}

func (s *ReconcilerSuite) TestZeroCountsWithAllowZeroScores() {
	m := s.createCompleted()
	s.scoreAll(m)
	s.Require().NoError(s.storage.SetScore(s.ctx, m.ID, model.ScoreCell{Hole: 2, UserID: "bob", Strokes: 0}, s.clock.Now()))

	reconciler := NewReconciler(s.storage, scoring.Rules{AllowZeroScores: true}, nil, s.clock, s.random, testutil.NopLogger())
	rec, err := reconciler.Reconcile(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeResultCreated, rec.Outcome)
}

func (s *ReconcilerSuite) TestSecondReconcileIsNoop() {
	m := s.createCompleted()
	s.scoreAll(m)
	s.random.QueueID("r1", "r2")

	_, err := s.reconciler.Reconcile(s.ctx, m.ID)
	s.Require().NoError(err)

	// Scores changed after the snapshot are not re-copied
	s.Require().NoError(s.storage.SetScore(s.ctx, m.ID, model.ScoreCell{Hole: 1, UserID: "alice", Strokes: 9}, s.clock.Now()))

	rec, err := s.reconciler.Reconcile(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeResultExists, rec.Outcome)
	s.Equal(model.ResultID("r1"), rec.Result.ID)
	v, _ := rec.Result.Scores.Get(1, "alice")
	s.Equal(4, v)
	s.Len(s.archiver.archived, 1)
}

func (s *ReconcilerSuite) TestConcurrentReconcileCreatesOneResult() {
	m := s.createCompleted()
	s.scoreAll(m)

	const callers = 8
	outcomes := make([]Outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := s.reconciler.Reconcile(s.ctx, m.ID)
			s.NoError(err)
			if rec != nil {
				outcomes[i] = rec.Outcome
			}
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == OutcomeResultCreated {
			created++
		} else {
			s.Equal(OutcomeResultExists, o)
		}
	}
	s.Equal(1, created)

	events, err := s.storage.ReadResultEvents(s.ctx, "test", 10)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *ReconcilerSuite) TestArchiveFailureDoesNotFailReconcile() {
	m := s.createCompleted()
	s.scoreAll(m)
	s.archiver.err = errors.New("bucket unreachable")

	rec, err := s.reconciler.Reconcile(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeResultCreated, rec.Outcome)
}

func (s *ReconcilerSuite) TestNotCompletedIsInvalidTransition() {
	m := s.createCompleted()
	_, err := s.storage.UpdateMatch(s.ctx, m.ID, func(m *model.Match) error {
		m.Status = model.MatchStatusActive
		return nil
	})
	s.Require().NoError(err)

	_, err = s.reconciler.Reconcile(s.ctx, m.ID)
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *ReconcilerSuite) TestMatchNotFound() {
	_, err := s.reconciler.Reconcile(s.ctx, "missing")
	s.ErrorIs(err, model.ErrMatchNotFound)
}
