package scoring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/events"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

// Service owns writes to match scorecards
type Service struct {
	storage   storage.Storage
	rules     Rules
	clock     clock.Clock
	publisher events.Publisher
	logger    *slog.Logger
}

// New creates a new scoring Service
func New(
	storage storage.Storage,
	rules Rules,
	clock clock.Clock,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:   storage,
		rules:     rules,
		clock:     clock,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "scoring")),
	}
}

// Rules returns the scoring rules in effect
func (s *Service) Rules() Rules {
	return s.rules
}

// SubmitScore records the caller's own stroke count for one hole. Only that
// single cell is written, so participants may submit the same hole
// concurrently. Scores are accepted regardless of match status.
func (s *Service) SubmitScore(ctx context.Context, matchID model.MatchID, hole int, caller model.UserID, strokes int) error {
	match, err := s.storage.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}

	if !match.IsParticipant(caller) {
		return model.ErrNotParticipant
	}
	if !match.ValidHole(hole) {
		return fmt.Errorf("%w: %d not in 1..%d", model.ErrInvalidHole, hole, match.NumberOfHoles)
	}
	if strokes < 0 {
		return fmt.Errorf("%w: %d", model.ErrNegativeScore, strokes)
	}

	cell := model.ScoreCell{Hole: hole, UserID: caller, Strokes: strokes}
	now := s.clock.Now()
	if err := s.storage.SetScore(ctx, matchID, cell, now); err != nil {
		s.logger.Error("failed to save score",
			slog.String("match_id", string(matchID)),
			slog.String("user_id", string(caller)),
			slog.Int("hole", hole),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Debug("score submitted",
		slog.String("match_id", string(matchID)),
		slog.String("user_id", string(caller)),
		slog.Int("hole", hole),
		slog.Int("strokes", strokes),
	)

	s.publisher.Publish(ctx, model.Event{
		Type:      model.EventScoreSubmitted,
		Timestamp: now,
		MatchID:   matchID,
		UserID:    caller,
		Payload:   model.ScoreSubmittedPayload{Hole: hole, UserID: caller, Strokes: strokes},
	})
	return nil
}

// Leaderboard returns the current standings of a match
func (s *Service) Leaderboard(ctx context.Context, matchID model.MatchID) ([]ParticipantTotal, error) {
	match, err := s.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return s.rules.Leaderboard(match), nil
}

// Progress summarises how close a match is to being fully scored
type Progress struct {
	FullyScored bool              `json:"fullyScored"`
	Missing     []model.ScoreCell `json:"missing"`
}

// Progress returns the cells still missing from a match
func (s *Service) Progress(ctx context.Context, matchID model.MatchID) (*Progress, error) {
	match, err := s.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	missing := s.rules.MissingCells(match)
	return &Progress{
		FullyScored: s.rules.IsFullyScored(match),
		Missing:     missing,
	}, nil
}
