// Package completion decides, when a match ends, whether it produced a result.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/dependencies/random"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/scoring"
	"github.com/mcoot/fairway/internal/storage"
)

// Outcome is the result of reconciling a completed match
type Outcome string

const (
	// OutcomeResultCreated means a new MatchResult was stored
	OutcomeResultCreated Outcome = "result_created"
	// OutcomeResultExists means the match already had a result; nothing was written
	OutcomeResultExists Outcome = "result_exists"
	// OutcomeIncomplete means some cells were unscored, so no result exists.
	// The match stays completed and never earns points. This is not an error.
	OutcomeIncomplete Outcome = "incomplete"
)

// Reconciliation reports what Reconcile did
type Reconciliation struct {
	Outcome Outcome            `json:"outcome"`
	Result  *model.MatchResult `json:"result,omitempty"`
	Missing []model.ScoreCell  `json:"missing,omitempty"`
}

// Archiver receives each newly created result. Failures are logged and
// never affect reconciliation.
type Archiver interface {
	ArchiveResult(ctx context.Context, result *model.MatchResult) error
}

// Reconciler turns fully scored completed matches into exactly one MatchResult
type Reconciler struct {
	storage  storage.Storage
	rules    scoring.Rules
	archiver Archiver
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger
}

// NewReconciler creates a new Reconciler. archiver may be nil.
func NewReconciler(
	storage storage.Storage,
	rules scoring.Rules,
	archiver Archiver,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		storage:  storage,
		rules:    rules,
		archiver: archiver,
		clock:    clock,
		random:   random,
		logger:   logger.With(slog.String("component", "reconciler")),
	}
}

// Reconcile checks a completed match and creates its result if every
// participant has a recorded score on every hole. It is safe to call any
// number of times, concurrently: the store's one-result-per-match constraint
// decides the single winner.
func (r *Reconciler) Reconcile(ctx context.Context, matchID model.MatchID) (*Reconciliation, error) {
	match, err := r.storage.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != model.MatchStatusCompleted {
		return nil, fmt.Errorf("%w: match is %s, not completed", model.ErrInvalidTransition, match.Status)
	}

	logger := r.logger.With(slog.String("match_id", string(matchID)))

	if !r.rules.IsFullyScored(match) {
		missing := r.rules.MissingCells(match)
		logger.Info("match completed without full scores",
			slog.Int("missing_cells", len(missing)),
		)
		return &Reconciliation{Outcome: OutcomeIncomplete, Missing: missing}, nil
	}

	existing, err := r.storage.GetMatchResultForMatch(ctx, matchID)
	switch {
	case err == nil:
		logger.Info("match already has a result", slog.String("result_id", string(existing.ID)))
		return &Reconciliation{Outcome: OutcomeResultExists, Result: existing}, nil
	case !errors.Is(err, model.ErrNotFound):
		return nil, err
	}

	result := r.snapshot(match)
	if err := r.storage.CreateMatchResult(ctx, result); err != nil {
		if !errors.Is(err, model.ErrResultExists) {
			logger.Error("failed to create match result", slog.String("error", err.Error()))
			return nil, err
		}
		// Lost a race with a concurrent reconcile
		existing, err := r.storage.GetMatchResultForMatch(ctx, matchID)
		if err != nil {
			return nil, err
		}
		return &Reconciliation{Outcome: OutcomeResultExists, Result: existing}, nil
	}

	logger.Info("match result created", slog.String("result_id", string(result.ID)))
	r.archive(ctx, result)

	return &Reconciliation{Outcome: OutcomeResultCreated, Result: result}, nil
}

// NeedsResult reports whether a completed match is fully scored but has no
// result yet, which happens when a reconcile failed after the status flip
func (r *Reconciler) NeedsResult(ctx context.Context, match *model.Match) (bool, error) {
	if match.Status != model.MatchStatusCompleted || !r.rules.IsFullyScored(match) {
		return false, nil
	}
	_, err := r.storage.GetMatchResultForMatch(ctx, match.ID)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, model.ErrNotFound):
		return true, nil
	default:
		return false, err
	}
}

// ResultForMatch returns the result a match produced, if any
func (r *Reconciler) ResultForMatch(ctx context.Context, matchID model.MatchID) (*model.MatchResult, error) {
	return r.storage.GetMatchResultForMatch(ctx, matchID)
}

// snapshot copies the match into a new unawarded result
func (r *Reconciler) snapshot(match *model.Match) *model.MatchResult {
	now := r.clock.Now()
	completedAt := now
	if match.CompletedAt != nil {
		completedAt = *match.CompletedAt
	}
	src := match.Clone()
	return &model.MatchResult{
		ID:            model.ResultID(r.random.ID()),
		MatchID:       match.ID,
		Title:         match.Title,
		NumberOfHoles: match.NumberOfHoles,
		Participants:  src.Participants,
		Scores:        src.Scores,
		PointsAwarded: false,
		CompletedAt:   completedAt,
		CreatedAt:     now,
	}
}

func (r *Reconciler) archive(ctx context.Context, result *model.MatchResult) {
	if r.archiver == nil {
		return
	}
	if err := r.archiver.ArchiveResult(ctx, result); err != nil {
		r.logger.Warn("failed to archive match result",
			slog.String("result_id", string(result.ID)),
			slog.String("error", err.Error()),
		)
	}
}
