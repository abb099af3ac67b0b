// Package points awards completion points for match results and answers
// balance queries.
package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/dependencies/random"
	"github.com/mcoot/fairway/internal/events"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

// Config holds award settings
type Config struct {
	// AwardAmount is granted to every participant of a completed result
	AwardAmount int
	// Concurrency bounds how many participants are awarded at once
	Concurrency int
}

// DefaultConfig returns the default award configuration
func DefaultConfig() Config {
	return Config{
		AwardAmount: 10,
		Concurrency: 4,
	}
}

// Report describes one processing run over a result
type Report struct {
	ResultID model.ResultID
	// AlreadyAwarded is set when the result was flagged before this run
	AlreadyAwarded bool
	Awarded        []model.UserID
	Skipped        []model.UserID
	Failed         []model.UserID
}

// Complete reports whether every participant was awarded or skipped
func (r *Report) Complete() bool {
	return len(r.Failed) == 0
}

// Processor awards points for match results. Running it any number of times
// on the same result grants each participant at most once.
type Processor struct {
	storage   storage.Storage
	clock     clock.Clock
	random    random.Random
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger
}

// NewProcessor creates a new points Processor
func NewProcessor(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	publisher events.Publisher,
	cfg Config,
	logger *slog.Logger,
) *Processor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Processor{
		storage:   storage,
		clock:     clock,
		random:    random,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "points-processor")),
	}
}

// ProcessResult awards every participant of the result who has not been
// awarded yet. Participants are isolated from one another: a failure for one
// is logged and the rest still run. The result is only flagged as awarded
// once no participant failed; otherwise an error wrapping
// model.ErrAwardIncomplete is returned and the whole call may be retried.
func (p *Processor) ProcessResult(ctx context.Context, resultID model.ResultID) (*Report, error) {
	result, err := p.storage.GetMatchResult(ctx, resultID)
	if err != nil {
		return nil, err
	}

	report := &Report{ResultID: resultID}
	if result.PointsAwarded {
		report.AlreadyAwarded = true
		return report, nil
	}

	logger := p.logger.With(
		slog.String("result_id", string(resultID)),
		slog.String("match_id", string(result.MatchID)),
	)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)
	for _, user := range result.Participants {
		g.Go(func() error {
			outcome, err := p.awardParticipant(ctx, result, user)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				logger.Error("failed to award participant",
					slog.String("user_id", string(user)),
					slog.String("error", err.Error()),
				)
				report.Failed = append(report.Failed, user)
			case outcome == outcomeAwarded:
				report.Awarded = append(report.Awarded, user)
			default:
				report.Skipped = append(report.Skipped, user)
			}
			// Never abort siblings
			return nil
		})
	}
	_ = g.Wait()

	if !report.Complete() {
		return report, fmt.Errorf("%w: %d of %d participants failed",
			model.ErrAwardIncomplete, len(report.Failed), len(result.Participants))
	}

	now := p.clock.Now()
	if err := p.storage.MarkPointsAwarded(ctx, resultID, now); err != nil {
		logger.Error("failed to mark points awarded", slog.String("error", err.Error()))
		return report, err
	}

	logger.Info("points awarded",
		slog.Int("awarded", len(report.Awarded)),
		slog.Int("skipped", len(report.Skipped)),
	)
	p.publisher.Publish(ctx, model.Event{
		Type:      model.EventPointsAwarded,
		Timestamp: now,
		MatchID:   result.MatchID,
		Payload: model.PointsAwardedPayload{
			ResultID: resultID,
			Awarded:  report.Awarded,
			Points:   p.cfg.AwardAmount,
		},
	})
	return report, nil
}

type awardOutcome int

const (
	outcomeAwarded awardOutcome = iota
	outcomeSkipped
)

// awardParticipant grants one participant their points unless the ledger
// already has an entry or the user no longer exists
func (p *Processor) awardParticipant(ctx context.Context, result *model.MatchResult, user model.UserID) (awardOutcome, error) {
	_, err := p.storage.GetLedgerEntry(ctx, user, result.MatchID)
	switch {
	case err == nil:
		return outcomeSkipped, nil
	case !errors.Is(err, model.ErrNotFound):
		return 0, err
	}

	err = p.storage.AwardPoints(ctx, &model.PointsLedgerEntry{
		ID:        model.LedgerEntryID(p.random.ID()),
		UserID:    user,
		MatchID:   result.MatchID,
		Points:    p.cfg.AwardAmount,
		Reason:    model.PointsReasonMatchCompletion,
		CreatedAt: p.clock.Now(),
	})
	switch {
	case err == nil:
		return outcomeAwarded, nil
	case errors.Is(err, model.ErrAlreadyAwarded):
		// A concurrent run got there first
		return outcomeSkipped, nil
	case errors.Is(err, model.ErrUserNotFound):
		p.logger.Warn("skipping award for missing user",
			slog.String("user_id", string(user)),
			slog.String("match_id", string(result.MatchID)),
		)
		return outcomeSkipped, nil
	default:
		return 0, err
	}
}
