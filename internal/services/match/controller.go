package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/dependencies/random"
	"github.com/mcoot/fairway/internal/events"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/completion"
	"github.com/mcoot/fairway/internal/storage"
)

// Controller manages the match state machine and match metadata
type Controller struct {
	storage    storage.Storage
	reconciler *completion.Reconciler
	clock      clock.Clock
	random     random.Random
	publisher  events.Publisher
	logger     *slog.Logger
}

// NewController creates a new match Controller
func NewController(
	storage storage.Storage,
	reconciler *completion.Reconciler,
	clock clock.Clock,
	random random.Random,
	publisher events.Publisher,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:    storage,
		reconciler: reconciler,
		clock:      clock,
		random:     random,
		publisher:  publisher,
		logger:     logger.With(slog.String("component", "match-controller")),
	}
}

// CreateParams describes a new match
type CreateParams struct {
	HostID        model.UserID
	HostEmail     string
	Title         string
	Description   string
	NumberOfHoles int
	Location      string
	LocationName  string
	Address       *model.Address
	ScheduledFor  *time.Time
}

// CreateMatch creates a pending match with the host as its first participant
func (c *Controller) CreateMatch(ctx context.Context, params CreateParams) (*model.Match, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, model.ErrMissingTitle
	}
	if params.NumberOfHoles != model.NineHoles && params.NumberOfHoles != model.EighteenHoles {
		return nil, model.ErrInvalidHoles
	}

	now := c.clock.Now()
	match := &model.Match{
		ID:                model.MatchID(c.random.ID()),
		Title:             title,
		Description:       params.Description,
		HostID:            params.HostID,
		Type:              model.MatchTypeInvite,
		Participants:      []model.UserID{params.HostID},
		ParticipantEmails: map[model.UserID]string{params.HostID: params.HostEmail},
		NumberOfHoles:     params.NumberOfHoles,
		Location:          params.Location,
		LocationName:      params.LocationName,
		Address:           params.Address,
		Status:            model.MatchStatusPending,
		ScheduledFor:      params.ScheduledFor,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := c.storage.CreateMatch(ctx, match); err != nil {
		c.logger.Error("failed to create match",
			slog.String("host_id", string(params.HostID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Info("match created",
		slog.String("match_id", string(match.ID)),
		slog.String("host_id", string(match.HostID)),
		slog.Int("holes", match.NumberOfHoles),
	)
	return match, nil
}

// GetMatch retrieves a match by ID
func (c *Controller) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	return c.storage.GetMatch(ctx, id)
}

// transition moves a match to a new status on behalf of the host
func (c *Controller) transition(ctx context.Context, id model.MatchID, caller model.UserID, to model.MatchStatus) (*model.Match, error) {
	now := c.clock.Now()
	match, err := c.storage.UpdateMatch(ctx, id, func(m *model.Match) error {
		if !m.IsHost(caller) {
			return model.ErrNotHost
		}
		if !model.CanTransition(m.Status, to) {
			return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, m.Status, to)
		}
		m.Status = to
		m.UpdatedAt = now
		switch to {
		case model.MatchStatusActive:
			m.StartedAt = &now
		case model.MatchStatusCompleted:
			m.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("match status changed",
		slog.String("match_id", string(id)),
		slog.String("status", string(to)),
	)
	return match, nil
}

// StartMatch moves a pending or completed match to active
func (c *Controller) StartMatch(ctx context.Context, id model.MatchID, caller model.UserID) (*model.Match, error) {
	match, err := c.transition(ctx, id, caller, model.MatchStatusActive)
	if err != nil {
		return nil, err
	}
	c.publish(ctx, model.EventMatchStarted, match, caller, nil)
	return match, nil
}

// EndResult is the outcome of ending a match
type EndResult struct {
	Match          *model.Match               `json:"match"`
	Reconciliation *completion.Reconciliation `json:"reconciliation"`
}

// EndMatch completes an active match and reconciles it before returning.
// If reconciliation fails the match is still completed and the error is
// returned. Ending it again retries the reconcile while the match is fully
// scored and has no result; otherwise ending a completed match is an
// invalid transition.
func (c *Controller) EndMatch(ctx context.Context, id model.MatchID, caller model.UserID) (*EndResult, error) {
	match, err := c.transition(ctx, id, caller, model.MatchStatusCompleted)
	if errors.Is(err, model.ErrInvalidTransition) {
		match, err = c.strandedMatch(ctx, id, err)
	}
	if err != nil {
		return nil, err
	}

	rec, err := c.reconciler.Reconcile(ctx, id)
	if err != nil {
		c.logger.Error("failed to reconcile completed match",
			slog.String("match_id", string(id)),
			slog.String("error", err.Error()),
		)
		return &EndResult{Match: match}, fmt.Errorf("match completed but not reconciled: %w", err)
	}

	payload := model.MatchCompletedPayload{Outcome: string(rec.Outcome)}
	if rec.Result != nil {
		payload.ResultID = rec.Result.ID
	}
	c.publish(ctx, model.EventMatchCompleted, match, caller, payload)

	return &EndResult{Match: match, Reconciliation: rec}, nil
}

// strandedMatch returns the match when an end retry should reconcile it,
// or transitionErr when the match is not waiting on a result
func (c *Controller) strandedMatch(ctx context.Context, id model.MatchID, transitionErr error) (*model.Match, error) {
	match, err := c.storage.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	needs, err := c.reconciler.NeedsResult(ctx, match)
	if err != nil {
		return nil, err
	}
	if !needs {
		return nil, transitionErr
	}

	c.logger.Warn("retrying reconcile for completed match without a result",
		slog.String("match_id", string(id)),
	)
	return match, nil
}

// CancelMatch moves a pending or active match to the terminal cancelled status
func (c *Controller) CancelMatch(ctx context.Context, id model.MatchID, caller model.UserID) (*model.Match, error) {
	match, err := c.transition(ctx, id, caller, model.MatchStatusCancelled)
	if err != nil {
		return nil, err
	}
	c.publish(ctx, model.EventMatchCancelled, match, caller, nil)
	return match, nil
}

// EditParams lists the editable metadata. Nil fields are left unchanged.
type EditParams struct {
	Title        *string
	Description  *string
	Location     *string
	LocationName *string
	Address      *model.Address
	ScheduledFor *time.Time
}

// EditMatch updates match metadata. Participants, scores and status are
// never touched.
func (c *Controller) EditMatch(ctx context.Context, id model.MatchID, caller model.UserID, params EditParams) (*model.Match, error) {
	var title string
	if params.Title != nil {
		title = strings.TrimSpace(*params.Title)
		if title == "" {
			return nil, model.ErrMissingTitle
		}
	}

	now := c.clock.Now()
	match, err := c.storage.UpdateMatch(ctx, id, func(m *model.Match) error {
		if !m.IsHost(caller) {
			return model.ErrNotHost
		}
		if params.Title != nil {
			m.Title = title
		}
		if params.Description != nil {
			m.Description = *params.Description
		}
		if params.Location != nil {
			m.Location = *params.Location
		}
		if params.LocationName != nil {
			m.LocationName = *params.LocationName
		}
		if params.Address != nil {
			addr := *params.Address
			m.Address = &addr
		}
		if params.ScheduledFor != nil {
			at := *params.ScheduledFor
			m.ScheduledFor = &at
		}
		m.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.publish(ctx, model.EventMatchUpdated, match, caller, nil)
	return match, nil
}

// CurrentMatches returns the pending and active matches a user plays in
func (c *Controller) CurrentMatches(ctx context.Context, user model.UserID) ([]*model.Match, error) {
	return c.storage.ListMatches(ctx, model.MatchFilter{
		Participant: user,
		Statuses:    []model.MatchStatus{model.MatchStatusPending, model.MatchStatusActive},
	})
}

// MatchHistory returns every match the user plays in or hosts, newest first.
// When viewer is set and differs from user, only matches the viewer also
// plays in or hosts are returned.
func (c *Controller) MatchHistory(ctx context.Context, user, viewer model.UserID) ([]*model.Match, error) {
	var participating, hosting []*model.Match

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participating, err = c.storage.ListMatches(gctx, model.MatchFilter{Participant: user})
		return err
	})
	g.Go(func() error {
		var err error
		hosting, err = c.storage.ListMatches(gctx, model.MatchFilter{Host: user})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[model.MatchID]bool, len(participating)+len(hosting))
	matches := make([]*model.Match, 0, len(participating)+len(hosting))
	for _, m := range append(participating, hosting...) {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if viewer != "" && viewer != user && !m.IsParticipant(viewer) && !m.IsHost(viewer) {
			continue
		}
		matches = append(matches, m)
	}

	model.SortNewestFirst(matches)
	return matches, nil
}

func (c *Controller) publish(ctx context.Context, eventType model.EventType, match *model.Match, user model.UserID, payload any) {
	c.publisher.Publish(ctx, model.Event{
		Type:      eventType,
		Timestamp: c.clock.Now(),
		MatchID:   match.ID,
		UserID:    user,
		Payload:   payload,
	})
}
