// Package invite lets authenticated users join matches through invite links.
// The invite token is the match ID itself; holding the link is enough to join.
package invite

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/events"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

// joinPath is the route prefix invite links point at
const joinPath = "/matches/join/"

// Config holds invite settings
type Config struct {
	// BaseURL is the public origin links are built on
	BaseURL string
}

// DefaultConfig returns the default invite configuration
func DefaultConfig() Config {
	return Config{BaseURL: "http://localhost:8080"}
}

// Service implements the join protocol
type Service struct {
	storage   storage.Storage
	clock     clock.Clock
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger
}

// New creates a new invite Service
func New(storage storage.Storage, clock clock.Clock, publisher events.Publisher, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		storage:   storage,
		clock:     clock,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "invite")),
	}
}

// JoinWithInvite adds the caller to the match. Joining a match the caller
// already belongs to succeeds without writing anything.
func (s *Service) JoinWithInvite(ctx context.Context, matchID model.MatchID, caller model.UserID, email string) (*model.Match, error) {
	now := s.clock.Now()
	var joined bool
	match, err := s.storage.UpdateMatch(ctx, matchID, func(m *model.Match) error {
		joined = false
		if m.IsParticipant(caller) {
			return storage.ErrSkipWrite
		}
		m.Participants = append(m.Participants, caller)
		if m.ParticipantEmails == nil {
			m.ParticipantEmails = make(map[model.UserID]string)
		}
		m.ParticipantEmails[caller] = email
		m.UpdatedAt = now
		joined = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !joined {
		return match, nil
	}

	s.logger.Info("participant joined",
		slog.String("match_id", string(matchID)),
		slog.String("user_id", string(caller)),
	)
	s.publisher.Publish(ctx, model.Event{
		Type:      model.EventParticipantJoined,
		Timestamp: now,
		MatchID:   matchID,
		UserID:    caller,
	})
	return match, nil
}

// InviteLink returns the shareable link for a match
func (s *Service) InviteLink(matchID model.MatchID) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + joinPath + url.PathEscape(string(matchID))
}

// ResolveInvite extracts the match ID from an invite link or a bare token
func ResolveInvite(invite string) (model.MatchID, error) {
	invite = strings.TrimSpace(invite)
	if invite == "" {
		return "", fmt.Errorf("%w: empty invite", model.ErrInvalidInput)
	}
	if !strings.Contains(invite, "/") {
		return model.MatchID(invite), nil
	}

	u, err := url.Parse(invite)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	idx := strings.Index(u.Path, joinPath)
	if idx < 0 {
		return "", fmt.Errorf("%w: not an invite link", model.ErrInvalidInput)
	}
	id := path.Clean(u.Path[idx+len(joinPath):])
	if id == "" || id == "." || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: not an invite link", model.ErrInvalidInput)
	}
	return model.MatchID(id), nil
}
