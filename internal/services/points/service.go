package points

import (
	"context"
	"errors"

	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

// Service answers read-only points queries
type Service struct {
	storage storage.Storage
}

// NewService creates a new points Service
func NewService(storage storage.Storage) *Service {
	return &Service{storage: storage}
}

// GetUserPoints returns the user's balance, or 0 for an unknown user
func (s *Service) GetUserPoints(ctx context.Context, user model.UserID) (int, error) {
	u, err := s.storage.GetUser(ctx, user)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return u.Points, nil
}

// History returns the user's ledger entries, newest first
func (s *Service) History(ctx context.Context, user model.UserID) ([]*model.PointsLedgerEntry, error) {
	return s.storage.ListLedgerEntries(ctx, user)
}

// HasReceivedPointsForMatch checks the ledger first, then falls back to the
// awarded flags on the match and its result. The flags answer for the whole
// match, so a user added after the award also reads as having received it.
func (s *Service) HasReceivedPointsForMatch(ctx context.Context, user model.UserID, matchID model.MatchID) (bool, error) {
	_, err := s.storage.GetLedgerEntry(ctx, user, matchID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return false, err
	}

	match, err := s.storage.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if match.PointsAwarded {
		return true, nil
	}

	result, err := s.storage.GetMatchResultForMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return result.PointsAwarded, nil
}
