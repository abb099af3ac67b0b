// Package user keeps the profile records points are awarded to.
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

// Profile holds the caller-editable user fields
type Profile struct {
	Email     string
	FirstName string
	LastName  string
	Handicap  *float64
}

// Service registers and reads users
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new user Service
func New(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "users")),
	}
}

// Register creates the user or refreshes their profile. The points balance
// is never changed here.
func (s *Service) Register(ctx context.Context, id model.UserID, profile Profile) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrInvalidInput)
	}
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", model.ErrInvalidInput)
	}

	now := s.clock.Now()
	user, err := s.storage.SaveUserProfile(ctx, &model.User{
		ID:        id,
		Email:     email,
		FirstName: strings.TrimSpace(profile.FirstName),
		LastName:  strings.TrimSpace(profile.LastName),
		Handicap:  profile.Handicap,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.logger.Error("failed to save user profile",
			slog.String("user_id", string(id)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return user, nil
}

// Get retrieves a user by ID
func (s *Service) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	return s.storage.GetUser(ctx, id)
}
