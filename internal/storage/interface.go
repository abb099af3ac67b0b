package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcoot/fairway/internal/model"
)

// ErrSkipWrite may be returned by a MatchMutation to leave the stored match
// untouched. UpdateMatch then returns the current match and no error.
var ErrSkipWrite = errors.New("skip write")

// MatchMutation edits a match inside UpdateMatch. It may be invoked more than
// once if the backend retries on a write conflict, so it must not have side
// effects. Changes to Scores are ignored; cells are only written by SetScore.
type MatchMutation func(m *model.Match) error

// Storage defines the interface for data persistence
type Storage interface {
	// User operations

	// SaveUserProfile creates the user or updates their profile fields.
	// Points and CreatedAt of an existing user are never overwritten.
	SaveUserProfile(ctx context.Context, user *model.User) (*model.User, error)
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)

	// Match operations
	CreateMatch(ctx context.Context, match *model.Match) error
	GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error)
	// UpdateMatch applies mutate to the current match as one atomic
	// read-modify-write and returns the stored result.
	UpdateMatch(ctx context.Context, id model.MatchID, mutate MatchMutation) (*model.Match, error)
	// SetScore writes exactly one scorecard cell, leaving every other cell untouched.
	SetScore(ctx context.Context, id model.MatchID, cell model.ScoreCell, at time.Time) error
	// ListMatches returns matching matches, newest first
	ListMatches(ctx context.Context, filter model.MatchFilter) ([]*model.Match, error)

	// Result operations

	// CreateMatchResult stores the result and publishes it on the result feed
	// atomically. Returns model.ErrResultExists if the match already has one.
	CreateMatchResult(ctx context.Context, result *model.MatchResult) error
	GetMatchResult(ctx context.Context, id model.ResultID) (*model.MatchResult, error)
	GetMatchResultForMatch(ctx context.Context, matchID model.MatchID) (*model.MatchResult, error)
	// ListUnawardedResults returns results still awaiting points that were created before the cutoff
	ListUnawardedResults(ctx context.Context, createdBefore time.Time) ([]*model.MatchResult, error)
	// MarkPointsAwarded sets the awarded flag on the result and its match.
	// Marking an already-awarded result is a no-op.
	MarkPointsAwarded(ctx context.Context, id model.ResultID, at time.Time) error

	// Points ledger operations

	// AwardPoints inserts the ledger entry and increments the user's balance in
	// one transaction. Returns model.ErrAlreadyAwarded if an entry for the
	// (user, match) pair exists, model.ErrUserNotFound if the user does not.
	AwardPoints(ctx context.Context, entry *model.PointsLedgerEntry) error
	GetLedgerEntry(ctx context.Context, userID model.UserID, matchID model.MatchID) (*model.PointsLedgerEntry, error)
	// ListLedgerEntries returns a user's entries, newest first
	ListLedgerEntries(ctx context.Context, userID model.UserID) ([]*model.PointsLedgerEntry, error)
}

// ResultFeed delivers result-created events at least once. An event is
// redelivered until acknowledged.
type ResultFeed interface {
	ReadResultEvents(ctx context.Context, consumer string, max int) ([]model.ResultEvent, error)
	AckResultEvent(ctx context.Context, event model.ResultEvent) error
}

// Backend is a store that also provides its own result feed
type Backend interface {
	Storage
	ResultFeed
	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
	Close() error
}

// Unavailable marks err as a transient storage failure
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
}
