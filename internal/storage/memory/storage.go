package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

// DefaultRedeliveryTimeout is how long a delivered, unacknowledged result
// event waits before it is handed out again
const DefaultRedeliveryTimeout = 30 * time.Second

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users          map[model.UserID]*model.User
	matches        map[model.MatchID]*model.Match
	scores         map[model.MatchID]*model.Scorecard
	scoresUpdated  map[model.MatchID]time.Time
	results        map[model.ResultID]*model.MatchResult
	resultsByMatch map[model.MatchID]model.ResultID
	ledger         map[ledgerKey]*model.PointsLedgerEntry

	// result feed
	events            []*pendingEvent
	nextEventSeq      int
	redeliveryTimeout time.Duration
	clock             clock.Clock
}

type ledgerKey struct {
	userID  model.UserID
	matchID model.MatchID
}

type pendingEvent struct {
	event       model.ResultEvent
	deliveredAt time.Time
	delivered   bool
	acked       bool
}

// Option configures the in-memory store
type Option func(*Storage)

// WithRedeliveryTimeout sets how long an unacknowledged event stays leased
func WithRedeliveryTimeout(d time.Duration) Option {
	return func(s *Storage) {
		s.redeliveryTimeout = d
	}
}

// WithClock sets the clock used for feed leases
func WithClock(c clock.Clock) Option {
	return func(s *Storage) {
		s.clock = c
	}
}

// New creates a new in-memory storage instance
func New(opts ...Option) *Storage {
	s := &Storage{
		users:             make(map[model.UserID]*model.User),
		matches:           make(map[model.MatchID]*model.Match),
		scores:            make(map[model.MatchID]*model.Scorecard),
		scoresUpdated:     make(map[model.MatchID]time.Time),
		results:           make(map[model.ResultID]*model.MatchResult),
		resultsByMatch:    make(map[model.MatchID]model.ResultID),
		ledger:            make(map[ledgerKey]*model.PointsLedgerEntry),
		redeliveryTimeout: DefaultRedeliveryTimeout,
		clock:             clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure Storage implements the interface
var _ storage.Backend = (*Storage)(nil)

// Ping always succeeds for the in-memory store
func (s *Storage) Ping(context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *Storage) Close() error {
	return nil
}

// User operations

func (s *Storage) SaveUserProfile(ctx context.Context, user *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *user
	if existing, ok := s.users[user.ID]; ok {
		saved.Points = existing.Points
		saved.CreatedAt = existing.CreatedAt
	}
	s.users[user.ID] = &saved
	out := saved
	return &out, nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

// Match operations

func (s *Storage) CreateMatch(ctx context.Context, match *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := match.Clone()
	sc := stored.Scores
	stored.Scores = model.Scorecard{}
	s.matches[match.ID] = stored
	s.scores[match.ID] = &sc
	return nil
}

func (s *Storage) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadMatch(id)
}

// loadMatch assembles a copy of the match with its scores; caller holds the lock
func (s *Storage) loadMatch(id model.MatchID) (*model.Match, error) {
	stored, ok := s.matches[id]
	if !ok {
		return nil, model.ErrMatchNotFound
	}
	m := stored.Clone()
	if sc := s.scores[id]; sc != nil {
		m.Scores = sc.Clone()
	}
	if at, ok := s.scoresUpdated[id]; ok && at.After(m.UpdatedAt) {
		m.UpdatedAt = at
	}
	return m, nil
}

func (s *Storage) UpdateMatch(ctx context.Context, id model.MatchID, mutate storage.MatchMutation) (*model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.loadMatch(id)
	if err != nil {
		return nil, err
	}
	if err := mutate(m); err != nil {
		if errors.Is(err, storage.ErrSkipWrite) {
			return s.loadMatch(id)
		}
		return nil, err
	}
	stored := m.Clone()
	stored.ID = id
	stored.Scores = model.Scorecard{}
	s.matches[id] = stored
	return s.loadMatch(id)
}

func (s *Storage) SetScore(ctx context.Context, id model.MatchID, cell model.ScoreCell, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[id]; !ok {
		return model.ErrMatchNotFound
	}
	sc := s.scores[id]
	if sc == nil {
		sc = &model.Scorecard{}
		s.scores[id] = sc
	}
	sc.Set(cell.Hole, cell.UserID, cell.Strokes)
	s.scoresUpdated[id] = at
	return nil
}

func (s *Storage) ListMatches(ctx context.Context, filter model.MatchFilter) ([]*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []*model.Match
	for id, stored := range s.matches {
		if !filter.Matches(stored) {
			continue
		}
		m, err := s.loadMatch(id)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	model.SortNewestFirst(matches)
	return matches, nil
}

// Result operations

func (s *Storage) CreateMatchResult(ctx context.Context, result *model.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resultsByMatch[result.MatchID]; exists {
		return model.ErrResultExists
	}
	s.results[result.ID] = result.Clone()
	s.resultsByMatch[result.MatchID] = result.ID

	s.nextEventSeq++
	s.events = append(s.events, &pendingEvent{
		event: model.ResultEvent{
			ID:        eventID(s.nextEventSeq),
			ResultID:  result.ID,
			MatchID:   result.MatchID,
			CreatedAt: result.CreatedAt,
		},
	})
	return nil
}

func (s *Storage) GetMatchResult(ctx context.Context, id model.ResultID) (*model.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[id]
	if !ok {
		return nil, model.ErrResultNotFound
	}
	return result.Clone(), nil
}

func (s *Storage) GetMatchResultForMatch(ctx context.Context, matchID model.MatchID) (*model.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.resultsByMatch[matchID]
	if !ok {
		return nil, model.ErrResultNotFound
	}
	return s.results[id].Clone(), nil
}

func (s *Storage) ListUnawardedResults(ctx context.Context, createdBefore time.Time) ([]*model.MatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*model.MatchResult
	for _, r := range s.results {
		if !r.PointsAwarded && r.CreatedAt.Before(createdBefore) {
			results = append(results, r.Clone())
		}
	}
	slices.SortFunc(results, func(a, b *model.MatchResult) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return results, nil
}

func (s *Storage) MarkPointsAwarded(ctx context.Context, id model.ResultID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[id]
	if !ok {
		return model.ErrResultNotFound
	}
	if !result.PointsAwarded {
		result.PointsAwarded = true
		awardedAt := at
		result.PointsAwardedAt = &awardedAt
	}
	if m, ok := s.matches[result.MatchID]; ok && !m.PointsAwarded {
		m.PointsAwarded = true
		m.UpdatedAt = at
	}
	return nil
}

// Points ledger operations

func (s *Storage) AwardPoints(ctx context.Context, entry *model.PointsLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[entry.UserID]
	if !ok {
		return model.ErrUserNotFound
	}
	key := ledgerKey{userID: entry.UserID, matchID: entry.MatchID}
	if _, exists := s.ledger[key]; exists {
		return model.ErrAlreadyAwarded
	}
	stored := *entry
	s.ledger[key] = &stored
	user.Points += entry.Points
	return nil
}

func (s *Storage) GetLedgerEntry(ctx context.Context, userID model.UserID, matchID model.MatchID) (*model.PointsLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.ledger[ledgerKey{userID: userID, matchID: matchID}]
	if !ok {
		return nil, model.ErrLedgerEntryNotFound
	}
	out := *entry
	return &out, nil
}

func (s *Storage) ListLedgerEntries(ctx context.Context, userID model.UserID) ([]*model.PointsLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []*model.PointsLedgerEntry
	for key, entry := range s.ledger {
		if key.userID == userID {
			out := *entry
			entries = append(entries, &out)
		}
	}
	slices.SortFunc(entries, func(a, b *model.PointsLedgerEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return entries, nil
}
