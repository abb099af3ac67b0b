package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

var errTxConflict = errors.New("redis transaction retries exhausted")

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config

	groupMu    sync.Mutex
	groupReady bool
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, storage.Unavailable(err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return storage.Unavailable(err)
	}
	return nil
}

// Ensure Storage implements the interface
var _ storage.Backend = (*Storage)(nil)

// watch runs fn as an optimistic transaction over keys. WATCH conflicts are
// retried with jittered exponential backoff; any other error ends the loop.
func (s *Storage) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.TxRetryBackoff
	b.MaxInterval = s.cfg.TxRetryMaxBackoff
	b.MaxElapsedTime = 0

	retries := max(s.cfg.MaxTxRetries-1, 0)
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	err := backoff.Retry(func() error {
		err := s.client.Watch(ctx, fn, keys...)
		if err == nil || errors.Is(err, redis.TxFailedErr) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if errors.Is(err, redis.TxFailedErr) {
		return storage.Unavailable(errTxConflict)
	}
	return err
}

// User operations

func (s *Storage) SaveUserProfile(ctx context.Context, user *model.User) (*model.User, error) {
	saved := *user
	key := userKey(user.ID)
	err := s.watch(ctx, func(tx *redis.Tx) error {
		saved = *user
		existing, err := getJSON[model.User](ctx, tx, key)
		switch {
		case err == nil:
			saved.Points = existing.Points
			saved.CreatedAt = existing.CreatedAt
		case !errors.Is(err, redis.Nil):
			return err
		}
		data, err := json.Marshal(&saved)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return wrapRedis(err)
	}, key)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	user, err := getJSON[model.User](ctx, s.client, userKey(id))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Match operations

func (s *Storage) CreateMatch(ctx context.Context, match *model.Match) error {
	data, err := encodeMatch(match)
	if err != nil {
		return err
	}

	score := float64(match.CreatedAt.UnixMilli())
	member := string(match.ID)

	// Use a transaction so the document, scores and indexes appear together
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, matchKey(match.ID), data, 0)
		if fields := encodeScores(match.Scores); len(fields) > 0 {
			pipe.HSet(ctx, matchScoresKey(match.ID), fields)
		}
		pipe.ZAdd(ctx, matchesIndexKey(), redis.Z{Score: score, Member: member})
		pipe.ZAdd(ctx, matchesByHostIndexKey(match.HostID), redis.Z{Score: score, Member: member})
		for _, p := range match.Participants {
			pipe.ZAdd(ctx, matchesByParticipantIndexKey(p), redis.Z{Score: score, Member: member})
		}
		return nil
	})
	return wrapRedis(err)
}

func (s *Storage) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	matches, err := s.loadMatches(ctx, []string{string(id)})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, model.ErrMatchNotFound
	}
	return matches[0], nil
}

func (s *Storage) UpdateMatch(ctx context.Context, id model.MatchID, mutate storage.MatchMutation) (*model.Match, error) {
	key := matchKey(id)
	err := s.watch(ctx, func(tx *redis.Tx) error {
		m, err := getJSON[model.Match](ctx, tx, key)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrMatchNotFound
			}
			return err
		}
		fields, err := tx.HGetAll(ctx, matchScoresKey(id)).Result()
		if err != nil {
			return storage.Unavailable(err)
		}
		if m.Scores, err = decodeScores(fields); err != nil {
			return err
		}

		if err := mutate(m); err != nil {
			return err
		}
		m.ID = id
		data, err := encodeMatch(m)
		if err != nil {
			return err
		}

		score := float64(m.CreatedAt.UnixMilli())
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			for _, p := range m.Participants {
				pipe.ZAdd(ctx, matchesByParticipantIndexKey(p), redis.Z{Score: score, Member: string(id)})
			}
			return nil
		})
		return wrapRedis(err)
	}, key)
	if err != nil && !errors.Is(err, storage.ErrSkipWrite) {
		return nil, err
	}
	return s.GetMatch(ctx, id)
}

func (s *Storage) SetScore(ctx context.Context, id model.MatchID, cell model.ScoreCell, at time.Time) error {
	exists, err := s.client.Exists(ctx, matchKey(id)).Result()
	if err != nil {
		return storage.Unavailable(err)
	}
	if exists == 0 {
		return model.ErrMatchNotFound
	}

	// HSET touches only this cell's field; other writers' cells are untouched
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, matchScoresKey(id), scoreField(cell.Hole, cell.UserID), cell.Strokes)
		pipe.Set(ctx, matchScoresUpdatedKey(id), at.UTC().Format(time.RFC3339Nano), 0)
		return nil
	})
	return wrapRedis(err)
}

func (s *Storage) ListMatches(ctx context.Context, filter model.MatchFilter) ([]*model.Match, error) {
	index := matchesIndexKey()
	switch {
	case filter.Participant != "":
		index = matchesByParticipantIndexKey(filter.Participant)
	case filter.Host != "":
		index = matchesByHostIndexKey(filter.Host)
	}

	ids, err := s.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	loaded, err := s.loadMatches(ctx, ids)
	if err != nil {
		return nil, err
	}
	matches := loaded[:0]
	for _, m := range loaded {
		if filter.Matches(m) {
			matches = append(matches, m)
		}
	}
	model.SortNewestFirst(matches)
	return matches, nil
}

// loadMatches fetches documents and scorecards in one round trip, skipping missing ids
func (s *Storage) loadMatches(ctx context.Context, ids []string) ([]*model.Match, error) {
	pipe := s.client.Pipeline()
	docs := make([]*redis.StringCmd, len(ids))
	scores := make([]*redis.MapStringStringCmd, len(ids))
	updated := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		mid := model.MatchID(id)
		docs[i] = pipe.Get(ctx, matchKey(mid))
		scores[i] = pipe.HGetAll(ctx, matchScoresKey(mid))
		updated[i] = pipe.Get(ctx, matchScoresUpdatedKey(mid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, storage.Unavailable(err)
	}

	matches := make([]*model.Match, 0, len(ids))
	for i := range ids {
		data, err := docs[i].Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, storage.Unavailable(err)
		}
		var m model.Match
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode match %s: %w", ids[i], err)
		}
		if m.Scores, err = decodeScores(scores[i].Val()); err != nil {
			return nil, err
		}
		if raw, err := updated[i].Result(); err == nil {
			if at, err := time.Parse(time.RFC3339Nano, raw); err == nil && at.After(m.UpdatedAt) {
				m.UpdatedAt = at
			}
		}
		matches = append(matches, &m)
	}
	return matches, nil
}

// Result operations

func (s *Storage) CreateMatchResult(ctx context.Context, result *model.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	uniqueKey := resultByMatchKey(result.MatchID)

	return s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, uniqueKey).Result()
		if err != nil {
			return storage.Unavailable(err)
		}
		if exists > 0 {
			return model.ErrResultExists
		}

		// The stream entry is written in the same transaction as the result,
		// so a stored result is always announced on the feed
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, resultKey(result.ID), data, 0)
			pipe.Set(ctx, uniqueKey, string(result.ID), 0)
			pipe.ZAdd(ctx, unawardedResultsKey(), redis.Z{
				Score:  float64(result.CreatedAt.UnixMilli()),
				Member: string(result.ID),
			})
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: resultStreamKey(),
				Values: map[string]interface{}{
					fieldResultID:  string(result.ID),
					fieldMatchID:   string(result.MatchID),
					fieldCreatedAt: result.CreatedAt.UTC().Format(time.RFC3339Nano),
				},
			})
			return nil
		})
		return wrapRedis(err)
	}, uniqueKey)
}

func (s *Storage) GetMatchResult(ctx context.Context, id model.ResultID) (*model.MatchResult, error) {
	result, err := getJSON[model.MatchResult](ctx, s.client, resultKey(id))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrResultNotFound
		}
		return nil, err
	}
	return result, nil
}

func (s *Storage) GetMatchResultForMatch(ctx context.Context, matchID model.MatchID) (*model.MatchResult, error) {
	id, err := s.client.Get(ctx, resultByMatchKey(matchID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrResultNotFound
		}
		return nil, storage.Unavailable(err)
	}
	return s.GetMatchResult(ctx, model.ResultID(id))
}

func (s *Storage) ListUnawardedResults(ctx context.Context, createdBefore time.Time) ([]*model.MatchResult, error) {
	ids, err := s.client.ZRangeByScore(ctx, unawardedResultsKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(createdBefore.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = resultKey(model.ResultID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storage.Unavailable(err)
	}

	results := make([]*model.MatchResult, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var r model.MatchResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode match result: %w", err)
		}
		if !r.PointsAwarded {
			results = append(results, &r)
		}
	}
	return results, nil
}

func (s *Storage) MarkPointsAwarded(ctx context.Context, id model.ResultID, at time.Time) error {
	key := resultKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		result, err := getJSON[model.MatchResult](ctx, tx, key)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrResultNotFound
			}
			return err
		}
		mKey := matchKey(result.MatchID)
		if err := tx.Watch(ctx, mKey).Err(); err != nil {
			return storage.Unavailable(err)
		}
		m, err := getJSON[model.Match](ctx, tx, mKey)
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		var resultData, matchData []byte
		if !result.PointsAwarded {
			result.PointsAwarded = true
			awardedAt := at
			result.PointsAwardedAt = &awardedAt
			if resultData, err = json.Marshal(result); err != nil {
				return err
			}
		}
		if m != nil && !m.PointsAwarded {
			m.PointsAwarded = true
			m.UpdatedAt = at
			if matchData, err = encodeMatch(m); err != nil {
				return err
			}
		}
		if resultData == nil && matchData == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if resultData != nil {
				pipe.Set(ctx, key, resultData, 0)
			}
			if matchData != nil {
				pipe.Set(ctx, mKey, matchData, 0)
			}
			pipe.ZRem(ctx, unawardedResultsKey(), string(id))
			return nil
		})
		return wrapRedis(err)
	}, key)
}

// Points ledger operations

func (s *Storage) AwardPoints(ctx context.Context, entry *model.PointsLedgerEntry) error {
	entryData, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	uKey := userKey(entry.UserID)
	uniqueKey := ledgerByUserMatchKey(entry.UserID, entry.MatchID)

	return s.watch(ctx, func(tx *redis.Tx) error {
		user, err := getJSON[model.User](ctx, tx, uKey)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrUserNotFound
			}
			return err
		}
		exists, err := tx.Exists(ctx, uniqueKey).Result()
		if err != nil {
			return storage.Unavailable(err)
		}
		if exists > 0 {
			return model.ErrAlreadyAwarded
		}

		user.Points += entry.Points
		userData, err := json.Marshal(user)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, ledgerEntryKey(entry.ID), entryData, 0)
			pipe.Set(ctx, uniqueKey, string(entry.ID), 0)
			pipe.ZAdd(ctx, userLedgerIndexKey(entry.UserID), redis.Z{
				Score:  float64(entry.CreatedAt.UnixMilli()),
				Member: string(entry.ID),
			})
			pipe.Set(ctx, uKey, userData, 0)
			return nil
		})
		return wrapRedis(err)
	}, uKey, uniqueKey)
}

func (s *Storage) GetLedgerEntry(ctx context.Context, userID model.UserID, matchID model.MatchID) (*model.PointsLedgerEntry, error) {
	id, err := s.client.Get(ctx, ledgerByUserMatchKey(userID, matchID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrLedgerEntryNotFound
		}
		return nil, storage.Unavailable(err)
	}
	entry, err := getJSON[model.PointsLedgerEntry](ctx, s.client, ledgerEntryKey(model.LedgerEntryID(id)))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrLedgerEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (s *Storage) ListLedgerEntries(ctx context.Context, userID model.UserID) ([]*model.PointsLedgerEntry, error) {
	ids, err := s.client.ZRevRange(ctx, userLedgerIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ledgerEntryKey(model.LedgerEntryID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storage.Unavailable(err)
	}

	entries := make([]*model.PointsLedgerEntry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e model.PointsLedgerEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// Encoding helpers

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// getJSON reads and decodes a JSON document. Missing keys return redis.Nil.
func getJSON[T any](ctx context.Context, c getter, key string) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, storage.Unavailable(err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// encodeMatch serializes the match document; scores live in their own hash
func encodeMatch(m *model.Match) ([]byte, error) {
	doc := *m
	doc.Scores = model.Scorecard{}
	return json.Marshal(&doc)
}

func scoreField(hole int, user model.UserID) string {
	return fmt.Sprintf("%d:%s", hole, user)
}

func encodeScores(sc model.Scorecard) map[string]interface{} {
	fields := make(map[string]interface{}, sc.Len())
	for _, c := range sc.Cells() {
		fields[scoreField(c.Hole, c.UserID)] = c.Strokes
	}
	return fields
}

func decodeScores(fields map[string]string) (model.Scorecard, error) {
	var sc model.Scorecard
	for field, value := range fields {
		holeStr, user, ok := strings.Cut(field, ":")
		if !ok {
			return model.Scorecard{}, fmt.Errorf("invalid score field %q", field)
		}
		hole, err := strconv.Atoi(holeStr)
		if err != nil {
			return model.Scorecard{}, fmt.Errorf("invalid score field %q: %w", field, err)
		}
		strokes, err := strconv.Atoi(value)
		if err != nil {
			return model.Scorecard{}, fmt.Errorf("invalid score value %q: %w", value, err)
		}
		sc.Set(hole, model.UserID(user), strokes)
	}
	return sc, nil
}

// wrapRedis marks transport failures as transient; conflicts pass through for retry
func wrapRedis(err error) error {
	if err == nil || errors.Is(err, redis.TxFailedErr) {
		return err
	}
	return storage.Unavailable(err)
}
