package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

// Storage is a PostgreSQL-backed implementation of the storage interface
type Storage struct {
	db    *gorm.DB
	cfg   Config
	clock clock.Clock
}

// Option configures a Storage
type Option func(*Storage)

// WithClock sets the clock used for feed leases and acks
func WithClock(c clock.Clock) Option {
	return func(s *Storage) {
		s.clock = c
	}
}

func newStorage(db *gorm.DB, cfg Config, opts []Option) *Storage {
	s := &Storage{db: db, cfg: cfg, clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New opens the database, verifies the connection and migrates the schema
func New(cfg Config, opts ...Option) (*Storage, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, storage.Unavailable(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, storage.Unavailable(err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(allRecords()...); err != nil {
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	return newStorage(db, cfg, opts), nil
}

// NewWithDB wraps an existing connection; the schema must already exist
func NewWithDB(db *gorm.DB, cfg Config, opts ...Option) *Storage {
	return newStorage(db, cfg, opts)
}

// Close closes the underlying connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection pool
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storage.Unavailable(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storage.Unavailable(err)
	}
	return nil
}

// Ensure Storage implements the interface
var _ storage.Backend = (*Storage)(nil)

// wrapErr passes through errors the callers translate and marks the rest transient
func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrDuplicatedKey):
		return err
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrResultExists),
		errors.Is(err, model.ErrAlreadyAwarded), errors.Is(err, storage.ErrSkipWrite):
		return err
	}
	return storage.Unavailable(err)
}

// User operations

func (s *Storage) SaveUserProfile(ctx context.Context, user *model.User) (*model.User, error) {
	rec := toUserRecord(user)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "handicap", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return s.GetUser(ctx, user.ID)
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrUserNotFound
		}
		return nil, wrapErr(err)
	}
	return rec.toModel(), nil
}

// Match operations

func (s *Storage) CreateMatch(ctx context.Context, match *model.Match) error {
	return wrapErr(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := toMatchRecord(match)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if participants := toParticipantRecords(match); len(participants) > 0 {
			if err := tx.Create(&participants).Error; err != nil {
				return err
			}
		}
		if scores := toScoreRecords(match.ID, match.Scores); len(scores) > 0 {
			if err := tx.Create(&scores).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

func (s *Storage) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	var rec matchRecord
	db := s.db.WithContext(ctx)
	if err := db.First(&rec, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrMatchNotFound
		}
		return nil, wrapErr(err)
	}
	matches, err := loadMatches(db, []matchRecord{rec})
	if err != nil {
		return nil, err
	}
	return matches[0], nil
}

func (s *Storage) UpdateMatch(ctx context.Context, id model.MatchID, mutate storage.MatchMutation) (*model.Match, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec matchRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&rec, "id = ?", string(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrMatchNotFound
			}
			return err
		}
		loaded, err := loadMatches(tx, []matchRecord{rec})
		if err != nil {
			return err
		}
		m := loaded[0]

		if err := mutate(m); err != nil {
			return err
		}
		m.ID = id

		// Save writes every column of the match row; cells live in match_scores
		updated := toMatchRecord(m)
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		participants := toParticipantRecords(m)
		if len(participants) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position", "email"}),
		}).Create(&participants).Error
	})
	if err != nil && !errors.Is(err, storage.ErrSkipWrite) {
		return nil, wrapErr(err)
	}
	return s.GetMatch(ctx, id)
}

func (s *Storage) SetScore(ctx context.Context, id model.MatchID, cell model.ScoreCell, at time.Time) error {
	return wrapErr(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&matchRecord{}).
			Where("id = ?", string(id)).
			UpdateColumn("updated_at", gorm.Expr("GREATEST(updated_at, ?)", at))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.ErrMatchNotFound
		}

		// Upsert touches only this (match, hole, user) row
		rec := scoreRecord{MatchID: string(id), Hole: cell.Hole, UserID: string(cell.UserID), Strokes: cell.Strokes}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}, {Name: "hole"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"strokes"}),
		}).Create(&rec).Error
	}))
}

func (s *Storage) ListMatches(ctx context.Context, filter model.MatchFilter) ([]*model.Match, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&matchRecord{})
	if filter.Participant != "" {
		query = query.Where("id IN (?)",
			db.Model(&participantRecord{}).Select("match_id").Where("user_id = ?", string(filter.Participant)))
	}
	if filter.Host != "" {
		query = query.Where("host_id = ?", string(filter.Host))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		query = query.Where("status IN ?", statuses)
	}

	var recs []matchRecord
	if err := query.Order("created_at DESC, id ASC").Find(&recs).Error; err != nil {
		return nil, wrapErr(err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return loadMatches(db, recs)
}

// loadMatches attaches participants and cells to match rows with two batched queries
func loadMatches(db *gorm.DB, recs []matchRecord) ([]*model.Match, error) {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}

	var participants []participantRecord
	if err := db.Where("match_id IN ?", ids).Order("match_id, position").Find(&participants).Error; err != nil {
		return nil, wrapErr(err)
	}
	var scores []scoreRecord
	if err := db.Where("match_id IN ?", ids).Find(&scores).Error; err != nil {
		return nil, wrapErr(err)
	}

	participantsByMatch := make(map[string][]participantRecord, len(recs))
	for _, p := range participants {
		participantsByMatch[p.MatchID] = append(participantsByMatch[p.MatchID], p)
	}
	scoresByMatch := make(map[string][]scoreRecord, len(recs))
	for _, sc := range scores {
		scoresByMatch[sc.MatchID] = append(scoresByMatch[sc.MatchID], sc)
	}

	matches := make([]*model.Match, len(recs))
	for i, r := range recs {
		matches[i] = assembleMatch(r, participantsByMatch[r.ID], scoresByMatch[r.ID])
	}
	return matches, nil
}

// Result operations

func (s *Storage) CreateMatchResult(ctx context.Context, result *model.MatchResult) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := toResultRecord(result)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		// Outbox row commits or rolls back with the result
		event := resultEventRecord{
			ResultID:  string(result.ID),
			MatchID:   string(result.MatchID),
			CreatedAt: result.CreatedAt,
		}
		return tx.Create(&event).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.ErrResultExists
	}
	return wrapErr(err)
}

func (s *Storage) GetMatchResult(ctx context.Context, id model.ResultID) (*model.MatchResult, error) {
	var rec resultRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrResultNotFound
		}
		return nil, wrapErr(err)
	}
	return rec.toModel(), nil
}

func (s *Storage) GetMatchResultForMatch(ctx context.Context, matchID model.MatchID) (*model.MatchResult, error) {
	var rec resultRecord
	if err := s.db.WithContext(ctx).First(&rec, "match_id = ?", string(matchID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrResultNotFound
		}
		return nil, wrapErr(err)
	}
	return rec.toModel(), nil
}

func (s *Storage) ListUnawardedResults(ctx context.Context, createdBefore time.Time) ([]*model.MatchResult, error) {
	var recs []resultRecord
	err := s.db.WithContext(ctx).
		Where("points_awarded = ? AND created_at < ?", false, createdBefore).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	results := make([]*model.MatchResult, len(recs))
	for i, r := range recs {
		results[i] = r.toModel()
	}
	return results, nil
}

func (s *Storage) MarkPointsAwarded(ctx context.Context, id model.ResultID, at time.Time) error {
	return wrapErr(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec resultRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&rec, "id = ?", string(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrResultNotFound
			}
			return err
		}
		if !rec.PointsAwarded {
			err := tx.Model(&resultRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
				"points_awarded":    true,
				"points_awarded_at": at,
			}).Error
			if err != nil {
				return err
			}
		}
		return tx.Model(&matchRecord{}).
			Where("id = ? AND points_awarded = ?", rec.MatchID, false).
			Updates(map[string]interface{}{
				"points_awarded": true,
				"updated_at":     at,
			}).Error
	}))
}

// Points ledger operations

func (s *Storage) AwardPoints(ctx context.Context, entry *model.PointsLedgerEntry) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the balance row so concurrent awards for other matches serialize
		var user userRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", string(entry.UserID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrUserNotFound
			}
			return err
		}

		rec := toLedgerRecord(entry)
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return tx.Model(&userRecord{}).
			Where("id = ?", user.ID).
			UpdateColumn("points", gorm.Expr("points + ?", entry.Points)).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.ErrAlreadyAwarded
	}
	return wrapErr(err)
}

func (s *Storage) GetLedgerEntry(ctx context.Context, userID model.UserID, matchID model.MatchID) (*model.PointsLedgerEntry, error) {
	var rec ledgerRecord
	err := s.db.WithContext(ctx).
		First(&rec, "user_id = ? AND match_id = ?", string(userID), string(matchID)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrLedgerEntryNotFound
		}
		return nil, wrapErr(err)
	}
	return rec.toModel(), nil
}

func (s *Storage) ListLedgerEntries(ctx context.Context, userID model.UserID) ([]*model.PointsLedgerEntry, error) {
	var recs []ledgerRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", string(userID)).
		Order("created_at DESC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	entries := make([]*model.PointsLedgerEntry, len(recs))
	for i, r := range recs {
		entries[i] = r.toModel()
	}
	return entries, nil
}
