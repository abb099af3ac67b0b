package postgres

import (
	"time"

	"github.com/mcoot/fairway/internal/model"
)

// Timestamps are owned by the engine's clock, so gorm's auto time tracking is disabled.

type userRecord struct {
	ID        string `gorm:"primaryKey"`
	Email     string
	FirstName string
	LastName  string
	Handicap  *float64
	Points    int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (userRecord) TableName() string { return "users" }

type matchRecord struct {
	ID            string `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	Description   string
	HostID        string `gorm:"index;not null"`
	Type          string
	NumberOfHoles int `gorm:"not null"`
	Location      string
	LocationName  string
	Address       *model.Address `gorm:"type:jsonb;serializer:json"`
	Status        string         `gorm:"index;not null"`
	PointsAwarded bool           `gorm:"not null;default:false"`
	ScheduledFor  *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time `gorm:"index;autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

func (matchRecord) TableName() string { return "matches" }

type participantRecord struct {
	MatchID  string `gorm:"primaryKey"`
	UserID   string `gorm:"primaryKey;index"`
	Position int    `gorm:"not null"`
	Email    string
}

func (participantRecord) TableName() string { return "match_participants" }

// scoreRecord is one scorecard cell; the composite key makes each cell its own row
type scoreRecord struct {
	MatchID string `gorm:"primaryKey"`
	Hole    int    `gorm:"primaryKey;autoIncrement:false"`
	UserID  string `gorm:"primaryKey"`
	Strokes int    `gorm:"not null"`
}

func (scoreRecord) TableName() string { return "match_scores" }

type resultRecord struct {
	ID              string `gorm:"primaryKey"`
	MatchID         string `gorm:"uniqueIndex;not null"`
	Title           string
	NumberOfHoles   int
	Participants    []model.UserID  `gorm:"type:jsonb;serializer:json"`
	Scores          model.Scorecard `gorm:"type:jsonb;serializer:json"`
	PointsAwarded   bool            `gorm:"index;not null;default:false"`
	PointsAwardedAt *time.Time
	CompletedAt     time.Time
	CreatedAt       time.Time `gorm:"index;autoCreateTime:false"`
}

func (resultRecord) TableName() string { return "match_results" }

type ledgerRecord struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"uniqueIndex:idx_ledger_user_match;not null"`
	MatchID   string    `gorm:"uniqueIndex:idx_ledger_user_match;not null"`
	Points    int       `gorm:"not null"`
	Reason    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index;autoCreateTime:false"`
}

func (ledgerRecord) TableName() string { return "points_ledger" }

// resultEventRecord is the outbox row written with every result
type resultEventRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	ResultID  string    `gorm:"not null"`
	MatchID   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	ClaimedBy string
	ClaimedAt *time.Time
	AckedAt   *time.Time `gorm:"index"`
}

func (resultEventRecord) TableName() string { return "result_events" }

func allRecords() []any {
	return []any{
		&userRecord{},
		&matchRecord{},
		&participantRecord{},
		&scoreRecord{},
		&resultRecord{},
		&ledgerRecord{},
		&resultEventRecord{},
	}
}

// Conversions

func toUserRecord(u *model.User) userRecord {
	return userRecord{
		ID:        string(u.ID),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Handicap:  u.Handicap,
		Points:    u.Points,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (r userRecord) toModel() *model.User {
	return &model.User{
		ID:        model.UserID(r.ID),
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Handicap:  r.Handicap,
		Points:    r.Points,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toMatchRecord(m *model.Match) matchRecord {
	return matchRecord{
		ID:            string(m.ID),
		Title:         m.Title,
		Description:   m.Description,
		HostID:        string(m.HostID),
		Type:          string(m.Type),
		NumberOfHoles: m.NumberOfHoles,
		Location:      m.Location,
		LocationName:  m.LocationName,
		Address:       m.Address,
		Status:        string(m.Status),
		PointsAwarded: m.PointsAwarded,
		ScheduledFor:  m.ScheduledFor,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toParticipantRecords(m *model.Match) []participantRecord {
	records := make([]participantRecord, len(m.Participants))
	for i, p := range m.Participants {
		records[i] = participantRecord{
			MatchID:  string(m.ID),
			UserID:   string(p),
			Position: i,
			Email:    m.ParticipantEmails[p],
		}
	}
	return records
}

func toScoreRecords(id model.MatchID, sc model.Scorecard) []scoreRecord {
	cells := sc.Cells()
	records := make([]scoreRecord, len(cells))
	for i, c := range cells {
		records[i] = scoreRecord{MatchID: string(id), Hole: c.Hole, UserID: string(c.UserID), Strokes: c.Strokes}
	}
	return records
}

// assembleMatch builds the model from a match row plus its ordered participants and cells
func assembleMatch(r matchRecord, participants []participantRecord, scores []scoreRecord) *model.Match {
	m := &model.Match{
		ID:                model.MatchID(r.ID),
		Title:             r.Title,
		Description:       r.Description,
		HostID:            model.UserID(r.HostID),
		Type:              model.MatchType(r.Type),
		Participants:      make([]model.UserID, 0, len(participants)),
		ParticipantEmails: make(map[model.UserID]string, len(participants)),
		NumberOfHoles:     r.NumberOfHoles,
		Location:          r.Location,
		LocationName:      r.LocationName,
		Address:           r.Address,
		Status:            model.MatchStatus(r.Status),
		PointsAwarded:     r.PointsAwarded,
		ScheduledFor:      r.ScheduledFor,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	for _, p := range participants {
		m.Participants = append(m.Participants, model.UserID(p.UserID))
		if p.Email != "" {
			m.ParticipantEmails[model.UserID(p.UserID)] = p.Email
		}
	}
	for _, s := range scores {
		m.Scores.Set(s.Hole, model.UserID(s.UserID), s.Strokes)
	}
	return m
}

func toResultRecord(r *model.MatchResult) resultRecord {
	return resultRecord{
		ID:              string(r.ID),
		MatchID:         string(r.MatchID),
		Title:           r.Title,
		NumberOfHoles:   r.NumberOfHoles,
		Participants:    r.Participants,
		Scores:          r.Scores,
		PointsAwarded:   r.PointsAwarded,
		PointsAwardedAt: r.PointsAwardedAt,
		CompletedAt:     r.CompletedAt,
		CreatedAt:       r.CreatedAt,
	}
}

func (r resultRecord) toModel() *model.MatchResult {
	return &model.MatchResult{
		ID:              model.ResultID(r.ID),
		MatchID:         model.MatchID(r.MatchID),
		Title:           r.Title,
		NumberOfHoles:   r.NumberOfHoles,
		Participants:    r.Participants,
		Scores:          r.Scores,
		PointsAwarded:   r.PointsAwarded,
		PointsAwardedAt: r.PointsAwardedAt,
		CompletedAt:     r.CompletedAt,
		CreatedAt:       r.CreatedAt,
	}
}

func toLedgerRecord(e *model.PointsLedgerEntry) ledgerRecord {
	return ledgerRecord{
		ID:        string(e.ID),
		UserID:    string(e.UserID),
		MatchID:   string(e.MatchID),
		Points:    e.Points,
		Reason:    string(e.Reason),
		CreatedAt: e.CreatedAt,
	}
}

func (r ledgerRecord) toModel() *model.PointsLedgerEntry {
	return &model.PointsLedgerEntry{
		ID:        model.LedgerEntryID(r.ID),
		UserID:    model.UserID(r.UserID),
		MatchID:   model.MatchID(r.MatchID),
		Points:    r.Points,
		Reason:    model.PointsReason(r.Reason),
		CreatedAt: r.CreatedAt,
	}
}
