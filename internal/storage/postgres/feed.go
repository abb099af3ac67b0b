package postgres

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mcoot/fairway/internal/model"
)

// ReadResultEvents claims up to max outbox rows that are unclaimed or whose
// lease has expired. SKIP LOCKED lets concurrent consumers claim disjoint rows.
func (s *Storage) ReadResultEvents(ctx context.Context, consumer string, max int) ([]model.ResultEvent, error) {
	var recs []resultEventRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("acked_at IS NULL AND (claimed_at IS NULL OR claimed_at <= ?)", now.Add(-s.cfg.RedeliveryTimeout)).
			Order("id").
			Limit(max).
			Find(&recs).Error
		if err != nil || len(recs) == 0 {
			return err
		}

		ids := make([]int64, len(recs))
		for i, r := range recs {
			ids[i] = r.ID
		}
		return tx.Model(&resultEventRecord{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"claimed_at": now,
			"claimed_by": consumer,
		}).Error
	})
	if err != nil {
		return nil, wrapErr(err)
	}

	events := make([]model.ResultEvent, len(recs))
	for i, r := range recs {
		events[i] = model.ResultEvent{
			ID:        strconv.FormatInt(r.ID, 10),
			ResultID:  model.ResultID(r.ResultID),
			MatchID:   model.MatchID(r.MatchID),
			CreatedAt: r.CreatedAt,
		}
	}
	return events, nil
}

// AckResultEvent marks the outbox row as processed
func (s *Storage) AckResultEvent(ctx context.Context, event model.ResultEvent) error {
	id, err := strconv.ParseInt(event.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", event.ID, err)
	}
	err = s.db.WithContext(ctx).Model(&resultEventRecord{}).
		Where("id = ? AND acked_at IS NULL", id).
		Update("acked_at", s.clock.Now()).Error
	return wrapErr(err)
}
