package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/storage"
)

// Stream entry fields
const (
	fieldResultID  = "result_id"
	fieldMatchID   = "match_id"
	fieldCreatedAt = "created_at"
)

// ensureGroup creates the consumer group (and stream) once per process
func (s *Storage) ensureGroup(ctx context.Context) error {
	s.groupMu.Lock()
	defer s.groupMu.Unlock()
	if s.groupReady {
		return nil
	}
	err := s.client.XGroupCreateMkStream(ctx, resultStreamKey(), s.cfg.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return storage.Unavailable(err)
	}
	s.groupReady = true
	return nil
}

// ReadResultEvents first reclaims entries another consumer left pending past
// the redelivery timeout, then reads new entries. It never blocks.
func (s *Storage) ReadResultEvents(ctx context.Context, consumer string, max int) ([]model.ResultEvent, error) {
	if err := s.ensureGroup(ctx); err != nil {
		return nil, err
	}

	claimed, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   resultStreamKey(),
		Group:    s.cfg.ConsumerGroup,
		Consumer: consumer,
		MinIdle:  s.cfg.RedeliveryTimeout,
		Start:    "0-0",
		Count:    int64(max),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, storage.Unavailable(err)
	}

	events := make([]model.ResultEvent, 0, max)
	for _, msg := range claimed {
		events = append(events, decodeEvent(msg))
	}
	if len(events) >= max {
		return events, nil
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.ConsumerGroup,
		Consumer: consumer,
		Streams:  []string{resultStreamKey(), ">"},
		Count:    int64(max - len(events)),
		Block:    -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return events, nil
		}
		return nil, storage.Unavailable(err)
	}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			events = append(events, decodeEvent(msg))
		}
	}
	return events, nil
}

// AckResultEvent acknowledges the stream entry for the consumer group
func (s *Storage) AckResultEvent(ctx context.Context, event model.ResultEvent) error {
	if err := s.client.XAck(ctx, resultStreamKey(), s.cfg.ConsumerGroup, event.ID).Err(); err != nil {
		return storage.Unavailable(fmt.Errorf("ack %s: %w", event.ID, err))
	}
	return nil
}

func decodeEvent(msg redis.XMessage) model.ResultEvent {
	event := model.ResultEvent{ID: msg.ID}
	if v, ok := msg.Values[fieldResultID].(string); ok {
		event.ResultID = model.ResultID(v)
	}
	if v, ok := msg.Values[fieldMatchID].(string); ok {
		event.MatchID = model.MatchID(v)
	}
	if v, ok := msg.Values[fieldCreatedAt].(string); ok {
		if at, err := time.Parse(time.RFC3339Nano, v); err == nil {
			event.CreatedAt = at
		}
	}
	return event
}
