package memory

import (
	"context"
	"strconv"

	"github.com/mcoot/fairway/internal/model"
)

// ReadResultEvents leases up to max events that are new or whose previous
// lease has expired. The consumer name is not tracked in memory.
func (s *Storage) ReadResultEvents(ctx context.Context, consumer string, max int) ([]model.ResultEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var out []model.ResultEvent
	for _, pe := range s.events {
		if len(out) >= max {
			break
		}
		if pe.acked {
			continue
		}
		if pe.delivered && now.Sub(pe.deliveredAt) < s.redeliveryTimeout {
			continue
		}
		pe.delivered = true
		pe.deliveredAt = now
		out = append(out, pe.event)
	}
	return out, nil
}

// AckResultEvent removes the event from the feed. Acking twice is a no-op.
func (s *Storage) AckResultEvent(ctx context.Context, event model.ResultEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.events[:0]
	for _, pe := range s.events {
		if pe.event.ID == event.ID {
			pe.acked = true
			continue
		}
		remaining = append(remaining, pe)
	}
	s.events = remaining
	return nil
}

func eventID(seq int) string {
	return strconv.Itoa(seq)
}
