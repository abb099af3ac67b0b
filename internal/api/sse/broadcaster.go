package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcoot/fairway/internal/model"
)

// Broadcaster publishes match events to the hub watching the match
type Broadcaster struct {
	hubs   *HubManager
	logger *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubs *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubs:   hubs,
		logger: logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Publish sends the event as JSON, named by its type. Events for matches
// nobody is watching are dropped.
func (b *Broadcaster) Publish(_ context.Context, event model.Event) {
	hub := b.hubs.GetHub(event.MatchID)
	if hub == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("sse failed to encode event",
			slog.String("match_id", string(event.MatchID)),
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()))
		return
	}
	hub.BroadcastEvent(string(event.Type), string(data))
}
