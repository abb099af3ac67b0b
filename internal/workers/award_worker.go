package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/fairway/internal/model"
	"github.com/mcoot/fairway/internal/services/points"
	"github.com/mcoot/fairway/internal/storage"
)

// ResultProcessor awards the points for one result
type ResultProcessor interface {
	ProcessResult(ctx context.Context, resultID model.ResultID) (*points.Report, error)
}

// AwardWorker consumes the result feed and runs the points processor for
// each new result. An event is acknowledged only once its result is fully
// awarded, so failed runs are redelivered.
type AwardWorker struct {
	feed      storage.ResultFeed
	processor ResultProcessor
	cfg       Config
	logger    *slog.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAwardWorker creates a new AwardWorker
func NewAwardWorker(feed storage.ResultFeed, processor ResultProcessor, cfg Config, logger *slog.Logger) *AwardWorker {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &AwardWorker{
		feed:      feed,
		processor: processor,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "award-worker")),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the polling loop in the background. It runs until ctx is
// cancelled or Stop is called.
func (w *AwardWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *AwardWorker) run(ctx context.Context) {
	defer w.wg.Done()

	w.logger.Info("award worker started",
		slog.String("consumer", w.cfg.Consumer),
		slog.Duration("interval", w.cfg.PollInterval),
	)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("failed to read result feed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("award worker stopped (context cancelled)")
			return
		case <-w.stopChan:
			w.logger.Info("award worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Stop signals the loop to exit and waits for it
func (w *AwardWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

// RunOnce handles one batch from the feed and returns how many events were
// acknowledged
func (w *AwardWorker) RunOnce(ctx context.Context) (int, error) {
	batch, err := w.feed.ReadResultEvents(ctx, w.cfg.Consumer, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, event := range batch {
		if ctx.Err() != nil {
			break
		}
		if !w.handle(ctx, event) {
			continue
		}
		if err := w.feed.AckResultEvent(ctx, event); err != nil {
			w.logger.Error("failed to ack result event",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		acked++
	}
	return acked, nil
}

// handle reports whether the event is done with and may be acked
func (w *AwardWorker) handle(ctx context.Context, event model.ResultEvent) bool {
	logger := w.logger.With(
		slog.String("event_id", event.ID),
		slog.String("result_id", string(event.ResultID)),
	)

	report, err := w.processor.ProcessResult(ctx, event.ResultID)
	switch {
	case errors.Is(err, model.ErrResultNotFound):
		// Nothing will ever make this event succeed
		logger.Warn("dropping event for unknown result")
		return true
	case err != nil:
		logger.Error("points award incomplete, leaving event for redelivery", slog.String("error", err.Error()))
		return false
	}

	if report.AlreadyAwarded {
		logger.Debug("result already awarded")
	}
	return true
}
