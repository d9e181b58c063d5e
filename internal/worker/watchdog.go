package worker

import (
	"context"
	"fmt"
	"time"

	"timeTracker/internal/clock"
	"timeTracker/internal/logger"
	"timeTracker/internal/models/entry"
	"timeTracker/internal/service"

	"go.uber.org/zap"
)

// Watchdog периодически находит таймеры, идущие дольше порога,
// и пишет о них в лог. Никого не останавливает: таймер живёт,
// пока его явно не остановят или не удалят.
type Watchdog struct {
	repo      service.EntryRepository
	clock     clock.Clock
	interval  time.Duration
	threshold time.Duration
	batchSize int
}

func NewWatchdog(repo service.EntryRepository, clk clock.Clock, interval, threshold *time.Duration) *Watchdog {
	intervalToSet := 5 * time.Minute
	if interval != nil {
		intervalToSet = *interval
	}

	thresholdToSet := 12 * time.Hour
	if threshold != nil {
		thresholdToSet = *threshold
	}

	return &Watchdog{
		repo:      repo,
		clock:     clk,
		interval:  intervalToSet,
		threshold: thresholdToSet,
		batchSize: 100,
	}
}

func (w *Watchdog) Start(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			logger.Info("Worker: Фоновая проверка долгих таймеров", zap.Time("started_at", w.clock.Now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая проверка останавливается")
			return
		}
	}
}

func (w *Watchdog) Check(ctx context.Context) {
	start := time.Now()

	now := w.clock.Now()
	stale, err := w.getStaleTimers(ctx, now)
	if err != nil {
		logger.Warn("Worker: ошибка получения таймеров", zap.Error(err))
		return
	}

	for _, e := range stale {
		logger.Warn("Worker: Таймер идёт подозрительно долго",
			zap.String("entry_id", e.ID.String()),
			zap.String("user_id", e.UserID.String()),
			zap.Duration("running_for", now.Sub(e.StartTime)),
		)
	}

	logger.Info(
		"Worker: Завершение проверки",
		zap.Duration("ms", time.Since(start)),
		zap.Int("stale", len(stale)),
	)
}

func (w *Watchdog) getStaleTimers(ctx context.Context, now time.Time) ([]*entry.Entry, error) {
	entries, err := w.repo.RunningOlderThan(ctx, now.Add(-w.threshold), w.batchSize)
	if err != nil {
		return nil, fmt.Errorf("получение долгих таймеров: %w", err)
	}
	return entries, nil
}
