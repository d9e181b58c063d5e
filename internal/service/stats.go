package service

import (
	"context"
	"time"

	"timeTracker/internal/logger"
	"timeTracker/internal/models/entry"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stats считает итоги за день, неделю и месяц. Принадлежность окну
// определяется только по start_time, без дробления записей на границах.
// При ошибке хранилища возвращается нулевая статистика, а не ошибка:
// дашборд остаётся доступным, деградация видна только в логе.
func (s *TimerService) Stats(ctx context.Context, userID uuid.UUID) (*entry.Stats, error) {
	now := s.clock.Now()
	stats := &entry.Stats{}

	dayFrom, dayTo := dayWindow(now)
	weekFrom, weekTo := weekWindow(now)
	monthFrom, monthTo := monthWindow(now)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats.TodaySeconds, stats.TodayCount, err = s.repo.SumRange(gctx, userID, dayFrom, dayTo, now)
		return err
	})
	g.Go(func() error {
		var err error
		stats.WeekSeconds, stats.WeekCount, err = s.repo.SumRange(gctx, userID, weekFrom, weekTo, now)
		return err
	})
	g.Go(func() error {
		var err error
		stats.MonthSeconds, stats.MonthCount, err = s.repo.SumRange(gctx, userID, monthFrom, monthTo, now)
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Service: Статистика деградировала до нулевой", err,
			zap.String("user_id", userID.String()))
		return &entry.Stats{}, nil
	}
	return stats, nil
}

// окна [from, to) в часовом поясе сервера

func dayWindow(now time.Time) (time.Time, time.Time) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return from, from.AddDate(0, 0, 1)
}

// неделя начинается с понедельника
func weekWindow(now time.Time) (time.Time, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(now.Weekday()) + 6) % 7
	from := midnight.AddDate(0, 0, -offset)
	return from, from.AddDate(0, 0, 7)
}

func monthWindow(now time.Time) (time.Time, time.Time) {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return from, from.AddDate(0, 1, 0)
}
