package entry

import (
	"time"

	"github.com/google/uuid"
)

const MaxDescriptionLength = 1000

type Entry struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Description string     `json:"description" db:"description"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty" db:"project_id"`
	TaskID      *uuid.UUID `json:"task_id,omitempty" db:"task_id"`
	StartTime   time.Time  `json:"start_time" db:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty" db:"end_time"`
	Duration    *int64     `json:"duration,omitempty" db:"duration"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

func (e *Entry) IsRunning() bool {
	return e.EndTime == nil
}

// RecalculateDuration выводит длительность из границ записи.
// Пока таймер идёт, длительность всегда nil - она никогда не хранится отдельно.
func (e *Entry) RecalculateDuration() {
	if e.EndTime == nil {
		e.Duration = nil
		return
	}
	seconds := int64(e.EndTime.Sub(e.StartTime) / time.Second)
	e.Duration = &seconds
}

// CurrentDuration - секунды для отображения: для завершённой записи
// сохранённая длительность, для идущей - now минус start_time.
func (e *Entry) CurrentDuration(now time.Time) int64 {
	if e.Duration != nil {
		return *e.Duration
	}
	return int64(now.Sub(e.StartTime) / time.Second)
}

func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	copied := *e
	return &copied
}

type Stats struct {
	TodaySeconds int64 `json:"today_seconds"`
	TodayCount   int64 `json:"today_count"`
	WeekSeconds  int64 `json:"week_seconds"`
	WeekCount    int64 `json:"week_count"`
	MonthSeconds int64 `json:"month_seconds"`
	MonthCount   int64 `json:"month_count"`
}
