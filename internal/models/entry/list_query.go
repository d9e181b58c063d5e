package entry

import (
	"time"

	"github.com/google/uuid"
)

type SortBy string

const (
	SortByStartTime SortBy = "start_time"
	SortByDuration  SortBy = "duration"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 1000
)

type Filter struct {
	StartDate *time.Time
	EndDate   *time.Time
	ProjectID *uuid.UUID
	TaskID    *uuid.UUID
	IsRunning *bool
}

type ListQuery struct {
	Filter   Filter
	SortBy   SortBy
	Order    SortOrder
	Page     int
	PageSize int
}

// Clamp приводит пагинацию и сортировку к допустимым границам.
// Выход за границы не ошибка - значения просто подрезаются.
func (q *ListQuery) Clamp() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.SortBy != SortByDuration {
		q.SortBy = SortByStartTime
	}
	if q.Order != OrderAsc {
		q.Order = OrderDesc
	}
}

func (q *ListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Matches проверяет запись против фильтра. Диапазон дат включительный
// и применяется к start_time.
func (f *Filter) Matches(e *Entry) bool {
	if f.StartDate != nil && e.StartTime.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.StartTime.After(*f.EndDate) {
		return false
	}
	if f.ProjectID != nil && (e.ProjectID == nil || *e.ProjectID != *f.ProjectID) {
		return false
	}
	if f.TaskID != nil && (e.TaskID == nil || *e.TaskID != *f.TaskID) {
		return false
	}
	if f.IsRunning != nil && e.IsRunning() != *f.IsRunning {
		return false
	}
	return true
}
