package dto

import (
	"time"

	"timeTracker/internal/models/entry"

	"github.com/google/uuid"
)

type CreateEntryRequest struct {
	Description string     `json:"description"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	TaskID      *uuid.UUID `json:"task_id,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type StartTimerRequest struct {
	Description string     `json:"description"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	TaskID      *uuid.UUID `json:"task_id,omitempty"`
}

type UpdateEntryRequest struct {
	Description *string    `json:"description,omitempty"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	TaskID      *uuid.UUID `json:"task_id,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type EntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	Description string     `json:"description"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	TaskID      *uuid.UUID `json:"task_id,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    *int64     `json:"duration,omitempty"`
	IsRunning   bool       `json:"is_running"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type ListResponse struct {
	Entries       []EntryResponse `json:"entries"`
	TotalCount    int64           `json:"total_count"`
	TotalDuration int64           `json:"total_duration"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
}

func FromEntry(e *entry.Entry) EntryResponse {
	return EntryResponse{
		ID:          e.ID,
		Description: e.Description,
		ProjectID:   e.ProjectID,
		TaskID:      e.TaskID,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Duration:    e.Duration,
		IsRunning:   e.IsRunning(),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func FromEntryList(entries []*entry.Entry) []EntryResponse {
	result := make([]EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = FromEntry(e)
	}
	return result
}
