package service

import (
	"time"

	"timeTracker/internal/models/entry"

	"github.com/google/uuid"
)

// EntryOption - функция частичного обновления записи.
// Обработчик собирает опции только для переданных в запросе полей.
type EntryOption func(*entry.Entry)

func WithDescription(description string) EntryOption {
	return func(e *entry.Entry) {
		e.Description = description
	}
}

func WithProject(projectID *uuid.UUID) EntryOption {
	return func(e *entry.Entry) {
		e.ProjectID = projectID
	}
}

func WithTask(taskID *uuid.UUID) EntryOption {
	return func(e *entry.Entry) {
		e.TaskID = taskID
	}
}

func WithStartTime(startTime time.Time) EntryOption {
	return func(e *entry.Entry) {
		e.StartTime = startTime
	}
}

func WithEndTime(endTime time.Time) EntryOption {
	return func(e *entry.Entry) {
		end := endTime
		e.EndTime = &end
	}
}
