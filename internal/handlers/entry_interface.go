package handlers

import (
	"context"

	"timeTracker/internal/models/entry"
	"timeTracker/internal/service"

	"github.com/google/uuid"
)

type EntryService interface {
	HealthCheck(ctx context.Context) error
	CreateEntry(ctx context.Context, userID uuid.UUID, params service.CreateParams) (*entry.Entry, error)
	StartTimer(ctx context.Context, userID uuid.UUID, description string, projectID, taskID *uuid.UUID) (*entry.Entry, error)
	StopTimer(ctx context.Context, id, userID uuid.UUID) (*entry.Entry, error)
	UpdateEntry(ctx context.Context, id, userID uuid.UUID, options ...service.EntryOption) (*entry.Entry, error)
	DeleteEntry(ctx context.Context, id, userID uuid.UUID) error
	GetEntry(ctx context.Context, id, userID uuid.UUID) (*entry.Entry, error)
	GetRunning(ctx context.Context, userID uuid.UUID) (*entry.Entry, error)
	ListEntries(ctx context.Context, userID uuid.UUID, q entry.ListQuery) ([]*entry.Entry, int64, int64, error)
	Stats(ctx context.Context, userID uuid.UUID) (*entry.Stats, error)
}
